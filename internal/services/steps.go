package services

import (
	"fmt"
	"strconv"

	"github.com/soaringjerry/surveyform/internal/models"
	"github.com/soaringjerry/surveyform/internal/utils"
)

// RouteSurveyStep is the named route used to build step links.
const RouteSurveyStep = "survey-detail-step"

// URLBuilder reverses a named route with its parameters into a path.
type URLBuilder interface {
	Reverse(name string, params map[string]string) (string, error)
}

// NoCategory returns the placeholder category shown for uncategorized questions.
func NoCategory(locale string) *models.Category {
	return &models.Category{
		Name:        utils.T(locale, "category.none"),
		Description: utils.T(locale, "category.none.description"),
	}
}

// StepResolver decides which questions belong to a page and how to link
// between pages. A nil step disables pagination.
type StepResolver struct {
	survey *models.Survey
	schema *Schema
	step   *int
	seed   int64
	extra  string
	urls   URLBuilder
	locale string
}

func NewStepResolver(survey *models.Survey, schema *Schema, step *int, seed int64, extra string, urls URLBuilder, locale string) *StepResolver {
	return &StepResolver{survey: survey, schema: schema, step: step, seed: seed, extra: extra, urls: urls, locale: locale}
}

func (r *StepResolver) Step() *int { return r.step }

// StepsCount is the number of pages in paginated modes.
func (r *StepResolver) StepsCount() int {
	if r.survey.DisplayMethod == models.ByCategory {
		n := len(r.schema.NonEmptyCategories())
		if len(r.schema.Uncategorized()) > 0 {
			n++
		}
		return n
	}
	return len(r.schema.Questions())
}

// Validate rejects steps that cannot address any page.
func (r *StepResolver) Validate() error {
	if r.step == nil || r.survey.IsAllInOnePage() {
		return nil
	}
	if *r.step < 0 {
		return NewInvalidError("step must not be negative")
	}
	if *r.step >= r.StepsCount() {
		return NewNotFoundError(fmt.Sprintf("step %d out of range", *r.step))
	}
	return nil
}

// QuestionsForStep returns the questions displayed on the given step.
func (r *StepResolver) QuestionsForStep(step *int) []*models.Question {
	if r.survey.DisplayMethod == models.ByCategory && step != nil {
		cats := r.schema.NonEmptyCategories()
		var qs []*models.Question
		switch {
		case *step == len(cats):
			qs = r.schema.Uncategorized()
		case *step >= 0 && *step < len(cats):
			qs = r.schema.CategoryQuestions(cats[*step].ID)
		}
		if r.schema.Randomized() {
			qs = Shuffle(qs, r.seed)
		}
		return qs
	}

	qs := r.schema.Questions()
	if r.schema.Randomized() {
		qs = Shuffle(qs, r.seed)
	}
	if r.survey.DisplayMethod == models.ByQuestion && step != nil {
		if *step < 0 || *step >= len(qs) {
			return nil
		}
		return qs[*step : *step+1]
	}
	return qs
}

// CurrentQuestions is QuestionsForStep for the resolver's own step.
func (r *StepResolver) CurrentQuestions() []*models.Question {
	return r.QuestionsForStep(r.step)
}

func (r *StepResolver) HasNextStep() bool {
	if r.survey.IsAllInOnePage() || r.step == nil {
		return false
	}
	return *r.step < r.StepsCount()-1
}

// NextStepURL returns "" when there is no next step.
func (r *StepResolver) NextStepURL() (string, error) {
	if !r.HasNextStep() {
		return "", nil
	}
	return r.stepURL(*r.step + 1)
}

func (r *StepResolver) CurrentStepURL() (string, error) {
	step := 0
	if r.step != nil {
		step = *r.step
	}
	return r.stepURL(step)
}

func (r *StepResolver) stepURL(step int) (string, error) {
	if r.urls == nil {
		return "", fmt.Errorf("no url builder configured")
	}
	seed := int64(0)
	if r.schema.Randomized() {
		seed = r.seed
	}
	path, err := r.urls.Reverse(RouteSurveyStep, map[string]string{
		"id":   strconv.FormatInt(r.survey.ID, 10),
		"step": strconv.Itoa(step),
		"seed": strconv.FormatInt(seed, 10),
	})
	if err != nil {
		return "", fmt.Errorf("reverse %s: %w", RouteSurveyStep, err)
	}
	if r.extra != "" {
		path += "?" + r.extra
	}
	return path, nil
}

// CurrentCategories returns the section headers relevant to the current page.
func (r *StepResolver) CurrentCategories() []*models.Category {
	cats := r.schema.NonEmptyCategories()
	if r.survey.DisplayMethod == models.ByCategory {
		if r.step != nil && *r.step >= 0 && *r.step < len(cats) {
			return []*models.Category{cats[*r.step]}
		}
		return []*models.Category{NoCategory(r.locale)}
	}
	out := append([]*models.Category(nil), cats...)
	if len(r.schema.Uncategorized()) > 0 {
		out = append(out, NoCategory(r.locale))
	}
	return out
}
