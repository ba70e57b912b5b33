package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/surveyform/internal/models"
)

// FormDeps are the collaborators shared by every form build.
type FormDeps struct {
	Store   FormStore
	URLs    URLBuilder
	Signal  *CompletionSignal
	Logger  *slog.Logger
	Now     func() time.Time
	NewUUID func() string
}

// FormOptions describe one form build. A nil Step disables pagination; Seed
// is the raw seed parameter and is ignored unless it is an integer. Data holds
// resubmitted values, which replace stored answers as initial values.
type FormOptions struct {
	Survey *models.Survey
	User   *models.User
	Extra  string
	Step   *int
	Seed   string
	Data   url.Values
	Locale string
}

// QuestionGroup gathers the fields of one question for rendering.
type QuestionGroup struct {
	Key    string     `json:"key"`
	Text   string     `json:"text"`
	Fields []FieldRef `json:"fields"`
}

// FieldRef pairs a field with its answer group's display affixes.
type FieldRef struct {
	Field  *Field `json:"field"`
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty"`
}

// ResponseForm is the per-request form-build context. It is not safe for
// concurrent use and must not outlive the request.
type ResponseForm struct {
	deps     FormDeps
	logger   *slog.Logger
	survey   *models.Survey
	user     *models.User
	extra    string
	seed     int64
	uuid     string
	locale   string
	schema   *Schema
	steps    *StepResolver
	recovery *recovery
	disabled bool

	fields     []*Field
	fieldIndex map[string]*Field
	groups     []*QuestionGroup
	groupIndex map[string]*QuestionGroup
}

// NewResponseForm loads the survey schema once, recovers any previous
// response of the user and synthesizes the fields of the requested step.
func NewResponseForm(ctx context.Context, deps FormDeps, opts FormOptions) (*ResponseForm, error) {
	if opts.Survey == nil {
		return nil, ErrSurveyNotFound
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("response form store is nil")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.NewUUID == nil {
		deps.NewUUID = defaultInterviewUUID
	}

	f := &ResponseForm{
		deps:       deps,
		logger:     deps.Logger.With("survey_id", opts.Survey.ID),
		survey:     opts.Survey,
		user:       opts.User,
		extra:      opts.Extra,
		locale:     opts.Locale,
		uuid:       deps.NewUUID(),
		fieldIndex: map[string]*Field{},
		groupIndex: map[string]*QuestionGroup{},
	}
	if seed, ok := ParseSeed(opts.Seed); ok {
		f.seed = seed
	} else {
		f.seed = NewSeed()
	}

	categories, err := deps.Store.ListCategories(ctx, f.survey.ID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	questions, err := deps.Store.ListQuestions(ctx, f.survey.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	f.schema = NewSchema(categories, questions)

	f.recovery = newRecovery(deps.Store, f.survey, f.user, f.logger)
	resp, err := f.recovery.Response(ctx)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		f.seed = resp.RandomSeed
		f.extra = resp.Extra
	}

	f.steps = NewStepResolver(f.survey, f.schema, opts.Step, f.seed, f.extra, deps.URLs, f.locale)
	if err := f.steps.Validate(); err != nil {
		return nil, err
	}

	for _, q := range f.steps.CurrentQuestions() {
		if err := f.addQuestion(ctx, q, opts.Data); err != nil {
			return nil, err
		}
	}

	if !f.survey.EditableAnswers && resp != nil {
		f.disabled = true
		for _, field := range f.fields {
			field.Disabled = true
		}
	}
	return f, nil
}

func defaultInterviewUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (f *ResponseForm) addQuestion(ctx context.Context, q *models.Question, data url.Values) error {
	initial, err := f.questionInitial(ctx, q, data)
	if err != nil {
		return err
	}
	var category *models.Category
	if q.CategoryID != nil {
		category = f.schema.Category(*q.CategoryID)
	}
	fields := synthesizeFields(q, category, initial, f.logger)

	key := QuestionKey(q.ID)
	group, ok := f.groupIndex[key]
	if !ok {
		group = &QuestionGroup{Key: key, Text: q.Text}
		f.groupIndex[key] = group
		f.groups = append(f.groups, group)
	}
	groupsByID := map[int64]*models.AnswerGroup{}
	for _, ag := range q.AnswerGroups {
		groupsByID[ag.ID] = ag
	}
	for _, field := range fields {
		f.fields = append(f.fields, field)
		f.fieldIndex[field.Name] = field
		ag := groupsByID[field.AnswerGroupID]
		group.Fields = append(group.Fields, FieldRef{Field: field, Prefix: ag.Prefix, Suffix: ag.Suffix})
	}
	return nil
}

// questionInitial resolves the pre-filled values of a question. Resubmitted
// data wins over stored answers entirely; the two are never merged.
func (f *ResponseForm) questionInitial(ctx context.Context, q *models.Question, data url.Values) (map[int64]initialValue, error) {
	initial := map[int64]initialValue{}
	if len(data) > 0 {
		for _, ag := range q.AnswerGroups {
			vals, ok := data[FieldName(q.ID, ag.ID)]
			if !ok {
				continue
			}
			if ag.Type == models.TypeSelectMultiple {
				initial[ag.ID] = initialValue{choices: append([]string(nil), vals...)}
			} else if len(vals) > 0 {
				initial[ag.ID] = initialValue{text: vals[0]}
			}
		}
		return initial, nil
	}

	answers, err := f.recovery.QuestionAnswers(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	for groupID, answer := range answers {
		ag := f.schema.AnswerGroup(groupID)
		if ag != nil && ag.Type == models.TypeSelectMultiple {
			initial[groupID] = initialValue{choices: DecodeChoiceList(answer.Body)}
			continue
		}
		initial[groupID] = initialValue{text: answer.Body}
	}
	return initial, nil
}

// Fields returns the flat field namespace in display order.
func (f *ResponseForm) Fields() []*Field { return f.fields }

func (f *ResponseForm) Field(name string) (*Field, bool) {
	field, ok := f.fieldIndex[name]
	return field, ok
}

// GroupsByQuestion returns (question text, fields) pairs in display order.
func (f *ResponseForm) GroupsByQuestion() []*QuestionGroup { return f.groups }

func (f *ResponseForm) HasNextStep() bool { return f.steps.HasNextStep() }

func (f *ResponseForm) NextStepURL() (string, error) { return f.steps.NextStepURL() }

func (f *ResponseForm) CurrentStepURL() (string, error) { return f.steps.CurrentStepURL() }

func (f *ResponseForm) CurrentCategories() []*models.Category { return f.steps.CurrentCategories() }

func (f *ResponseForm) StepsCount() int { return f.steps.StepsCount() }

func (f *ResponseForm) Step() *int { return f.steps.Step() }

func (f *ResponseForm) Survey() *models.Survey { return f.survey }

func (f *ResponseForm) Seed() int64 { return f.seed }

func (f *ResponseForm) Extra() string { return f.extra }

func (f *ResponseForm) InterviewUUID() string { return f.uuid }

// Disabled is true when the user already answered a survey whose answers
// cannot be edited.
func (f *ResponseForm) Disabled() bool { return f.disabled }
