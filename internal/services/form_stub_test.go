package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/soaringjerry/surveyform/internal/models"
)

type formStubStore struct {
	categories []*models.Category
	questions  []*models.Question
	responses  []*models.Response
	answers    map[int64][]*models.Answer
	nextID     int64
	saves      int
	failSave   error
}

func newFormStubStore() *formStubStore {
	return &formStubStore{answers: map[int64][]*models.Answer{}, nextID: 100}
}

func (s *formStubStore) addCategory(id int64, order int) *models.Category {
	c := &models.Category{ID: id, SurveyID: 1, Name: fmt.Sprintf("cat-%d", id), Order: order}
	s.categories = append(s.categories, c)
	return c
}

// addQuestion registers a question with a single answer group whose id is
// 100*id unless explicit groups are given.
func (s *formStubStore) addQuestion(id int64, category *int64, order *int, groups ...*models.AnswerGroup) *models.Question {
	if len(groups) == 0 {
		groups = []*models.AnswerGroup{{ID: id * 100, Name: "answer", Type: models.TypeShortText}}
	}
	for _, g := range groups {
		g.QuestionID = id
	}
	q := &models.Question{ID: id, SurveyID: 1, Text: fmt.Sprintf("question %d", id), CategoryID: category, Order: order, AnswerGroups: groups}
	s.questions = append(s.questions, q)
	return q
}

func (s *formStubStore) ListCategories(_ context.Context, surveyID int64) ([]*models.Category, error) {
	var out []*models.Category
	for _, c := range s.categories {
		if c.SurveyID == surveyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *formStubStore) ListQuestions(_ context.Context, surveyID int64) ([]*models.Question, error) {
	var out []*models.Question
	for _, q := range s.questions {
		if q.SurveyID == surveyID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *formStubStore) GetQuestion(_ context.Context, id int64) (*models.Question, error) {
	for _, q := range s.questions {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, nil
}

func (s *formStubStore) GetAnswerGroup(_ context.Context, id int64) (*models.AnswerGroup, error) {
	for _, q := range s.questions {
		for _, g := range q.AnswerGroups {
			if g.ID == id {
				return g, nil
			}
		}
	}
	return nil, nil
}

func (s *formStubStore) FindResponse(_ context.Context, surveyID int64, userID string) (*models.Response, error) {
	for _, r := range s.responses {
		if r.SurveyID == surveyID && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *formStubStore) ListAnswers(_ context.Context, responseID int64) ([]*models.Answer, error) {
	var out []*models.Answer
	for _, a := range s.answers[responseID] {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *formStubStore) SaveSubmission(_ context.Context, resp *models.Response, answers []*models.Answer) error {
	if s.failSave != nil {
		return s.failSave
	}
	s.saves++
	if resp.ID == 0 {
		s.nextID++
		resp.ID = s.nextID
		cp := *resp
		s.responses = append(s.responses, &cp)
	} else {
		for i, r := range s.responses {
			if r.ID == resp.ID {
				cp := *resp
				s.responses[i] = &cp
			}
		}
	}
	stored := s.answers[resp.ID]
	for _, a := range answers {
		a.ResponseID = resp.ID
		if a.ID == 0 {
			s.nextID++
			a.ID = s.nextID
			cp := *a
			stored = append(stored, &cp)
			continue
		}
		for i, old := range stored {
			if old.ID == a.ID {
				cp := *a
				stored[i] = &cp
			}
		}
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].ID < stored[j].ID })
	s.answers[resp.ID] = stored
	return nil
}

type stubURLs struct{}

func (stubURLs) Reverse(name string, params map[string]string) (string, error) {
	if name != RouteSurveyStep {
		return "", fmt.Errorf("unknown route %q", name)
	}
	return strings.Join([]string{"", "api", "surveys", params["id"], "steps", params["step"], params["seed"]}, "/"), nil
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func questionIDs(qs []*models.Question) []int64 {
	out := make([]int64, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}
