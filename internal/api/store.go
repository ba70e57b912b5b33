package api

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soaringjerry/surveyform/internal/models"
	"github.com/soaringjerry/surveyform/internal/services"
)

type memoryStore struct {
	mu           sync.RWMutex
	nextID       int64
	surveys      map[int64]*models.Survey
	categories   map[int64]*models.Category
	questions    map[int64]*models.Question
	groups       map[int64]*models.AnswerGroup
	responses    map[int64]*models.Response
	answers      map[int64]*models.Answer
	usersByEmail map[string]*models.User
}

// NewMemoryStore returns a process-local Store. Records are copied on the
// way in and out so callers never share state with the store.
func NewMemoryStore() Store {
	return newMemoryStore()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		surveys:      map[int64]*models.Survey{},
		categories:   map[int64]*models.Category{},
		questions:    map[int64]*models.Question{},
		groups:       map[int64]*models.AnswerGroup{},
		responses:    map[int64]*models.Response{},
		answers:      map[int64]*models.Answer{},
		usersByEmail: map[string]*models.User{},
	}
}

// assignID keeps generated ids above every explicit one; caller holds mu.
func (s *memoryStore) assignID(id *int64) {
	if *id == 0 {
		s.nextID++
		*id = s.nextID
		return
	}
	if *id > s.nextID {
		s.nextID = *id
	}
}

func (s *memoryStore) AddSurvey(_ context.Context, sv *models.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.surveys[sv.ID]; ok && sv.ID != 0 {
		return services.NewConflictError(fmt.Sprintf("survey %d exists", sv.ID))
	}
	s.assignID(&sv.ID)
	cp := *sv
	s.surveys[sv.ID] = &cp
	return nil
}

func (s *memoryStore) GetSurvey(_ context.Context, id int64) (*models.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sv, ok := s.surveys[id]
	if !ok {
		return nil, nil
	}
	cp := *sv
	return &cp, nil
}

func (s *memoryStore) ListSurveys(_ context.Context) ([]*models.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Survey, 0, len(s.surveys))
	for _, sv := range s.surveys {
		cp := *sv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) AddCategory(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.surveys[c.SurveyID]; !ok {
		return services.NewInvalidError(fmt.Sprintf("unknown survey %d", c.SurveyID))
	}
	s.assignID(&c.ID)
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

func (s *memoryStore) ListCategories(_ context.Context, surveyID int64) ([]*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Category
	for _, c := range s.categories {
		if c.SurveyID == surveyID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) AddQuestion(_ context.Context, q *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.surveys[q.SurveyID]; !ok {
		return services.NewInvalidError(fmt.Sprintf("unknown survey %d", q.SurveyID))
	}
	s.assignID(&q.ID)
	cp := *q
	cp.AnswerGroups = nil
	s.questions[q.ID] = &cp
	for _, ag := range q.AnswerGroups {
		ag.QuestionID = q.ID
		s.assignID(&ag.ID)
		g := *ag
		g.Choices = append([]string(nil), ag.Choices...)
		s.groups[ag.ID] = &g
	}
	return nil
}

// questionCopy attaches copies of the question's groups; caller holds mu.
func (s *memoryStore) questionCopy(q *models.Question) *models.Question {
	cp := *q
	cp.AnswerGroups = nil
	for _, g := range s.groups {
		if g.QuestionID == q.ID {
			gc := *g
			gc.Choices = append([]string(nil), g.Choices...)
			cp.AnswerGroups = append(cp.AnswerGroups, &gc)
		}
	}
	sort.Slice(cp.AnswerGroups, func(i, j int) bool { return cp.AnswerGroups[i].ID < cp.AnswerGroups[j].ID })
	return &cp
}

func (s *memoryStore) ListQuestions(_ context.Context, surveyID int64) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Question
	for _, q := range s.questions {
		if q.SurveyID == surveyID {
			out = append(out, s.questionCopy(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) GetQuestion(_ context.Context, id int64) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, nil
	}
	return s.questionCopy(q), nil
}

func (s *memoryStore) GetAnswerGroup(_ context.Context, id int64) (*models.AnswerGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *memoryStore) FindResponse(_ context.Context, surveyID int64, userID string) (*models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.responses {
		if r.SurveyID == surveyID && r.UserID != "" && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) ListAnswers(_ context.Context, responseID int64) ([]*models.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Answer
	for _, a := range s.answers {
		if a.ResponseID == responseID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveSubmission validates the whole batch before touching any map, so a
// failed save leaves the store unchanged.
func (s *memoryStore) SaveSubmission(_ context.Context, resp *models.Response, answers []*models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resp.ID == 0 {
		if resp.UserID != "" {
			for _, r := range s.responses {
				if r.SurveyID == resp.SurveyID && r.UserID == resp.UserID {
					return services.ErrDuplicateResponse
				}
			}
		}
	} else if _, ok := s.responses[resp.ID]; !ok {
		return services.NewNotFoundError(fmt.Sprintf("response %d not found", resp.ID))
	}
	for _, a := range answers {
		if a.ID != 0 {
			if _, ok := s.answers[a.ID]; !ok {
				return services.NewNotFoundError(fmt.Sprintf("answer %d not found", a.ID))
			}
		}
	}

	s.assignID(&resp.ID)
	rc := *resp
	s.responses[resp.ID] = &rc
	for _, a := range answers {
		a.ResponseID = resp.ID
		s.assignID(&a.ID)
		ac := *a
		s.answers[a.ID] = &ac
	}
	return nil
}

func (s *memoryStore) AddUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByEmail[u.Email]; ok {
		return services.NewConflictError("email exists")
	}
	cp := *u
	s.usersByEmail[u.Email] = &cp
	return nil
}

func (s *memoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

var _ Store = (*memoryStore)(nil)
