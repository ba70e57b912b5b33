package services

import (
	"sort"

	"github.com/soaringjerry/surveyform/internal/models"
)

// Schema is the ordered, read-only view of a survey definition used by a
// single form build. It is computed once and never re-queried.
type Schema struct {
	questions     []*models.Question
	categories    []*models.Category
	uncategorized []*models.Question
	unordered     []*models.Question
	byCategory    map[int64][]*models.Question
	questionByID  map[int64]*models.Question
	groupByID     map[int64]*models.AnswerGroup
	categoryByID  map[int64]*models.Category
}

// NewSchema orders categories and questions and indexes them by id.
func NewSchema(categories []*models.Category, questions []*models.Question) *Schema {
	s := &Schema{
		byCategory:   map[int64][]*models.Question{},
		questionByID: map[int64]*models.Question{},
		groupByID:    map[int64]*models.AnswerGroup{},
		categoryByID: map[int64]*models.Category{},
	}

	s.questions = append([]*models.Question(nil), questions...)
	SortQuestions(s.questions)
	for _, q := range s.questions {
		s.questionByID[q.ID] = q
		for _, ag := range q.AnswerGroups {
			s.groupByID[ag.ID] = ag
		}
		if q.Order == nil {
			s.unordered = append(s.unordered, q)
		}
		if q.CategoryID == nil {
			s.uncategorized = append(s.uncategorized, q)
			continue
		}
		s.byCategory[*q.CategoryID] = append(s.byCategory[*q.CategoryID], q)
	}

	ordered := append([]*models.Category(nil), categories...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return ordered[i].ID < ordered[j].ID
	})
	for _, c := range ordered {
		s.categoryByID[c.ID] = c
		if len(s.byCategory[c.ID]) > 0 {
			s.categories = append(s.categories, c)
		}
	}
	return s
}

// SortQuestions orders by explicit order (nil last), then by id.
func SortQuestions(qs []*models.Question) {
	sort.SliceStable(qs, func(i, j int) bool {
		a, b := qs[i], qs[j]
		switch {
		case a.Order != nil && b.Order != nil && *a.Order != *b.Order:
			return *a.Order < *b.Order
		case a.Order != nil && b.Order == nil:
			return true
		case a.Order == nil && b.Order != nil:
			return false
		}
		return a.ID < b.ID
	})
}

// Questions returns every question in display order.
func (s *Schema) Questions() []*models.Question { return s.questions }

// NonEmptyCategories returns the categories holding at least one question.
func (s *Schema) NonEmptyCategories() []*models.Category { return s.categories }

// Uncategorized returns the questions without a category.
func (s *Schema) Uncategorized() []*models.Question { return s.uncategorized }

// Unordered returns the questions without an explicit order.
func (s *Schema) Unordered() []*models.Question { return s.unordered }

// CategoryQuestions returns the ordered questions of one category.
func (s *Schema) CategoryQuestions(categoryID int64) []*models.Question {
	return s.byCategory[categoryID]
}

// Randomized reports whether any question participates in shuffling.
func (s *Schema) Randomized() bool { return len(s.unordered) > 0 }

func (s *Schema) Question(id int64) *models.Question { return s.questionByID[id] }

func (s *Schema) AnswerGroup(id int64) *models.AnswerGroup { return s.groupByID[id] }

func (s *Schema) Category(id int64) *models.Category { return s.categoryByID[id] }
