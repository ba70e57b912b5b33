package services

import (
	"context"

	"github.com/soaringjerry/surveyform/internal/models"
)

// FormStore abstracts the persistence operations needed to build and save a
// response form. Lookups that find nothing return (nil, nil).
type FormStore interface {
	ListCategories(ctx context.Context, surveyID int64) ([]*models.Category, error)
	// ListQuestions returns the survey questions with their answer groups loaded.
	ListQuestions(ctx context.Context, surveyID int64) ([]*models.Question, error)
	GetQuestion(ctx context.Context, id int64) (*models.Question, error)
	GetAnswerGroup(ctx context.Context, id int64) (*models.AnswerGroup, error)
	FindResponse(ctx context.Context, surveyID int64, userID string) (*models.Response, error)
	ListAnswers(ctx context.Context, responseID int64) ([]*models.Answer, error)
	// SaveSubmission persists the response and its answers in one transaction,
	// assigning ids to new records.
	SaveSubmission(ctx context.Context, resp *models.Response, answers []*models.Answer) error
}
