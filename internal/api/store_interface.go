package api

import (
	"context"

	"github.com/soaringjerry/surveyform/internal/models"
	"github.com/soaringjerry/surveyform/internal/services"
)

// Store is everything the HTTP layer and the seed command persist. The
// memory, SQLite and Postgres stores all implement it.
type Store interface {
	services.FormStore
	services.AuthStore

	AddSurvey(ctx context.Context, sv *models.Survey) error
	GetSurvey(ctx context.Context, id int64) (*models.Survey, error)
	ListSurveys(ctx context.Context) ([]*models.Survey, error)
	AddCategory(ctx context.Context, c *models.Category) error
	// AddQuestion inserts the question and its answer groups.
	AddQuestion(ctx context.Context, q *models.Question) error
}
