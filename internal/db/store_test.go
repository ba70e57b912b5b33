package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/surveyform/internal/models"
	"github.com/soaringjerry/surveyform/internal/services"
)

type contractStore interface {
	services.FormStore
	services.AuthStore
	AddSurvey(ctx context.Context, sv *models.Survey) error
	GetSurvey(ctx context.Context, id int64) (*models.Survey, error)
	ListSurveys(ctx context.Context) ([]*models.Survey, error)
	AddCategory(ctx context.Context, c *models.Category) error
	AddQuestion(ctx context.Context, q *models.Question) error
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	sqlDB, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	store, err := NewSQLiteStore(sqlDB)
	require.NoError(t, err)
	applied, err := RunMigrations(sqlDB, "")
	require.NoError(t, err)
	require.NotEmpty(t, applied)
	return store
}

func TestSQLiteStoreContract(t *testing.T) {
	runStoreContract(t, newTestSQLiteStore(t))
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	sqlDB, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer sqlDB.Close()

	first, err := RunMigrations(sqlDB, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql"}, first)
	again, err := RunMigrations(sqlDB, "")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("SURVEY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SURVEY_TEST_POSTGRES_DSN not set")
	}
	gdb, err := OpenPostgres(dsn)
	require.NoError(t, err)
	for _, table := range []string{"answers", "responses", "users", "answer_groups", "questions", "categories", "surveys"} {
		require.NoError(t, gdb.Exec("DROP TABLE IF EXISTS "+table+" CASCADE").Error)
	}
	store, err := NewPostgresStore(gdb)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.AutoMigrate(context.Background()))
	runStoreContract(t, store)
}

func runStoreContract(t *testing.T, store contractStore) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	survey := &models.Survey{ID: 1, Name: "Habits", DisplayMethod: models.ByCategory, EditableAnswers: false}
	require.NoError(t, store.AddSurvey(ctx, survey))
	got, err := store.GetSurvey(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, survey, got)
	missing, err := store.GetSurvey(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)
	all, err := store.ListSurveys(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	cat := &models.Category{ID: 10, SurveyID: 1, Name: "Food", Order: 1}
	require.NoError(t, store.AddCategory(ctx, cat))

	order := 2
	q := &models.Question{ID: 17, SurveyID: 1, Text: "Favourite fruits?", Required: true, CategoryID: &cat.ID, Order: &order,
		AnswerGroups: []*models.AnswerGroup{
			{ID: 42, Name: "fruits", Type: models.TypeSelectMultiple, Choices: []string{"Apple", "Pear"}},
			{ID: 43, Name: "note", Type: models.TypeShortText},
		}}
	require.NoError(t, store.AddQuestion(ctx, q))
	require.NoError(t, store.AddQuestion(ctx, &models.Question{ID: 18, SurveyID: 1, Text: "Anything else?",
		AnswerGroups: []*models.AnswerGroup{{ID: 44, Type: models.TypeText}}}))

	cats, err := store.ListCategories(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Food", cats[0].Name)

	qs, err := store.ListQuestions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, int64(17), qs[0].ID)
	require.Len(t, qs[0].AnswerGroups, 2)
	assert.Equal(t, []string{"Apple", "Pear"}, qs[0].AnswerGroups[0].Choices)
	require.NotNil(t, qs[0].Order)
	assert.Equal(t, 2, *qs[0].Order)
	assert.Nil(t, qs[1].Order)
	assert.Nil(t, qs[1].CategoryID)

	gq, err := store.GetQuestion(ctx, 17)
	require.NoError(t, err)
	assert.Equal(t, int64(10), *gq.CategoryID)
	ag, err := store.GetAnswerGroup(ctx, 43)
	require.NoError(t, err)
	assert.Equal(t, int64(17), ag.QuestionID)
	none, err := store.GetAnswerGroup(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, store.AddUser(ctx, &models.User{ID: "u1", Email: "a@b.c", PassHash: []byte("hash"), CreatedAt: now}))
	user, err := store.FindUserByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, []byte("hash"), user.PassHash)

	resp := &models.Response{SurveyID: 1, UserID: "u1", RandomSeed: 77, InterviewUUID: "abc", CreatedAt: now, UpdatedAt: now}
	answers := []*models.Answer{
		{QuestionID: 17, AnswerGroupID: 42, Body: "['apple']", CreatedAt: now, UpdatedAt: now},
		{QuestionID: 17, AnswerGroupID: 43, Body: "ripe", CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, store.SaveSubmission(ctx, resp, answers))
	assert.NotZero(t, resp.ID)
	assert.NotZero(t, answers[0].ID)

	found, err := store.FindResponse(ctx, 1, "u1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, resp.ID, found.ID)
	assert.Equal(t, int64(77), found.RandomSeed)
	assert.True(t, found.CreatedAt.Equal(now))

	answers[1].Body = "overripe"
	require.NoError(t, store.SaveSubmission(ctx, found, []*models.Answer{answers[1]}))
	stored, err := store.ListAnswers(ctx, resp.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "overripe", stored[1].Body)

	dup := &models.Response{SurveyID: 1, UserID: "u1", InterviewUUID: "def", CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, store.SaveSubmission(ctx, dup, nil), services.ErrDuplicateResponse)

	// anonymous responses are unrestricted
	for i := 0; i < 2; i++ {
		anon := &models.Response{SurveyID: 1, InterviewUUID: "anon", CreatedAt: now, UpdatedAt: now}
		require.NoError(t, store.SaveSubmission(ctx, anon, nil))
	}
	nobody, err := store.FindResponse(ctx, 1, "u2")
	require.NoError(t, err)
	assert.Nil(t, nobody)
}

func TestSQLiteSaveSubmissionRollsBack(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.AddSurvey(ctx, &models.Survey{ID: 1, Name: "s"}))
	require.NoError(t, store.AddQuestion(ctx, &models.Question{ID: 1, SurveyID: 1, Text: "q",
		AnswerGroups: []*models.AnswerGroup{{ID: 1, Type: models.TypeText}}}))

	resp := &models.Response{SurveyID: 1, InterviewUUID: "x", CreatedAt: now, UpdatedAt: now}
	answers := []*models.Answer{
		{QuestionID: 1, AnswerGroupID: 1, Body: "ok", CreatedAt: now, UpdatedAt: now},
		{QuestionID: 1, AnswerGroupID: 1, Body: "duplicate group", CreatedAt: now, UpdatedAt: now},
	}
	require.Error(t, store.SaveSubmission(ctx, resp, answers))

	var n int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(1) FROM responses`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(1) FROM answers`).Scan(&n))
	assert.Zero(t, n)
}
