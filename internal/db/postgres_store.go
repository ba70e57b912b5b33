package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/soaringjerry/surveyform/internal/models"
	"github.com/soaringjerry/surveyform/internal/services"
)

type surveyRow struct {
	ID              int64  `gorm:"primaryKey"`
	Name            string `gorm:"not null"`
	Description     string `gorm:"not null;default:''"`
	DisplayMethod   string `gorm:"not null;default:ALL_IN_ONE"`
	EditableAnswers bool   `gorm:"not null;default:true"`
}

func (surveyRow) TableName() string { return "surveys" }

type categoryRow struct {
	ID          int64  `gorm:"primaryKey"`
	SurveyID    int64  `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	Description string `gorm:"not null;default:''"`
	Position    int    `gorm:"not null;default:0"`
}

func (categoryRow) TableName() string { return "categories" }

type questionRow struct {
	ID         int64  `gorm:"primaryKey"`
	SurveyID   int64  `gorm:"not null;index"`
	CategoryID *int64 `gorm:"index"`
	Text       string `gorm:"not null"`
	Required   bool   `gorm:"not null;default:false"`
	Position   *int
	Groups     []answerGroupRow `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (questionRow) TableName() string { return "questions" }

type answerGroupRow struct {
	ID         int64  `gorm:"primaryKey"`
	QuestionID int64  `gorm:"not null;index"`
	Name       string `gorm:"not null;default:''"`
	Type       string `gorm:"not null"`
	Prefix     string `gorm:"not null;default:''"`
	Suffix     string `gorm:"not null;default:''"`
	Choices    string `gorm:"type:text;not null;default:'[]'"`
}

func (answerGroupRow) TableName() string { return "answer_groups" }

type userRow struct {
	ID        string `gorm:"primaryKey"`
	Email     string `gorm:"not null;uniqueIndex"`
	PassHash  []byte `gorm:"not null"`
	CreatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type responseRow struct {
	ID            int64   `gorm:"primaryKey"`
	SurveyID      int64   `gorm:"not null;uniqueIndex:idx_responses_user_survey,where:user_id IS NOT NULL"`
	UserID        *string `gorm:"uniqueIndex:idx_responses_user_survey"`
	RandomSeed    int64   `gorm:"not null;default:0"`
	InterviewUUID string  `gorm:"not null"`
	Extra         string  `gorm:"not null;default:''"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (responseRow) TableName() string { return "responses" }

type answerRow struct {
	ID            int64  `gorm:"primaryKey"`
	ResponseID    int64  `gorm:"not null;uniqueIndex:idx_answers_response_group"`
	QuestionID    int64  `gorm:"not null"`
	AnswerGroupID int64  `gorm:"not null;uniqueIndex:idx_answers_response_group"`
	Body          string `gorm:"type:text;not null;default:''"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (answerRow) TableName() string { return "answers" }

// PostgresStore persists surveys and responses through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects with the simple protocol so pgbouncer pools work.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
	return db, nil
}

func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	return &PostgresStore{db: db}, nil
}

// AutoMigrate creates or updates every table the store uses.
func (s *PostgresStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&surveyRow{}, &categoryRow{}, &questionRow{}, &answerGroupRow{},
		&userRow{}, &responseRow{}, &answerRow{},
	)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlstate 23505") || strings.Contains(msg, "duplicate key")
}

func surveyFromRow(r surveyRow) *models.Survey {
	return &models.Survey{ID: r.ID, Name: r.Name, Description: r.Description, DisplayMethod: models.DisplayMethod(r.DisplayMethod), EditableAnswers: r.EditableAnswers}
}

func groupFromRow(r answerGroupRow) (*models.AnswerGroup, error) {
	choices, err := decodeChoices(r.Choices)
	if err != nil {
		return nil, err
	}
	return &models.AnswerGroup{ID: r.ID, QuestionID: r.QuestionID, Name: r.Name, Type: models.AnswerType(r.Type), Prefix: r.Prefix, Suffix: r.Suffix, Choices: choices}, nil
}

func questionFromRow(r questionRow) (*models.Question, error) {
	q := &models.Question{ID: r.ID, SurveyID: r.SurveyID, CategoryID: r.CategoryID, Text: r.Text, Required: r.Required, Order: r.Position}
	for _, g := range r.Groups {
		ag, err := groupFromRow(g)
		if err != nil {
			return nil, err
		}
		q.AnswerGroups = append(q.AnswerGroups, ag)
	}
	return q, nil
}

func responseFromRow(r responseRow) *models.Response {
	resp := &models.Response{ID: r.ID, SurveyID: r.SurveyID, RandomSeed: r.RandomSeed, InterviewUUID: r.InterviewUUID, Extra: r.Extra, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	if r.UserID != nil {
		resp.UserID = *r.UserID
	}
	return resp
}

func (s *PostgresStore) AddSurvey(ctx context.Context, sv *models.Survey) error {
	row := surveyRow{ID: sv.ID, Name: sv.Name, Description: sv.Description, DisplayMethod: string(sv.DisplayMethod), EditableAnswers: sv.EditableAnswers}
	// gorm skips zero-valued defaults on insert, so false must be written explicitly
	if err := s.db.WithContext(ctx).Select("*").Omit(omitZeroID(sv.ID)...).Create(&row).Error; err != nil {
		if isDuplicateKey(err) {
			return services.NewConflictError(fmt.Sprintf("survey %d exists", sv.ID))
		}
		return fmt.Errorf("insert survey: %w", err)
	}
	sv.ID = row.ID
	return nil
}

func omitZeroID(id int64) []string {
	if id == 0 {
		return []string{"ID"}
	}
	return nil
}

func (s *PostgresStore) GetSurvey(ctx context.Context, id int64) (*models.Survey, error) {
	var row surveyRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get survey %d: %w", id, err)
	}
	return surveyFromRow(row), nil
}

func (s *PostgresStore) ListSurveys(ctx context.Context) ([]*models.Survey, error) {
	var rows []surveyRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	out := make([]*models.Survey, 0, len(rows))
	for _, r := range rows {
		out = append(out, surveyFromRow(r))
	}
	return out, nil
}

func (s *PostgresStore) AddCategory(ctx context.Context, c *models.Category) error {
	row := categoryRow{ID: c.ID, SurveyID: c.SurveyID, Name: c.Name, Description: c.Description, Position: c.Order}
	if err := s.db.WithContext(ctx).Select("*").Omit(omitZeroID(c.ID)...).Create(&row).Error; err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	c.ID = row.ID
	return nil
}

func (s *PostgresStore) ListCategories(ctx context.Context, surveyID int64) ([]*models.Category, error) {
	var rows []categoryRow
	if err := s.db.WithContext(ctx).Where("survey_id = ?", surveyID).Order("position, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]*models.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, &models.Category{ID: r.ID, SurveyID: r.SurveyID, Name: r.Name, Description: r.Description, Order: r.Position})
	}
	return out, nil
}

func (s *PostgresStore) AddQuestion(ctx context.Context, q *models.Question) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := questionRow{ID: q.ID, SurveyID: q.SurveyID, CategoryID: q.CategoryID, Text: q.Text, Required: q.Required, Position: q.Order}
		if err := tx.Omit(append(omitZeroID(q.ID), clause.Associations)...).Create(&row).Error; err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		q.ID = row.ID
		for _, ag := range q.AnswerGroups {
			choices, err := encodeChoices(ag.Choices)
			if err != nil {
				return err
			}
			ag.QuestionID = q.ID
			g := answerGroupRow{ID: ag.ID, QuestionID: q.ID, Name: ag.Name, Type: string(ag.Type), Prefix: ag.Prefix, Suffix: ag.Suffix, Choices: choices}
			if err := tx.Omit(omitZeroID(ag.ID)...).Create(&g).Error; err != nil {
				return fmt.Errorf("insert answer group: %w", err)
			}
			ag.ID = g.ID
		}
		return nil
	})
}

func (s *PostgresStore) ListQuestions(ctx context.Context, surveyID int64) ([]*models.Question, error) {
	var rows []questionRow
	err := s.db.WithContext(ctx).
		Preload("Groups", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("survey_id = ?", surveyID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]*models.Question, 0, len(rows))
	for _, r := range rows {
		q, err := questionFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *PostgresStore) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	var row questionRow
	err := s.db.WithContext(ctx).
		Preload("Groups", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get question %d: %w", id, err)
	}
	return questionFromRow(row)
}

func (s *PostgresStore) GetAnswerGroup(ctx context.Context, id int64) (*models.AnswerGroup, error) {
	var row answerGroupRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get answer group %d: %w", id, err)
	}
	return groupFromRow(row)
}

func (s *PostgresStore) FindResponse(ctx context.Context, surveyID int64, userID string) (*models.Response, error) {
	var row responseRow
	err := s.db.WithContext(ctx).Where("survey_id = ? AND user_id = ?", surveyID, userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find response: %w", err)
	}
	return responseFromRow(row), nil
}

func (s *PostgresStore) ListAnswers(ctx context.Context, responseID int64) ([]*models.Answer, error) {
	var rows []answerRow
	if err := s.db.WithContext(ctx).Where("response_id = ?", responseID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make([]*models.Answer, 0, len(rows))
	for _, r := range rows {
		out = append(out, &models.Answer{ID: r.ID, ResponseID: r.ResponseID, QuestionID: r.QuestionID, AnswerGroupID: r.AnswerGroupID, Body: r.Body, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

// SaveSubmission writes the response and every answer in one transaction.
func (s *PostgresStore) SaveSubmission(ctx context.Context, resp *models.Response, answers []*models.Answer) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := responseRow{ID: resp.ID, SurveyID: resp.SurveyID, RandomSeed: resp.RandomSeed, InterviewUUID: resp.InterviewUUID, Extra: resp.Extra, CreatedAt: resp.CreatedAt, UpdatedAt: resp.UpdatedAt}
		if resp.UserID != "" {
			uid := resp.UserID
			row.UserID = &uid
		}
		if resp.ID == 0 {
			if err := tx.Omit("ID").Create(&row).Error; err != nil {
				if isDuplicateKey(err) {
					return services.ErrDuplicateResponse
				}
				return fmt.Errorf("insert response: %w", err)
			}
			resp.ID = row.ID
		} else {
			err := tx.Model(&responseRow{}).Where("id = ?", resp.ID).Updates(map[string]any{
				"random_seed":    resp.RandomSeed,
				"interview_uuid": resp.InterviewUUID,
				"extra":          resp.Extra,
				"updated_at":     resp.UpdatedAt,
			}).Error
			if err != nil {
				return fmt.Errorf("update response %d: %w", resp.ID, err)
			}
		}

		for _, a := range answers {
			a.ResponseID = resp.ID
			if a.ID != 0 {
				err := tx.Model(&answerRow{}).Where("id = ?", a.ID).Updates(map[string]any{"body": a.Body, "updated_at": a.UpdatedAt}).Error
				if err != nil {
					return fmt.Errorf("update answer %d: %w", a.ID, err)
				}
				continue
			}
			ar := answerRow{ResponseID: a.ResponseID, QuestionID: a.QuestionID, AnswerGroupID: a.AnswerGroupID, Body: a.Body, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt}
			if err := tx.Omit("ID").Create(&ar).Error; err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
			a.ID = ar.ID
		}
		return nil
	})
}

func (s *PostgresStore) AddUser(ctx context.Context, u *models.User) error {
	row := userRow{ID: u.ID, Email: u.Email, PassHash: u.PassHash, CreatedAt: u.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateKey(err) {
			return services.NewConflictError("email exists")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &models.User{ID: row.ID, Email: row.Email, PassHash: row.PassHash, CreatedAt: row.CreatedAt}, nil
}
