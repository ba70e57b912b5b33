package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/soaringjerry/surveyform/internal/models"
	"github.com/soaringjerry/surveyform/internal/services"
)

// SQLiteStore persists surveys and responses with database/sql.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens dsn with the pragmas the store relies on.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func toNullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func toNullID(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func encodeChoices(choices []string) (string, error) {
	if len(choices) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(choices)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeChoices(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode choices: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// --- surveys ---

func (s *SQLiteStore) AddSurvey(ctx context.Context, sv *models.Survey) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO surveys (id, name, description, display_method, editable_answers) VALUES (NULLIF(?, 0), ?, ?, ?, ?)`,
		sv.ID, sv.Name, sv.Description, string(sv.DisplayMethod), boolToInt64(sv.EditableAnswers))
	if err != nil {
		if isUniqueViolation(err) {
			return services.NewConflictError(fmt.Sprintf("survey %d exists", sv.ID))
		}
		return fmt.Errorf("insert survey: %w", err)
	}
	if sv.ID == 0 {
		if sv.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

const surveyColumns = `id, name, description, display_method, editable_answers`

func scanSurvey(row interface{ Scan(...any) error }) (*models.Survey, error) {
	var sv models.Survey
	var method string
	var editable int64
	if err := row.Scan(&sv.ID, &sv.Name, &sv.Description, &method, &editable); err != nil {
		return nil, err
	}
	sv.DisplayMethod = models.DisplayMethod(method)
	sv.EditableAnswers = editable != 0
	return &sv, nil
}

func (s *SQLiteStore) GetSurvey(ctx context.Context, id int64) (*models.Survey, error) {
	sv, err := scanSurvey(s.db.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM surveys WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get survey %d: %w", id, err)
	}
	return sv, nil
}

func (s *SQLiteStore) ListSurveys(ctx context.Context) ([]*models.Survey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+surveyColumns+` FROM surveys ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	defer rows.Close()
	var out []*models.Survey
	for rows.Next() {
		sv, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// --- categories ---

func (s *SQLiteStore) AddCategory(ctx context.Context, c *models.Category) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, survey_id, name, description, position) VALUES (NULLIF(?, 0), ?, ?, ?, ?)`,
		c.ID, c.SurveyID, c.Name, c.Description, c.Order)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	if c.ID == 0 {
		if c.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListCategories(ctx context.Context, surveyID int64) ([]*models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, survey_id, name, description, position FROM categories WHERE survey_id = ? ORDER BY position, id`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	var out []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.SurveyID, &c.Name, &c.Description, &c.Order); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// --- questions ---

// AddQuestion inserts a question together with its answer groups.
func (s *SQLiteStore) AddQuestion(ctx context.Context, q *models.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO questions (id, survey_id, category_id, text, required, position) VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?)`,
		q.ID, q.SurveyID, toNullID(q.CategoryID), q.Text, boolToInt64(q.Required), toNullInt(q.Order))
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	if q.ID == 0 {
		if q.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	for _, ag := range q.AnswerGroups {
		ag.QuestionID = q.ID
		choices, err := encodeChoices(ag.Choices)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO answer_groups (id, question_id, name, type, prefix, suffix, choices) VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?)`,
			ag.ID, ag.QuestionID, ag.Name, string(ag.Type), ag.Prefix, ag.Suffix, choices)
		if err != nil {
			return fmt.Errorf("insert answer group: %w", err)
		}
		if ag.ID == 0 {
			if ag.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

const questionColumns = `id, survey_id, category_id, text, required, position`

func scanQuestion(row interface{ Scan(...any) error }) (*models.Question, error) {
	var q models.Question
	var category, position sql.NullInt64
	var required int64
	if err := row.Scan(&q.ID, &q.SurveyID, &category, &q.Text, &required, &position); err != nil {
		return nil, err
	}
	q.Required = required != 0
	if category.Valid {
		id := category.Int64
		q.CategoryID = &id
	}
	if position.Valid {
		p := int(position.Int64)
		q.Order = &p
	}
	return &q, nil
}

const answerGroupColumns = `id, question_id, name, type, prefix, suffix, choices`

func scanAnswerGroup(row interface{ Scan(...any) error }) (*models.AnswerGroup, error) {
	var ag models.AnswerGroup
	var typ, choices string
	if err := row.Scan(&ag.ID, &ag.QuestionID, &ag.Name, &typ, &ag.Prefix, &ag.Suffix, &choices); err != nil {
		return nil, err
	}
	ag.Type = models.AnswerType(typ)
	list, err := decodeChoices(choices)
	if err != nil {
		return nil, err
	}
	ag.Choices = list
	return &ag, nil
}

func (s *SQLiteStore) ListQuestions(ctx context.Context, surveyID int64) ([]*models.Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE survey_id = ? ORDER BY id`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	var out []*models.Question
	byID := map[int64]*models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, q)
		byID[q.ID] = q
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups, err := s.db.QueryContext(ctx,
		`SELECT ag.id, ag.question_id, ag.name, ag.type, ag.prefix, ag.suffix, ag.choices
		   FROM answer_groups ag JOIN questions q ON q.id = ag.question_id
		  WHERE q.survey_id = ? ORDER BY ag.id`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("list answer groups: %w", err)
	}
	defer groups.Close()
	for groups.Next() {
		ag, err := scanAnswerGroup(groups)
		if err != nil {
			return nil, err
		}
		if q := byID[ag.QuestionID]; q != nil {
			q.AnswerGroups = append(q.AnswerGroups, ag)
		}
	}
	return out, groups.Err()
}

func (s *SQLiteStore) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get question %d: %w", id, err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+answerGroupColumns+` FROM answer_groups WHERE question_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list answer groups: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		ag, err := scanAnswerGroup(rows)
		if err != nil {
			return nil, err
		}
		q.AnswerGroups = append(q.AnswerGroups, ag)
	}
	return q, rows.Err()
}

func (s *SQLiteStore) GetAnswerGroup(ctx context.Context, id int64) (*models.AnswerGroup, error) {
	ag, err := scanAnswerGroup(s.db.QueryRowContext(ctx, `SELECT `+answerGroupColumns+` FROM answer_groups WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get answer group %d: %w", id, err)
	}
	return ag, nil
}

// --- responses ---

func (s *SQLiteStore) FindResponse(ctx context.Context, surveyID int64, userID string) (*models.Response, error) {
	var r models.Response
	var user sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, survey_id, user_id, random_seed, interview_uuid, extra, created_at, updated_at
		   FROM responses WHERE survey_id = ? AND user_id = ?`, surveyID, userID).
		Scan(&r.ID, &r.SurveyID, &user, &r.RandomSeed, &r.InterviewUUID, &r.Extra, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find response: %w", err)
	}
	r.UserID = user.String
	return &r, nil
}

func (s *SQLiteStore) ListAnswers(ctx context.Context, responseID int64) ([]*models.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, response_id, question_id, answer_group_id, body, created_at, updated_at
		   FROM answers WHERE response_id = ? ORDER BY id`, responseID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()
	var out []*models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.ResponseID, &a.QuestionID, &a.AnswerGroupID, &a.Body, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// SaveSubmission writes the response and every answer in one transaction.
func (s *SQLiteStore) SaveSubmission(ctx context.Context, resp *models.Response, answers []*models.Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if resp.ID == 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO responses (survey_id, user_id, random_seed, interview_uuid, extra, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			resp.SurveyID, toNullString(resp.UserID), resp.RandomSeed, resp.InterviewUUID, resp.Extra, resp.CreatedAt, resp.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return services.ErrDuplicateResponse
			}
			return fmt.Errorf("insert response: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		resp.ID = id
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE responses SET random_seed = ?, interview_uuid = ?, extra = ?, updated_at = ? WHERE id = ?`,
			resp.RandomSeed, resp.InterviewUUID, resp.Extra, resp.UpdatedAt, resp.ID); err != nil {
			return fmt.Errorf("update response %d: %w", resp.ID, err)
		}
	}

	for _, a := range answers {
		a.ResponseID = resp.ID
		if a.ID != 0 {
			if _, err := tx.ExecContext(ctx, `UPDATE answers SET body = ?, updated_at = ? WHERE id = ?`, a.Body, a.UpdatedAt, a.ID); err != nil {
				return fmt.Errorf("update answer %d: %w", a.ID, err)
			}
			continue
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO answers (response_id, question_id, answer_group_id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			a.ResponseID, a.QuestionID, a.AnswerGroupID, a.Body, a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- users ---

func (s *SQLiteStore) AddUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, email, pass_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PassHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return services.NewConflictError("email exists")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `SELECT id, email, pass_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PassHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}
