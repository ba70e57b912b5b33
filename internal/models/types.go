package models

import "time"

// DisplayMethod controls how a survey is paginated.
type DisplayMethod string

const (
	AllInOnePage DisplayMethod = "ALL_IN_ONE"
	ByCategory   DisplayMethod = "BY_CATEGORY"
	ByQuestion   DisplayMethod = "BY_QUESTION"
)

// AnswerType is the declared value type of an answer group.
type AnswerType string

const (
	TypeText           AnswerType = "text"
	TypeShortText      AnswerType = "short-text"
	TypeInteger        AnswerType = "integer"
	TypeFloat          AnswerType = "float"
	TypeDate           AnswerType = "date"
	TypeSelect         AnswerType = "select"
	TypeSelectImage    AnswerType = "select-image"
	TypeSelectMultiple AnswerType = "select-multiple"
	TypeRadio          AnswerType = "radio"
)

// AnswerTypes lists every declared answer type.
func AnswerTypes() []AnswerType {
	return []AnswerType{
		TypeText, TypeShortText, TypeInteger, TypeFloat, TypeDate,
		TypeSelect, TypeSelectImage, TypeSelectMultiple, TypeRadio,
	}
}

// Survey is the root of a questionnaire definition.
type Survey struct {
	ID              int64         `json:"id" yaml:"id"`
	Name            string        `json:"name" yaml:"name"`
	Description     string        `json:"description,omitempty" yaml:"description"`
	DisplayMethod   DisplayMethod `json:"display_method" yaml:"display_method"`
	EditableAnswers bool          `json:"editable_answers" yaml:"editable_answers"`
}

// IsAllInOnePage reports whether the survey is rendered on a single page.
func (s *Survey) IsAllInOnePage() bool {
	return s.DisplayMethod == AllInOnePage || s.DisplayMethod == ""
}

// Category groups questions of a survey. The zero ID is reserved for the
// "No category" placeholder, which is never persisted.
type Category struct {
	ID          int64  `json:"id" yaml:"id"`
	SurveyID    int64  `json:"survey_id" yaml:"-"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	Order       int    `json:"order" yaml:"order"`
}

// Question belongs to a survey and optionally to a category. A nil Order
// means the question takes part in randomized placement.
type Question struct {
	ID           int64          `json:"id" yaml:"id"`
	SurveyID     int64          `json:"survey_id" yaml:"-"`
	Text         string         `json:"text" yaml:"text"`
	Required     bool           `json:"required" yaml:"required"`
	CategoryID   *int64         `json:"category_id,omitempty" yaml:"category_id"`
	Order        *int           `json:"order,omitempty" yaml:"order"`
	AnswerGroups []*AnswerGroup `json:"answer_groups" yaml:"answer_groups"`
}

// AnswerGroup is a typed sub-question. Choices are only meaningful for the
// choice types; select-image choices are written "label:image-src".
type AnswerGroup struct {
	ID         int64      `json:"id" yaml:"id"`
	QuestionID int64      `json:"question_id" yaml:"-"`
	Name       string     `json:"name" yaml:"name"`
	Type       AnswerType `json:"type" yaml:"type"`
	Prefix     string     `json:"prefix,omitempty" yaml:"prefix"`
	Suffix     string     `json:"suffix,omitempty" yaml:"suffix"`
	Choices    []string   `json:"choices,omitempty" yaml:"choices"`
}

// Response is one respondent's submission to a survey. UserID is empty for
// anonymous respondents.
type Response struct {
	ID            int64     `json:"id"`
	SurveyID      int64     `json:"survey_id"`
	UserID        string    `json:"user_id,omitempty"`
	RandomSeed    int64     `json:"random_seed"`
	InterviewUUID string    `json:"interview_uuid"`
	Extra         string    `json:"extra,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Answer stores the string-encoded value of one answer group.
type Answer struct {
	ID            int64     `json:"id"`
	ResponseID    int64     `json:"response_id"`
	QuestionID    int64     `json:"question_id"`
	AnswerGroupID int64     `json:"answer_group_id"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User is an authenticated respondent.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	PassHash  []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAuthenticated is false for nil or anonymous users.
func (u *User) IsAuthenticated() bool {
	return u != nil && u.ID != ""
}
