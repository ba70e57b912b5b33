package services

import (
	"context"
	"sync"

	"github.com/soaringjerry/surveyform/internal/models"
)

// SenderResponse identifies completion events emitted by response forms.
const SenderResponse = "Response"

// AnswerRecord is one (question, body) pair of a completed submission.
type AnswerRecord struct {
	QuestionID int64  `json:"question_id"`
	Body       string `json:"body"`
}

// CompletionEvent is emitted after a response and its answers are saved.
type CompletionEvent struct {
	Sender        string           `json:"sender"`
	Response      *models.Response `json:"-"`
	SurveyID      int64            `json:"survey_id"`
	InterviewUUID string           `json:"interview_uuid"`
	Responses     []AnswerRecord   `json:"responses"`
}

type CompletionHandler func(ctx context.Context, ev CompletionEvent)

// CompletionSignal fans completion events out to every connected handler.
// Sending is fire-and-forget.
type CompletionSignal struct {
	mu       sync.RWMutex
	handlers []CompletionHandler
}

func NewCompletionSignal() *CompletionSignal {
	return &CompletionSignal{}
}

func (s *CompletionSignal) Connect(h CompletionHandler) {
	if h == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *CompletionSignal) Send(ctx context.Context, ev CompletionEvent) {
	if s == nil {
		return
	}
	s.mu.RLock()
	handlers := append([]CompletionHandler(nil), s.handlers...)
	s.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
