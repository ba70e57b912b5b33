// Package events forwards survey completion events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/soaringjerry/surveyform/internal/services"
)

// DefaultSubjectPrefix is prepended to the survey id of every subject.
const DefaultSubjectPrefix = "surveys.completed"

// Publisher is the subset of *nats.Conn used to emit events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the wire form of a completion event.
type Message struct {
	Sender        string                  `json:"sender"`
	SurveyID      int64                   `json:"survey_id"`
	ResponseID    int64                   `json:"response_id"`
	UserID        string                  `json:"user_id,omitempty"`
	InterviewUUID string                  `json:"interview_uuid"`
	Responses     []services.AnswerRecord `json:"responses"`
	CompletedAt   time.Time               `json:"completed_at"`
}

// NATSPublisher turns completion events into NATS messages on
// <prefix>.<survey-id>.
type NATSPublisher struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

func NewNATSPublisher(pub Publisher, prefix string, logger *slog.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{pub: pub, prefix: prefix, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Subject is the subject events of a survey are published on.
func (p *NATSPublisher) Subject(surveyID int64) string {
	return p.prefix + "." + strconv.FormatInt(surveyID, 10)
}

// Handle publishes one event. Failures are logged; the submission has
// already been committed.
func (p *NATSPublisher) Handle(_ context.Context, ev services.CompletionEvent) {
	msg := Message{
		Sender:        ev.Sender,
		SurveyID:      ev.SurveyID,
		InterviewUUID: ev.InterviewUUID,
		Responses:     ev.Responses,
		CompletedAt:   p.now(),
	}
	if ev.Response != nil {
		msg.ResponseID = ev.Response.ID
		msg.UserID = ev.Response.UserID
	}
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("encode completion event", "survey_id", ev.SurveyID, "error", err)
		return
	}
	subject := p.Subject(ev.SurveyID)
	if err := p.pub.Publish(subject, data); err != nil {
		p.logger.Error("publish completion event", "subject", subject, "error", err)
		return
	}
	p.logger.Debug("completion event published", "subject", subject, "answers", len(ev.Responses))
}

// Connect dials NATS with reconnect settings suited to a long-running server.
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return conn, nil
}
