package services

import (
	"context"
	"fmt"

	"github.com/soaringjerry/surveyform/internal/models"
)

// Save stores the cleaned values as the user's response. When the user
// already answered and the survey forbids editing, Save is a no-op that
// returns (nil, nil). The response and all answers are written in one store
// transaction; the completion event is sent only after it commits.
func (f *ResponseForm) Save(ctx context.Context, cleaned *CleanedData) (*models.Response, error) {
	existing, err := f.recovery.Response(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil && !f.survey.EditableAnswers {
		f.logger.Info("answers are locked, skipping save", "response_id", existing.ID)
		return nil, nil
	}
	if cleaned == nil {
		cleaned = NewCleanedData()
	}

	now := f.deps.Now()
	resp := &models.Response{CreatedAt: now}
	if existing != nil {
		cp := *existing
		resp = &cp
	}
	resp.SurveyID = f.survey.ID
	resp.InterviewUUID = f.uuid
	resp.RandomSeed = f.seed
	if f.user.IsAuthenticated() {
		resp.UserID = f.user.ID
	}
	resp.Extra = f.extra
	resp.UpdatedAt = now

	answers := make([]*models.Answer, 0, cleaned.Len())
	records := make([]AnswerRecord, 0, cleaned.Len())
	for _, entry := range cleaned.Entries() {
		if !IsFieldName(entry.Name) {
			continue
		}
		questionID, groupID, err := ParseFieldName(entry.Name)
		if err != nil {
			return nil, err
		}
		q, ag, err := f.lookup(ctx, questionID, groupID)
		if err != nil {
			return nil, err
		}
		prior, err := f.recovery.Answer(ctx, q.ID, ag.ID)
		if err != nil {
			return nil, err
		}
		answer := &models.Answer{QuestionID: q.ID, AnswerGroupID: ag.ID, CreatedAt: now}
		if prior != nil {
			cp := *prior
			answer = &cp
		}
		if ag.Type == models.TypeSelectImage {
			value, src, ok := ParseImageChoice(entry.Value.Text)
			if ok {
				f.logger.Debug("image choice selected", "question_id", q.ID, "value", value, "image", src)
			} else {
				f.logger.Warn("image choice without image source", "question_id", q.ID, "value", entry.Value.Text)
			}
		}
		answer.Body = entry.Value.String()
		answer.UpdatedAt = now
		answers = append(answers, answer)
		records = append(records, AnswerRecord{QuestionID: q.ID, Body: answer.Body})
		f.logger.Debug("answer prepared", "question_id", q.ID, "type", ag.Type, "body", answer.Body)
	}

	if err := f.deps.Store.SaveSubmission(ctx, resp, answers); err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}

	f.recovery.response = resp
	f.recovery.responseLoaded = true
	f.recovery.answersLoaded = false

	f.deps.Signal.Send(ctx, CompletionEvent{
		Sender:        SenderResponse,
		Response:      resp,
		SurveyID:      resp.SurveyID,
		InterviewUUID: resp.InterviewUUID,
		Responses:     records,
	})
	return resp, nil
}

// lookup resolves a question and answer group of this survey, preferring the
// loaded schema over a store round trip.
func (f *ResponseForm) lookup(ctx context.Context, questionID, groupID int64) (*models.Question, *models.AnswerGroup, error) {
	q := f.schema.Question(questionID)
	if q == nil {
		var err error
		if q, err = f.deps.Store.GetQuestion(ctx, questionID); err != nil {
			return nil, nil, fmt.Errorf("get question %d: %w", questionID, err)
		}
	}
	if q == nil || q.SurveyID != f.survey.ID {
		return nil, nil, NewInvalidError(fmt.Sprintf("unknown question %d", questionID))
	}
	ag := f.schema.AnswerGroup(groupID)
	if ag == nil {
		var err error
		if ag, err = f.deps.Store.GetAnswerGroup(ctx, groupID); err != nil {
			return nil, nil, fmt.Errorf("get answer group %d: %w", groupID, err)
		}
	}
	if ag == nil || ag.QuestionID != q.ID {
		return nil, nil, NewInvalidError(fmt.Sprintf("unknown answer group %d for question %d", groupID, questionID))
	}
	return q, ag, nil
}
