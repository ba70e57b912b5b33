package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soaringjerry/surveyform/internal/models"
)

// recovery memoizes the respondent's previous response and answers for the
// lifetime of one form build.
type recovery struct {
	store  FormStore
	survey *models.Survey
	user   *models.User
	logger *slog.Logger

	responseLoaded bool
	response       *models.Response
	answersLoaded  bool
	answers        map[int64]map[int64]*models.Answer
}

func newRecovery(store FormStore, survey *models.Survey, user *models.User, logger *slog.Logger) *recovery {
	return &recovery{store: store, survey: survey, user: user, logger: logger}
}

// Response returns the saved response of an authenticated user, or nil.
func (r *recovery) Response(ctx context.Context) (*models.Response, error) {
	if r.responseLoaded {
		return r.response, nil
	}
	if !r.user.IsAuthenticated() {
		r.responseLoaded = true
		return nil, nil
	}
	resp, err := r.store.FindResponse(ctx, r.survey.ID, r.user.ID)
	if err != nil {
		return nil, fmt.Errorf("find response: %w", err)
	}
	if resp == nil {
		r.logger.Debug("no saved response", "survey_id", r.survey.ID, "user_id", r.user.ID)
	}
	r.response = resp
	r.responseLoaded = true
	return resp, nil
}

// Answers maps question id to answer-group id to the stored answer. It is
// nil when there is no previous response.
func (r *recovery) Answers(ctx context.Context) (map[int64]map[int64]*models.Answer, error) {
	if r.answersLoaded {
		return r.answers, nil
	}
	resp, err := r.Response(ctx)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		r.answersLoaded = true
		return nil, nil
	}
	list, err := r.store.ListAnswers(ctx, resp.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make(map[int64]map[int64]*models.Answer, len(list))
	for _, a := range list {
		if out[a.QuestionID] == nil {
			out[a.QuestionID] = map[int64]*models.Answer{}
		}
		out[a.QuestionID][a.AnswerGroupID] = a
	}
	r.answers = out
	r.answersLoaded = true
	return out, nil
}

// QuestionAnswers returns every stored answer of one question keyed by group.
func (r *recovery) QuestionAnswers(ctx context.Context, questionID int64) (map[int64]*models.Answer, error) {
	answers, err := r.Answers(ctx)
	if err != nil {
		return nil, err
	}
	return answers[questionID], nil
}

// Answer returns the stored answer for one question and group, or nil.
func (r *recovery) Answer(ctx context.Context, questionID, groupID int64) (*models.Answer, error) {
	qa, err := r.QuestionAnswers(ctx, questionID)
	if err != nil {
		return nil, err
	}
	return qa[groupID], nil
}
