package api

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/soaringjerry/surveyform/internal/metrics"
	"github.com/soaringjerry/surveyform/internal/middleware"
	"github.com/soaringjerry/surveyform/internal/models"
	"github.com/soaringjerry/surveyform/internal/services"
	"github.com/soaringjerry/surveyform/internal/session"
	"github.com/soaringjerry/surveyform/internal/utils"
)

const maxSubmissionBytes = 1 << 20

type formView struct {
	Survey         *models.Survey            `json:"survey"`
	Step           *int                      `json:"step"`
	StepsCount     int                       `json:"steps_count"`
	Seed           int64                     `json:"seed"`
	InterviewUUID  string                    `json:"interview_uuid"`
	Disabled       bool                      `json:"disabled"`
	HasNextStep    bool                      `json:"has_next_step"`
	NextStepURL    string                    `json:"next_step_url,omitempty"`
	CurrentStepURL string                    `json:"current_step_url"`
	Categories     []*models.Category        `json:"categories"`
	Questions      []*services.QuestionGroup `json:"questions"`
}

func newFormView(f *services.ResponseForm) (*formView, error) {
	next, err := f.NextStepURL()
	if err != nil {
		return nil, err
	}
	current, err := f.CurrentStepURL()
	if err != nil {
		return nil, err
	}
	return &formView{
		Survey:         f.Survey(),
		Step:           f.Step(),
		StepsCount:     f.StepsCount(),
		Seed:           f.Seed(),
		InterviewUUID:  f.InterviewUUID(),
		Disabled:       f.Disabled(),
		HasNextStep:    f.HasNextStep(),
		NextStepURL:    next,
		CurrentStepURL: current,
		Categories:     f.CurrentCategories(),
		Questions:      f.GroupsByQuestion(),
	}, nil
}

func (rt *Router) loadSurvey(r *http.Request) (*models.Survey, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return nil, services.NewInvalidError("invalid survey id")
	}
	survey, err := rt.store.GetSurvey(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, services.ErrSurveyNotFound
	}
	return survey, nil
}

// stepParam resolves the requested page. Paginated surveys default to the
// first step; single-page surveys are never paginated.
func stepParam(r *http.Request, survey *models.Survey) (*int, error) {
	if survey.IsAllInOnePage() {
		return nil, nil
	}
	raw := chi.URLParam(r, "step")
	if raw == "" {
		step := 0
		return &step, nil
	}
	step, err := strconv.Atoi(raw)
	if err != nil {
		return nil, services.NewInvalidError("invalid step")
	}
	return &step, nil
}

// extraParams is the query string carried across steps, minus our own keys.
func extraParams(r *http.Request) string {
	q := r.URL.Query()
	q.Del("lang")
	return q.Encode()
}

// resolveSeed returns the seed from the URL or, on the seedless routes, the
// one assigned to the browser session the first time it opened the survey.
func (rt *Router) resolveSeed(w http.ResponseWriter, r *http.Request, surveyID int64) (string, error) {
	if seed := chi.URLParam(r, "seed"); seed != "" {
		return seed, nil
	}
	key := session.Key{Session: rt.sessionID(w, r), SurveyID: surveyID}
	draft, err := rt.drafts.Load(r.Context(), key)
	if err != nil {
		return "", fmt.Errorf("load draft: %w", err)
	}
	if seed := draft.Get(session.SeedField); seed != "" {
		return seed, nil
	}
	seed := strconv.FormatInt(services.NewSeed(), 10)
	if _, err := rt.drafts.Merge(r.Context(), key, url.Values{session.SeedField: {seed}}); err != nil {
		return "", fmt.Errorf("store session seed: %w", err)
	}
	return seed, nil
}

func (rt *Router) buildForm(r *http.Request, survey *models.Survey, step *int, seed string, data url.Values) (*services.ResponseForm, error) {
	return services.NewResponseForm(r.Context(), services.FormDeps{
		Store:   rt.store,
		URLs:    rt.routes,
		Signal:  rt.signal,
		Logger:  rt.logger,
		Now:     rt.now,
		NewUUID: rt.newUUID,
	}, services.FormOptions{
		Survey: survey,
		User:   middleware.UserFromContext(r.Context()),
		Extra:  extraParams(r),
		Step:   step,
		Seed:   seed,
		Data:   data,
		Locale: middleware.LocaleFromContext(r.Context()),
	})
}

// GET /api/surveys/{id} and /api/surveys/{id}/steps/{step}/{seed}
func (rt *Router) handleForm(w http.ResponseWriter, r *http.Request) {
	survey, err := rt.loadSurvey(r)
	if err != nil {
		rt.failBuild(w, err)
		return
	}
	step, err := stepParam(r, survey)
	if err != nil {
		rt.failBuild(w, err)
		return
	}
	seed, err := rt.resolveSeed(w, r, survey.ID)
	if err != nil {
		rt.failBuild(w, err)
		return
	}
	f, err := rt.buildForm(r, survey, step, seed, nil)
	if err != nil {
		rt.failBuild(w, err)
		return
	}
	view, err := newFormView(f)
	if err != nil {
		rt.failBuild(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordFormBuild(string(survey.DisplayMethod))
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) failBuild(w http.ResponseWriter, err error) {
	if rt.metrics != nil {
		rt.metrics.RecordFormBuildError(errorCode(err))
	}
	writeError(w, rt.logger, err)
}

// POST /api/surveys/{id} and /api/surveys/{id}/steps/{step}/{seed}
//
// Intermediate steps are validated and parked in the session draft; the
// final step rebuilds the whole survey from the draft and saves it.
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		if rt.metrics != nil {
			rt.metrics.RecordSubmission(outcome, time.Since(start))
		}
	}()

	survey, err := rt.loadSurvey(r)
	if err != nil {
		writeError(w, rt.logger, err)
		return
	}
	step, err := stepParam(r, survey)
	if err != nil {
		writeError(w, rt.logger, err)
		return
	}
	data, err := readSubmission(w, r)
	if err != nil {
		outcome = metrics.OutcomeInvalid
		writeError(w, rt.logger, err)
		return
	}

	seed, err := rt.resolveSeed(w, r, survey.ID)
	if err != nil {
		writeError(w, rt.logger, err)
		return
	}
	f, err := rt.buildForm(r, survey, step, seed, data)
	if err != nil {
		writeError(w, rt.logger, err)
		return
	}
	if f.Disabled() {
		outcome = metrics.OutcomeLocked
		rt.writeLocked(w, r)
		return
	}
	cleaned, err := f.Clean(data)
	if err != nil {
		outcome = metrics.OutcomeInvalid
		writeError(w, rt.logger, err)
		return
	}

	key := session.Key{Session: rt.sessionID(w, r), SurveyID: survey.ID}
	if step == nil {
		outcome = rt.save(w, r, f, cleaned, key)
		return
	}

	values := cleaned.Values()
	stepValues := url.Values{}
	for _, field := range f.Fields() {
		stepValues[field.Name] = values[field.Name]
	}
	merged, err := rt.drafts.Merge(r.Context(), key, stepValues)
	if err != nil {
		writeError(w, rt.logger, fmt.Errorf("merge draft: %w", err))
		return
	}

	if f.HasNextStep() {
		next, err := f.NextStepURL()
		if err != nil {
			writeError(w, rt.logger, err)
			return
		}
		outcome = metrics.OutcomeStep
		writeJSON(w, http.StatusOK, map[string]any{"step": *step, "next_step_url": next})
		return
	}

	answers := session.Answers(merged)
	full, err := rt.buildForm(r, survey, nil, seed, answers)
	if err != nil {
		writeError(w, rt.logger, err)
		return
	}
	cleaned, err = full.Clean(answers)
	if err != nil {
		outcome = metrics.OutcomeInvalid
		writeError(w, rt.logger, err)
		return
	}
	outcome = rt.save(w, r, full, cleaned, key)
}

// save persists the cleaned form, clears the draft and writes the reply.
func (rt *Router) save(w http.ResponseWriter, r *http.Request, f *services.ResponseForm, cleaned *services.CleanedData, draft session.Key) string {
	resp, err := f.Save(r.Context(), cleaned)
	if err != nil {
		writeError(w, rt.logger, err)
		return metrics.OutcomeError
	}
	if resp == nil {
		rt.writeLocked(w, r)
		return metrics.OutcomeLocked
	}
	if err := rt.drafts.Delete(r.Context(), draft); err != nil {
		rt.logger.Warn("delete draft", "survey_id", draft.SurveyID, "error", err)
	}
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusCreated, map[string]any{
		"response_id":    resp.ID,
		"interview_uuid": resp.InterviewUUID,
		"message":        utils.T(locale, "survey.saved"),
	})
	return metrics.OutcomeSaved
}

func (rt *Router) writeLocked(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusConflict, errorBody{Error: "locked", Message: utils.T(locale, "survey.locked")})
}

func (rt *Router) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(session.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   rt.secure,
		SameSite: http.SameSiteLaxMode,
	})
	// later lookups in this request must see the same session
	r.AddCookie(&http.Cookie{Name: session.CookieName, Value: id})
	return id
}

// readSubmission accepts a JSON object of string, number, bool or string-array
// values, or a form-encoded body.
func readSubmission(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, services.NewInvalidError("invalid form body")
		}
		return r.PostForm, nil
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, services.NewInvalidError("invalid JSON body")
	}
	out := url.Values{}
	for name, v := range raw {
		switch val := v.(type) {
		case nil:
		case []any:
			for _, item := range val {
				s, ok := scalarString(item)
				if !ok {
					return nil, services.NewInvalidError(fmt.Sprintf("field %s: unsupported value", name))
				}
				out.Add(name, s)
			}
		default:
			s, ok := scalarString(val)
			if !ok {
				return nil, services.NewInvalidError(fmt.Sprintf("field %s: unsupported value", name))
			}
			out.Set(name, s)
		}
	}
	return out, nil
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	}
	return "", false
}

func (rt *Router) logCompletion(_ context.Context, ev services.CompletionEvent) {
	attrs := []any{"survey_id", ev.SurveyID, "interview_uuid", ev.InterviewUUID, "answers", len(ev.Responses)}
	if ev.Response != nil {
		attrs = append(attrs, "response_id", ev.Response.ID)
	}
	rt.logger.Info("response completed", attrs...)
}

// GET /api/surveys
func (rt *Router) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	list, err := rt.store.ListSurveys(r.Context())
	if err != nil {
		writeError(w, rt.logger, err)
		return
	}
	if list == nil {
		list = []*models.Survey{}
	}
	writeJSON(w, http.StatusOK, list)
}
