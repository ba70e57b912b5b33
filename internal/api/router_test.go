package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/surveyform/internal/metrics"
	"github.com/soaringjerry/surveyform/internal/middleware"
	"github.com/soaringjerry/surveyform/internal/models"
	"github.com/soaringjerry/surveyform/internal/services"
	"github.com/soaringjerry/surveyform/internal/session"
)

type testServer struct {
	store   Store
	drafts  *session.MemoryDraftStore
	metrics *metrics.Metrics
	handler http.Handler
}

func intPtr(v int) *int { return &v }

func seedStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.AddSurvey(ctx, &models.Survey{ID: 1, Name: "Paged", DisplayMethod: models.ByQuestion}))
	require.NoError(t, store.AddQuestion(ctx, &models.Question{ID: 1, SurveyID: 1, Text: "Name?", Required: true, Order: intPtr(1),
		AnswerGroups: []*models.AnswerGroup{{ID: 10, Type: models.TypeShortText}}}))
	require.NoError(t, store.AddQuestion(ctx, &models.Question{ID: 2, SurveyID: 1, Text: "Comments?", Order: intPtr(2),
		AnswerGroups: []*models.AnswerGroup{{ID: 20, Type: models.TypeText}}}))

	require.NoError(t, store.AddSurvey(ctx, &models.Survey{ID: 2, Name: "Single", DisplayMethod: models.AllInOnePage}))
	require.NoError(t, store.AddQuestion(ctx, &models.Question{ID: 3, SurveyID: 2, Text: "Mood?", Required: true, Order: intPtr(1),
		AnswerGroups: []*models.AnswerGroup{{ID: 30, Type: models.TypeShortText}}}))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := NewMemoryStore()
	seedStore(t, store)
	drafts := session.NewMemoryDraftStore(0)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	rt := NewRouter(Options{
		Store:   store,
		Drafts:  drafts,
		Signer:  middleware.NewSigner("test-secret"),
		Metrics: m,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &testServer{store: store, drafts: drafts, metrics: m, handler: rt.Handler()}
}

type call struct {
	method string
	path   string
	body   any
	token  string
	cookie *http.Cookie
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/register", body: credentials{Email: email, Password: "s3cret-pass"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "en", body["locale"])
}

func TestListSurveys(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: http.MethodGet, path: "/api/surveys"})
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Survey
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestGetSinglePageForm(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: http.MethodGet, path: "/api/surveys/2?src=mail"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Nil(t, body["step"])
	assert.Equal(t, false, body["has_next_step"])
	assert.Equal(t, false, body["disabled"])
	assert.NotEmpty(t, body["interview_uuid"])
	questions, _ := body["questions"].([]any)
	require.Len(t, questions, 1)
	assert.Equal(t, "question_3", questions[0].(map[string]any)["key"])
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.FormBuilds.WithLabelValues("ALL_IN_ONE")))
}

func TestGetFormErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/api/surveys/99"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error"])

	rec = s.do(t, call{method: http.MethodGet, path: "/api/surveys/abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/surveys/1/steps/7/0"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.FormBuildErrors.WithLabelValues("not_found")))
}

func TestPaginatedSubmissionFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/api/surveys/1"})
	require.Equal(t, http.StatusOK, rec.Code)
	form := decode(t, rec)
	assert.Equal(t, 0.0, form["step"])
	assert.Equal(t, 2.0, form["steps_count"])
	assert.Equal(t, true, form["has_next_step"])
	assert.Equal(t, "/api/surveys/1/steps/1/0", form["next_step_url"])
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/surveys/1", body: map[string]any{"question_1_10": "Ada"}, cookie: cookie})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/surveys/1/steps/1/0", decode(t, rec)["next_step_url"])
	assert.Nil(t, sessionCookie(rec))

	draft, err := s.drafts.Load(context.Background(), session.Key{Session: cookie.Value, SurveyID: 1})
	require.NoError(t, err)
	assert.Equal(t, url.Values{"question_1_10": {"Ada"}}, session.Answers(draft))
	assert.NotEmpty(t, draft.Get(session.SeedField))

	rec = s.do(t, call{method: http.MethodPost, path: "/api/surveys/1/steps/1/0", body: map[string]any{"question_2_20": "All good"}, cookie: cookie})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode(t, rec)
	id := int64(saved["response_id"].(float64))
	assert.NotEmpty(t, saved["interview_uuid"])

	answers, err := s.store.ListAnswers(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	bodies := map[int64]string{}
	for _, a := range answers {
		bodies[a.AnswerGroupID] = a.Body
	}
	assert.Equal(t, map[int64]string{10: "Ada", 20: "All good"}, bodies)

	draft, err = s.drafts.Load(context.Background(), session.Key{Session: cookie.Value, SurveyID: 1})
	require.NoError(t, err)
	assert.Empty(t, draft)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Submissions.WithLabelValues(metrics.OutcomeStep)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Submissions.WithLabelValues(metrics.OutcomeSaved)))
}

func TestFinalStepRequiresEarlierAnswers(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: http.MethodPost, path: "/api/surveys/1/steps/1/0", body: map[string]any{"question_2_20": "late"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields, _ := decode(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "question_1_10")
}

func TestSubmitReportsFieldErrors(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: http.MethodPost, path: "/api/surveys/1", body: map[string]any{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "invalid", body["error"])
	fields, _ := body["fields"].(map[string]any)
	assert.Contains(t, fields, "question_1_10")
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	draft, err := s.drafts.Load(context.Background(), session.Key{Session: cookie.Value, SurveyID: 1})
	require.NoError(t, err)
	assert.Empty(t, session.Answers(draft))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Submissions.WithLabelValues(metrics.OutcomeInvalid)))
}

func addUnorderedSurvey(t *testing.T, store Store, id int64, method models.DisplayMethod, required bool, count int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.AddSurvey(ctx, &models.Survey{ID: id, Name: "Shuffled", DisplayMethod: method}))
	for i := int64(1); i <= int64(count); i++ {
		qid := id*100 + i
		require.NoError(t, store.AddQuestion(ctx, &models.Question{ID: qid, SurveyID: id, Text: fmt.Sprintf("Q%d?", i), Required: required,
			AnswerGroups: []*models.AnswerGroup{{ID: qid * 10, Type: models.TypeShortText}}}))
	}
}

func firstFieldName(t *testing.T, form map[string]any) string {
	t.Helper()
	questions, _ := form["questions"].([]any)
	require.NotEmpty(t, questions)
	fields, _ := questions[0].(map[string]any)["fields"].([]any)
	require.NotEmpty(t, fields)
	field, _ := fields[0].(map[string]any)["field"].(map[string]any)
	name, _ := field["name"].(string)
	require.NotEmpty(t, name)
	return name
}

func TestSeedlessRoutesKeepSessionSeed(t *testing.T) {
	s := newTestServer(t)
	addUnorderedSurvey(t, s.store, 9, models.ByQuestion, true, 5)

	for i := 0; i < 10; i++ {
		rec := s.do(t, call{method: http.MethodGet, path: "/api/surveys/9"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		form := decode(t, rec)
		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		seed := int64(form["seed"].(float64))
		name := firstFieldName(t, form)

		again := decode(t, s.do(t, call{method: http.MethodGet, path: "/api/surveys/9", cookie: cookie}))
		assert.Equal(t, form["seed"], again["seed"])
		assert.Equal(t, name, firstFieldName(t, again))

		rec = s.do(t, call{method: http.MethodPost, path: "/api/surveys/9", body: map[string]any{name: "x"}, cookie: cookie})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, fmt.Sprintf("/api/surveys/9/steps/1/%d", seed), decode(t, rec)["next_step_url"])

		draft, err := s.drafts.Load(context.Background(), session.Key{Session: cookie.Value, SurveyID: 9})
		require.NoError(t, err)
		assert.Equal(t, url.Values{name: {"x"}}, session.Answers(draft))
	}
}

func TestSinglePageSeedIsPersisted(t *testing.T) {
	s := newTestServer(t)
	addUnorderedSurvey(t, s.store, 8, models.AllInOnePage, false, 3)
	token := s.register(t, "eve@example.com")

	rec := s.do(t, call{method: http.MethodGet, path: "/api/surveys/8", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	shown := decode(t, rec)["seed"]
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/surveys/8", body: map[string]any{"question_801_8010": "a"}, token: token, cookie: cookie})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, call{method: http.MethodGet, path: "/api/auth/me", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	resp, err := s.store.FindResponse(context.Background(), 8, me.ID)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, int64(shown.(float64)), resp.RandomSeed)

	draft, err := s.drafts.Load(context.Background(), session.Key{Session: cookie.Value, SurveyID: 8})
	require.NoError(t, err)
	assert.Empty(t, draft)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/surveys/8", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, shown, decode(t, rec)["seed"])
}

func TestSubmitRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/surveys/2", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitFormEncoded(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/surveys/2", strings.NewReader("question_3_30=calm"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Thank you, your answers were saved.", decode(t, rec)["message"])
}

func TestLockedResponseRejectsResubmission(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "ada@example.com")

	rec := s.do(t, call{method: http.MethodPost, path: "/api/surveys/2", body: map[string]any{"question_3_30": "happy"}, token: token})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, call{method: http.MethodGet, path: "/api/surveys/2", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["disabled"])

	rec = s.do(t, call{method: http.MethodPost, path: "/api/surveys/2", body: map[string]any{"question_3_30": "sad"}, token: token})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "locked", decode(t, rec)["error"])
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Submissions.WithLabelValues(metrics.OutcomeLocked)))
}

func TestEditableResponseIsUpdated(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.store.AddSurvey(ctx, &models.Survey{ID: 3, Name: "Editable", EditableAnswers: true}))
	require.NoError(t, s.store.AddQuestion(ctx, &models.Question{ID: 4, SurveyID: 3, Text: "Colour?", Order: intPtr(1),
		AnswerGroups: []*models.AnswerGroup{{ID: 40, Type: models.TypeShortText}}}))
	token := s.register(t, "bob@example.com")

	first := s.do(t, call{method: http.MethodPost, path: "/api/surveys/3", body: map[string]any{"question_4_40": "red"}, token: token})
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := s.do(t, call{method: http.MethodPost, path: "/api/surveys/3", body: map[string]any{"question_4_40": "blue"}, token: token})
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())
	assert.Equal(t, decode(t, first)["response_id"], decode(t, second)["response_id"])

	rec := s.do(t, call{method: http.MethodGet, path: "/api/surveys/3", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"initial":"blue"`)
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ada@Example.com")

	rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/register", body: credentials{Email: "ada@example.com", Password: "another-pass"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: credentials{Email: "ada@example.com", Password: "wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: credentials{Email: "ada@example.com", Password: "s3cret-pass"}})
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/auth/me"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/auth/me", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "ada@example.com", me.Email)
}

func TestRoutesReverse(t *testing.T) {
	routes := NewRoutes()

	path, err := routes.Reverse(RouteSurveyDetail, map[string]string{"id": "5"})
	require.NoError(t, err)
	assert.Equal(t, "/api/surveys/5", path)

	path, err = routes.Reverse(services.RouteSurveyStep, map[string]string{"id": "5", "step": "2", "seed": "9"})
	require.NoError(t, err)
	assert.Equal(t, "/api/surveys/5/steps/2/9", path)

	_, err = routes.Reverse(RouteSurveyDetail, map[string]string{})
	assert.Error(t, err)
	_, err = routes.Reverse(RouteSurveyDetail, map[string]string{"id": "5", "step": "1"})
	assert.Error(t, err)
	_, err = routes.Reverse("nope", nil)
	assert.Error(t, err)
}

func TestReadSubmissionJSONValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"x","b":["p","q"],"c":4.5,"d":true,"e":null}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	values, err := readSubmission(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.Equal(t, url.Values{"a": {"x"}, "b": {"p", "q"}, "c": {"4.5"}, "d": {"true"}}, values)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":{"nested":1}}`))
	req.Header.Set("Content-Type", "application/json")
	_, err = readSubmission(httptest.NewRecorder(), req)
	assert.Error(t, err)
}
