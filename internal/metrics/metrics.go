package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/soaringjerry/surveyform/internal/services"
)

// Submission outcomes.
const (
	OutcomeSaved   = "saved"
	OutcomeStep    = "step"
	OutcomeLocked  = "locked"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus metrics of the survey server
type Metrics struct {
	FormBuilds      *prometheus.CounterVec
	FormBuildErrors *prometheus.CounterVec
	Submissions     *prometheus.CounterVec
	AnswersSaved    *prometheus.CounterVec
	SaveDuration    *prometheus.HistogramVec
	Completions     *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		FormBuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveyform_form_builds_total",
				Help: "Total number of response forms built",
			},
			[]string{"display_method"},
		),
		FormBuildErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveyform_form_build_errors_total",
				Help: "Total number of failed form builds by error code",
			},
			[]string{"code"},
		),
		Submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveyform_submissions_total",
				Help: "Total number of submissions by outcome",
			},
			[]string{"outcome"},
		),
		AnswersSaved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveyform_answers_saved_total",
				Help: "Total number of answers written",
			},
			[]string{"survey_id"},
		),
		SaveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "surveyform_save_duration_seconds",
				Help:    "Duration of response saves",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		Completions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveyform_completions_total",
				Help: "Total number of completion events by sender",
			},
			[]string{"sender"},
		),
	}
}

func (m *Metrics) RecordFormBuild(method string) {
	if method == "" {
		method = "ALL_IN_ONE"
	}
	m.FormBuilds.WithLabelValues(method).Inc()
}

func (m *Metrics) RecordFormBuildError(code string) {
	m.FormBuildErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordSubmission(outcome string, d time.Duration) {
	m.Submissions.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.SaveDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// HandleCompletion is a completion listener counting written answers.
func (m *Metrics) HandleCompletion(_ context.Context, ev services.CompletionEvent) {
	m.Completions.WithLabelValues(ev.Sender).Inc()
	m.AnswersSaved.WithLabelValues(formatID(ev.SurveyID)).Add(float64(len(ev.Responses)))
}
