package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/soaringjerry/surveyform/internal/metrics"
	"github.com/soaringjerry/surveyform/internal/middleware"
	"github.com/soaringjerry/surveyform/internal/services"
	"github.com/soaringjerry/surveyform/internal/session"
	"github.com/soaringjerry/surveyform/internal/utils"
)

// Options wire the router to its collaborators. Store is required; the
// rest have working defaults.
type Options struct {
	Store          Store
	Drafts         session.DraftStore
	Signal         *services.CompletionSignal
	Signer         *middleware.Signer
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
	Locales        []string
	SecureCookies  bool
	// CORSOrigins lists the frontends allowed to send credentials.
	CORSOrigins []string
	// Ping reports backend health for /health.
	Ping func(r *http.Request) error
}

type Router struct {
	store   Store
	drafts  session.DraftStore
	signal  *services.CompletionSignal
	signer  *middleware.Signer
	metrics *metrics.Metrics
	promh   http.Handler
	logger  *slog.Logger
	routes  *Routes
	auth    *services.AuthService
	locales []string
	secure  bool
	origins []string
	ping    func(r *http.Request) error
	now     func() time.Time
	newUUID func() string
}

func NewRouter(opts Options) *Router {
	rt := &Router{
		store:   opts.Store,
		drafts:  opts.Drafts,
		signal:  opts.Signal,
		signer:  opts.Signer,
		metrics: opts.Metrics,
		promh:   opts.MetricsHandler,
		logger:  opts.Logger,
		routes:  NewRoutes(),
		locales: opts.Locales,
		secure:  opts.SecureCookies,
		origins: opts.CORSOrigins,
		ping:    opts.Ping,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	if rt.drafts == nil {
		rt.drafts = session.NewMemoryDraftStore(24 * time.Hour)
	}
	if rt.signal == nil {
		rt.signal = services.NewCompletionSignal()
	}
	if len(rt.locales) == 0 {
		rt.locales = []string{"en", "zh"}
	}
	if rt.signer == nil {
		rt.signer = middleware.NewSigner("")
	}
	rt.auth = services.NewAuthService(rt.store, rt.signer.SignToken)
	if rt.metrics != nil {
		rt.signal.Connect(rt.metrics.HandleCompletion)
	}
	rt.signal.Connect(rt.logCompletion)
	return rt
}

// Routes exposes the URL builder used for step links.
func (rt *Router) Routes() *Routes { return rt.routes }

// Handler builds the chi mux with the full middleware chain.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(rt.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS(rt.origins))
	r.Use(middleware.LocaleMiddleware(rt.locales))
	r.Use(rt.signer.WithAuth)

	r.Get("/health", rt.handleHealth)
	if rt.promh != nil {
		r.Method(http.MethodGet, "/metrics", rt.promh)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Post("/auth/register", rt.handleRegister)
		r.Post("/auth/login", rt.handleLogin)
		r.With(middleware.RequireAuth).Get("/auth/me", rt.handleMe)

		r.Get("/surveys", rt.handleListSurveys)
		r.Get("/surveys/{id}", rt.handleForm)
		r.Post("/surveys/{id}", rt.handleSubmit)
		r.Get("/surveys/{id}/steps/{step}/{seed}", rt.handleForm)
		r.Post("/surveys/{id}/steps/{step}/{seed}", rt.handleSubmit)
	})
	return r
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	body := map[string]any{
		"ok":     true,
		"name":   "surveyform",
		"locale": locale,
		"msg":    utils.T(locale, "health.ok"),
	}
	status := http.StatusOK
	if rt.ping != nil {
		if err := rt.ping(r); err != nil {
			rt.logger.Warn("health check failed", "error", err)
			body["ok"] = false
			body["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, body)
}
