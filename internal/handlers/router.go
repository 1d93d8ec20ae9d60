package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/linguadesk/translator/internal/content"
	"github.com/linguadesk/translator/internal/platform/auth"
	"github.com/linguadesk/translator/internal/platform/httpx"
	"github.com/linguadesk/translator/internal/platform/observability"
	"github.com/linguadesk/translator/internal/platform/session"
	"github.com/linguadesk/translator/internal/services"
)

const (
	defaultAPIPrefix      = "/api/v1"
	defaultTimeout        = 60 * time.Second
	defaultMaxUploadBytes = 10 << 20
	errorNotFoundCode     = "route_not_found"
	rateWindow            = time.Minute
	multipartOverhead     = 1 << 20
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Logger         *zap.Logger
	ProjectID      string
	RequestTimeout time.Duration
	MaxUploadBytes int64

	Sessions     session.Store
	Auth         AuthGateway
	Tokens       auth.TokenVerifier
	Translations services.TranslationService
	Feedback     services.FeedbackService
	Help         *content.Library
	Health       *HealthHandlers

	TranslationsPerMinute int
	AuthPerMinute         int
	Clock                 func() time.Time
}

// NewRouter constructs the chi router with shared middleware, the page routes, the JSON API
// and the probes.
func NewRouter(deps RouterDeps) (chi.Router, error) {
	if deps.Sessions == nil {
		return nil, errors.New("router: session store is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("router: auth gateway is required")
	}
	if deps.Translations == nil {
		return nil, errors.New("router: translation service is required")
	}
	if deps.Feedback == nil {
		return nil, errors.New("router: feedback service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	help := deps.Help
	if help == nil {
		help = content.NewLibrary(nil)
	}
	health := deps.Health
	if health == nil {
		health = NewHealthHandlers()
	}
	views, err := newRenderer()
	if err != nil {
		return nil, err
	}

	ui := &uiHandlers{
		auth:         deps.Auth,
		translations: deps.Translations,
		feedback:     deps.Feedback,
		help:         help,
		render:       views,
		maxUpload:    maxUpload,
	}
	api := &apiHandlers{translations: deps.Translations}
	translateLimiter := newSimpleRateLimiter(deps.TranslationsPerMinute, rateWindow, deps.Clock)
	authLimiter := newSimpleRateLimiter(deps.AuthPerMinute, rateWindow, deps.Clock)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		observability.InjectLoggerMiddleware(logger),
		observability.TraceMiddleware(deps.ProjectID),
		observability.RequestLoggerMiddleware(),
		observability.RecoveryMiddleware(logger),
		middleware.Timeout(timeout),
	)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if observability.WantsJSON(req) {
			httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
			return
		}
		http.NotFound(w, req)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route(defaultAPIPrefix, func(g chi.Router) {
		g.Use(auth.BearerMiddleware(deps.Tokens))
		g.Get("/languages", api.listLanguages)
		g.Group(func(authed chi.Router) {
			authed.Use(requirePrincipal)
			authed.With(rateLimit(translateLimiter, "api-translate")).Post("/translations", api.createTranslation)
			authed.Get("/artifacts/{artifactID}", ui.artifact)
		})
	})

	r.Group(func(g chi.Router) {
		g.Use(session.Middleware(deps.Sessions), HTMX(), csrf(maxUpload+multipartOverhead))

		g.Get("/", ui.index)
		g.Get("/help", ui.helpPage)
		g.Post("/theme", ui.setTheme)
		g.Post("/logout", ui.logout)
		g.With(rateLimit(authLimiter, "login")).Post("/login", ui.login)
		g.With(rateLimit(authLimiter, "signup")).Post("/signup", ui.signup)

		g.Group(func(authed chi.Router) {
			authed.Use(requireAuth)
			authed.With(rateLimit(translateLimiter, "translate")).Post("/translate/text", ui.translateText)
			authed.With(rateLimit(translateLimiter, "translate")).Post("/translate/file", ui.translateFile)
			authed.Post("/extract", ui.extractPreview)
			authed.Post("/feedback", ui.submitFeedback)
			authed.Get("/artifacts/{artifactID}", ui.artifact)
		})
	})

	return r, nil
}
