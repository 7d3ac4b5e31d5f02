// Package api exposes the trust manager over a small local HTTP surface
// for the tool layer: credential inspection and reload, trust-window
// checks, session lifecycle, and the per-call authentication decision.
package api

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/arueira/pjetrust/audit"
	"github.com/arueira/pjetrust/authflow"
	"github.com/arueira/pjetrust/session"
)

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	coord    *authflow.Coordinator
	sessions *session.Store
	log      *audit.Log
	logger   *slog.Logger
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger. If not set, a default JSON
// logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithAudit attaches the audit log for the /v1/audit listing. A nil log
// serves an empty listing.
func WithAudit(log *audit.Log) Option {
	return func(a *API) { a.log = log }
}

// New creates a new API instance.
func New(coord *authflow.Coordinator, sessions *session.Store, opts ...Option) *API {
	a := &API{coord: coord, sessions: sessions}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return a
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/credential", a.handleCredentialInfo)
		r.Get("/credential/check", a.handleCredentialCheck)
		r.Post("/credential/reload", a.handleCredentialReload)

		r.Get("/auth", a.handleAuthDecision)

		r.Get("/session", a.handleSessionInfo)
		r.Get("/session/browser-config", a.handleBrowserConfig)
		r.Post("/session/login", a.handleSessionLogin)
		r.Post("/session/touch", a.handleSessionTouch)
		r.Delete("/session", a.handleSessionClear)

		r.Get("/audit", a.handleAudit)
	})

	return r
}
