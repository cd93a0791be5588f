package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/jobscoutdev/jobscout/internal/api/middleware"
	"github.com/jobscoutdev/jobscout/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler     http.HandlerFunc
	ListRunsHandler   http.HandlerFunc
	GetRunHandler     http.HandlerFunc
	TriggerRunHandler http.HandlerFunc
}

// NewRouter builds the chi router with the middleware stack and all routes.
// Reads are public; run triggering requires an API key and is rate limited.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public routes
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/v1/runs", orNotImplemented(deps.ListRunsHandler))
	r.Get("/api/v1/runs/{runID}", orNotImplemented(deps.GetRunHandler))

	// Mutating routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/runs/trigger", orNotImplemented(deps.TriggerRunHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
