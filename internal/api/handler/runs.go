// Package handler holds the HTTP handlers for the run endpoints.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jobscoutdev/jobscout/internal/api/response"
	"github.com/jobscoutdev/jobscout/internal/store"
	"github.com/jobscoutdev/jobscout/pkg/models"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// RunStore covers the run operations the handlers need.
type RunStore interface {
	CreateRun(ctx context.Context) (*models.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)
}

// NewListRunsHandler returns the handler for GET /api/v1/runs. Runs come back
// newest first, bounded by the limit query parameter.
func NewListRunsHandler(s RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer", nil)
				return
			}
			limit = n
		}
		if limit > maxRunsLimit {
			limit = maxRunsLimit
		}

		runs, err := s.ListRuns(r.Context(), limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list runs", nil)
			return
		}

		response.Collection(w, runs, response.ListMeta{Count: len(runs), Limit: limit})
	}
}

// NewGetRunHandler returns the handler for GET /api/v1/runs/{runID}.
func NewGetRunHandler(s RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "runID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"run id must be a UUID", nil)
			return
		}

		run, err := s.GetRun(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND",
					"Run not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load run", nil)
			return
		}

		response.JSON(w, run)
	}
}

// NewTriggerRunHandler returns the handler for POST /api/v1/runs/trigger.
// The run is only enqueued here; the background coordinator claims it.
func NewTriggerRunHandler(s RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := s.CreateRun(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to enqueue run", nil)
			return
		}

		response.Accepted(w, run)
	}
}
