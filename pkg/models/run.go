package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusQueued  = "queued"
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// Run tracks one execution of the discovery+scrape+reconcile pipeline.
// Rows are created in queued status by POST /api/v1/runs/trigger (or the
// cron schedule) and claimed by exactly one coordinator, which owns the row
// until it writes the terminal status.
type Run struct {
	ID                    uuid.UUID   `db:"id"                      json:"id"`
	Status                string      `db:"status"                  json:"status"`
	StartedAt             time.Time   `db:"started_at"              json:"started_at"`
	FinishedAt            *time.Time  `db:"finished_at"             json:"finished_at,omitempty"`
	CompaniesDiscovered   int         `db:"companies_discovered"    json:"companies_discovered"`
	CompaniesScraped      int         `db:"companies_scraped"       json:"companies_scraped"`
	JobsScraped           int         `db:"jobs_scraped"            json:"jobs_scraped"`
	JobsInserted          int         `db:"jobs_inserted"           json:"jobs_inserted"`
	JobsUpdated           int         `db:"jobs_updated"            json:"jobs_updated"`
	JobsMarkedUnavailable int         `db:"jobs_marked_unavailable" json:"jobs_marked_unavailable"`
	Details               *RunMetrics `db:"details"                 json:"details,omitempty"`
}

// RunMetrics is the full metrics snapshot serialized into a run's details
// column at completion. Counters cover whatever accumulated before a failure,
// so a failed run still reports partial progress.
type RunMetrics struct {
	CompaniesDiscovered   int      `json:"companies_discovered"`
	CompaniesWithCareers  int      `json:"companies_with_careers"`
	CompaniesScraped      int      `json:"companies_scraped"`
	JobsScraped           int      `json:"jobs_scraped"`
	JobsInserted          int      `json:"jobs_inserted"`
	JobsUpdated           int      `json:"jobs_updated"`
	JobsMarkedUnavailable int      `json:"jobs_marked_unavailable"`
	Errors                []string `json:"errors"`
}
