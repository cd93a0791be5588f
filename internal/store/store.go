package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jobscoutdev/jobscout/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrNoQueuedRuns is returned by ClaimNextRun when every queued run is either
// absent or locked by another claimant. It is a normal no-work outcome, not a
// failure.
var ErrNoQueuedRuns = errors.New("no queued runs")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateRun(ctx context.Context) (*models.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)
	// ClaimNextRun atomically selects the oldest queued run, skipping rows
	// locked by concurrent claimants, and transitions it to running. At most
	// one caller can claim a given run.
	ClaimNextRun(ctx context.Context) (*models.Run, error)
	FinishRun(ctx context.Context, id uuid.UUID, status string, metrics *models.RunMetrics) error

	UpsertCompanies(ctx context.Context, companies []CompanyUpsert) error
	ListActiveCompanies(ctx context.Context, limit int) ([]*models.Company, error)

	UpsertJobs(ctx context.Context, jobs []models.ScrapedJob) (inserted, updated int, err error)
	// InvalidateMissingJobs marks unavailable every available job of the
	// company whose application URL is absent from currentURLs. An empty
	// currentURLs is a no-op: a scrape that observed nothing must never be
	// read as "all postings disappeared".
	InvalidateMissingJobs(ctx context.Context, companyID uuid.UUID, currentURLs []string) (int, error)
	ListJobsByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Job, error)

	UpsertAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}

// CompanyUpsert pairs a discovered candidate with the endpoint hint computed
// from its careers URL. The hint is precomputed by the caller so the store
// stays free of scraping policy.
type CompanyUpsert struct {
	Candidate models.CompanyCandidate
	Endpoint  *models.EndpointPayload
}
