package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jobscoutdev/jobscout/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Runs ---

const runColumns = `id, status, started_at, finished_at, companies_discovered, companies_scraped, jobs_scraped, jobs_inserted, jobs_updated, jobs_marked_unavailable, details`

func scanRun(row pgx.Row) (*models.Run, error) {
	var r models.Run
	var details []byte
	if err := row.Scan(&r.ID, &r.Status, &r.StartedAt, &r.FinishedAt,
		&r.CompaniesDiscovered, &r.CompaniesScraped, &r.JobsScraped,
		&r.JobsInserted, &r.JobsUpdated, &r.JobsMarkedUnavailable, &details); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		r.Details = &models.RunMetrics{}
		if err := json.Unmarshal(details, r.Details); err != nil {
			return nil, fmt.Errorf("decode run details: %w", err)
		}
	}
	return &r, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*models.Run, error) {
	run, err := scanRun(s.pool.QueryRow(ctx,
		`INSERT INTO scraping_runs (status) VALUES ('queued') RETURNING `+runColumns))
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	run, err := scanRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM scraping_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM scraping_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ClaimNextRun selects the oldest queued run with FOR UPDATE SKIP LOCKED and
// moves it to running in the same transaction. Concurrent claimants skip each
// other's locked rows, so a given run is handed to exactly one of them.
func (s *PostgresStore) ClaimNextRun(ctx context.Context) (*models.Run, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM scraping_runs WHERE status = 'queued'
		 ORDER BY started_at ASC FOR UPDATE SKIP LOCKED LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoQueuedRuns
	}
	if err != nil {
		return nil, fmt.Errorf("select queued run: %w", err)
	}

	run, err := scanRun(tx.QueryRow(ctx,
		`UPDATE scraping_runs SET status = 'running', started_at = NOW()
		 WHERE id = $1 RETURNING `+runColumns, id))
	if err != nil {
		return nil, fmt.Errorf("mark run running: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return run, nil
}

var validRunTransitions = map[string][]string{
	models.RunStatusQueued:  {models.RunStatusRunning},
	models.RunStatusRunning: {models.RunStatusSuccess, models.RunStatusFailed},
}

// FinishRun writes the terminal status, counters, and metrics snapshot for a
// run. The row is locked for the duration so a run cannot be finished twice.
func (s *PostgresStore) FinishRun(ctx context.Context, id uuid.UUID, status string, metrics *models.RunMetrics) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin finish: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentStatus string
	err = tx.QueryRow(ctx,
		`SELECT status FROM scraping_runs WHERE id = $1 FOR UPDATE`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get run status: %w", err)
	}

	valid := false
	for _, allowed := range validRunTransitions[currentStatus] {
		if allowed == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid run status transition: %s -> %s", currentStatus, status)
	}

	query := `UPDATE scraping_runs SET status = $2, finished_at = NOW()`
	args := []any{id, status}
	argIdx := 3

	if metrics != nil {
		details, err := json.Marshal(metrics)
		if err != nil {
			return fmt.Errorf("encode run details: %w", err)
		}
		query += fmt.Sprintf(`, companies_discovered = $%d, companies_scraped = $%d, jobs_scraped = $%d, jobs_inserted = $%d, jobs_updated = $%d, jobs_marked_unavailable = $%d, details = $%d`,
			argIdx, argIdx+1, argIdx+2, argIdx+3, argIdx+4, argIdx+5, argIdx+6)
		args = append(args, metrics.CompaniesDiscovered, metrics.CompaniesScraped,
			metrics.JobsScraped, metrics.JobsInserted, metrics.JobsUpdated,
			metrics.JobsMarkedUnavailable, details)
	}

	query += ` WHERE id = $1`

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return tx.Commit(ctx)
}

// --- Companies ---

// UpsertCompanies inserts or enriches companies keyed by unique name, all in
// one transaction. careers_url and careers_endpoint_payload update only when
// the incoming value is non-NULL; a candidate without them never erases
// known values.
func (s *PostgresStore) UpsertCompanies(ctx context.Context, companies []CompanyUpsert) error {
	if len(companies) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin company upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range companies {
		var endpoint []byte
		if c.Endpoint != nil {
			endpoint, err = json.Marshal(c.Endpoint)
			if err != nil {
				return fmt.Errorf("encode endpoint payload: %w", err)
			}
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO companies (name, domain, careers_url, careers_endpoint_payload, discovery_source)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (name) DO UPDATE SET
			   domain = EXCLUDED.domain,
			   careers_url = COALESCE(EXCLUDED.careers_url, companies.careers_url),
			   careers_endpoint_payload = COALESCE(EXCLUDED.careers_endpoint_payload, companies.careers_endpoint_payload),
			   updated_at = NOW()`,
			c.Candidate.Name, nullIfEmpty(c.Candidate.Domain), nullIfEmpty(c.Candidate.CareersURL),
			endpoint, c.Candidate.DiscoverySource)
		if err != nil {
			return fmt.Errorf("upsert company %q: %w", c.Candidate.Name, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListActiveCompanies(ctx context.Context, limit int) ([]*models.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, domain, careers_url, careers_endpoint_payload, scraping_config, is_active, discovery_source, created_at, updated_at
		 FROM companies WHERE is_active AND careers_url IS NOT NULL
		 ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list active companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		var c models.Company
		var endpoint, config []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.Domain, &c.CareersURL, &endpoint, &config,
			&c.IsActive, &c.DiscoverySource, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		if len(endpoint) > 0 {
			c.CareersEndpoint = &models.EndpointPayload{}
			if err := json.Unmarshal(endpoint, c.CareersEndpoint); err != nil {
				return nil, fmt.Errorf("decode endpoint payload: %w", err)
			}
		}
		if len(config) > 0 {
			c.ScrapingConfig = &models.ScrapingConfig{}
			if err := json.Unmarshal(config, c.ScrapingConfig); err != nil {
				return nil, fmt.Errorf("decode scraping config: %w", err)
			}
		}
		companies = append(companies, &c)
	}
	return companies, rows.Err()
}

// --- Jobs ---

// UpsertJobs writes a batch of scraped jobs keyed by application URL in one
// transaction. A conflicting row is refreshed and forced back to available.
// The returned counts split the batch into new rows and refreshed rows.
func (s *PostgresStore) UpsertJobs(ctx context.Context, jobs []models.ScrapedJob) (inserted, updated int, err error) {
	if len(jobs) == 0 {
		return 0, 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin job upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, j := range jobs {
		var wasInserted bool
		err = tx.QueryRow(ctx,
			`INSERT INTO jobs (title, company_id, company, location, description, requirements, experience_level, application_url, is_available)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
			 ON CONFLICT (application_url) DO UPDATE SET
			   title = EXCLUDED.title,
			   location = EXCLUDED.location,
			   description = EXCLUDED.description,
			   requirements = EXCLUDED.requirements,
			   experience_level = EXCLUDED.experience_level,
			   is_available = TRUE,
			   updated_at = NOW()
			 RETURNING (xmax = 0) AS inserted`,
			j.Title, j.CompanyID, j.Company, j.Location, j.Description,
			j.Requirements, j.ExperienceLevel, j.ApplicationURL).Scan(&wasInserted)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert job %q: %w", j.Title, err)
		}
		if wasInserted {
			inserted++
		} else {
			updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit job upsert: %w", err)
	}
	return inserted, updated, nil
}

func (s *PostgresStore) InvalidateMissingJobs(ctx context.Context, companyID uuid.UUID, currentURLs []string) (int, error) {
	// No observed jobs means the scrape saw nothing, not that every posting
	// vanished. Refuse to wipe the company.
	if len(currentURLs) == 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET is_available = FALSE, updated_at = NOW()
		 WHERE company_id = $1 AND is_available AND NOT (application_url = ANY($2))`,
		companyID, currentURLs)
	if err != nil {
		return 0, fmt.Errorf("invalidate missing jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListJobsByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, company_id, company, location, description, requirements, experience_level, application_url, is_available, created_at, updated_at
		 FROM jobs WHERE company_id = $1 ORDER BY created_at DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list jobs by company: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.Title, &j.CompanyID, &j.Company, &j.Location,
			&j.Description, &j.Requirements, &j.ExperienceLevel, &j.ApplicationURL,
			&j.IsAvailable, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

// --- API Keys ---

// UpsertAPIKey creates or rotates a key by unique name. Rotating an existing
// name replaces its hash and prefix and clears any soft delete.
func (s *PostgresStore) UpsertAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET
		   key_hash = EXCLUDED.key_hash,
		   key_prefix = EXCLUDED.key_prefix,
		   deleted_at = NULL,
		   updated_at = NOW()`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("upsert api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
