// Package pipeline coordinates scraping runs: claiming queued runs, driving
// discovery and per-company scraping, and reconciling results into the
// store. Exactly one coordinator executes any given run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jobscoutdev/jobscout/internal/config"
	"github.com/jobscoutdev/jobscout/internal/discovery"
	"github.com/jobscoutdev/jobscout/internal/scrape"
	"github.com/jobscoutdev/jobscout/internal/store"
	"github.com/jobscoutdev/jobscout/pkg/jobkey"
	"github.com/jobscoutdev/jobscout/pkg/models"
)

// activeCompanyLimit bounds how many companies one run will scrape.
const activeCompanyLimit = 200

// finishTimeout bounds the terminal status write, which runs on its own
// context: the run context may already be expired when a run fails.
const finishTimeout = 30 * time.Second

// Scraper fetches the current listings of one company.
type Scraper interface {
	ScrapeCompany(ctx context.Context, company *models.Company) ([]models.ScrapedJob, error)
}

// Discoverer finds company candidates for the configured queries.
type Discoverer interface {
	Discover(ctx context.Context, queries []string, limit int) []models.CompanyCandidate
}

var (
	_ Scraper    = (*scrape.Scraper)(nil)
	_ Discoverer = (*discovery.Discoverer)(nil)
)

type Coordinator struct {
	store      store.Store
	discoverer Discoverer
	scraper    Scraper
	cfg        config.ScraperConfig
}

func NewCoordinator(st store.Store, d Discoverer, s Scraper, cfg config.ScraperConfig) *Coordinator {
	return &Coordinator{store: st, discoverer: d, scraper: s, cfg: cfg}
}

// Run polls for queued runs until ctx is canceled. Each claimed run executes
// to a terminal status before the next poll.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		c.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce claims at most one queued run and executes it.
func (c *Coordinator) pollOnce(ctx context.Context) {
	run, err := c.store.ClaimNextRun(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoQueuedRuns) && !errors.Is(err, context.Canceled) {
			slog.Error("claim queued run", "error", err)
		}
		return
	}
	c.Execute(ctx, run.ID)
}

// Execute drives one claimed run through discovery, scraping, and
// reconciliation, then writes the terminal status exactly once.
func (c *Coordinator) Execute(ctx context.Context, runID uuid.UUID) {
	runCtx, cancel := context.WithTimeout(ctx, c.cfg.RunTimeout)
	defer cancel()

	slog.Info("run started", "run_id", runID)
	acc := &metrics{}

	if err := c.executePipeline(runCtx, acc); err != nil {
		acc.recordError(err.Error())
		c.finish(runID, models.RunStatusFailed, acc)
		slog.Error("run failed", "run_id", runID, "error", err)
		return
	}
	c.finish(runID, models.RunStatusSuccess, acc)

	m := acc.snapshot()
	slog.Info("run finished", "run_id", runID,
		"companies_discovered", m.CompaniesDiscovered,
		"companies_scraped", m.CompaniesScraped,
		"jobs_scraped", m.JobsScraped,
		"jobs_inserted", m.JobsInserted,
		"jobs_updated", m.JobsUpdated,
		"jobs_marked_unavailable", m.JobsMarkedUnavailable,
		"errors", len(m.Errors))
}

func (c *Coordinator) executePipeline(ctx context.Context, acc *metrics) error {
	candidates := c.discoverer.Discover(ctx, c.cfg.Queries, c.cfg.DiscoveryLimit)
	withCareers := 0
	upserts := make([]store.CompanyUpsert, 0, len(candidates))
	for _, cand := range candidates {
		up := store.CompanyUpsert{Candidate: cand}
		if cand.CareersURL != "" {
			withCareers++
			up.Endpoint = scrape.DetectEndpoint(cand.CareersURL)
		}
		upserts = append(upserts, up)
	}
	acc.recordDiscovery(len(candidates), withCareers)

	if err := c.store.UpsertCompanies(ctx, upserts); err != nil {
		return fmt.Errorf("upsert discovered companies: %w", err)
	}

	companies, err := c.store.ListActiveCompanies(ctx, activeCompanyLimit)
	if err != nil {
		return fmt.Errorf("load active companies: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for _, company := range companies {
		g.Go(func() error {
			c.processCompany(ctx, company, acc)
			return nil
		})
	}
	_ = g.Wait()

	// A run that outlived its deadline reports failed even though some
	// companies may have been reconciled.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	return nil
}

// processCompany is the per-company isolation boundary: any failure lands in
// the error list and the remaining companies keep going.
func (c *Coordinator) processCompany(ctx context.Context, company *models.Company, acc *metrics) {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CompanyTimeout)
	defer cancel()

	jobs, err := c.scraper.ScrapeCompany(cctx, company)
	if err != nil {
		slog.Warn("company scrape failed", "company", company.Name, "error", err)
		acc.recordError(fmt.Sprintf("scrape %s: %v", company.Name, err))
		return
	}
	if len(jobs) == 0 {
		return
	}
	acc.recordScraped(len(jobs))

	unique := jobkey.Deduplicate(jobs)
	inserted, updated, err := c.store.UpsertJobs(cctx, unique)
	if err != nil {
		slog.Warn("job upsert failed", "company", company.Name, "error", err)
		acc.recordError(fmt.Sprintf("persist %s: %v", company.Name, err))
		return
	}
	acc.recordPersisted(inserted, updated)

	urls := make([]string, 0, len(unique))
	for _, j := range unique {
		urls = append(urls, j.ApplicationURL)
	}
	unavailable, err := c.store.InvalidateMissingJobs(cctx, company.ID, urls)
	if err != nil {
		slog.Warn("invalidate missing jobs failed", "company", company.Name, "error", err)
		acc.recordError(fmt.Sprintf("reconcile %s: %v", company.Name, err))
		return
	}
	acc.recordInvalidated(unavailable)
}

// finish writes the terminal status with whatever counters accumulated.
func (c *Coordinator) finish(runID uuid.UUID, status string, acc *metrics) {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()
	if err := c.store.FinishRun(ctx, runID, status, acc.snapshot()); err != nil {
		slog.Error("finish run", "run_id", runID, "status", status, "error", err)
	}
}
