package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobscoutdev/jobscout/internal/config"
	"github.com/jobscoutdev/jobscout/internal/store"
	"github.com/jobscoutdev/jobscout/pkg/models"
)

type finishCall struct {
	id      uuid.UUID
	status  string
	metrics *models.RunMetrics
}

type fakeStore struct {
	mu sync.Mutex

	queued    []*models.Run
	companies []*models.Company

	upsertCompaniesErr error
	listErr            error
	upsertJobsErr      error
	invalidateErr      error
	invalidated        int

	companyUpserts [][]store.CompanyUpsert
	jobBatches     [][]models.ScrapedJob
	invalidateURLs map[uuid.UUID][]string
	finishes       []finishCall
	finishSignal   chan struct{}
}

var _ store.Store = (*fakeStore)(nil)

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) CreateRun(context.Context) (*models.Run, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) GetRun(context.Context, uuid.UUID) (*models.Run, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) ListRuns(context.Context, int) ([]*models.Run, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) ClaimNextRun(context.Context) (*models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queued) == 0 {
		return nil, store.ErrNoQueuedRuns
	}
	run := f.queued[0]
	f.queued = f.queued[1:]
	run.Status = models.RunStatusRunning
	return run, nil
}

func (f *fakeStore) FinishRun(_ context.Context, id uuid.UUID, status string, m *models.RunMetrics) error {
	f.mu.Lock()
	f.finishes = append(f.finishes, finishCall{id: id, status: status, metrics: m})
	f.mu.Unlock()
	if f.finishSignal != nil {
		select {
		case f.finishSignal <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *fakeStore) UpsertCompanies(_ context.Context, companies []store.CompanyUpsert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.companyUpserts = append(f.companyUpserts, companies)
	return f.upsertCompaniesErr
}

func (f *fakeStore) ListActiveCompanies(context.Context, int) ([]*models.Company, error) {
	return f.companies, f.listErr
}

func (f *fakeStore) UpsertJobs(_ context.Context, jobs []models.ScrapedJob) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertJobsErr != nil {
		return 0, 0, f.upsertJobsErr
	}
	f.jobBatches = append(f.jobBatches, jobs)
	return len(jobs), 0, nil
}

func (f *fakeStore) InvalidateMissingJobs(_ context.Context, companyID uuid.UUID, urls []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalidateErr != nil {
		return 0, f.invalidateErr
	}
	if f.invalidateURLs == nil {
		f.invalidateURLs = make(map[uuid.UUID][]string)
	}
	f.invalidateURLs[companyID] = urls
	return f.invalidated, nil
}

func (f *fakeStore) ListJobsByCompany(context.Context, uuid.UUID) ([]*models.Job, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) UpsertAPIKey(context.Context, *models.APIKey) error {
	return errors.New("not implemented")
}

func (f *fakeStore) GetAPIKeyByPrefix(context.Context, string) ([]*models.APIKey, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) UpdateAPIKeyLastUsed(context.Context, uuid.UUID) error {
	return errors.New("not implemented")
}

type fakeScraper struct {
	mu      sync.Mutex
	results map[string][]models.ScrapedJob
	errs    map[string]error
	delay   time.Duration
	calls   []string
}

func (f *fakeScraper) ScrapeCompany(_ context.Context, company *models.Company) ([]models.ScrapedJob, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls = append(f.calls, company.Name)
	f.mu.Unlock()
	if err := f.errs[company.Name]; err != nil {
		return nil, err
	}
	return f.results[company.Name], nil
}

type fakeDiscoverer struct {
	candidates []models.CompanyCandidate
}

func (f *fakeDiscoverer) Discover(context.Context, []string, int) []models.CompanyCandidate {
	return f.candidates
}

var (
	_ Scraper    = (*fakeScraper)(nil)
	_ Discoverer = (*fakeDiscoverer)(nil)
)

func testScraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		Queries:        []string{"ai startup hiring"},
		Concurrency:    2,
		PollInterval:   10 * time.Millisecond,
		RunTimeout:     time.Second,
		CompanyTimeout: time.Second,
		DiscoveryLimit: 50,
	}
}

func activeCompany(name string) *models.Company {
	url := "https://" + name + ".test/careers"
	return &models.Company{ID: uuid.New(), Name: name, CareersURL: &url, IsActive: true}
}

func scraped(title, company, location, url string) models.ScrapedJob {
	return models.ScrapedJob{
		Title: title, Company: company, Location: location,
		Requirements: []string{}, ExperienceLevel: models.LevelMid, ApplicationURL: url,
	}
}

func TestExecute_SuccessfulRun(t *testing.T) {
	acme := activeCompany("Acme")
	st := &fakeStore{companies: []*models.Company{acme}, invalidated: 1}
	disc := &fakeDiscoverer{candidates: []models.CompanyCandidate{
		{Name: "Acme", Domain: "acme.com", CareersURL: "https://acme.com/api/jobs", DiscoverySource: "search_engine"},
		{Name: "Volt", Domain: "volt.dev", DiscoverySource: "search_engine"},
	}}
	sc := &fakeScraper{results: map[string][]models.ScrapedJob{
		"Acme": {
			scraped("Engineer", "Acme", "Remote", "https://acme.com/jobs/1"),
			scraped("Engineer", "Acme", "Remote", "https://acme.com/jobs/1-dup"),
			scraped("Designer", "Acme", "Remote", "https://acme.com/jobs/2"),
		},
	}}

	coord := NewCoordinator(st, disc, sc, testScraperConfig())
	runID := uuid.New()
	coord.Execute(context.Background(), runID)

	// Discovered candidates were upserted with endpoint hints where possible.
	require.Len(t, st.companyUpserts, 1)
	batch := st.companyUpserts[0]
	require.Len(t, batch, 2)
	require.NotNil(t, batch[0].Endpoint)
	assert.Equal(t, models.EndpointTypeAPI, batch[0].Endpoint.Type)
	assert.Nil(t, batch[1].Endpoint)

	// The duplicate listing was dropped before persistence.
	require.Len(t, st.jobBatches, 1)
	require.Len(t, st.jobBatches[0], 2)
	assert.Equal(t, []string{"https://acme.com/jobs/1", "https://acme.com/jobs/2"}, st.invalidateURLs[acme.ID])

	require.Len(t, st.finishes, 1)
	fin := st.finishes[0]
	assert.Equal(t, runID, fin.id)
	assert.Equal(t, models.RunStatusSuccess, fin.status)
	require.NotNil(t, fin.metrics)
	assert.Equal(t, 2, fin.metrics.CompaniesDiscovered)
	assert.Equal(t, 1, fin.metrics.CompaniesWithCareers)
	assert.Equal(t, 1, fin.metrics.CompaniesScraped)
	assert.Equal(t, 3, fin.metrics.JobsScraped)
	assert.Equal(t, 2, fin.metrics.JobsInserted)
	assert.Equal(t, 0, fin.metrics.JobsUpdated)
	assert.Equal(t, 1, fin.metrics.JobsMarkedUnavailable)
	assert.Empty(t, fin.metrics.Errors)
}

func TestExecute_CompanyFailureIsolated(t *testing.T) {
	bad := activeCompany("Bad")
	good := activeCompany("Good")
	st := &fakeStore{companies: []*models.Company{bad, good}}
	sc := &fakeScraper{
		errs: map[string]error{"Bad": errors.New("connection refused")},
		results: map[string][]models.ScrapedJob{
			"Good": {scraped("Engineer", "Good", "Remote", "https://good.test/jobs/1")},
		},
	}

	coord := NewCoordinator(st, &fakeDiscoverer{}, sc, testScraperConfig())
	coord.Execute(context.Background(), uuid.New())

	require.Len(t, st.finishes, 1)
	fin := st.finishes[0]
	assert.Equal(t, models.RunStatusSuccess, fin.status)
	assert.Equal(t, 1, fin.metrics.CompaniesScraped)
	assert.Equal(t, 1, fin.metrics.JobsScraped)
	require.Len(t, fin.metrics.Errors, 1)
	assert.Contains(t, fin.metrics.Errors[0], "scrape Bad")

	// Reconciliation ran only for the company that scraped.
	assert.Contains(t, st.invalidateURLs, good.ID)
	assert.NotContains(t, st.invalidateURLs, bad.ID)
}

func TestExecute_EmptyScrapeSkipsReconciliation(t *testing.T) {
	quiet := activeCompany("Quiet")
	st := &fakeStore{companies: []*models.Company{quiet}}
	sc := &fakeScraper{results: map[string][]models.ScrapedJob{"Quiet": {}}}

	coord := NewCoordinator(st, &fakeDiscoverer{}, sc, testScraperConfig())
	coord.Execute(context.Background(), uuid.New())

	require.Len(t, st.finishes, 1)
	fin := st.finishes[0]
	assert.Equal(t, models.RunStatusSuccess, fin.status)
	assert.Equal(t, 0, fin.metrics.CompaniesScraped)
	assert.Empty(t, st.jobBatches)
	assert.Empty(t, st.invalidateURLs)
}

func TestExecute_PersistFailureRecordedAndContinues(t *testing.T) {
	acme := activeCompany("Acme")
	st := &fakeStore{
		companies:     []*models.Company{acme},
		upsertJobsErr: errors.New("deadlock detected"),
	}
	sc := &fakeScraper{results: map[string][]models.ScrapedJob{
		"Acme": {scraped("Engineer", "Acme", "Remote", "https://acme.test/jobs/1")},
	}}

	coord := NewCoordinator(st, &fakeDiscoverer{}, sc, testScraperConfig())
	coord.Execute(context.Background(), uuid.New())

	require.Len(t, st.finishes, 1)
	fin := st.finishes[0]
	assert.Equal(t, models.RunStatusSuccess, fin.status)
	assert.Equal(t, 1, fin.metrics.CompaniesScraped)
	assert.Equal(t, 0, fin.metrics.JobsInserted)
	require.Len(t, fin.metrics.Errors, 1)
	assert.Contains(t, fin.metrics.Errors[0], "persist Acme")
	assert.Empty(t, st.invalidateURLs)
}

func TestExecute_InfrastructureFailureFailsRun(t *testing.T) {
	st := &fakeStore{upsertCompaniesErr: errors.New("connection reset")}
	disc := &fakeDiscoverer{candidates: []models.CompanyCandidate{
		{Name: "Acme", DiscoverySource: "search_engine"},
	}}

	coord := NewCoordinator(st, disc, &fakeScraper{}, testScraperConfig())
	coord.Execute(context.Background(), uuid.New())

	require.Len(t, st.finishes, 1)
	fin := st.finishes[0]
	assert.Equal(t, models.RunStatusFailed, fin.status)
	require.NotEmpty(t, fin.metrics.Errors)
	assert.Contains(t, fin.metrics.Errors[0], "upsert discovered companies")
	// Partial counters survive the failure.
	assert.Equal(t, 1, fin.metrics.CompaniesDiscovered)
}

func TestExecute_RunTimeoutFailsRun(t *testing.T) {
	slow := activeCompany("Slow")
	st := &fakeStore{companies: []*models.Company{slow}}
	sc := &fakeScraper{
		delay:   50 * time.Millisecond,
		results: map[string][]models.ScrapedJob{"Slow": nil},
	}
	cfg := testScraperConfig()
	cfg.RunTimeout = time.Millisecond

	coord := NewCoordinator(st, &fakeDiscoverer{}, sc, cfg)
	coord.Execute(context.Background(), uuid.New())

	require.Len(t, st.finishes, 1)
	fin := st.finishes[0]
	assert.Equal(t, models.RunStatusFailed, fin.status)
	require.NotEmpty(t, fin.metrics.Errors)
	assert.Contains(t, fin.metrics.Errors[0], "run aborted")
}

func TestRun_PollLoopClaimsQueuedRun(t *testing.T) {
	run := &models.Run{ID: uuid.New(), Status: models.RunStatusQueued}
	st := &fakeStore{
		queued:       []*models.Run{run},
		finishSignal: make(chan struct{}, 1),
	}

	coord := NewCoordinator(st, &fakeDiscoverer{}, &fakeScraper{}, testScraperConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(done)
	}()

	select {
	case <-st.finishSignal:
	case <-time.After(2 * time.Second):
		t.Fatal("run was never finished")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not stop")
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	require.Len(t, st.finishes, 1)
	assert.Equal(t, run.ID, st.finishes[0].id)
	assert.Equal(t, models.RunStatusSuccess, st.finishes[0].status)
}
