package pipeline

import (
	"sync"

	"github.com/jobscoutdev/jobscout/pkg/models"
)

// metrics accumulates run counters across concurrently processed companies.
type metrics struct {
	mu sync.Mutex
	m  models.RunMetrics
}

func (a *metrics) recordDiscovery(total, withCareers int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.CompaniesDiscovered = total
	a.m.CompaniesWithCareers = withCareers
}

// recordScraped counts one company that produced at least one listing.
// jobs is the raw listing count before dedup.
func (a *metrics) recordScraped(jobs int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.CompaniesScraped++
	a.m.JobsScraped += jobs
}

func (a *metrics) recordPersisted(inserted, updated int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.JobsInserted += inserted
	a.m.JobsUpdated += updated
}

func (a *metrics) recordInvalidated(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.JobsMarkedUnavailable += n
}

func (a *metrics) recordError(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.Errors = append(a.m.Errors, msg)
}

// snapshot copies the current counters for the terminal run update.
func (a *metrics) snapshot() *models.RunMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.m
	out.Errors = make([]string, len(a.m.Errors))
	copy(out.Errors, a.m.Errors)
	return &out
}
