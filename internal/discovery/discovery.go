// Package discovery finds candidate companies through web search. Hits on
// job board domains are rejected so only direct employer sites enter the
// pipeline.
package discovery

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jobscoutdev/jobscout/internal/search"
	"github.com/jobscoutdev/jobscout/pkg/models"
)

// SourceName is recorded on every candidate this package produces.
const SourceName = "search_engine"

var careersKeywords = []string{"careers", "jobs", "hiring", "employment", "opportunities"}

// jobBoardHosts are aggregator domains whose listings belong to other
// companies.
var jobBoardHosts = []string{
	"linkedin.com",
	"glassdoor.com",
	"indeed.com",
	"lever.co",
	"greenhouse.io",
	"workable.com",
}

// Searcher is the slice of the search engine discovery needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) []search.Result
}

type Discoverer struct {
	engine Searcher
}

func New(engine Searcher) *Discoverer {
	return &Discoverer{engine: engine}
}

// Discover runs every query and folds the hits into company candidates.
// Duplicates collapse by domain when known, otherwise by lower-cased name,
// and the first occurrence wins.
func (d *Discoverer) Discover(ctx context.Context, queries []string, limit int) []models.CompanyCandidate {
	var out []models.CompanyCandidate
	seen := make(map[string]bool)
	for _, query := range queries {
		for _, result := range d.engine.Search(ctx, query, limit) {
			candidate, ok := extractCandidate(result)
			if !ok {
				continue
			}
			key := candidate.Domain
			if key == "" {
				key = strings.ToLower(candidate.Name)
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, candidate)
		}
	}
	slog.Info("discovered companies", "count", len(out))
	return out
}

// extractCandidate turns one search hit into a company candidate. Hits
// without a usable link or name produce nothing. The careers URL is only
// set when the hit's text suggests a hiring page.
func extractCandidate(result search.Result) (models.CompanyCandidate, bool) {
	if result.Link == "" {
		return models.CompanyCandidate{}, false
	}
	parsed, err := url.Parse(result.Link)
	if err != nil {
		return models.CompanyCandidate{}, false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, board := range jobBoardHosts {
		if strings.Contains(host, board) {
			return models.CompanyCandidate{}, false
		}
	}
	name := nameFromTitleOrDomain(result.Title, host)
	if name == "" {
		return models.CompanyCandidate{}, false
	}
	text := strings.ToLower(result.Title + " " + result.Snippet + " " + result.Link)
	careersURL := ""
	for _, keyword := range careersKeywords {
		if strings.Contains(text, keyword) {
			careersURL = result.Link
			break
		}
	}
	return models.CompanyCandidate{
		Name:            name,
		Domain:          strings.ReplaceAll(host, "www.", ""),
		CareersURL:      careersURL,
		DiscoverySource: SourceName,
	}, true
}

// nameFromTitleOrDomain prefers the first hyphen-separated title segment,
// falling back to the domain's second-level label.
func nameFromTitleOrDomain(title, host string) string {
	if strings.Contains(title, "-") {
		first := strings.TrimSpace(strings.SplitN(title, "-", 2)[0])
		if len(first) > 2 && len(first) < 80 {
			return first
		}
	}
	labels := strings.Split(host, ".")
	if len(labels) >= 2 {
		return capitalize(labels[len(labels)-2])
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	return strings.ToUpper(string(runes[0])) + strings.ToLower(string(runes[1:]))
}
