// Package scrape turns a company's careers URL into job listings. Companies
// expose either a JSON endpoint or an HTML page; both modes normalize into
// the same ScrapedJob shape.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobscoutdev/jobscout/internal/fetch"
	"github.com/jobscoutdev/jobscout/pkg/models"
)

const (
	maxRequirements   = 10
	maxRequirementLen = 200
)

// Listing payload field names vary by provider. Each field tries its keys in
// order and the first usable value wins.
var (
	containerKeys   = []string{"jobs", "data", "results", "positions", "openings"}
	titleKeys       = []string{"title", "name", "position"}
	locationKeys    = []string{"location", "office", "city"}
	descriptionKeys = []string{"description", "summary"}
	applyURLKeys    = []string{"apply_url", "url", "link"}
	requirementKeys = []string{"requirements", "qualifications", "skills"}
)

type Scraper struct {
	client   *fetch.Client
	renderer fetch.Renderer
}

// New returns a scraper fetching through client. renderer may be nil; without
// it, webpage listings that only appear after client-side rendering scrape as
// empty.
func New(client *fetch.Client, renderer fetch.Renderer) *Scraper {
	return &Scraper{client: client, renderer: renderer}
}

// ScrapeCompany fetches and parses every listing the company currently
// advertises. Listings that cannot be parsed are skipped individually; a
// non-nil error means the company as a whole could not be observed and
// nothing should be reconciled against the result.
func (s *Scraper) ScrapeCompany(ctx context.Context, company *models.Company) ([]models.ScrapedJob, error) {
	if company.CareersURL == nil || *company.CareersURL == "" {
		return nil, fmt.Errorf("company %q has no careers url", company.Name)
	}
	careersURL := *company.CareersURL
	rules := mergeRules(company.ScrapingConfig)

	mode := scrapeMode(company)
	var (
		jobs []models.ScrapedJob
		err  error
	)
	if mode == models.EndpointTypeAPI {
		jobs, err = s.scrapeAPI(ctx, company, careersURL, rules)
	} else {
		jobs, err = s.scrapeWebpage(ctx, company, careersURL, rules)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("scraped company", "company", company.Name, "mode", mode, "jobs", len(jobs))
	return jobs, nil
}

func (s *Scraper) scrapeAPI(ctx context.Context, company *models.Company, careersURL string, rules ruleSet) ([]models.ScrapedJob, error) {
	method := http.MethodGet
	var headers map[string]string
	if ep := company.CareersEndpoint; ep != nil {
		if ep.Method != "" {
			method = ep.Method
		}
		headers = ep.Headers
	}
	body, err := s.client.Do(ctx, method, careersURL, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	items, err := extractItems(body)
	if err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	jobs := make([]models.ScrapedJob, 0, len(items))
	for _, raw := range items {
		job, ok := parseAPIJob(raw, company, careersURL, rules.levels)
		if !ok {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// extractItems locates the listing array in a response body. Providers nest
// it under one of the container keys or return it bare.
func extractItems(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var root map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &root); err != nil {
		return nil, err
	}
	for _, key := range containerKeys {
		raw, ok := root[key]
		if !ok {
			continue
		}
		value := bytes.TrimSpace(raw)
		if len(value) == 0 || value[0] != '[' {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(value, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	return nil, nil
}

func parseAPIJob(raw json.RawMessage, company *models.Company, careersURL string, levels []models.LevelRule) (models.ScrapedJob, bool) {
	var item map[string]json.RawMessage
	if err := json.Unmarshal(raw, &item); err != nil {
		slog.Warn("skipping malformed listing", "company", company.Name, "error", err)
		return models.ScrapedJob{}, false
	}
	title := firstString(item, titleKeys)
	if title == "" {
		slog.Warn("skipping listing without title", "company", company.Name)
		return models.ScrapedJob{}, false
	}
	location := firstString(item, locationKeys)
	if location == "" {
		location = "Remote"
	}
	description := firstString(item, descriptionKeys)
	applicationURL := firstString(item, applyURLKeys)
	if applicationURL == "" {
		applicationURL = careersURL
	}
	return models.ScrapedJob{
		Title:           title,
		Company:         company.Name,
		CompanyID:       company.ID,
		Location:        location,
		Description:     description,
		Requirements:    listingRequirements(item, description),
		ExperienceLevel: Classify(title, description, levels),
		ApplicationURL:  applicationURL,
	}, true
}

// firstString walks keys in order and returns the first value holding a
// non-blank string.
func firstString(item map[string]json.RawMessage, keys []string) string {
	for _, key := range keys {
		raw, ok := item[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// listingRequirements reads the first populated requirements-like field.
// Providers send either a newline-separated blob or an array of lines; when
// no field is usable the description stands in.
func listingRequirements(item map[string]json.RawMessage, description string) []string {
	for _, key := range requirementKeys {
		raw, ok := item[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			if strings.TrimSpace(text) == "" {
				continue
			}
			return parseRequirements(text)
		}
		var lines []string
		if err := json.Unmarshal(raw, &lines); err == nil {
			if len(lines) == 0 {
				continue
			}
			return clampRequirements(lines)
		}
	}
	return parseRequirements(description)
}

// parseRequirements splits a free-text blob into requirement lines.
func parseRequirements(text string) []string {
	return clampRequirements(strings.Split(text, "\n"))
}

// clampRequirements trims each line, drops blank and over-long ones, and caps
// the result at maxRequirements. The returned slice is never nil.
func clampRequirements(lines []string) []string {
	out := make([]string, 0, maxRequirements)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) == 0 || len(line) >= maxRequirementLen {
			continue
		}
		out = append(out, line)
		if len(out) == maxRequirements {
			break
		}
	}
	return out
}

func (s *Scraper) scrapeWebpage(ctx context.Context, company *models.Company, careersURL string, rules ruleSet) ([]models.ScrapedJob, error) {
	jobs, err := s.scrapeStatic(ctx, company, careersURL, rules)
	if err == nil && len(jobs) > 0 {
		return jobs, nil
	}
	if s.renderer == nil {
		return jobs, err
	}
	// Listings rendered client-side are invisible to the plain fetch; run a
	// browser pass before concluding the page is empty.
	html, rerr := s.renderer.Render(ctx, careersURL)
	if rerr != nil {
		if err != nil {
			return nil, err
		}
		slog.Warn("browser render failed", "company", company.Name, "error", rerr)
		return jobs, nil
	}
	doc, perr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if perr != nil {
		return nil, fmt.Errorf("parse rendered page: %w", perr)
	}
	return extractListings(doc, company, careersURL, rules), nil
}

func (s *Scraper) scrapeStatic(ctx context.Context, company *models.Company, careersURL string, rules ruleSet) ([]models.ScrapedJob, error) {
	body, err := s.client.Get(ctx, careersURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch careers page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse careers page: %w", err)
	}
	return extractListings(doc, company, careersURL, rules), nil
}

// extractListings pulls one ScrapedJob per listing element. The application
// URL is stored as found in the markup; listings without a title are
// skipped.
func extractListings(doc *goquery.Document, company *models.Company, careersURL string, rules ruleSet) []models.ScrapedJob {
	var jobs []models.ScrapedJob
	doc.Find(rules.listing).Each(func(_ int, el *goquery.Selection) {
		title := selectionText(el, rules.selectors.Title)
		if title == "" {
			slog.Warn("skipping listing without title", "company", company.Name)
			return
		}
		location := selectionText(el, rules.selectors.Location)
		if location == "" {
			location = "Not specified"
		}
		description := selectionText(el, rules.selectors.Description)
		reqText := selectionText(el, rules.selectors.Requirements)
		if reqText == "" {
			reqText = description
		}
		applicationURL := selectionAttr(el, rules.selectors.ApplicationURL, "href")
		if applicationURL == "" {
			applicationURL = careersURL
		}
		jobs = append(jobs, models.ScrapedJob{
			Title:           title,
			Company:         company.Name,
			CompanyID:       company.ID,
			Location:        location,
			Description:     description,
			Requirements:    parseRequirements(reqText),
			ExperienceLevel: Classify(title, description, rules.levels),
			ApplicationURL:  applicationURL,
		})
	})
	return jobs
}

func selectionText(el *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(el.Find(selector).First().Text())
}

func selectionAttr(el *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	val, _ := el.Find(selector).First().Attr(attr)
	return strings.TrimSpace(val)
}
