// Package models contains the shared data models used across the jobscout
// codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EndpointTypeAPI     = "api"
	EndpointTypeWebpage = "webpage"
)

// Company is a scrape target. Name is the natural key: upserts keyed on it
// must never create a second row for the same name.
type Company struct {
	ID              uuid.UUID        `db:"id"                       json:"id"`
	Name            string           `db:"name"                     json:"name"`
	Domain          *string          `db:"domain"                   json:"domain,omitempty"`
	CareersURL      *string          `db:"careers_url"              json:"careers_url,omitempty"`
	CareersEndpoint *EndpointPayload `db:"careers_endpoint_payload" json:"careers_endpoint_payload,omitempty"`
	ScrapingConfig  *ScrapingConfig  `db:"scraping_config"          json:"scraping_config,omitempty"`
	IsActive        bool             `db:"is_active"                json:"is_active"`
	DiscoverySource string           `db:"discovery_source"         json:"discovery_source"`
	CreatedAt       time.Time        `db:"created_at"               json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at"               json:"updated_at"`
}

// CompanyCandidate is a discovery result before persistence. Empty string
// fields are stored as NULL so they never clobber enriched data.
type CompanyCandidate struct {
	Name            string `json:"name"`
	Domain          string `json:"domain,omitempty"`
	CareersURL      string `json:"careers_url,omitempty"`
	DiscoverySource string `json:"discovery_source"`
}

// EndpointPayload hints how a careers URL should be fetched.
type EndpointPayload struct {
	Type    string            `json:"type"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ScrapingConfig overrides page-mode extraction rules per company. Zero-value
// fields fall back to the defaults; the merge is shallow, so a present
// JobSelectors replaces the whole default selector set.
type ScrapingConfig struct {
	JobListingSelector string        `json:"jobListingSelector,omitempty"`
	JobSelectors       *JobSelectors `json:"jobSelectors,omitempty"`
	LevelRules         []LevelRule   `json:"experienceLevelRules,omitempty"`
}

// JobSelectors are the CSS selectors applied inside one listing element.
type JobSelectors struct {
	Title          string `json:"title,omitempty"`
	Location       string `json:"location,omitempty"`
	Description    string `json:"description,omitempty"`
	Requirements   string `json:"requirements,omitempty"`
	ApplicationURL string `json:"applicationUrl,omitempty"`
}

// LevelRule maps a keyword substring to an experience level. Rules are
// evaluated in order and the first match wins, so the slice order is part
// of the configuration.
type LevelRule struct {
	Keyword string `json:"keyword"`
	Level   string `json:"level"`
}
