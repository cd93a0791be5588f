package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	LevelEntry  = "entry"
	LevelMid    = "mid"
	LevelSenior = "senior"
	LevelLead   = "lead"
)

// ScrapedJob is a job listing as observed during one run, before
// reconciliation. ApplicationURL is the external identity: it must be stable
// across runs for the same posting or reconciliation cannot match it.
type ScrapedJob struct {
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	CompanyID       uuid.UUID `json:"company_id"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
	Requirements    []string  `json:"requirements"`
	ExperienceLevel string    `json:"experience_level"`
	ApplicationURL  string    `json:"application_url"`
}

// Job is a persisted listing. At most one row exists per application_url;
// is_available is true iff the posting appeared in the most recent non-empty
// scrape of its company.
type Job struct {
	ID              uuid.UUID `db:"id"               json:"id"`
	Title           string    `db:"title"            json:"title"`
	CompanyID       uuid.UUID `db:"company_id"       json:"company_id"`
	Company         string    `db:"company"          json:"company"`
	Location        string    `db:"location"         json:"location"`
	Description     string    `db:"description"      json:"description"`
	Requirements    []string  `db:"requirements"     json:"requirements"`
	ExperienceLevel string    `db:"experience_level" json:"experience_level"`
	ApplicationURL  string    `db:"application_url"  json:"application_url"`
	IsAvailable     bool      `db:"is_available"     json:"is_available"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updated_at"`
}
