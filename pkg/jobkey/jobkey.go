// Package jobkey derives stable identity keys for scraped jobs so that one
// company's batch can be deduplicated within a run. Keys are for in-batch
// dedup only; persistence identity is the application URL.
package jobkey

import (
	"regexp"
	"strings"

	"github.com/jobscoutdev/jobscout/pkg/models"
)

var rePunct = regexp.MustCompile(`[^\w\s]`)

// Normalize lower-cases text, strips every character that is not a word
// character or whitespace, and trims.
func Normalize(text string) string {
	return strings.TrimSpace(rePunct.ReplaceAllString(strings.ToLower(text), ""))
}

// Key returns the pipe-joined identity key for a job. Listings with the same
// title, company and location modulo case and punctuation share a key.
func Key(job models.ScrapedJob) string {
	return Normalize(job.Title) + "|" + Normalize(job.Company) + "|" + Normalize(job.Location)
}

// Deduplicate removes later occurrences of jobs sharing a key, preserving
// input order. Returns an empty slice for empty input (never nil).
func Deduplicate(jobs []models.ScrapedJob) []models.ScrapedJob {
	unique := make([]models.ScrapedJob, 0, len(jobs))
	seen := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		k := Key(j)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, j)
	}
	return unique
}
