package scrape

import "github.com/jobscoutdev/jobscout/pkg/models"

// The defaults cover class names common across career pages. Companies with
// unusual markup override them through their scraping config.
const defaultListingSelector = ".job, .position, .opening, [data-job], .job-listing, .career-item"

var defaultJobSelectors = models.JobSelectors{
	Title:          ".title, .job-title, h2, h3, .position-title, .role-title",
	Location:       ".location, .job-location, .office, .city",
	Description:    ".description, .job-description, .summary, .content",
	Requirements:   ".requirements, .qualifications, .skills, ul li",
	ApplicationURL: ".apply, .apply-link, a[href*='apply'], .btn-apply",
}

// defaultLevelRules is ordered: the first keyword found in a listing decides
// its level.
var defaultLevelRules = []models.LevelRule{
	{Keyword: "junior", Level: models.LevelEntry},
	{Keyword: "entry", Level: models.LevelEntry},
	{Keyword: "graduate", Level: models.LevelEntry},
	{Keyword: "intern", Level: models.LevelEntry},
	{Keyword: "mid-level", Level: models.LevelMid},
	{Keyword: "mid", Level: models.LevelMid},
	{Keyword: "intermediate", Level: models.LevelMid},
	{Keyword: "senior", Level: models.LevelSenior},
	{Keyword: "sr", Level: models.LevelSenior},
	{Keyword: "lead", Level: models.LevelLead},
	{Keyword: "principal", Level: models.LevelLead},
	{Keyword: "staff", Level: models.LevelLead},
	{Keyword: "director", Level: models.LevelLead},
}

// ruleSet is the extraction configuration for one company after defaults are
// applied.
type ruleSet struct {
	listing   string
	selectors models.JobSelectors
	levels    []models.LevelRule
}

// mergeRules overlays a company's scraping config on the defaults. The merge
// is shallow: a present JobSelectors replaces the whole default selector set.
func mergeRules(override *models.ScrapingConfig) ruleSet {
	rules := ruleSet{
		listing:   defaultListingSelector,
		selectors: defaultJobSelectors,
		levels:    defaultLevelRules,
	}
	if override == nil {
		return rules
	}
	if override.JobListingSelector != "" {
		rules.listing = override.JobListingSelector
	}
	if override.JobSelectors != nil {
		rules.selectors = *override.JobSelectors
	}
	if len(override.LevelRules) > 0 {
		rules.levels = override.LevelRules
	}
	return rules
}
