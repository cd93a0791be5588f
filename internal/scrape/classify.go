package scrape

import (
	"strings"

	"github.com/jobscoutdev/jobscout/pkg/models"
)

// Built-in keyword groups checked after the configured rules, in this order.
var builtinLevels = []struct {
	level    string
	keywords []string
}{
	{models.LevelEntry, []string{"junior", "entry", "graduate"}},
	{models.LevelSenior, []string{"senior", "sr."}},
	{models.LevelLead, []string{"lead", "principal", "staff"}},
}

var validLevels = map[string]bool{
	models.LevelEntry:  true,
	models.LevelMid:    true,
	models.LevelSenior: true,
	models.LevelLead:   true,
}

// Classify maps a listing to an experience level by scanning the lower-cased
// title and description. Configured rules run first in order and the first
// keyword found wins; rules with an empty keyword or a level outside the
// known set are skipped. Listings matching nothing are mid.
func Classify(title, description string, rules []models.LevelRule) string {
	text := strings.ToLower(title + " " + description)
	for _, rule := range rules {
		if rule.Keyword == "" || !validLevels[rule.Level] {
			continue
		}
		if strings.Contains(text, strings.ToLower(rule.Keyword)) {
			return rule.Level
		}
	}
	for _, group := range builtinLevels {
		for _, keyword := range group.keywords {
			if strings.Contains(text, keyword) {
				return group.level
			}
		}
	}
	return models.LevelMid
}
