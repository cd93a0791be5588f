package scrape

import (
	"net/http"
	"strings"

	"github.com/jobscoutdev/jobscout/pkg/models"
)

// endpointMarkers flag careers URLs that serve JSON rather than HTML.
var endpointMarkers = []string{"/api/", ".json", "/v1/", "/v2/"}

// apiModeMarkers is the narrower set consulted when a company's stored
// endpoint payload carries no type.
var apiModeMarkers = []string{"/api/", ".json"}

// DetectEndpoint builds the fetch hint stored alongside a discovered
// careers URL.
func DetectEndpoint(careersURL string) *models.EndpointPayload {
	for _, marker := range endpointMarkers {
		if strings.Contains(careersURL, marker) {
			return &models.EndpointPayload{
				Type:    models.EndpointTypeAPI,
				Method:  http.MethodGet,
				Headers: map[string]string{"Accept": "application/json"},
			}
		}
	}
	return &models.EndpointPayload{
		Type:   models.EndpointTypeWebpage,
		Method: http.MethodGet,
	}
}

// scrapeMode picks api or webpage for a company. A typed endpoint payload
// wins; otherwise the careers URL itself is inspected.
func scrapeMode(company *models.Company) string {
	if ep := company.CareersEndpoint; ep != nil && ep.Type != "" {
		return ep.Type
	}
	if company.CareersURL != nil {
		for _, marker := range apiModeMarkers {
			if strings.Contains(*company.CareersURL, marker) {
				return models.EndpointTypeAPI
			}
		}
	}
	return models.EndpointTypeWebpage
}
