package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const serpapiEndpoint = "https://serpapi.com/search.json"

// SerpAPIClient queries Google results through the SerpAPI proxy.
type SerpAPIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerpAPIClient creates a SerpAPI client.
func NewSerpAPIClient(apiKey string, timeout time.Duration) *SerpAPIClient {
	return &SerpAPIClient{
		apiKey:  apiKey,
		baseURL: serpapiEndpoint,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *SerpAPIClient) Name() string { return "serpapi" }

func (c *SerpAPIClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	params := url.Values{
		"engine":  {"google"},
		"q":       {query},
		"api_key": {c.apiKey},
		"num":     {strconv.Itoa(limit)},
	}
	u := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSearchFailed, resp.StatusCode)
	}

	var body serpapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding serpapi response: %w", err)
	}

	results := make([]Result, 0, len(body.OrganicResults))
	for _, r := range body.OrganicResults {
		results = append(results, Result{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	return results, nil
}

type serpapiResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

var _ Source = (*SerpAPIClient)(nil)
