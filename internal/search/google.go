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

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleClient queries the Google Custom Search JSON API.
type GoogleClient struct {
	apiKey   string
	engineID string
	baseURL  string
	client   *http.Client
}

// NewGoogleClient creates a Google Custom Search client.
func NewGoogleClient(apiKey, engineID string, timeout time.Duration) *GoogleClient {
	return &GoogleClient{
		apiKey:   apiKey,
		engineID: engineID,
		baseURL:  googleEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *GoogleClient) Name() string { return "google" }

func (c *GoogleClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	// The CSE API caps num at 10 per request.
	if limit > 10 {
		limit = 10
	}

	params := url.Values{
		"key": {c.apiKey},
		"cx":  {c.engineID},
		"q":   {query},
		"num": {strconv.Itoa(limit)},
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

	var body googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding google response: %w", err)
	}

	results := make([]Result, 0, len(body.Items))
	for _, item := range body.Items {
		results = append(results, Result{Title: item.Title, Link: item.Link, Snippet: item.Snippet})
	}
	return results, nil
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

var _ Source = (*GoogleClient)(nil)
