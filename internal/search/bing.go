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

const bingEndpoint = "https://api.bing.microsoft.com/v7.0/search"

// BingClient queries the Bing Web Search API.
type BingClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewBingClient creates a Bing Web Search client.
func NewBingClient(apiKey string, timeout time.Duration) *BingClient {
	return &BingClient{
		apiKey:  apiKey,
		baseURL: bingEndpoint,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *BingClient) Name() string { return "bing" }

func (c *BingClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit > 50 {
		limit = 50
	}

	params := url.Values{
		"q":     {query},
		"count": {strconv.Itoa(limit)},
	}
	u := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSearchFailed, resp.StatusCode)
	}

	var body bingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding bing response: %w", err)
	}

	results := make([]Result, 0, len(body.WebPages.Value))
	for _, page := range body.WebPages.Value {
		results = append(results, Result{Title: page.Name, Link: page.URL, Snippet: page.Snippet})
	}
	return results, nil
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

var _ Source = (*BingClient)(nil)
