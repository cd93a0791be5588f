// Package search queries external search engines for company career pages.
// Each engine is a Source; the Engine fans a query out to every configured
// source and caches per-source results so repeated runs within the TTL do not
// burn API quota.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jobscoutdev/jobscout/internal/cache"
)

// Sentinel errors for search source failures.
var (
	ErrSearchUnreachable = errors.New("search engine unreachable")
	ErrSearchFailed      = errors.New("search request failed")
	ErrSearchTimeout     = errors.New("search request timeout")
)

// Result is one hit from any search source.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Source queries one external search engine.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Engine aggregates all configured sources behind a shared result cache.
type Engine struct {
	sources  []Source
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewEngine creates an Engine over the given sources. An empty source list is
// valid and yields no results.
func NewEngine(sources []Source, c cache.Cache, cacheTTL time.Duration) *Engine {
	return &Engine{sources: sources, cache: c, cacheTTL: cacheTTL}
}

// Search runs the query against every source. A failing source is logged and
// skipped so one engine outage never blanks the whole result set.
func (e *Engine) Search(ctx context.Context, query string, limit int) []Result {
	var all []Result
	for _, src := range e.sources {
		results, err := e.searchSource(ctx, src, query, limit)
		if err != nil {
			slog.Warn("search source failed", "source", src.Name(), "query", query, "error", err)
			continue
		}
		all = append(all, results...)
	}
	return all
}

func (e *Engine) searchSource(ctx context.Context, src Source, query string, limit int) ([]Result, error) {
	key := cache.SearchResultKey(src.Name(), query)

	if cached, found, err := e.cache.Get(ctx, key); err == nil && found {
		var results []Result
		if err := json.Unmarshal(cached, &results); err == nil {
			return results, nil
		}
		// Unreadable entry, drop it and fetch live.
		_ = e.cache.Delete(ctx, key)
	}

	results, err := src.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(results); err == nil {
		if err := e.cache.Set(ctx, key, payload, e.cacheTTL); err != nil {
			slog.Warn("cache search results", "source", src.Name(), "error", err)
		}
	}
	return results, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrSearchTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrSearchTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrSearchUnreachable, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrSearchUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrSearchUnreachable, err)
}
