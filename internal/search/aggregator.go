package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kayz/deepsearch/internal/config"
	"github.com/kayz/deepsearch/internal/logger"
)

const (
	DefaultMaxResults = 5
	DefaultTimeout    = 10 * time.Second
)

// FailureKind classifies why a search came back empty.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTransport FailureKind = "transport"
	FailureTimeout   FailureKind = "timeout"
	FailureProvider  FailureKind = "provider"
	FailureParse     FailureKind = "parse"
)

// Stats counts searches by outcome. Callers only ever see an empty list on
// failure, these counters keep the reason.
type Stats struct {
	Requests  int64 `json:"requests"`
	Empty     int64 `json:"empty"`
	Transport int64 `json:"transport_failures"`
	Timeout   int64 `json:"timeout_failures"`
	Provider  int64 `json:"provider_failures"`
	Parse     int64 `json:"parse_failures"`
}

// Aggregator runs a query against one engine and normalizes the answer.
// It never fails on provider trouble: the result is just empty.
type Aggregator struct {
	engine     Engine
	maxResults int
	timeout    time.Duration

	requests  atomic.Int64
	empty     atomic.Int64
	transport atomic.Int64
	timeouts  atomic.Int64
	provider  atomic.Int64
	parse     atomic.Int64
}

type Option func(*Aggregator)

func WithMaxResults(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxResults = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func NewAggregator(engine Engine, opts ...Option) *Aggregator {
	a := &Aggregator{
		engine:     engine,
		maxResults: DefaultMaxResults,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewAggregatorFromConfig builds the engine selected by cfg.Engine.
func NewAggregatorFromConfig(cfg config.SearchConfig, registry *Registry) (*Aggregator, error) {
	if registry == nil {
		registry = NewRegistry()
	}

	engineCfg, ok := cfg.EngineConfig()
	if !ok {
		return nil, fmt.Errorf("search engine %q is not configured", cfg.Engine)
	}
	if !engineCfg.Enabled {
		return nil, fmt.Errorf("search engine %q is disabled", cfg.Engine)
	}

	engine, err := registry.CreateEngine(SearchEngineConfig{
		Name:    engineCfg.Name,
		Type:    engineCfg.Type,
		APIKey:  engineCfg.APIKey,
		BaseURL: engineCfg.BaseURL,
		Options: engineCfg.Options,
	})
	if err != nil {
		return nil, err
	}

	return NewAggregator(engine, WithMaxResults(cfg.MaxResults), WithTimeout(cfg.Timeout)), nil
}

func (a *Aggregator) EngineName() string {
	return a.engine.Name()
}

// Search returns at most maxResults results for query. The only error is
// ErrEmptyQuery.
func (a *Aggregator) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	a.requests.Add(1)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.engine.Search(ctx, query, a.maxResults)
	if err != nil {
		kind := classify(err)
		a.record(kind)
		logger.Warn("search via %s failed (%s): %v", a.engine.Name(), kind, err)
		return []SearchResult{}, nil
	}

	results := normalize(resp.Results, a.maxResults)
	if len(results) == 0 {
		a.empty.Add(1)
		logger.Debug("search via %s returned no results for %q", a.engine.Name(), query)
	} else {
		logger.Debug("search via %s returned %d results in %v", a.engine.Name(), len(results), resp.Duration)
	}
	return results, nil
}

func (a *Aggregator) Stats() Stats {
	return Stats{
		Requests:  a.requests.Load(),
		Empty:     a.empty.Load(),
		Transport: a.transport.Load(),
		Timeout:   a.timeouts.Load(),
		Provider:  a.provider.Load(),
		Parse:     a.parse.Load(),
	}
}

func (a *Aggregator) record(kind FailureKind) {
	switch kind {
	case FailureTimeout:
		a.timeouts.Add(1)
	case FailureProvider:
		a.provider.Add(1)
	case FailureParse:
		a.parse.Add(1)
	default:
		a.transport.Add(1)
	}
}

func classify(err error) FailureKind {
	var statusErr *StatusError
	var netErr net.Error
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return FailureTimeout
	case errors.As(err, &statusErr):
		return FailureProvider
	case errors.Is(err, ErrMalformedResponse):
		return FailureParse
	}
	return FailureTransport
}

// normalize drops results without a title or snippet and caps the count.
func normalize(in []SearchResult, limit int) []SearchResult {
	out := make([]SearchResult, 0, limit)
	for _, r := range in {
		if len(out) >= limit {
			break
		}
		if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Snippet) == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FormatSearchResults renders results as a numbered plain-text list.
func FormatSearchResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No search results for %q", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Search results for %q:\n\n", query))
	for i, result := range results {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, result.Title))
		if result.URL != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", result.URL))
		}
		sb.WriteString(fmt.Sprintf("   %s\n\n", result.Snippet))
	}
	return sb.String()
}
