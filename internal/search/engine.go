package search

import (
	"context"
	"errors"
	"fmt"
)

type Engine interface {
	Name() string
	Type() string
	Search(ctx context.Context, query string, limit int) (*SearchResponse, error)
}

type EngineFactory func(config SearchEngineConfig) (Engine, error)

type SearchEngineConfig struct {
	Name    string                 `yaml:"name"`
	Type    string                 `yaml:"type"`
	APIKey  string                 `yaml:"api_key,omitempty"`
	BaseURL string                 `yaml:"base_url,omitempty"`
	Options map[string]interface{} `yaml:"options,omitempty"`
}

// ErrEmptyQuery is returned for a blank query. No request is sent.
var ErrEmptyQuery = errors.New("search query is required")

// ErrMalformedResponse marks a provider body that could not be decoded.
var ErrMalformedResponse = errors.New("malformed search response")

// StatusError is a non-2xx reply from a provider.
type StatusError struct {
	Engine string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Engine, e.Code)
}
