package persist

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kayz/deepsearch/internal/config"
)

// KV is the substrate every store in this package implements.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Open returns the substrate selected by cfg.Driver. The closer is a no-op
// for drivers without resources.
func Open(cfg config.StorageConfig) (KV, io.Closer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "file", "json":
		fs, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return fs, nopCloser{}, nil
	case "", "sqlite":
		s, err := NewStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
