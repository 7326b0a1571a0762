package cmd

import (
	"io"

	"github.com/kayz/deepsearch/internal/assistant"
	"github.com/kayz/deepsearch/internal/chat"
	"github.com/kayz/deepsearch/internal/completion"
	"github.com/kayz/deepsearch/internal/config"
	"github.com/kayz/deepsearch/internal/persist"
	"github.com/kayz/deepsearch/internal/search"
)

// app holds the components every command shares.
type app struct {
	cfg        *config.Config
	store      *chat.Store
	aggregator *search.Aggregator
	client     *completion.Client
	assistant  *assistant.Assistant
	closer     io.Closer
}

func newApp(cfg *config.Config) (*app, error) {
	kv, closer, err := persist.Open(cfg.Storage)
	if err != nil {
		return nil, err
	}

	aggregator, err := search.NewAggregatorFromConfig(cfg.Search, search.NewRegistry())
	if err != nil {
		closer.Close()
		return nil, err
	}

	store := chat.NewStore(kv)
	client := completion.NewClient(cfg.Completion)

	return &app{
		cfg:        cfg,
		store:      store,
		aggregator: aggregator,
		client:     client,
		assistant: assistant.New(store, aggregator, client, assistant.Config{
			SystemPrompt: cfg.Completion.SystemPrompt,
			APIKey:       cfg.Completion.APIKey,
		}),
		closer: closer,
	}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}

func loadApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}
