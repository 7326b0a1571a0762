package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromPathReadsSections(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, ".deepsearch.yaml")
	content := `server:
  port: 9000
search:
  engine: tavily
  max_results: 3
  timeout: 2s
completion:
  base_url: "http://localhost:1234/v1"
  model: "test-model"
  timeout: 15s
storage:
  driver: file
  path: "/tmp/chats.json"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	cfg, err := LoadFromPath(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "tavily", cfg.Search.Engine)
	assert.Equal(t, 3, cfg.Search.MaxResults)
	assert.Equal(t, 2*time.Second, cfg.Search.Timeout)
	assert.Equal(t, "http://localhost:1234/v1", cfg.Completion.BaseURL)
	assert.Equal(t, "test-model", cfg.Completion.Model)
	assert.Equal(t, 15*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/chats.json", cfg.Storage.Path)
}

func TestLoadFromPathMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "duckduckgo", cfg.Search.Engine)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 10*time.Second, cfg.Search.Timeout)
	assert.Equal(t, "NebulaLabs/gpt-4o", cfg.Completion.Model)
}

func TestEnvOverridesFile(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, ".deepsearch.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("completion:\n  api_key: from-file\n"), 0644))

	t.Setenv("NEBULA_API_KEY", "from-env")
	t.Setenv("DEEPSEARCH_SEARCH_ENGINE", "Tavily")
	t.Setenv("TAVILY_API_KEY", "tvly-key")
	t.Setenv("DEEPSEARCH_STORAGE", "memory")

	cfg, err := LoadFromPath(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Completion.APIKey)
	assert.Equal(t, "tavily", cfg.Search.Engine)
	assert.Equal(t, "memory", cfg.Storage.Driver)

	engine, ok := cfg.Search.EngineConfig()
	require.True(t, ok)
	assert.Equal(t, "tvly-key", engine.APIKey)
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	cfg := DefaultConfig()
	cfg.Server.Port = 7777

	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, loaded.Server.Port)
}
