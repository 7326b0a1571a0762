package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	exeDirCache string
)

// getExecutableDir returns the directory where the executable is located
func getExecutableDir() string {
	if exeDirCache != "" {
		return exeDirCache
	}
	execPath, err := os.Executable()
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	exeDirCache = filepath.Dir(execPath)
	return exeDirCache
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Search     SearchConfig     `yaml:"search"`
	Completion CompletionConfig `yaml:"completion"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// RateLimit is the sustained number of proxy requests per second.
	// Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	RateBurst int     `yaml:"rate_burst,omitempty"`
}

// SearchEngineConfig 单个搜索引擎配置
type SearchEngineConfig struct {
	Name    string                 `yaml:"name"`
	Type    string                 `yaml:"type"`
	APIKey  string                 `yaml:"api_key,omitempty"`
	BaseURL string                 `yaml:"base_url,omitempty"`
	Enabled bool                   `yaml:"enabled"`
	Options map[string]interface{} `yaml:"options,omitempty"`
}

// SearchConfig 搜索引擎整体配置
type SearchConfig struct {
	Engine     string               `yaml:"engine"`
	MaxResults int                  `yaml:"max_results"`
	Timeout    time.Duration        `yaml:"timeout"`
	Engines    []SearchEngineConfig `yaml:"engines"`
}

// EngineConfig returns the configuration of the selected engine.
func (c SearchConfig) EngineConfig() (SearchEngineConfig, bool) {
	for _, e := range c.Engines {
		if e.Name == c.Engine {
			return e, true
		}
	}
	return SearchEngineConfig{}, false
}

type CompletionConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key,omitempty"`
	SystemPrompt string        `yaml:"system_prompt,omitempty"`
	Timeout      time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	// Driver is one of "memory", "file", "sqlite".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      18080,
			RateLimit: 5,
			RateBurst: 10,
		},
		Search: SearchConfig{
			Engine:     "duckduckgo",
			MaxResults: 5,
			Timeout:    10 * time.Second,
			Engines: []SearchEngineConfig{
				{
					Name:    "duckduckgo",
					Type:    "duckduckgo",
					Enabled: true,
				},
				{
					Name:    "tavily",
					Type:    "tavily",
					Enabled: true,
				},
			},
		},
		Completion: CompletionConfig{
			BaseURL: "https://api.nebulalab.xyz/v1",
			Model:   "NebulaLabs/gpt-4o",
			Timeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(ConfigDir(), "deepsearch.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func ConfigDir() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".deepsearch")
}

func ConfigPath() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".deepsearch.yaml")
}

func Load() (*Config, error) {
	return LoadFromPath(ConfigPath())
}

// LoadFromPath reads the YAML file at path on top of the defaults and then
// applies environment overrides. A missing file is not an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables. Command line flags are applied
// later by the caller and win over both.
func (c *Config) applyEnv() {
	if v := os.Getenv("NEBULA_API_KEY"); v != "" {
		c.Completion.APIKey = v
	}
	if v := os.Getenv("DEEPSEARCH_COMPLETION_URL"); v != "" {
		c.Completion.BaseURL = v
	}
	if v := os.Getenv("DEEPSEARCH_MODEL"); v != "" {
		c.Completion.Model = v
	}
	if v := os.Getenv("DEEPSEARCH_SEARCH_ENGINE"); v != "" {
		c.Search.Engine = strings.ToLower(v)
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		for i := range c.Search.Engines {
			if c.Search.Engines[i].Type == "tavily" {
				c.Search.Engines[i].APIKey = v
			}
		}
	}
	if v := os.Getenv("DEEPSEARCH_STORAGE"); v != "" {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("DEEPSEARCH_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
}

func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the config as YAML to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
