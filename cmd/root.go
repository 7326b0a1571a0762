package cmd

import (
	"fmt"
	"os"

	"github.com/kayz/deepsearch/internal/config"
	"github.com/kayz/deepsearch/internal/logger"
	"github.com/spf13/cobra"
)

var (
	logLevel     string
	configPath   string
	searchEngine string
	apiKey       string
	storageFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "deepsearch",
	Short: "Search-augmented chat service",
	Long: `deepsearch answers questions with web search results and an
OpenAI-compatible chat-completion provider, keeping a local chat history.

Modes:
  deepsearch serve     Run the HTTP server (proxy routes, chat API, web page)
  deepsearch ask       Ask a question from the terminal
  deepsearch search    Run a web search only
  deepsearch chats     Manage stored chats
  deepsearch mcp       Serve web_search as an MCP tool over stdio`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info",
		"Log level: trace, debug, info, warn, error, fatal, panic")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default: .deepsearch.yaml next to the executable)")
	rootCmd.PersistentFlags().StringVar(&searchEngine, "search-engine", "",
		"Search engine: duckduckgo, tavily")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "",
		"Completion provider API key")
	rootCmd.PersistentFlags().StringVar(&storageFlag, "storage", "",
		"Storage driver: sqlite, file, memory")
}

// loadConfig reads the config file and applies flags.
// Priority: command line flag > environment variable > config file
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	if searchEngine != "" {
		cfg.Search.Engine = searchEngine
	}
	if apiKey != "" {
		cfg.Completion.APIKey = apiKey
	}
	if storageFlag != "" {
		cfg.Storage.Driver = storageFlag
	}
	if !rootCmd.PersistentFlags().Changed("log") && cfg.Logging.Level != "" {
		level, err := logger.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
		logger.SetLevel(level)
	}
	return cfg, nil
}

func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
