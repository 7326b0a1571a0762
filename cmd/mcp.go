package cmd

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kayz/deepsearch/internal/logger"
	"github.com/kayz/deepsearch/internal/tools"
)

var mcpSearchOnly bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve deepsearch tools over MCP stdio",
	Long: `Run an MCP server on stdin/stdout exposing:
  web_search   Search the web
  ask          Answer a question with search results (disabled by --search-only)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var asker tools.Asker
		if !mcpSearchOnly {
			asker = a.assistant
		}
		logger.Debug("MCP server starting (search: %s)", a.aggregator.EngineName())
		return server.ServeStdio(tools.NewServer(version, a.aggregator, asker))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().BoolVar(&mcpSearchOnly, "search-only", false, "Expose only the web_search tool")
}
