package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kayz/deepsearch/internal/search"
)

var searchJSON bool

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a web search",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		query := strings.Join(args, " ")
		results, err := a.aggregator.Search(cmd.Context(), query)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if searchJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"query": query, "results": results})
		}
		fmt.Fprintln(out, strings.TrimRight(search.FormatSearchResults(query, results), "\n"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print results as JSON")
}
