package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage the stored completion API key",
}

var apiKeySetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store the API key used for answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.TrimSpace(args[0])
		if key == "" {
			return fmt.Errorf("api key is empty")
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.SaveAPIKey(cmd.Context(), key); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API key saved.")
		return nil
	},
}

var apiKeyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.ClearAPIKey(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API key cleared.")
		return nil
	},
}

var apiKeyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which API key source is in effect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stored, err := a.store.APIKey(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch {
		case stored != "":
			fmt.Fprintf(out, "stored: %s\n", maskKey(stored))
		case a.cfg.Completion.APIKey != "":
			fmt.Fprintf(out, "config/env: %s\n", maskKey(a.cfg.Completion.APIKey))
		default:
			fmt.Fprintln(out, "not set")
		}
		return nil
	},
}

func init() {
	apiKeyCmd.AddCommand(apiKeySetCmd, apiKeyClearCmd, apiKeyStatusCmd)
	rootCmd.AddCommand(apiKeyCmd)
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
