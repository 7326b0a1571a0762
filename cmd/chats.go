package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kayz/deepsearch/internal/chat"
	"github.com/kayz/deepsearch/internal/render"
)

var chatsRaw bool

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage stored chats",
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		chats := a.store.ListRecent(cmd.Context())
		if len(chats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No chats.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
		for _, c := range chats {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.ID, c.Title, len(c.Messages), c.Updated().Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a chat transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		c, ok := a.store.Get(cmd.Context(), args[0])
		if !ok {
			return fmt.Errorf("chat %s not found", args[0])
		}
		md := transcript(c)
		if chatsRaw {
			fmt.Fprintln(cmd.OutOrStdout(), md)
			return nil
		}
		styled, err := render.Terminal(md, 100)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), styled)
		return nil
	},
}

var chatsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an empty chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.store.Create(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), c.ID)
		return nil
	},
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	chatsShowCmd.Flags().BoolVar(&chatsRaw, "raw", false, "Print markdown without terminal styling")
	chatsCmd.AddCommand(chatsListCmd, chatsShowCmd, chatsNewCmd, chatsDeleteCmd)
	rootCmd.AddCommand(chatsCmd)
}

func transcript(c chat.Chat) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", c.Title)
	for _, m := range c.Messages {
		who := "You"
		if m.Role == chat.RoleAssistant {
			who = "Deepsearch"
		}
		fmt.Fprintf(&sb, "**%s** _%s_\n\n%s\n\n", who, time.UnixMilli(m.Timestamp).Local().Format(time.DateTime), m.Content)
		if sources := m.Sources(); len(sources) > 0 {
			sb.WriteString(render.Sources(sources))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
