package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kayz/deepsearch/internal/assistant"
	"github.com/kayz/deepsearch/internal/chat"
	"github.com/kayz/deepsearch/internal/render"
)

var (
	askChatID string
	askNew    bool
	askRaw    bool
	askWidth  int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question answered with web search results",
	Long: `Search the web for the question, send the results to the chat model
and print the answer with its sources. The exchange is appended to the most
recent chat unless --chat or --new is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askChatID, "chat", "", "Chat ID to continue")
	askCmd.Flags().BoolVar(&askNew, "new", false, "Start a new chat")
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "Print markdown without terminal styling")
	askCmd.Flags().IntVar(&askWidth, "width", 100, "Word wrap width for styled output")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	chatID := askChatID
	if chatID == "" {
		session, err := chat.NewSession(ctx, a.store)
		if err != nil {
			return err
		}
		if askNew {
			if _, err := session.NewChat(ctx); err != nil {
				return err
			}
		}
		chatID = session.ActiveID()
	}

	ans, askErr := a.assistant.Ask(ctx, chatID, strings.Join(args, " "))
	if ans.Reply.Content == "" {
		return askErr
	}

	md := formatAnswer(ans)
	out := cmd.OutOrStdout()
	if askRaw {
		fmt.Fprintln(out, md)
	} else {
		styled, err := render.Terminal(md, askWidth)
		if err != nil {
			fmt.Fprintln(out, md)
		} else {
			fmt.Fprint(out, styled)
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "chat: %s\n", ans.Chat.ID)
	return askErr
}

func formatAnswer(ans assistant.Answer) string {
	if len(ans.Sources) == 0 {
		return ans.Reply.Content
	}
	return ans.Reply.Content + "\n\n" + render.Sources(ans.Sources)
}
