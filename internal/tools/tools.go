// Package tools exposes deepsearch operations as MCP tools.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kayz/deepsearch/internal/assistant"
	"github.com/kayz/deepsearch/internal/render"
	"github.com/kayz/deepsearch/internal/search"
)

const ServerName = "deepsearch"

type Searcher interface {
	Search(ctx context.Context, query string) ([]search.SearchResult, error)
}

type Asker interface {
	Ask(ctx context.Context, chatID, input string) (assistant.Answer, error)
}

// NewServer registers web_search, plus ask when asker is non-nil.
func NewServer(version string, searcher Searcher, asker Asker) *server.MCPServer {
	s := server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("web_search",
		mcp.WithDescription("Search the web and return titled results with URLs and snippets"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
	), WebSearch(searcher))

	if asker != nil {
		s.AddTool(mcp.NewTool("ask",
			mcp.WithDescription("Answer a question using web search results and the configured chat model. The exchange is stored in the chat history."),
			mcp.WithString("question", mcp.Required(), mcp.Description("Question to answer")),
			mcp.WithString("chat_id", mcp.Description("Existing chat to continue (optional)")),
		), Ask(asker))
	}
	return s
}

func WebSearch(searcher Searcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, _ := req.Params.Arguments["query"].(string)
		results, err := searcher.Search(ctx, query)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(search.FormatSearchResults(query, results)), nil
	}
}

func Ask(asker Asker) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, _ := req.Params.Arguments["question"].(string)
		chatID, _ := req.Params.Arguments["chat_id"].(string)

		ans, err := asker.Ask(ctx, chatID, question)
		if err != nil {
			if errors.Is(err, search.ErrEmptyQuery) || errors.Is(err, assistant.ErrBusy) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(ans.Reply.Content)
		if len(ans.Sources) > 0 {
			sb.WriteString("\n\n")
			sb.WriteString(render.Sources(ans.Sources))
		}
		fmt.Fprintf(&sb, "\n\nchat_id: %s", ans.Chat.ID)
		return mcp.NewToolResultText(sb.String()), nil
	}
}
