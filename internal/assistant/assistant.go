// Package assistant runs one question through search, prompt composition
// and chat completion, recording every step in the chat history.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/kayz/deepsearch/internal/chat"
	"github.com/kayz/deepsearch/internal/completion"
	"github.com/kayz/deepsearch/internal/logger"
	"github.com/kayz/deepsearch/internal/search"
)

const (
	DefaultSystemPrompt = "You are a helpful assistant that provides accurate information based on search results when available."

	// FailureReply is stored as the assistant message when completion fails.
	FailureReply = "I'm sorry, I encountered an error while processing your request. Please check your API key in settings or try again later."
)

// ErrBusy is returned while another question is still being answered.
var ErrBusy = errors.New("a request is already in progress")

type Searcher interface {
	Search(ctx context.Context, query string) ([]search.SearchResult, error)
}

type Completer interface {
	Complete(ctx context.Context, apiKey string, turns []completion.Turn) (string, error)
}

type Config struct {
	SystemPrompt string
	// APIKey is the fallback credential when none is stored in settings.
	APIKey string
}

type Assistant struct {
	store     *chat.Store
	searcher  Searcher
	completer Completer
	cfg       Config
	busy      atomic.Bool
}

func New(store *chat.Store, searcher Searcher, completer Completer, cfg Config) *Assistant {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &Assistant{
		store:     store,
		searcher:  searcher,
		completer: completer,
		cfg:       cfg,
	}
}

// Answer is the outcome of Ask. On completion failure Chat and Reply still
// hold the recorded error message.
type Answer struct {
	Chat    chat.Chat             `json:"chat"`
	Reply   chat.Message          `json:"reply"`
	Sources []search.SearchResult `json:"sources"`
}

// Busy reports whether a question is being answered.
func (a *Assistant) Busy() bool {
	return a.busy.Load()
}

// Ask records input in chatID, answers it and records the answer. Search
// problems never stop the flow; completion problems are recorded as an
// assistant message and returned.
func (a *Assistant) Ask(ctx context.Context, chatID, input string) (Answer, error) {
	if strings.TrimSpace(input) == "" {
		return Answer{}, search.ErrEmptyQuery
	}
	if !a.busy.CompareAndSwap(false, true) {
		return Answer{}, ErrBusy
	}
	defer a.busy.Store(false)

	c, err := a.store.AppendMessage(ctx, chatID, chat.Message{
		Role:    chat.RoleUser,
		Content: input,
	})
	if err != nil {
		return Answer{}, err
	}

	results, err := a.searcher.Search(ctx, input)
	if err != nil {
		logger.Warn("Continuing without search context: %v", err)
		results = nil
	}

	content, err := a.complete(ctx, input, results)
	if err != nil {
		logger.Error("Completion failed for chat %s: %v", c.ID, err)
		reply := chat.Message{
			Role:     chat.RoleAssistant,
			Content:  FailureReply,
			Metadata: &chat.Metadata{Error: err.Error()},
		}
		c, saveErr := a.store.AppendMessage(ctx, c.ID, reply)
		if saveErr != nil {
			return Answer{}, errors.Join(err, saveErr)
		}
		return Answer{Chat: c, Reply: lastMessage(c), Sources: results}, err
	}

	c, err = a.store.AppendMessage(ctx, c.ID, chat.Message{
		Role:     chat.RoleAssistant,
		Content:  content,
		Metadata: &chat.Metadata{Sources: results},
	})
	if err != nil {
		return Answer{}, err
	}
	return Answer{Chat: c, Reply: lastMessage(c), Sources: results}, nil
}

func (a *Assistant) complete(ctx context.Context, input string, results []search.SearchResult) (string, error) {
	stored, err := a.store.APIKey(ctx)
	if err != nil {
		logger.Warn("Failed to read stored API key: %v", err)
	}
	apiKey, err := completion.ResolveAPIKey(stored, a.cfg.APIKey)
	if err != nil {
		return "", err
	}

	turns := []completion.Turn{
		{Role: "system", Content: a.cfg.SystemPrompt},
		{Role: "user", Content: ComposePrompt(input, results)},
	}
	content, err := a.completer.Complete(ctx, apiKey, turns)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return content, nil
}

// ComposePrompt folds search results into the user prompt. Without results
// the input is sent as is.
func ComposePrompt(input string, results []search.SearchResult) string {
	if len(results) == 0 {
		return input
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search query: %q\n\nSearch results:\n", input)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\nURL: %s\n%s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}
	sb.WriteString("Based on these search results, please provide a comprehensive answer.")
	return sb.String()
}

func lastMessage(c chat.Chat) chat.Message {
	if len(c.Messages) == 0 {
		return chat.Message{}
	}
	return c.Messages[len(c.Messages)-1]
}
