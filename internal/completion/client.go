// Package completion talks to an OpenAI-compatible chat-completion provider.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/kayz/deepsearch/internal/config"
)

const (
	DefaultBaseURL = "https://api.nebulalab.xyz/v1"
	DefaultModel   = "NebulaLabs/gpt-4o"
	DefaultTimeout = 60 * time.Second
)

// ErrMissingAPIKey means neither the request nor the configuration supplied
// a credential.
var ErrMissingAPIKey = errors.New("completion API key is not configured: set it in settings, send the nebula-api-key header or export NEBULA_API_KEY")

// ProviderError is a failed reply from the completion provider.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("completion provider error: %s", e.Message)
	}
	return fmt.Sprintf("completion provider error (status %d): %s", e.Status, e.Message)
}

// Turn is one entry of the prompt sent to the provider.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client sends chat completions through go-openai.
type Client struct {
	baseURL string
	model   string
	timeout time.Duration
}

func NewClient(cfg config.CompletionConfig) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

func (c *Client) Model() string {
	return c.model
}

// Complete returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, apiKey string, turns []Turn) (string, error) {
	if apiKey == "" {
		return "", ErrMissingAPIKey
	}

	oc := openai.DefaultConfig(apiKey)
	oc.BaseURL = c.baseURL
	oc.HTTPClient = &http.Client{Timeout: c.timeout}
	client := openai.NewClientWithConfig(oc)

	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    t.Role,
			Content: t.Content,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", wrapProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Message: "response contained no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func wrapProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Status: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return fmt.Errorf("completion request failed: %w", err)
}

// ResolveAPIKey picks the per-request credential, else the configured one.
func ResolveAPIKey(requestKey, configured string) (string, error) {
	if k := strings.TrimSpace(requestKey); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(configured); k != "" {
		return k, nil
	}
	return "", ErrMissingAPIKey
}
