package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kayz/deepsearch/internal/logger"
)

var ErrInvalidBody = errors.New("request body must be a JSON document")

// Proxy forwards raw chat-completion requests and hands back the provider's
// JSON untouched.
type Proxy struct {
	endpoint string
	client   *http.Client
}

func NewProxy(c *Client) *Proxy {
	return &Proxy{
		endpoint: c.baseURL + "/chat/completions",
		client:   &http.Client{Timeout: c.timeout},
	}
}

type ProxyResponse struct {
	Status int
	Body   []byte
}

// Forward posts body with apiKey as bearer token. Provider failures with a
// JSON body are returned as a ProxyResponse carrying the upstream status.
func (p *Proxy) Forward(ctx context.Context, apiKey string, body []byte) (*ProxyResponse, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if len(bytes.TrimSpace(body)) == 0 || !json.Valid(body) {
		return nil, ErrInvalidBody
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("completion provider returned status %d after %v", resp.StatusCode, time.Since(start))
	} else {
		logger.Debug("completion provider answered in %v", time.Since(start))
	}

	if !json.Valid(data) {
		return nil, &ProviderError{Status: resp.StatusCode, Message: "response is not JSON"}
	}
	return &ProxyResponse{Status: resp.StatusCode, Body: data}, nil
}
