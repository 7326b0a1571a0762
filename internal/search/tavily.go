package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type TavilyEngine struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewTavilyEngine(config SearchEngineConfig) (Engine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("tavily: api key is required")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	name := config.Name
	if name == "" {
		name = "tavily"
	}

	return &TavilyEngine{
		name:    name,
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (e *TavilyEngine) Name() string {
	return e.name
}

func (e *TavilyEngine) Type() string {
	return "tavily"
}

func (e *TavilyEngine) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	startTime := time.Now()

	searchURL := fmt.Sprintf("%s/search", e.baseURL)

	requestBody := map[string]interface{}{
		"api_key":        e.apiKey,
		"query":          query,
		"search_depth":   "basic",
		"include_answer": false,
		"include_images": false,
		"max_results":    limit,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Deepsearch/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Engine: e.name, Code: resp.StatusCode}
	}

	var apiResponse struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	results := make([]SearchResult, 0, len(apiResponse.Results))
	for _, r := range apiResponse.Results {
		results = append(results, SearchResult{
			Title:   firstNonEmpty(r.Title, r.URL),
			URL:     r.URL,
			Snippet: r.Content,
		})
	}

	return &SearchResponse{
		Query:    query,
		Results:  results,
		Engine:   e.name,
		Duration: time.Since(startTime),
	}, nil
}
