package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	duckDuckGoUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	relatedTopicsScanned = 5
	fallbackTopicTitle   = "Related Topic"
	fallbackTopicSnippet = "No description available"
	fallbackAbstractName = "Abstract"
)

// DuckDuckGoEngine queries the DuckDuckGo Instant Answer API.
type DuckDuckGoEngine struct {
	name    string
	baseURL string
	client  *http.Client
}

func NewDuckDuckGoEngine(config SearchEngineConfig) (Engine, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.duckduckgo.com"
	}
	name := config.Name
	if name == "" {
		name = "duckduckgo"
	}

	return &DuckDuckGoEngine{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (e *DuckDuckGoEngine) Name() string {
	return e.name
}

func (e *DuckDuckGoEngine) Type() string {
	return "duckduckgo"
}

type ddgResponse struct {
	Heading        string          `json:"Heading"`
	Abstract       string          `json:"Abstract"`
	AbstractSource string          `json:"AbstractSource"`
	AbstractURL    string          `json:"AbstractURL"`
	RelatedTopics  []ddgTopic      `json:"RelatedTopics"`
	Infobox        json.RawMessage `json:"Infobox"`
}

type ddgTopic struct {
	Result   string `json:"Result"`
	FirstURL string `json:"FirstURL"`
	Text     string `json:"Text"`
}

type ddgInfobox struct {
	Content []struct {
		Label string `json:"label"`
		Value any    `json:"value"`
	} `json:"content"`
}

func (e *DuckDuckGoEngine) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	startTime := time.Now()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("pretty", "1")
	searchURL := fmt.Sprintf("%s/?%s", e.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", duckDuckGoUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Engine: e.name, Code: resp.StatusCode}
	}

	var apiResponse ddgResponse
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &SearchResponse{
		Query:    query,
		Results:  extractDuckDuckGoResults(apiResponse, limit),
		Engine:   e.name,
		Duration: time.Since(startTime),
	}, nil
}

// extractDuckDuckGoResults flattens the abstract, the first related topics
// and the infobox, in that order, into at most limit results.
func extractDuckDuckGoResults(r ddgResponse, limit int) []SearchResult {
	results := make([]SearchResult, 0, limit)

	if r.Abstract != "" {
		results = append(results, SearchResult{
			Title:   firstNonEmpty(r.Heading, r.AbstractSource, fallbackAbstractName),
			URL:     r.AbstractURL,
			Snippet: r.Abstract,
		})
	}

	topics := r.RelatedTopics
	if len(topics) > relatedTopicsScanned {
		topics = topics[:relatedTopicsScanned]
	}
	for _, topic := range topics {
		if len(results) >= limit {
			return results
		}
		if topic.Result == "" || topic.FirstURL == "" {
			continue
		}
		results = append(results, SearchResult{
			Title:   firstNonEmpty(anchorText(topic.Result), fallbackTopicTitle),
			URL:     topic.FirstURL,
			Snippet: firstNonEmpty(topic.Text, fallbackTopicSnippet),
		})
	}

	if len(results) >= limit {
		return results[:limit]
	}

	box, ok := decodeInfobox(r.Infobox)
	if !ok {
		return results
	}
	for _, item := range box.Content {
		if len(results) >= limit {
			break
		}
		value := stringifyValue(item.Value)
		if item.Label == "" || value == "" {
			continue
		}
		results = append(results, SearchResult{
			Title:   item.Label,
			URL:     r.AbstractURL,
			Snippet: value,
		})
	}

	return results
}

// decodeInfobox tolerates the API sending "" instead of an object.
func decodeInfobox(raw json.RawMessage) (ddgInfobox, bool) {
	var box ddgInfobox
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return box, false
	}
	if err := json.Unmarshal(raw, &box); err != nil {
		return box, false
	}
	return box, len(box.Content) > 0
}

func stringifyValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if !val {
			return ""
		}
	case float64:
		if val == 0 {
			return ""
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// anchorText returns the visible text of the first <a> element in fragment.
func anchorText(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return ""
	}
	for _, n := range nodes {
		if a := findAnchor(n); a != nil {
			var sb strings.Builder
			collectText(a, &sb)
			return strings.TrimSpace(sb.String())
		}
	}
	return ""
}

func findAnchor(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if a := findAnchor(c); a != nil {
			return a
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
