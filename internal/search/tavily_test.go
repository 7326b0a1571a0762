package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTavilySearch(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"results":[{"title":"","url":"https://a.example","content":"alpha"},{"title":"B","url":"https://b.example","content":"beta"}]}`))
	}))
	t.Cleanup(srv.Close)

	engine, err := NewTavilyEngine(SearchEngineConfig{Name: "tavily", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := engine.Search(context.Background(), "q", 3)
	require.NoError(t, err)

	assert.Equal(t, "k", body["api_key"])
	assert.Equal(t, float64(3), body["max_results"])
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "https://a.example", resp.Results[0].Title)
	assert.Equal(t, "B", resp.Results[1].Title)
}

func TestRegistryListTypes(t *testing.T) {
	assert.Equal(t, []string{"ddg", "duckduckgo", "tavily"}, NewRegistry().ListTypes())

	_, err := NewRegistry().CreateEngine(SearchEngineConfig{Type: "bing"})
	assert.Error(t, err)
}
