package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayz/deepsearch/internal/assistant"
	"github.com/kayz/deepsearch/internal/chat"
	"github.com/kayz/deepsearch/internal/completion"
	"github.com/kayz/deepsearch/internal/persist"
	"github.com/kayz/deepsearch/internal/search"
)

type fakeSearcher struct {
	results []search.SearchResult
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, q string) ([]search.SearchResult, error) {
	f.calls++
	if strings.TrimSpace(q) == "" {
		return nil, search.ErrEmptyQuery
	}
	return f.results, nil
}

type fakeForwarder struct {
	apiKey string
	body   string
	resp   *completion.ProxyResponse
	err    error
}

func (f *fakeForwarder) Forward(_ context.Context, apiKey string, body []byte) (*completion.ProxyResponse, error) {
	f.apiKey = apiKey
	f.body = string(body)
	return f.resp, f.err
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f fakeCompleter) Complete(context.Context, string, []completion.Turn) (string, error) {
	return f.reply, f.err
}

type fixture struct {
	handler  http.Handler
	searcher *fakeSearcher
	proxy    *fakeForwarder
	store    *chat.Store
	session  *chat.Session
}

func newFixture(t *testing.T, completer assistant.Completer) *fixture {
	t.Helper()
	store := chat.NewStore(persist.NewMemoryStore())
	session, err := chat.NewSession(context.Background(), store)
	require.NoError(t, err)

	searcher := &fakeSearcher{results: []search.SearchResult{{Title: "Go", URL: "https://go.dev", Snippet: "The Go site"}}}
	proxy := &fakeForwarder{resp: &completion.ProxyResponse{Status: http.StatusOK, Body: []byte(`{"choices":[]}`)}}
	if completer == nil {
		completer = fakeCompleter{reply: "**Go** is a language."}
	}

	server := NewServer(Options{
		Search:    searcher,
		Proxy:     proxy,
		Assistant: assistant.New(store, searcher, completer, assistant.Config{APIKey: "sk-default"}),
		Store:     store,
		Session:   session,
		APIKey:    "sk-default",
	})
	return &fixture{handler: server.Handler(), searcher: searcher, proxy: proxy, store: store, session: session}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(t, http.MethodGet, "/api/status", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok":true`)
}

func TestIndexServesPage(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<title>Deepsearch</title>")

	rr = f.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/search", "/api/web-scrape"} {
		rr := f.do(t, http.MethodPost, path, map[string]string{"query": "golang"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		got := decode[searchResponse](t, rr)
		assert.Equal(t, "golang", got.Query)
		require.Len(t, got.Results, 1)
		assert.Equal(t, "https://go.dev", got.Results[0].URL)
	}
}

func TestSearchEndpointValidation(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodPost, "/search", map[string]string{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Search query is required", decode[map[string]string](t, rr)["error"])
	assert.Zero(t, f.searcher.calls)

	rr = f.do(t, http.MethodPost, "/search", "{broken")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/search", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestSearchEndpointEmptyResultsStillSucceed(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.results = []search.SearchResult{}

	rr := f.do(t, http.MethodPost, "/search", map[string]string{"query": "obscure"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"results":[],"query":"obscure"}`, rr.Body.String())
}

func TestCompletionProxyCredentialResolution(t *testing.T) {
	f := newFixture(t, nil)
	body := `{"model":"NebulaLabs/gpt-4o","messages":[{"role":"user","content":"hi"}]}`

	rr := f.do(t, http.MethodPost, "/completion-proxy", body, "nebula-api-key", "sk-header")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "sk-header", f.proxy.apiKey)
	assert.Equal(t, body, f.proxy.body)
	assert.JSONEq(t, `{"choices":[]}`, rr.Body.String())

	rr = f.do(t, http.MethodPost, "/api/nebula-proxy", body)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "sk-default", f.proxy.apiKey)
}

func TestCompletionProxyFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.proxy.err = errors.New("connection reset")

	rr := f.do(t, http.MethodPost, "/completion-proxy", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to process request", decode[map[string]string](t, rr)["error"])

	f.proxy.err = nil
	f.proxy.resp = &completion.ProxyResponse{Status: http.StatusUnauthorized, Body: []byte(`{"error":"bad key"}`)}
	rr = f.do(t, http.MethodPost, "/completion-proxy", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"bad key"}`, rr.Body.String())
}

func TestCompletionProxyMissingCredential(t *testing.T) {
	proxy := &fakeForwarder{}
	server := NewServer(Options{Proxy: proxy})

	req := httptest.NewRequest(http.MethodPost, "/completion-proxy", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "API key is not configured")
	assert.Empty(t, proxy.apiKey)
}

func TestRateLimit(t *testing.T) {
	server := NewServer(Options{Search: &fakeSearcher{}, RateLimit: 0.001, RateBurst: 1})
	handler := server.Handler()

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"q"}`))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestChatLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodPost, "/api/chats", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[chat.Chat](t, rr)
	assert.Equal(t, chat.DefaultTitle, created.Title)
	assert.Equal(t, created.ID, f.session.ActiveID())

	rr = f.do(t, http.MethodGet, "/api/chats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Chats []chatSummary `json:"chats"`
	}](t, rr)
	assert.Len(t, list.Chats, 2)

	rr = f.do(t, http.MethodGet, "/api/chats/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodDelete, "/api/chats/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	deleted := decode[map[string]string](t, rr)
	assert.Equal(t, created.ID, deleted["deleted"])
	assert.NotEmpty(t, deleted["active"])
	assert.NotEqual(t, created.ID, deleted["active"])

	rr = f.do(t, http.MethodGet, "/api/chats/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAskEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	active := f.session.ActiveID()

	rr := f.do(t, http.MethodPost, "/api/chats/"+active+"/ask", map[string]string{"text": "What is Go?"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got := decode[askResponse](t, rr)
	assert.Equal(t, active, got.Chat.ID)
	assert.Equal(t, "What is Go?", got.Chat.Title)
	require.Len(t, got.Chat.Messages, 2)
	assert.Equal(t, chat.RoleAssistant, got.Reply.Role)
	assert.Contains(t, got.Reply.HTML, "<strong>Go</strong>")
	require.Len(t, got.Sources, 1)

	rr = f.do(t, http.MethodPost, "/api/chats/"+active+"/ask", map[string]string{"text": " "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAskEndpointRecordsFailure(t *testing.T) {
	f := newFixture(t, fakeCompleter{err: errors.New("provider down")})
	active := f.session.ActiveID()

	rr := f.do(t, http.MethodPost, "/api/chats/"+active+"/ask", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusBadGateway, rr.Code)

	got := decode[askResponse](t, rr)
	assert.NotEmpty(t, got.Error)
	assert.Equal(t, assistant.FailureReply, got.Reply.Content)

	c, ok := f.store.Get(context.Background(), active)
	require.True(t, ok)
	assert.Len(t, c.Messages, 2)
}

func TestSessionEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	other, err := f.store.Create(context.Background())
	require.NoError(t, err)

	rr := f.do(t, http.MethodPut, "/api/session", map[string]string{"id": other.ID})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, other.ID, f.session.ActiveID())

	rr = f.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, other.ID, decode[chatView](t, rr).ID)

	rr = f.do(t, http.MethodPut, "/api/session", map[string]string{"id": "missing"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPIKeySettings(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodGet, "/api/settings/api-key", nil)
	assert.JSONEq(t, `{"configured":false}`, rr.Body.String())

	rr = f.do(t, http.MethodPut, "/api/settings/api-key", map[string]string{"api_key": "sk-ui"})
	require.Equal(t, http.StatusOK, rr.Code)
	key, err := f.store.APIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-ui", key)

	rr = f.do(t, http.MethodPut, "/api/settings/api-key", map[string]string{"api_key": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodDelete, "/api/settings/api-key", nil)
	assert.JSONEq(t, `{"configured":false}`, rr.Body.String())
}
