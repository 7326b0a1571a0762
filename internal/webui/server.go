package webui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kayz/deepsearch/internal/assistant"
	"github.com/kayz/deepsearch/internal/chat"
	"github.com/kayz/deepsearch/internal/completion"
	"github.com/kayz/deepsearch/internal/logger"
	"github.com/kayz/deepsearch/internal/render"
	"github.com/kayz/deepsearch/internal/search"
)

const maxBodyBytes = 1 << 20

type Searcher interface {
	Search(ctx context.Context, query string) ([]search.SearchResult, error)
}

type Forwarder interface {
	Forward(ctx context.Context, apiKey string, body []byte) (*completion.ProxyResponse, error)
}

type Asker interface {
	Ask(ctx context.Context, chatID, input string) (assistant.Answer, error)
}

type Options struct {
	Search    Searcher
	Proxy     Forwarder
	Assistant Asker
	Store     *chat.Store
	Session   *chat.Session
	// APIKey is the process-wide credential used when a proxy request
	// carries no nebula-api-key header.
	APIKey string
	// RateLimit caps proxy requests per second; zero disables it.
	RateLimit float64
	RateBurst int
	// SearchStats, when set, is reported by /api/status.
	SearchStats func() search.Stats
}

type Server struct {
	opts      Options
	limiter   *rate.Limiter
	startedAt time.Time
}

func NewServer(opts Options) *Server {
	s := &Server{
		opts:      opts,
		startedAt: time.Now().UTC(),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)

	mux.HandleFunc("/search", s.limited(s.handleSearch))
	mux.HandleFunc("/api/web-scrape", s.limited(s.handleSearch))
	mux.HandleFunc("/completion-proxy", s.limited(s.handleCompletionProxy))
	mux.HandleFunc("/api/nebula-proxy", s.limited(s.handleCompletionProxy))

	mux.HandleFunc("/api/chats", s.handleChats)
	mux.HandleFunc("/api/chats/{id}", s.handleChat)
	mux.HandleFunc("/api/chats/{id}/ask", s.handleAsk)
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/api/settings/api-key", s.handleAPIKey)
	return mux
}

func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(defaultIndexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"ok":         true,
		"started_at": s.startedAt.Format(time.RFC3339),
		"uptime_sec": int(time.Since(s.startedAt).Seconds()),
	}
	if s.opts.SearchStats != nil {
		payload["search"] = s.opts.SearchStats()
	}
	writeJSON(w, http.StatusOK, payload)
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Results []search.SearchResult `json:"results"`
	Query   string                `json:"query"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.opts.Search == nil {
		writeError(w, http.StatusServiceUnavailable, "search is not initialized")
		return
	}

	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Search query is required")
		return
	}

	results, err := s.opts.Search.Search(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "Search query is required")
			return
		}
		logger.Error("Web search error: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to perform web search")
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results, Query: req.Query})
}

func (s *Server) handleCompletionProxy(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.opts.Proxy == nil {
		writeError(w, http.StatusServiceUnavailable, "completion proxy is not initialized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process request")
		return
	}

	apiKey, err := completion.ResolveAPIKey(r.Header.Get("nebula-api-key"), s.opts.APIKey)
	if err != nil {
		logger.Error("Completion proxy: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp, err := s.opts.Proxy.Forward(r.Context(), apiKey, body)
	if err != nil {
		logger.Error("Completion proxy error: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to process request")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

type chatSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"messageCount"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "chat store is not initialized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		chats := s.opts.Store.ListRecent(r.Context())
		out := make([]chatSummary, 0, len(chats))
		for _, c := range chats {
			out = append(out, chatSummary{
				ID:           c.ID,
				Title:        c.Title,
				MessageCount: len(c.Messages),
				CreatedAt:    c.CreatedAt,
				UpdatedAt:    c.UpdatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"chats": out})
	case http.MethodPost:
		var c chat.Chat
		var err error
		if s.opts.Session != nil {
			c, err = s.opts.Session.NewChat(r.Context())
		} else {
			c, err = s.opts.Store.Create(r.Context())
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, c)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type messageView struct {
	chat.Message
	HTML string `json:"html,omitempty"`
}

type chatView struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []messageView `json:"messages"`
	CreatedAt int64         `json:"createdAt"`
	UpdatedAt int64         `json:"updatedAt"`
}

func newChatView(c chat.Chat) chatView {
	v := chatView{
		ID:        c.ID,
		Title:     c.Title,
		Messages:  make([]messageView, 0, len(c.Messages)),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for _, m := range c.Messages {
		mv := messageView{Message: m}
		if m.Role == chat.RoleAssistant {
			html, err := render.HTML(m.Content)
			if err != nil {
				logger.Warn("render message %s: %v", m.ID, err)
			}
			mv.HTML = html
		}
		v.Messages = append(v.Messages, mv)
	}
	return v
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "chat store is not initialized")
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		c, ok := s.opts.Store.Get(r.Context(), id)
		if !ok {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		writeJSON(w, http.StatusOK, newChatView(c))
	case http.MethodDelete:
		var err error
		if s.opts.Session != nil {
			err = s.opts.Session.Delete(r.Context(), id)
		} else {
			err = s.opts.Store.Delete(r.Context(), id)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		payload := map[string]string{"deleted": id}
		if s.opts.Session != nil {
			payload["active"] = s.opts.Session.ActiveID()
		}
		writeJSON(w, http.StatusOK, payload)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type askRequest struct {
	Text string `json:"text"`
}

type askResponse struct {
	Chat    chatView              `json:"chat"`
	Reply   messageView           `json:"reply"`
	Sources []search.SearchResult `json:"sources"`
	Error   string                `json:"error,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.opts.Assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant is not initialized")
		return
	}

	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	ans, err := s.opts.Assistant.Ask(r.Context(), r.PathValue("id"), req.Text)
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "text is required")
		return
	case errors.Is(err, assistant.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil && ans.Chat.ID == "":
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.opts.Session != nil {
		s.opts.Session.Track(ans.Chat)
	}
	view := newChatView(ans.Chat)
	resp := askResponse{Chat: view, Sources: ans.Sources}
	if n := len(view.Messages); n > 0 {
		resp.Reply = view.Messages[n-1]
	}
	if resp.Sources == nil {
		resp.Sources = []search.SearchResult{}
	}
	status := http.StatusOK
	if err != nil {
		resp.Error = "Failed to get a response. Please check your API key in settings."
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

type selectRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.opts.Session == nil {
		writeError(w, http.StatusServiceUnavailable, "session is not initialized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, err := s.opts.Session.Active(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, newChatView(c))
	case http.MethodPut:
		var req selectRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		c, ok := s.opts.Session.Select(r.Context(), req.ID)
		if !ok {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		writeJSON(w, http.StatusOK, newChatView(c))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type apiKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleAPIKey(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "chat store is not initialized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		key, err := s.opts.Store.APIKey(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"configured": key != ""})
	case http.MethodPut:
		var req apiKeyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		key := strings.TrimSpace(req.APIKey)
		if key == "" {
			writeError(w, http.StatusBadRequest, "api_key is required")
			return
		}
		if err := s.opts.Store.SaveAPIKey(r.Context(), key); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"configured": true})
	case http.MethodDelete:
		if err := s.opts.Store.ClearAPIKey(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"configured": false})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
