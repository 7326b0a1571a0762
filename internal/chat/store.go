// Package chat keeps the chat history as one JSON collection in a
// key-value substrate.
//
// Every mutation reads the whole collection, changes it and writes it back.
// There are no partial updates; a mutex serializes writers inside one
// process, nothing protects against a second process sharing the substrate.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kayz/deepsearch/internal/logger"
)

const (
	// ChatsKey holds the serialized chat collection.
	ChatsKey = "deep-search-chats"
	// APIKeyKey holds the completion provider credential.
	APIKeyKey = "nebula-api-key"
)

var ErrInvalidRole = errors.New("message role must be user or assistant")

// Substrate is a persistent key-value store scoped to one client.
type Substrate interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type Store struct {
	kv  Substrate
	now func() time.Time
	mu  sync.Mutex
}

type StoreOption func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(kv Substrate, opts ...StoreOption) *Store {
	s := &Store{kv: kv, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}

// List returns every chat in storage order. Missing or corrupt data yields
// an empty list; the problem is logged.
func (s *Store) List(ctx context.Context) []Chat {
	return s.load(ctx)
}

// ListRecent returns every chat, most recently updated first.
func (s *Store) ListRecent(ctx context.Context) []Chat {
	chats := s.load(ctx)
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt > chats[j].UpdatedAt
	})
	return chats
}

func (s *Store) Get(ctx context.Context, id string) (Chat, bool) {
	for _, c := range s.load(ctx) {
		if c.ID == id {
			return c, true
		}
	}
	return Chat{}, false
}

// Create persists a new empty chat.
func (s *Store) Create(ctx context.Context) (Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats := s.load(ctx)
	c := s.newChat()
	chats = append(chats, c)
	if err := s.save(ctx, chats); err != nil {
		return Chat{}, err
	}
	return c.clone(), nil
}

// AppendMessage adds msg to the end of the chat with chatID. When no such
// chat exists a new one is created first, so the returned chat may carry a
// different ID than the one requested. A missing message ID or timestamp is
// filled in.
func (s *Store) AppendMessage(ctx context.Context, chatID string, msg Message) (Chat, error) {
	if !msg.Role.Valid() {
		return Chat{}, fmt.Errorf("%w: %q", ErrInvalidRole, msg.Role)
	}
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = s.nowMillis()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chats := s.load(ctx)
	idx := -1
	for i := range chats {
		if chats[i].ID == chatID {
			idx = i
			break
		}
	}
	if idx < 0 {
		logger.Debug("chat %q not found, creating a new one", chatID)
		chats = append(chats, s.newChat())
		idx = len(chats) - 1
	}

	c := &chats[idx]
	c.Messages = append(c.Messages, msg)
	if now := s.nowMillis(); now > c.UpdatedAt {
		c.UpdatedAt = now
	}
	c.deriveTitle(msg)

	if err := s.save(ctx, chats); err != nil {
		return Chat{}, err
	}
	return c.clone(), nil
}

// Delete removes the chat. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats := s.load(ctx)
	kept := chats[:0]
	for _, c := range chats {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	return s.save(ctx, kept)
}

// SaveAPIKey stores the completion credential.
func (s *Store) SaveAPIKey(ctx context.Context, key string) error {
	return s.kv.Set(ctx, APIKeyKey, key)
}

// APIKey returns the stored credential, "" when unset.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	v, _, err := s.kv.Get(ctx, APIKeyKey)
	return v, err
}

func (s *Store) ClearAPIKey(ctx context.Context) error {
	return s.kv.Delete(ctx, APIKeyKey)
}

func (s *Store) newChat() Chat {
	now := s.nowMillis()
	return Chat{
		ID:        NewID(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Store) load(ctx context.Context) []Chat {
	raw, ok, err := s.kv.Get(ctx, ChatsKey)
	if err != nil {
		logger.Error("Failed to read chats from storage: %v", err)
		return []Chat{}
	}
	if !ok || raw == "" {
		return []Chat{}
	}

	var chats []Chat
	if err := json.Unmarshal([]byte(raw), &chats); err != nil {
		logger.Error("Failed to parse chats from storage: %v", err)
		return []Chat{}
	}
	if chats == nil {
		chats = []Chat{}
	}
	return chats
}

func (s *Store) save(ctx context.Context, chats []Chat) error {
	data, err := json.Marshal(chats)
	if err != nil {
		return fmt.Errorf("failed to encode chats: %w", err)
	}
	if err := s.kv.Set(ctx, ChatsKey, string(data)); err != nil {
		return fmt.Errorf("failed to save chats: %w", err)
	}
	return nil
}

// NewID returns a random unique identifier.
func NewID() string {
	return uuid.NewString()
}
