package chat

import (
	"context"
	"sync"
)

// Session tracks which chat is active. There is always an active chat.
type Session struct {
	store  *Store
	mu     sync.Mutex
	active string
}

// NewSession activates the most recently updated chat, or a fresh one when
// storage is empty.
func NewSession(ctx context.Context, store *Store) (*Session, error) {
	s := &Session{store: store}
	if recent := store.ListRecent(ctx); len(recent) > 0 {
		s.active = recent[0].ID
		return s, nil
	}
	if _, err := s.NewChat(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ActiveID returns the id of the active chat.
func (s *Session) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Active returns the active chat, creating one if it vanished from storage.
func (s *Session) Active(ctx context.Context) (Chat, error) {
	id := s.ActiveID()
	if c, ok := s.store.Get(ctx, id); ok {
		return c, nil
	}
	return s.NewChat(ctx)
}

// NewChat creates a chat and makes it active.
func (s *Session) NewChat(ctx context.Context) (Chat, error) {
	c, err := s.store.Create(ctx)
	if err != nil {
		return Chat{}, err
	}
	s.setActive(c.ID)
	return c, nil
}

// Select makes an existing chat active.
func (s *Session) Select(ctx context.Context, id string) (Chat, bool) {
	c, ok := s.store.Get(ctx, id)
	if ok {
		s.setActive(c.ID)
	}
	return c, ok
}

// Track follows the chat returned by an append, which differs from the
// requested one when the store had to create it.
func (s *Session) Track(c Chat) {
	s.setActive(c.ID)
}

// Delete removes a chat. Deleting the active chat activates a new one.
func (s *Session) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if id != s.ActiveID() {
		return nil
	}
	_, err := s.NewChat(ctx)
	return err
}

func (s *Session) setActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
}
