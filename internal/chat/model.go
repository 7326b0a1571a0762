package chat

import (
	"time"

	"github.com/kayz/deepsearch/internal/search"
)

// DefaultTitle is the title of a chat that has no user message yet.
const DefaultTitle = "New Chat"

// titleLength is how many characters of the first user message become the title.
const titleLength = 30

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one turn of a chat. It is never edited after being appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp int64     `json:"timestamp"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// Metadata carries the citation sources of an assistant answer.
type Metadata struct {
	Sources []search.SearchResult `json:"sources,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// Sources returns the message sources, nil when there are none.
func (m Message) Sources() []search.SearchResult {
	if m.Metadata == nil {
		return nil
	}
	return m.Metadata.Sources
}

type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
}

// Updated returns UpdatedAt as a time.
func (c Chat) Updated() time.Time {
	return time.UnixMilli(c.UpdatedAt)
}

// deriveTitle applies the one-shot title rule: the first user message
// fixes the title, later messages never change it.
func (c *Chat) deriveTitle(msg Message) {
	if c.Title != DefaultTitle || msg.Role != RoleUser {
		return
	}
	c.Title = TitleFrom(msg.Content)
}

// TitleFrom truncates content to 30 characters, adding "..." when cut.
func TitleFrom(content string) string {
	runes := []rune(content)
	if len(runes) <= titleLength {
		return content
	}
	return string(runes[:titleLength]) + "..."
}

func (c Chat) clone() Chat {
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	c.Messages = msgs
	return c
}
