package model

import (
	"time"
)

type Sender string

const (
	SenderUser Sender = "USER"
	SenderBot  Sender = "BOT"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Message is either a pending placeholder (client temporary id, assistant
// reply still streaming) or a confirmed message carrying the backend id.
// Only NewPlaceholder creates pending messages and Confirm is the only way
// out of that state.
type Message struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Sender     Sender     `json:"sender"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
	SourceURLs []string   `json:"sourceUrls,omitempty"`

	pending bool
}

// NewPlaceholder returns an empty pending BOT message keyed by tempID.
func NewPlaceholder(tempID string, now time.Time) Message {
	return Message{
		ID:        tempID,
		Sender:    SenderBot,
		CreatedAt: now,
		pending:   true,
	}
}

func (m Message) Pending() bool {
	return m.pending
}

// Confirm returns final as a confirmed message. The receiver is the
// placeholder being reconciled; its temporary id is discarded.
func (m Message) Confirm(final Message) Message {
	final.pending = false
	if final.CreatedAt.IsZero() {
		final.CreatedAt = m.CreatedAt
	}
	return final
}

// LatestTime is the newest timestamp known for the message.
func (m Message) LatestTime() time.Time {
	if m.UpdatedAt != nil && m.UpdatedAt.After(m.CreatedAt) {
		return *m.UpdatedAt
	}
	return m.CreatedAt
}

func (m Message) clone() Message {
	c := m
	if m.UpdatedAt != nil {
		t := *m.UpdatedAt
		c.UpdatedAt = &t
	}
	if m.SourceURLs != nil {
		c.SourceURLs = append([]string(nil), m.SourceURLs...)
	}
	return c
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages"`
}

// Clone returns a deep copy safe to hand out of a locked store.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, msg := range c.Messages {
		out.Messages[i] = msg.clone()
	}
	return &out
}

// IndexOf returns the position of the message with id, or -1.
func (c *Conversation) IndexOf(id string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Touch advances UpdatedAt to t if t is newer.
func (c *Conversation) Touch(t time.Time) {
	if t.After(c.UpdatedAt) {
		c.UpdatedAt = t
	}
}

// ConversationPatch carries header fields only; nil fields are left alone.
type ConversationPatch struct {
	Title     *string
	UpdatedAt *time.Time
}

// ConversationSummary is one row of the conversation history list.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Count     struct {
		Messages int `json:"messages"`
	} `json:"_count"`
}

func (c *Conversation) Summary() ConversationSummary {
	s := ConversationSummary{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	s.Count.Messages = len(c.Messages)
	return s
}

type User struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	ImgURL     string     `json:"imgUrl,omitempty"`
	Role       Role       `json:"role"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// MedicalEntry is an admin-managed RAG source document.
type MedicalEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	SourceURL string    `json:"sourceUrl,omitempty"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
