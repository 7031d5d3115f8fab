package model

type SignInResponse struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	UserRole    Role   `json:"userRole"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ChatResponse is the non-streaming reply of POST /conversation/chat.
type ChatResponse struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

type ScrapeResult struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	SourceURL string `json:"sourceUrl"`
	Message   string `json:"message,omitempty"`
}

// ErrorResponse is the backend error body.
type ErrorResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
}

type EventType string

const (
	EventMetadata   EventType = "metadata"
	EventContent    EventType = "content"
	EventBotMessage EventType = "bot_message"
	EventEnd        EventType = "end"
)

// StreamEvent is one `data:` frame of the chat event stream. Which payload
// field is set depends on Type.
type StreamEvent struct {
	Type         EventType     `json:"type"`
	Conversation *Conversation `json:"conversation,omitempty"`
	UserMessage  *Message      `json:"userMessage,omitempty"`
	Text         string        `json:"text,omitempty"`
	BotMessage   *Message      `json:"botMessage,omitempty"`
}
