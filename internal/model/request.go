package model

type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChatRequest struct {
	Question          string `json:"question" binding:"required"`
	ConversationID    string `json:"conversationId,omitempty"`
	IsNewConversation bool   `json:"isNewConversation"`
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type RenameConversationRequest struct {
	Title string `json:"title" binding:"required"`
}

// UpdateUserRequest is a partial profile update; nil fields are unchanged.
type UpdateUserRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// MedicalEntryInput is used for both create and update. On update empty
// fields and nil Published are left untouched.
type MedicalEntryInput struct {
	Title     string `json:"title,omitempty"`
	Content   string `json:"content,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
	Published *bool  `json:"published,omitempty"`
}

type ScrapeRequest struct {
	URL string `json:"url" binding:"required"`
}
