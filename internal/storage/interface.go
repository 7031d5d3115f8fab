package storage

import (
	"vita-chat/internal/model"
)

type TokenKind string

const (
	TokenAccess TokenKind = "access"
	TokenVerify TokenKind = "verify"
)

// Storage is the stub backend's state. Implementations return copies, so
// callers may modify what they get back.
type Storage interface {
	// users
	CreateUser(user *model.User, passwordHash []byte) error
	GetUser(id string) (*model.User, error)
	FindUserByEmail(email string) (*model.User, []byte, error)
	UpdateUser(user *model.User) error

	// tokens
	SaveToken(kind TokenKind, token, userID string) error
	LookupToken(kind TokenKind, token string) (string, error)
	DeleteToken(kind TokenKind, token string) error

	// conversations, scoped to their owner
	CreateConversation(ownerID string, conv *model.Conversation) error
	GetConversation(ownerID, id string) (*model.Conversation, error)
	UpdateConversation(ownerID string, conv *model.Conversation) error
	DeleteConversation(ownerID, id string) error
	ListConversations(ownerID string) ([]*model.Conversation, error)
	AddMessage(ownerID, conversationID string, msg *model.Message) error

	// medical entries
	CreateEntry(entry *model.MedicalEntry) error
	GetEntry(id string) (*model.MedicalEntry, error)
	UpdateEntry(entry *model.MedicalEntry) error
	DeleteEntry(id string) error
	ListEntries() ([]*model.MedicalEntry, error)

	Init() error
	Close() error
}
