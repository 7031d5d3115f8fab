package storage

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrEntryNotFound        = errors.New("medical entry not found")
	ErrEmailTaken           = errors.New("email already registered")
	ErrTokenNotFound        = errors.New("token not found")
	ErrInvalidData          = errors.New("invalid data")
)
