// Package service is the client's application layer. Each service turns API
// calls into cache and session updates; the CLI only talks to these.
package service

import (
	"fmt"

	"vita-chat/internal/cache"
	"vita-chat/internal/config"
	"vita-chat/internal/session"
	"vita-chat/internal/transport"
)

// Services wires one session, one cache and one transport into every
// service.
type Services struct {
	Session *session.Store
	Cache   *cache.Cache
	Client  *transport.Client

	Auth          *AuthService
	Chat          *ChatService
	Conversations *ConversationService
	Users         *UserService
	MedicalEntry  *MedicalEntryService
}

func New(cfg *config.Config, opts ...transport.Option) (*Services, error) {
	store, err := session.Open(cfg.Session.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	svc, err := NewWithStore(cfg, store, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return svc, nil
}

// NewWithStore is New with an already opened session store.
func NewWithStore(cfg *config.Config, store *session.Store, opts ...transport.Option) (*Services, error) {
	client, err := transport.New(cfg.API, cfg.RateLimit, store, opts...)
	if err != nil {
		return nil, err
	}

	c := cache.New()
	// losing the session, by sign-out or a rejected token, drops cached data
	store.OnCleared(c.Clear)

	return &Services{
		Session:       store,
		Cache:         c,
		Client:        client,
		Auth:          NewAuthService(client, store, c),
		Chat:          NewChatService(client, c, cfg.Stream),
		Conversations: NewConversationService(client, c),
		Users:         NewUserService(client, store),
		MedicalEntry:  NewMedicalEntryService(client),
	}, nil
}

func (s *Services) Close() error {
	return s.Session.Close()
}
