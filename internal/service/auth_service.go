package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"vita-chat/internal/cache"
	"vita-chat/internal/model"
	"vita-chat/internal/session"
	"vita-chat/internal/transport"
	"vita-chat/pkg/logger"
)

type AuthService struct {
	client   *transport.Client
	sessions *session.Store
	cache    *cache.Cache
}

func NewAuthService(client *transport.Client, sessions *session.Store, c *cache.Cache) *AuthService {
	return &AuthService{client: client, sessions: sessions, cache: c}
}

// SignIn exchanges credentials for a session and stores it.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (session.Session, error) {
	req := model.SignInRequest{Email: strings.TrimSpace(email), Password: password}
	if req.Email == "" || req.Password == "" {
		return session.Session{}, errors.New("email and password are required")
	}

	var resp model.SignInResponse
	if err := s.client.PublicJSON(ctx, http.MethodPost, "/auth/signin", req, &resp); err != nil {
		return session.Session{}, err
	}
	if resp.AccessToken == "" {
		return session.Session{}, &transport.Error{Endpoint: "POST /auth/signin", Message: "response has no access token", Err: transport.ErrTransport}
	}

	// a different account must not see the previous one's conversations
	s.cache.Clear()

	sess := session.Session{
		AccessToken: resp.AccessToken,
		UserRole:    resp.UserRole,
		UserID:      resp.UserID,
		Name:        resp.Name,
		Email:       resp.Email,
	}
	if err := s.sessions.Set(sess); err != nil {
		return session.Session{}, err
	}
	logger.WithFields(logger.Fields{"user": sess.UserID, "role": sess.UserRole}).Info("signed in")
	return sess, nil
}

// SignUp registers an account. The backend sends a verification email and
// no session is created.
func (s *AuthService) SignUp(ctx context.Context, req model.SignUpRequest) (string, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return "", errors.New("name, email and password are required")
	}

	var resp model.MessageResponse
	if err := s.client.PublicJSON(ctx, http.MethodPost, "/auth/signup", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Verify confirms an email address with the token from the verification link.
func (s *AuthService) Verify(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("verification token is required")
	}

	var resp model.MessageResponse
	err := s.client.Send(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/auth/verify",
		Query:  url.Values{"token": {token}},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// SignOut forgets the session and every cached conversation.
func (s *AuthService) SignOut() error {
	err := s.sessions.Clear()
	s.cache.Clear()
	return err
}

func (s *AuthService) Current() session.Session {
	return s.sessions.Get()
}
