package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sync"

	"vita-chat/internal/model"
	"vita-chat/internal/session"
	"vita-chat/internal/transport"
	"vita-chat/pkg/logger"
)

const maxAvatarBytes = 5 << 20

// UserService reads and edits the signed-in user's profile.
type UserService struct {
	client   *transport.Client
	sessions *session.Store

	mu   sync.RWMutex
	user *model.User
}

func NewUserService(client *transport.Client, sessions *session.Store) *UserService {
	s := &UserService{client: client, sessions: sessions}
	sessions.OnCleared(s.forget)
	return s
}

func (s *UserService) forget() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}

// Current returns the last profile loaded, or nil.
func (s *UserService) Current() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *UserService) GetMe(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := s.client.JSON(ctx, http.MethodGet, "/user/me", nil, &user); err != nil {
		return nil, err
	}
	s.remember(&user)
	return &user, nil
}

// UpdateMe applies a partial profile update.
func (s *UserService) UpdateMe(ctx context.Context, req model.UpdateUserRequest) (*model.User, error) {
	if req.Name == nil && req.Email == nil {
		return nil, fmt.Errorf("nothing to update")
	}

	var user model.User
	if err := s.client.JSON(ctx, http.MethodPatch, "/user/me", req, &user); err != nil {
		return nil, err
	}
	s.remember(&user)
	return &user, nil
}

// UploadAvatar replaces the profile picture with the image read from r.
// fields are sent as additional form values.
func (s *UserService) UploadAvatar(ctx context.Context, filename string, r io.Reader, fields map[string]string) (*model.User, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}

	part, err := mw.CreateFormFile("avatar", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create avatar part: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(r, maxAvatarBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read avatar: %w", err)
	}
	if n > maxAvatarBytes {
		return nil, fmt.Errorf("avatar exceeds %d bytes", maxAvatarBytes)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	var user model.User
	err = s.client.Send(ctx, transport.Request{
		Method:      http.MethodPut,
		Path:        "/user/profile",
		Body:        buf.Bytes(),
		ContentType: mw.FormDataContentType(),
		Auth:        true,
	}, &user)
	if err != nil {
		return nil, err
	}
	s.remember(&user)
	return &user, nil
}

// remember caches user and mirrors name and email into the session.
func (s *UserService) remember(user *model.User) {
	u := *user
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()

	sess := s.sessions.Get()
	if !sess.Authenticated() || (sess.Name == user.Name && sess.Email == user.Email) {
		return
	}
	sess.Name = user.Name
	sess.Email = user.Email
	if sess.UserID == "" {
		sess.UserID = user.ID
	}
	if err := s.sessions.Set(sess); err != nil {
		logger.Warnf("failed to update session profile: %v", err)
	}
}
