// Package session holds the signed-in user's credentials. It is the only
// process-wide mutable state the client has: one writer at a time, readers
// always see the latest write.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"vita-chat/internal/model"
	"vita-chat/pkg/logger"
)

var (
	bucketName = []byte("auth")
	sessionKey = []byte("session")
)

type Session struct {
	AccessToken string     `json:"accessToken"`
	UserRole    model.Role `json:"userRole"`
	UserID      string     `json:"userId,omitempty"`
	Name        string     `json:"name,omitempty"`
	Email       string     `json:"email,omitempty"`
}

func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

func (s Session) IsAdmin() bool {
	return s.UserRole == model.RoleAdmin
}

type Store struct {
	mu      sync.RWMutex
	current Session
	db      *bolt.DB

	listenerMu sync.Mutex
	listeners  []func()
}

// NewMemoryStore returns a store that forgets everything on exit.
func NewMemoryStore() *Store {
	return &Store{}
}

// Open returns a store persisted at path, loading any saved session. An empty
// path is the same as NewMemoryStore.
func Open(path string) (*Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	s := &Store{db: db}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		raw := b.Get(sessionKey)
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, &s.current); err != nil {
			// a corrupt record is treated as signed out
			logger.Warnf("discarding unreadable session record: %v", err)
			s.current = Session{}
			return b.Delete(sessionKey)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load session: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.AccessToken
}

// Set replaces the session and persists it.
func (s *Store) Set(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(sess); err != nil {
		return err
	}
	s.current = sess
	return nil
}

// Clear signs out. Listeners fire only if a session was present.
func (s *Store) Clear() error {
	s.mu.Lock()
	was := s.current.Authenticated()
	err := s.persist(Session{})
	s.current = Session{}
	s.mu.Unlock()

	if was {
		s.fireCleared()
	}
	return err
}

// Invalidate clears the session only if it still holds token, and reports
// whether it did. Concurrent rejections of the same token clear once.
func (s *Store) Invalidate(token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	if s.current.AccessToken != token {
		s.mu.Unlock()
		return false
	}
	if err := s.persist(Session{}); err != nil {
		logger.Errorf("failed to persist cleared session: %v", err)
	}
	s.current = Session{}
	s.mu.Unlock()

	s.fireCleared()
	return true
}

// OnCleared registers fn to run after every transition to signed out.
func (s *Store) OnCleared(fn func()) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) fireCleared() {
	s.listenerMu.Lock()
	fns := append([]func(){}, s.listeners...)
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// persist must be called with s.mu held.
func (s *Store) persist(sess Session) error {
	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return errors.New("session bucket missing")
		}
		if !sess.Authenticated() {
			return b.Delete(sessionKey)
		}
		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		return b.Put(sessionKey, data)
	})
}
