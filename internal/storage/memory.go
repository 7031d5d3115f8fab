package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"vita-chat/internal/model"
)

type userRecord struct {
	user *model.User
	hash []byte
}

type conversationRecord struct {
	ownerID string
	conv    *model.Conversation
}

type MemoryStorage struct {
	mu            sync.RWMutex
	users         map[string]*userRecord
	emails        map[string]string
	tokens        map[TokenKind]map[string]string
	conversations map[string]*conversationRecord
	entries       map[string]*model.MedicalEntry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:         make(map[string]*userRecord),
		emails:        make(map[string]string),
		tokens:        make(map[TokenKind]map[string]string),
		conversations: make(map[string]*conversationRecord),
		entries:       make(map[string]*model.MedicalEntry),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *MemoryStorage) CreateUser(user *model.User, passwordHash []byte) error {
	if user == nil || user.ID == "" || user.Email == "" {
		return ErrInvalidData
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, taken := m.emails[email]; taken {
		return ErrEmailTaken
	}
	u := *user
	m.users[u.ID] = &userRecord{user: &u, hash: append([]byte(nil), passwordHash...)}
	m.emails[email] = u.ID
	return nil
}

func (m *MemoryStorage) GetUser(id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *rec.user
	return &u, nil
}

func (m *MemoryStorage) FindUserByEmail(email string) (*model.User, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[normalizeEmail(email)]
	if !ok {
		return nil, nil, ErrUserNotFound
	}
	rec := m.users[id]
	u := *rec.user
	return &u, append([]byte(nil), rec.hash...), nil
}

func (m *MemoryStorage) UpdateUser(user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	oldEmail := normalizeEmail(rec.user.Email)
	newEmail := normalizeEmail(user.Email)
	if newEmail != oldEmail {
		if _, taken := m.emails[newEmail]; taken {
			return ErrEmailTaken
		}
		delete(m.emails, oldEmail)
		m.emails[newEmail] = user.ID
	}
	u := *user
	rec.user = &u
	return nil
}

func (m *MemoryStorage) SaveToken(kind TokenKind, token, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tokens[kind] == nil {
		m.tokens[kind] = make(map[string]string)
	}
	m.tokens[kind][token] = userID
	return nil
}

func (m *MemoryStorage) LookupToken(kind TokenKind, token string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userID, ok := m.tokens[kind][token]
	if !ok {
		return "", ErrTokenNotFound
	}
	return userID, nil
}

func (m *MemoryStorage) DeleteToken(kind TokenKind, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[kind][token]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens[kind], token)
	return nil
}

func (m *MemoryStorage) CreateConversation(ownerID string, conv *model.Conversation) error {
	if conv == nil || conv.ID == "" {
		return ErrInvalidData
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conversations[conv.ID] = &conversationRecord{ownerID: ownerID, conv: conv.Clone()}
	return nil
}

// owned must be called with m.mu held.
func (m *MemoryStorage) owned(ownerID, id string) (*conversationRecord, error) {
	rec, ok := m.conversations[id]
	if !ok || rec.ownerID != ownerID {
		return nil, ErrConversationNotFound
	}
	return rec, nil
}

func (m *MemoryStorage) GetConversation(ownerID, id string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, err := m.owned(ownerID, id)
	if err != nil {
		return nil, err
	}
	return rec.conv.Clone(), nil
}

func (m *MemoryStorage) UpdateConversation(ownerID string, conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.owned(ownerID, conv.ID)
	if err != nil {
		return err
	}
	rec.conv = conv.Clone()
	return nil
}

func (m *MemoryStorage) DeleteConversation(ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.owned(ownerID, id); err != nil {
		return err
	}
	delete(m.conversations, id)
	return nil
}

// ListConversations returns the owner's conversations, most recently
// updated first.
func (m *MemoryStorage) ListConversations(ownerID string) ([]*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Conversation, 0)
	for _, rec := range m.conversations {
		if rec.ownerID == ownerID {
			out = append(out, rec.conv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *MemoryStorage) AddMessage(ownerID, conversationID string, msg *model.Message) error {
	if msg == nil || msg.ID == "" {
		return ErrInvalidData
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.owned(ownerID, conversationID)
	if err != nil {
		return err
	}
	if rec.conv.IndexOf(msg.ID) >= 0 {
		return ErrInvalidData
	}
	rec.conv.Messages = append(rec.conv.Messages, *msg)
	rec.conv.Touch(msg.LatestTime())
	return nil
}

func (m *MemoryStorage) CreateEntry(entry *model.MedicalEntry) error {
	if entry == nil || entry.ID == "" {
		return ErrInvalidData
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e := *entry
	m.entries[e.ID] = &e
	return nil
}

func (m *MemoryStorage) GetEntry(id string) (*model.MedicalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	out := *e
	return &out, nil
}

func (m *MemoryStorage) UpdateEntry(entry *model.MedicalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[entry.ID]; !ok {
		return ErrEntryNotFound
	}
	e := *entry
	e.UpdatedAt = time.Now()
	m.entries[e.ID] = &e
	return nil
}

func (m *MemoryStorage) DeleteEntry(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

// ListEntries returns entries newest first.
func (m *MemoryStorage) ListEntries() ([]*model.MedicalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.MedicalEntry, 0, len(m.entries))
	for _, e := range m.entries {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
