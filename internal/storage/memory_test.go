package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vita-chat/internal/model"
)

func TestUsers(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.CreateUser(&model.User{ID: "u1", Email: "Ana@Example.org"}, []byte("hash")))
	assert.ErrorIs(t, s.CreateUser(&model.User{ID: "u2", Email: "ana@example.org "}, nil), ErrEmailTaken)

	u, hash, err := s.FindUserByEmail("ana@example.org")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, []byte("hash"), hash)

	require.NoError(t, s.CreateUser(&model.User{ID: "u3", Email: "bo@example.org"}, nil))
	u.Email = "bo@example.org"
	assert.ErrorIs(t, s.UpdateUser(u), ErrEmailTaken)

	u.Email = "ana.lima@example.org"
	require.NoError(t, s.UpdateUser(u))
	_, _, err = s.FindUserByEmail("ana@example.org")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTokens(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.SaveToken(TokenAccess, "t1", "u1"))

	id, err := s.LookupToken(TokenAccess, "t1")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = s.LookupToken(TokenVerify, "t1")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, s.DeleteToken(TokenAccess, "t1"))
	assert.ErrorIs(t, s.DeleteToken(TokenAccess, "t1"), ErrTokenNotFound)
}

func TestConversationsAreScopedToOwner(t *testing.T) {
	s := NewMemoryStorage()
	t0 := time.Date(2025, 9, 5, 4, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateConversation("u1", &model.Conversation{ID: "c1", UpdatedAt: t0}))
	require.NoError(t, s.CreateConversation("u1", &model.Conversation{ID: "c2", UpdatedAt: t0.Add(time.Hour)}))

	_, err := s.GetConversation("u2", "c1")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, s.DeleteConversation("u2", "c1"), ErrConversationNotFound)

	require.NoError(t, s.AddMessage("u1", "c1", &model.Message{ID: "m1", CreatedAt: t0.Add(2 * time.Hour)}))
	assert.ErrorIs(t, s.AddMessage("u1", "c1", &model.Message{ID: "m1"}), ErrInvalidData)

	list, err := s.ListConversations("u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID, "message bumped c1 to the top")

	list[0].Title = "mutated"
	c1, _ := s.GetConversation("u1", "c1")
	assert.Empty(t, c1.Title)

	empty, err := s.ListConversations("u2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEntries(t *testing.T) {
	s := NewMemoryStorage()
	t0 := time.Now()
	require.NoError(t, s.CreateEntry(&model.MedicalEntry{ID: "e1", Title: "Asthma", CreatedAt: t0}))
	require.NoError(t, s.CreateEntry(&model.MedicalEntry{ID: "e2", Title: "Abscess", CreatedAt: t0.Add(time.Second)}))

	list, err := s.ListEntries()
	require.NoError(t, err)
	assert.Equal(t, "e2", list[0].ID)

	e, err := s.GetEntry("e1")
	require.NoError(t, err)
	e.Published = true
	require.NoError(t, s.UpdateEntry(e))

	e, _ = s.GetEntry("e1")
	assert.True(t, e.Published)

	require.NoError(t, s.DeleteEntry("e1"))
	_, err = s.GetEntry("e1")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.ErrorIs(t, s.UpdateEntry(&model.MedicalEntry{ID: "e1"}), ErrEntryNotFound)
}
