package service

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vita-chat/internal/config"
	"vita-chat/internal/handler"
	"vita-chat/internal/model"
	"vita-chat/internal/responder"
	"vita-chat/internal/session"
	"vita-chat/internal/storage"
	"vita-chat/internal/transport"
)

// TestAgainstStubBackend drives every client service through the stub
// router over real HTTP.
func TestAgainstStubBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var mu sync.Mutex
	verifyTokens := make(map[string]string)

	cfg := &config.Config{
		API:    config.APIConfig{Timeout: 5 * time.Second},
		Stream: config.StreamConfig{IdleTimeout: 2 * time.Second},
		Server: config.ServerConfig{HeartbeatInterval: 5 * time.Millisecond},
	}
	router := handler.NewRouter(cfg, handler.Deps{
		Storage:   storage.NewMemoryStorage(),
		Responder: responder.NewEcho(time.Millisecond),
		SendVerify: func(email, token string) {
			mu.Lock()
			verifyTokens[email] = token
			mu.Unlock()
		},
	})
	require.NoError(t, router.Auth.SeedAdmin("admin@vita.local", "adminpw"))

	server := httptest.NewServer(router)
	defer server.Close()
	cfg.API.BaseURL = server.URL

	ctx := context.Background()

	admin, err := NewWithStore(cfg, session.NewMemoryStore())
	require.NoError(t, err)
	_, err = admin.Auth.SignIn(ctx, "admin@vita.local", "adminpw")
	require.NoError(t, err)
	assert.True(t, admin.Session.Get().IsAdmin())

	published := true
	entry, err := admin.MedicalEntry.Create(ctx, model.MedicalEntryInput{
		Title:     "Migraine",
		Content:   "Recurrent throbbing headaches.",
		SourceURL: "https://example.org/migraine",
		Published: &published,
	})
	require.NoError(t, err)

	svc, err := NewWithStore(cfg, session.NewMemoryStore())
	require.NoError(t, err)

	msg, err := svc.Auth.SignUp(ctx, model.SignUpRequest{Name: "Ana", Email: "ana@example.org", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	_, err = svc.Auth.SignIn(ctx, "ana@example.org", "secret1")
	assert.ErrorIs(t, err, transport.ErrUnauthenticated)
	assert.False(t, svc.Session.Get().Authenticated())

	mu.Lock()
	token := verifyTokens["ana@example.org"]
	mu.Unlock()
	_, err = svc.Auth.Verify(ctx, token)
	require.NoError(t, err)

	sess, err := svc.Auth.SignIn(ctx, "ana@example.org", "secret1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, sess.UserRole)

	t.Run("user cannot write entries", func(t *testing.T) {
		_, err := svc.MedicalEntry.Create(ctx, model.MedicalEntryInput{Title: "x", Content: "y"})
		var terr *transport.Error
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, 403, terr.StatusCode)
		assert.True(t, svc.Session.Get().Authenticated())
	})

	var navigated []string
	res, err := svc.Chat.SendMessage(ctx, "Could this be a migraine?", "", true, SendOptions{
		OnNavigate: func(id string) { navigated = append(navigated, id) },
	})
	require.NoError(t, err)
	require.Len(t, navigated, 1)
	assert.Equal(t, res.ConversationID, navigated[0])
	require.Len(t, res.Messages, 2)

	bot := res.Messages[1]
	assert.False(t, strings.HasPrefix(bot.ID, "temp-"))
	assert.Equal(t, model.SenderBot, bot.Sender)
	assert.Contains(t, bot.Content, "Related entries: Migraine.")
	assert.Equal(t, []string{entry.SourceURL}, bot.SourceURLs)
	assert.False(t, svc.Cache.Streaming(res.ConversationID))

	res, err = svc.Chat.SendMessage(ctx, "What triggers it?", res.ConversationID, false, SendOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Messages, 4)

	convID := res.ConversationID
	svc.Cache.Remove(convID)
	conv, err := svc.Conversations.FetchConversation(ctx, convID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 4)

	list, err := svc.Conversations.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].Count.Messages)

	_, err = svc.Conversations.RenameConversation(ctx, convID, "Migraine questions")
	require.NoError(t, err)
	conv, _ = svc.Cache.Get(convID)
	assert.Equal(t, "Migraine questions", conv.Title)

	me, err := svc.Users.UpdateMe(ctx, model.UpdateUserRequest{Name: ptr("Ana Lima")})
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", me.Name)
	assert.Equal(t, "Ana Lima", svc.Session.Get().Name)

	me, err = svc.Users.UploadAvatar(ctx, "me.png", strings.NewReader("\x89PNG\r\n\x1a\n"), nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(me.ImgURL, "/uploads/"))

	entries, err := svc.MedicalEntry.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, svc.Conversations.DeleteConversation(ctx, convID))
	assert.False(t, svc.Cache.Has(convID))
	_, err = svc.Conversations.FetchConversation(ctx, convID)
	assert.ErrorIs(t, err, transport.ErrNotFound)

	require.NoError(t, admin.MedicalEntry.Delete(ctx, entry.ID))
	_, err = svc.MedicalEntry.Get(ctx, entry.ID)
	assert.ErrorIs(t, err, transport.ErrNotFound)

	require.NoError(t, svc.Auth.SignOut())
	_, err = svc.Conversations.ListConversations(ctx)
	assert.ErrorIs(t, err, transport.ErrUnauthenticated)
}

func ptr[T any](v T) *T {
	return &v
}
