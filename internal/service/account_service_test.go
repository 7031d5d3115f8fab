package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vita-chat/internal/model"
	"vita-chat/internal/transport"
)

func TestSignIn_StoresSession(t *testing.T) {
	svc, _ := newTestServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/signin", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req model.SignInRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ana@example.org", req.Email)

		w.Write([]byte(`{"accessToken":"new-token","userId":"u1","name":"Ana","email":"ana@example.org","userRole":"ADMIN"}`))
	}))
	svc.Cache.Upsert("c-old", &model.Conversation{ID: "c-old"})

	sess, err := svc.Auth.SignIn(context.Background(), " ana@example.org ", "secret")
	require.NoError(t, err)

	assert.Equal(t, "new-token", sess.AccessToken)
	assert.True(t, sess.IsAdmin())
	assert.Equal(t, sess, svc.Session.Get())
	assert.False(t, svc.Cache.Has("c-old"))
}

func TestSignIn_BadCredentialsKeepSession(t *testing.T) {
	svc, _ := newTestServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid credentials"}`))
	}))

	_, err := svc.Auth.SignIn(context.Background(), "ana@example.org", "wrong")
	assert.ErrorIs(t, err, transport.ErrUnauthenticated)
	assert.Equal(t, "Invalid credentials", transport.Message(err))
	assert.Equal(t, "tok", svc.Session.Token())
}

func TestSignUpAndVerify(t *testing.T) {
	svc, _ := newTestServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/signup":
			w.Write([]byte(`{"message":"Check your email"}`))
		case "/auth/verify":
			assert.Equal(t, "abc+def", r.URL.Query().Get("token"))
			w.Write([]byte(`{"message":"Email verified"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	msg, err := svc.Auth.SignUp(context.Background(), model.SignUpRequest{Name: "Ana", Email: "ana@example.org", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "Check your email", msg)

	msg, err = svc.Auth.Verify(context.Background(), "abc+def")
	require.NoError(t, err)
	assert.Equal(t, "Email verified", msg)

	_, err = svc.Auth.Verify(context.Background(), " ")
	assert.Error(t, err)
}

func TestSignOut_ClearsEverything(t *testing.T) {
	svc, _ := newTestServices(t, http.NotFoundHandler())
	svc.Cache.Upsert("c1", &model.Conversation{ID: "c1"})
	svc.Cache.SetSummaries([]model.ConversationSummary{{ID: "c1"}})

	require.NoError(t, svc.Auth.SignOut())
	assert.False(t, svc.Session.Get().Authenticated())
	assert.False(t, svc.Cache.Has("c1"))
	assert.Empty(t, svc.Cache.Summaries())
}

func TestUser_GetAndUpdateMirrorIntoSession(t *testing.T) {
	svc, _ := newTestServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"id":"u1","name":"Ana","email":"ana@example.org","role":"USER"}`))
		case http.MethodPatch:
			var req model.UpdateUserRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotNil(t, req.Name)
			assert.Nil(t, req.Email)
			w.Write([]byte(`{"id":"u1","name":"` + *req.Name + `","email":"ana@example.org","role":"USER"}`))
		}
	}))

	user, err := svc.Users.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, "ana@example.org", svc.Session.Get().Email)

	name := "Ana Lima"
	user, err = svc.Users.UpdateMe(context.Background(), model.UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", user.Name)
	assert.Equal(t, "Ana Lima", svc.Session.Get().Name)
	assert.Equal(t, "Ana Lima", svc.Users.Current().Name)

	_, err = svc.Users.UpdateMe(context.Background(), model.UpdateUserRequest{})
	assert.Error(t, err)

	require.NoError(t, svc.Auth.SignOut())
	assert.Nil(t, svc.Users.Current())
}

func TestUser_UploadAvatarMultipart(t *testing.T) {
	svc, _ := newTestServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/user/profile", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "Ana", r.FormValue("name"))
		file, header, err := r.FormFile("avatar")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "me.png", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "png-bytes", string(data))

		w.Write([]byte(`{"id":"u1","name":"Ana","email":"ana@example.org","imgUrl":"/uploads/me.png","role":"USER"}`))
	}))

	user, err := svc.Users.UploadAvatar(context.Background(), "/tmp/me.png", strings.NewReader("png-bytes"), map[string]string{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/me.png", user.ImgURL)
}

func TestMedicalEntries(t *testing.T) {
	svc, _ := newTestServices(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/medicalentry":
			w.Write([]byte(`[{"id":"e1","title":"Asthma","published":true}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/medicalentry/scrape":
			var req model.ScrapeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			w.Write([]byte(`{"title":"Asthma","content":"...","sourceUrl":"` + req.URL + `","message":"Scraped"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/medicalentry/e1":
			var raw map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
			assert.Equal(t, map[string]interface{}{"published": false}, raw)
			w.Write([]byte(`{"id":"e1","title":"Asthma","published":false}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/medicalentry/e1":
			w.Write([]byte(`{"message":"deleted"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	ctx := context.Background()

	entries, err := svc.MedicalEntry.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	scraped, err := svc.MedicalEntry.Scrape(ctx, "https://example.org/asthma")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/asthma", scraped.SourceURL)

	_, err = svc.MedicalEntry.Scrape(ctx, "not a url")
	assert.Error(t, err)

	entry, err := svc.MedicalEntry.SetPublished(ctx, "e1", false)
	require.NoError(t, err)
	assert.False(t, entry.Published)

	require.NoError(t, svc.MedicalEntry.Delete(ctx, "e1"))

	_, err = svc.MedicalEntry.Get(ctx, "missing")
	assert.ErrorIs(t, err, transport.ErrNotFound)

	_, err = svc.MedicalEntry.Create(ctx, model.MedicalEntryInput{Title: "x"})
	assert.Error(t, err)
}
