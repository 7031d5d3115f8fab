package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"vita-chat/internal/config"
	"vita-chat/internal/session"
)

func newClient(t *testing.T, store *session.Store, urls ...string) *Client {
	t.Helper()
	api := config.APIConfig{BaseURL: urls[0], FallbackURLs: urls[1:], Timeout: 5 * time.Second}
	c, err := New(api, config.RateLimitConfig{}, store)
	require.NoError(t, err)
	return c
}

func signedIn(t *testing.T, token string) *session.Store {
	t.Helper()
	s := session.NewMemoryStore()
	require.NoError(t, s.Set(session.Session{AccessToken: token}))
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.APIConfig{}, config.RateLimitConfig{}, session.NewMemoryStore())
	assert.Error(t, err)

	_, err = New(config.APIConfig{BaseURL: "not a url"}, config.RateLimitConfig{}, session.NewMemoryStore())
	assert.Error(t, err)
}

func TestJSON_SendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/conversation/c1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","title":"T"}`))
	}))
	defer server.Close()

	c := newClient(t, signedIn(t, "tok"), server.URL+"/")

	var out struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, c.JSON(context.Background(), http.MethodGet, "/conversation/c1", nil, &out))
	assert.Equal(t, "c1", out.ID)
}

func TestJSON_NoTokenSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	c := newClient(t, session.NewMemoryStore(), server.URL)

	err := c.JSON(context.Background(), http.MethodGet, "/conversation", nil, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, int32(0), hits.Load())
}

func TestPublicJSON_OmitsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"accessToken":"tok"}`))
	}))
	defer server.Close()

	c := newClient(t, signedIn(t, "old"), server.URL)

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, c.PublicJSON(context.Background(), http.MethodPost, "/auth/signin", map[string]string{"email": "a"}, &out))
	assert.Equal(t, "tok", out.AccessToken)
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    error
		message string
	}{
		{"not found", 404, `{"message":"Conversation not found","statusCode":404}`, ErrNotFound, "Conversation not found"},
		{"validation list", 400, `{"message":["email must be an email","password too short"]}`, ErrTransport, "email must be an email; password too short"},
		{"plain text", 500, "upstream exploded", ErrTransport, "upstream exploded"},
		{"empty body", 502, "", ErrTransport, "Bad Gateway"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			c := newClient(t, signedIn(t, "tok"), server.URL)
			err := c.JSON(context.Background(), http.MethodGet, "/x", nil, nil)

			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.message, Message(err))

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
		})
	}
}

func TestUnauthorized_ClearsSessionOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthorized"}`))
	}))
	defer server.Close()

	store := signedIn(t, "tok")
	var cleared atomic.Int32
	store.OnCleared(func() { cleared.Add(1) })

	c := newClient(t, store, server.URL)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.JSON(context.Background(), http.MethodGet, "/user/me", nil, nil)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), cleared.Load())
	assert.Equal(t, session.Session{}, store.Get())
}

func TestUnauthorized_PublicCallKeepsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid credentials"}`))
	}))
	defer server.Close()

	store := signedIn(t, "tok")
	c := newClient(t, store, server.URL)

	err := c.PublicJSON(context.Background(), http.MethodPost, "/auth/signin", map[string]string{}, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "Invalid credentials", Message(err))
	assert.Equal(t, "tok", store.Token())
}

func TestFallback_OnUnreachableBase(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	var hits atomic.Int32
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer live.Close()

	c := newClient(t, signedIn(t, "tok"), deadURL, live.URL)

	var out map[string]bool
	require.NoError(t, c.JSON(context.Background(), http.MethodPost, "/medicalentry/scrape", map[string]string{"url": "https://x"}, &out))
	assert.True(t, out["ok"])
	assert.Equal(t, int32(1), hits.Load())
}

func TestFallback_NotUsedForHTTPErrors(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	var hits atomic.Int32
	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer secondary.Close()

	c := newClient(t, signedIn(t, "tok"), primary.URL, secondary.URL)

	err := c.JSON(context.Background(), http.MethodGet, "/medicalentry", nil, nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, int32(0), hits.Load())
}

func TestAllBasesUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	c := newClient(t, signedIn(t, "tok"), deadURL)
	err := c.JSON(context.Background(), http.MethodGet, "/conversation", nil, nil)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestLimiter_RespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := signedIn(t, "tok")
	api := config.APIConfig{BaseURL: server.URL, Timeout: time.Second}
	c, err := New(api, config.RateLimitConfig{}, store, WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))
	require.NoError(t, err)

	require.NoError(t, c.JSON(context.Background(), http.MethodGet, "/a", nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = c.JSON(ctx, http.MethodGet, "/b", nil, nil)
	assert.ErrorIs(t, err, ErrTransport)
}
