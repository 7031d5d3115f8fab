package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vita-chat/internal/config"
	"vita-chat/internal/model"
)

func TestNew_Providers(t *testing.T) {
	r, err := New(config.ResponderConfig{Provider: "echo"})
	require.NoError(t, err)
	assert.IsType(t, &Echo{}, r)

	_, err = New(config.ResponderConfig{Provider: "openai"})
	assert.Error(t, err, "openai needs a key")

	_, err = New(config.ResponderConfig{Provider: "llama"})
	assert.Error(t, err)
}

func TestEcho_ChunksJoinToAnswer(t *testing.T) {
	s, err := NewEcho(0).Stream(context.Background(), Request{
		Question: "what is asthma?",
		Context:  []model.MedicalEntry{{Title: "Asthma"}, {Title: "Allergen"}},
	})
	require.NoError(t, err)

	text, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "You asked: what is asthma?\n\nRelated entries: Asthma, Allergen.", text)
}

func TestEcho_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, err := NewEcho(time.Hour).Stream(ctx, Request{Question: "one two three"})
	require.NoError(t, err)

	first, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "You ", first)

	cancel()
	_, err = s.Recv()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitKeepSpace(t *testing.T) {
	assert.Equal(t, []string{"a ", "b\n\n", "c"}, splitKeepSpace("a b\n\nc"))
	assert.Nil(t, splitKeepSpace(""))
}

func TestOpenAI_StreamsDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		require.Len(t, body.Messages, 3)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Contains(t, body.Messages[0].Content, "## Asthma")
		assert.Equal(t, "assistant", body.Messages[1].Role)
		assert.Equal(t, "and now?", body.Messages[2].Content)

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Use your "}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"inhaler."}}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	r, err := NewOpenAI(config.ResponderConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Model: "gpt-test"})
	require.NoError(t, err)

	s, err := r.Stream(context.Background(), Request{
		Question: "and now?",
		History: []model.Message{
			{ID: "b0", Sender: model.SenderBot, Content: "Hi, how can I help?"},
			{ID: "p", Sender: model.SenderBot},
		},
		Context: []model.MedicalEntry{{Title: "Asthma", Content: "A chronic condition."}},
	})
	require.NoError(t, err)

	text, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "Use your inhaler.", text)
}
