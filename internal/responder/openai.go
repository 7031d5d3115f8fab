package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"vita-chat/internal/config"
	"vita-chat/internal/model"
	"vita-chat/pkg/logger"
)

const systemPrompt = "You are Vita, a careful health assistant. Answer in plain language, " +
	"say when a question needs a doctor, and prefer the reference material below when it applies."

// OpenAI streams replies from an OpenAI-compatible chat completion API.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(cfg config.ResponderConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("responder api key is required for the openai provider")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

func (m *OpenAI) Stream(ctx context.Context, req Request) (Stream, error) {
	messages := buildMessages(req)
	logger.Debugf("openai responder: model=%s messages=%d", m.model, len(messages))

	stream, err := m.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    m.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start completion: %w", err)
	}
	return &openaiStream{stream: stream}, nil
}

type openaiStream struct {
	stream *openai.ChatCompletionStream
}

// Recv skips deltas without text, such as the role-only first chunk.
func (s *openaiStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
			return resp.Choices[0].Delta.Content, nil
		}
	}
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}

func buildMessages(req Request) []openai.ChatCompletionMessage {
	var system strings.Builder
	system.WriteString(systemPrompt)
	for _, entry := range req.Context {
		fmt.Fprintf(&system, "\n\n## %s\n%s", entry.Title, entry.Content)
	}

	out := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system.String()})
	for _, msg := range req.History {
		role := openai.ChatMessageRoleUser
		if msg.Sender == model.SenderBot {
			role = openai.ChatMessageRoleAssistant
		}
		if msg.Content == "" {
			continue
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Question})
	return out
}
