package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"vita-chat/internal/cache"
	"vita-chat/internal/config"
	"vita-chat/internal/model"
	"vita-chat/internal/stream"
	"vita-chat/internal/transport"
	"vita-chat/pkg/logger"
)

var ErrEmptyMessage = errors.New("message is empty")

// SendOptions are the caller hooks of one send.
type SendOptions struct {
	// OnNavigate fires once with the id of a conversation created by this
	// send, i.e. only when no conversation id was supplied.
	OnNavigate func(conversationID string)
}

// SendResult is the cached state of the conversation after a send.
type SendResult struct {
	ConversationID string
	Messages       []model.Message
}

type ChatService struct {
	client *transport.Client
	cache  *cache.Cache
	stream config.StreamConfig
	gates  *keyedGate

	newTempID func() string
	now       func() time.Time
}

func NewChatService(client *transport.Client, c *cache.Cache, streamCfg config.StreamConfig) *ChatService {
	return &ChatService{
		client:    client,
		cache:     c,
		stream:    streamCfg,
		gates:     newKeyedGate(),
		newTempID: func() string { return "temp-" + uuid.NewString() },
		now:       time.Now,
	}
}

// SendMessage posts text to conversationID (empty starts a new one) and
// applies the reply to the cache, either a single JSON document or an event
// stream. Sends to one conversation run one at a time.
func (s *ChatService) SendMessage(ctx context.Context, text, conversationID string, isNew bool, opts SendOptions) (*SendResult, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return nil, ErrEmptyMessage
	}

	if conversationID != "" {
		release, err := s.gates.Acquire(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	body, err := transport.JSONBody(model.ChatRequest{
		Question:          question,
		ConversationID:    conversationID,
		IsNewConversation: isNew,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(ctx, transport.Request{
		Method:      http.MethodPost,
		Path:        "/conversation/chat",
		Body:        body,
		ContentType: "application/json",
		Auth:        true,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	var id string
	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		id, err = s.applyStream(ctx, resp.Body, conversationID, opts)
	} else {
		id, err = s.applyJSON(resp.Body, conversationID, opts)
	}
	if id != "" {
		s.syncSummary(id)
	}
	if err != nil {
		return nil, err
	}

	result := &SendResult{ConversationID: id}
	if conv, ok := s.cache.Get(id); ok {
		result.Messages = conv.Messages
	}
	return result, nil
}

func (s *ChatService) applyJSON(body io.ReadCloser, requestedID string, opts SendOptions) (string, error) {
	defer body.Close()

	var data model.ChatResponse
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		return "", &transport.Error{
			Endpoint: "POST /conversation/chat",
			Message:  "failed to decode response: " + err.Error(),
			Err:      transport.ErrTransport,
		}
	}

	id := data.Conversation.ID
	if id == "" {
		return "", &transport.Error{
			Endpoint: "POST /conversation/chat",
			Message:  "response has no conversation id",
			Err:      transport.ErrTransport,
		}
	}

	// earlier copies win, so locally known content is kept
	conv := data.Conversation
	conv.Messages = nil
	if existing, ok := s.cache.Get(id); ok {
		conv.Messages = append(conv.Messages, existing.Messages...)
	}
	conv.Messages = append(conv.Messages, data.Messages...)
	s.cache.Upsert(id, &conv)

	if requestedID == "" && opts.OnNavigate != nil {
		opts.OnNavigate(id)
	}
	return id, nil
}

// streamState tracks one send's progress through the event stream.
type streamState struct {
	requestedID    string
	conversationID string
	tempID         string
	content        strings.Builder
	navigated      bool
	finalized      bool
	ended          bool
}

func (s *ChatService) applyStream(ctx context.Context, body io.ReadCloser, requestedID string, opts SendOptions) (string, error) {
	idle := stream.NewIdleCloser(body, s.stream.IdleTimeout)
	defer idle.Close()

	stop := context.AfterFunc(ctx, func() { _ = idle.Close() })
	defer stop()

	reader := stream.NewReader(idle, s.stream.MaxFrameBytes)
	st := &streamState{requestedID: requestedID, conversationID: requestedID}

	for {
		ev, err := reader.Next()
		if err != nil {
			if st.conversationID != "" {
				s.cache.EndStream(st.conversationID)
			}
			return st.conversationID, s.streamError(ctx, st, err)
		}

		s.applyEvent(st, ev, opts)
		if st.ended {
			return st.conversationID, nil
		}
	}
}

func (s *ChatService) streamError(ctx context.Context, st *streamState, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, stream.ErrStreamIdle):
		logger.WithFields(logger.Fields{
			"conversation": st.conversationID,
			"timeout":      s.stream.IdleTimeout,
		}).Warn("chat stream went idle")
		return stream.ErrStreamIdle
	case errors.Is(err, io.EOF):
		if st.finalized {
			return nil
		}
		return stream.ErrStreamClosed
	default:
		return fmt.Errorf("%w: %v", stream.ErrStreamClosed, err)
	}
}

func (s *ChatService) applyEvent(st *streamState, ev model.StreamEvent, opts SendOptions) {
	switch ev.Type {
	case model.EventMetadata:
		s.applyMetadata(st, ev, opts)

	case model.EventContent:
		if st.tempID == "" {
			logger.Warn("content event before metadata, ignored")
			return
		}
		st.content.WriteString(ev.Text)
		s.cache.ReplaceMessageContent(st.conversationID, st.tempID, st.content.String())

	case model.EventBotMessage:
		if st.tempID == "" || ev.BotMessage == nil {
			logger.Warn("bot_message event without placeholder or payload, ignored")
			return
		}
		s.cache.FinalizeMessage(st.conversationID, st.tempID, *ev.BotMessage)
		s.cache.EndStream(st.conversationID)
		st.finalized = true

	case model.EventEnd:
		if st.conversationID != "" {
			s.cache.EndStream(st.conversationID)
		}
		st.ended = true

	default:
		logger.Debugf("ignoring stream event %q", ev.Type)
	}
}

func (s *ChatService) applyMetadata(st *streamState, ev model.StreamEvent, opts SendOptions) {
	if ev.Conversation == nil || ev.Conversation.ID == "" {
		logger.Warn("metadata event without conversation, ignored")
		return
	}
	conv := ev.Conversation
	id := conv.ID
	st.conversationID = id

	if s.cache.Has(id) {
		title := conv.Title
		patch := model.ConversationPatch{Title: &title}
		if !conv.UpdatedAt.IsZero() {
			updated := conv.UpdatedAt
			patch.UpdatedAt = &updated
		}
		s.cache.PatchMeta(id, patch)
	} else {
		header := *conv
		header.Messages = nil
		s.cache.Upsert(id, &header)
	}

	if ev.UserMessage != nil {
		s.cache.AppendMessage(id, *ev.UserMessage)
	}

	if st.requestedID == "" && !st.navigated && opts.OnNavigate != nil {
		opts.OnNavigate(id)
	}
	st.navigated = true

	if st.tempID != "" {
		return
	}
	st.tempID = s.newTempID()
	s.cache.BeginStream(id, model.NewPlaceholder(st.tempID, s.now()))
}

// syncSummary refreshes the history row of id from the cached conversation.
func (s *ChatService) syncSummary(id string) {
	conv, ok := s.cache.Get(id)
	if !ok {
		return
	}
	summary := conv.Summary()

	for _, row := range s.cache.Summaries() {
		if row.ID == id {
			s.cache.UpdateSummary(id, func(row *model.ConversationSummary) {
				row.Title = summary.Title
				row.UpdatedAt = summary.UpdatedAt
				row.Count = summary.Count
			})
			return
		}
	}
	s.cache.PrependSummary(summary)
}
