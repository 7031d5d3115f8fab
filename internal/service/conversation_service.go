package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	"vita-chat/internal/cache"
	"vita-chat/internal/model"
	"vita-chat/internal/transport"
	"vita-chat/pkg/logger"
)

const defaultConversationTitle = "New Conversation"

// ConversationService manages conversation history and keeps the cache in
// step with the backend.
type ConversationService struct {
	client  *transport.Client
	cache   *cache.Cache
	fetches singleflight.Group
}

func NewConversationService(client *transport.Client, c *cache.Cache) *ConversationService {
	return &ConversationService{client: client, cache: c}
}

func conversationPath(id string) string {
	return "/conversation/" + url.PathEscape(id)
}

// ListConversations loads the history list into the cache.
func (s *ConversationService) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	var list []model.ConversationSummary
	if err := s.client.JSON(ctx, http.MethodGet, "/conversation", nil, &list); err != nil {
		return nil, err
	}
	s.cache.SetSummaries(list)
	return s.cache.Summaries(), nil
}

func (s *ConversationService) CreateConversation(ctx context.Context, title string) (*model.ConversationSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultConversationTitle
	}

	var created model.ConversationSummary
	if err := s.client.JSON(ctx, http.MethodPost, "/conversation", model.CreateConversationRequest{Title: title}, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, &transport.Error{Endpoint: "POST /conversation", Message: "response has no conversation id", Err: transport.ErrTransport}
	}

	s.cache.Upsert(created.ID, &model.Conversation{
		ID:        created.ID,
		Title:     created.Title,
		CreatedAt: created.CreatedAt,
		UpdatedAt: created.UpdatedAt,
	})
	s.cache.PrependSummary(created)
	return &created, nil
}

// FetchConversation loads one conversation with its messages. Concurrent
// calls for the same id share a single request. The loading and error flags
// of id reflect the call while it runs. A response that arrives after id was
// deleted is dropped.
func (s *ConversationService) FetchConversation(ctx context.Context, id string) (*model.Conversation, error) {
	if id == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	ch := s.fetches.DoChan(id, func() (interface{}, error) {
		version := s.cache.Version()
		s.cache.SetLoading(id, true)
		s.cache.SetError(id, "")
		defer s.cache.SetLoading(id, false)

		var conv model.Conversation
		if err := s.client.JSON(ctx, http.MethodGet, conversationPath(id), nil, &conv); err != nil {
			s.cache.SetError(id, transport.Message(err))
			logger.Debugf("fetch conversation %s: %v", id, err)
			return nil, err
		}
		if !s.cache.UpsertSince(id, version, &conv) {
			logger.Debugf("fetch conversation %s: dropped, removed while loading", id)
		}
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	conv, ok := s.cache.Get(id)
	if !ok {
		return nil, &transport.Error{Endpoint: "GET " + conversationPath(id), Message: "conversation not cached", Err: transport.ErrNotFound}
	}
	return conv, nil
}

func (s *ConversationService) RenameConversation(ctx context.Context, id, title string) (*model.ConversationSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	var updated model.ConversationSummary
	if err := s.client.JSON(ctx, http.MethodPatch, conversationPath(id), model.RenameConversationRequest{Title: title}, &updated); err != nil {
		return nil, err
	}
	if updated.Title == "" {
		updated.Title = title
	}

	patch := model.ConversationPatch{Title: &updated.Title}
	if !updated.UpdatedAt.IsZero() {
		patch.UpdatedAt = &updated.UpdatedAt
	}
	s.cache.PatchMeta(id, patch)
	s.cache.UpdateSummary(id, func(row *model.ConversationSummary) {
		row.Title = updated.Title
		if !updated.UpdatedAt.IsZero() {
			row.UpdatedAt = updated.UpdatedAt
		}
	})
	return &updated, nil
}

// DeleteConversation removes id on the backend, then from the cache. Reads
// issued afterwards never join a fetch that started before the delete.
func (s *ConversationService) DeleteConversation(ctx context.Context, id string) error {
	if err := s.client.JSON(ctx, http.MethodDelete, conversationPath(id), nil, nil); err != nil {
		return err
	}
	s.fetches.Forget(id)
	s.cache.Remove(id)
	return nil
}
