package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vita-chat/internal/model"
	"vita-chat/internal/responder"
	"vita-chat/internal/storage"
	"vita-chat/internal/utils"
	"vita-chat/pkg/logger"
)

const (
	defaultTitle  = "New Conversation"
	titleMaxRunes = 30
)

type ChatHandler struct {
	storage   storage.Storage
	responder responder.Responder
	heartbeat time.Duration
}

func NewChatHandler(store storage.Storage, r responder.Responder, heartbeat time.Duration) *ChatHandler {
	return &ChatHandler{
		storage:   store,
		responder: r,
		heartbeat: heartbeat,
	}
}

// Chat answers a question, creating the conversation when none is given.
// Clients that accept text/event-stream get the reply as it is generated;
// others get one JSON document at the end.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondError(c, http.StatusBadRequest, "question should not be empty")
		return
	}
	user := currentUser(c)

	conv, err := h.openConversation(user.ID, req.ConversationID, question)
	if err != nil {
		respondStorageError(c, err)
		return
	}
	history := conv.Messages

	userMsg := model.Message{
		ID:        uuid.NewString(),
		Sender:    model.SenderUser,
		Content:   question,
		CreatedAt: time.Now(),
	}
	if err := h.storage.AddMessage(user.ID, conv.ID, &userMsg); err != nil {
		respondStorageError(c, err)
		return
	}
	conv.Touch(userMsg.CreatedAt)
	conv.Messages = nil

	rr := responder.Request{
		Question: question,
		History:  history,
		Context:  h.relatedEntries(question),
	}

	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		h.streamReply(c, user.ID, conv, userMsg, rr)
		return
	}
	h.jsonReply(c, user.ID, conv, userMsg, rr)
}

func (h *ChatHandler) openConversation(ownerID, id, question string) (*model.Conversation, error) {
	if id != "" {
		return h.storage.GetConversation(ownerID, id)
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		Title:     truncateString(question, titleMaxRunes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.storage.CreateConversation(ownerID, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// relatedEntries picks the published entries whose title the question
// mentions.
func (h *ChatHandler) relatedEntries(question string) []model.MedicalEntry {
	entries, err := h.storage.ListEntries()
	if err != nil {
		logger.Warnf("failed to list medical entries: %v", err)
		return nil
	}
	q := strings.ToLower(question)
	var out []model.MedicalEntry
	for _, e := range entries {
		if e.Published && e.Title != "" && strings.Contains(q, strings.ToLower(e.Title)) {
			out = append(out, *e)
		}
	}
	return out
}

func sourceURLs(entries []model.MedicalEntry) []string {
	var urls []string
	for _, e := range entries {
		if e.SourceURL != "" {
			urls = append(urls, e.SourceURL)
		}
	}
	return urls
}

func (h *ChatHandler) saveBotMessage(ownerID, conversationID, content string, sources []string) (*model.Message, error) {
	msg := &model.Message{
		ID:         uuid.NewString(),
		Sender:     model.SenderBot,
		Content:    content,
		CreatedAt:  time.Now(),
		SourceURLs: sources,
	}
	if err := h.storage.AddMessage(ownerID, conversationID, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (h *ChatHandler) jsonReply(c *gin.Context, ownerID string, conv *model.Conversation, userMsg model.Message, rr responder.Request) {
	stream, err := h.responder.Stream(c.Request.Context(), rr)
	if err != nil {
		logger.Errorf("responder failed: %v", err)
		respondError(c, http.StatusBadGateway, "Assistant is unavailable")
		return
	}
	answer, err := responder.Collect(stream)
	if err != nil {
		logger.Errorf("responder stream failed: %v", err)
		respondError(c, http.StatusBadGateway, "Assistant is unavailable")
		return
	}

	bot, err := h.saveBotMessage(ownerID, conv.ID, answer, sourceURLs(rr.Context))
	if err != nil {
		respondStorageError(c, err)
		return
	}
	conv.Touch(bot.CreatedAt)

	c.JSON(http.StatusOK, model.ChatResponse{
		Conversation: *conv,
		Messages:     []model.Message{userMsg, *bot},
	})
}

func (h *ChatHandler) streamReply(c *gin.Context, ownerID string, conv *model.Conversation, userMsg model.Message, rr responder.Request) {
	sse := utils.NewSSEWriter(c.Writer)
	c.Status(http.StatusOK)

	if err := sse.WriteJSON(model.StreamEvent{Type: model.EventMetadata, Conversation: conv, UserMessage: &userMsg}); err != nil {
		logger.Warnf("failed to write metadata: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	heartbeatDone := make(chan struct{})
	if h.heartbeat > 0 {
		go func() {
			defer close(heartbeatDone)
			h.keepAlive(ctx, sse)
		}()
	} else {
		close(heartbeatDone)
	}
	// the writer must be idle before the handler returns
	defer func() {
		cancel()
		<-heartbeatDone
	}()

	stream, err := h.responder.Stream(ctx, rr)
	if err != nil {
		// the client treats a stream without a terminal event as failed
		logger.Errorf("responder failed: %v", err)
		return
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		piece, err := stream.Recv()
		if err != nil {
			if !isEOF(err) {
				logger.Errorf("responder stream failed after %d bytes: %v", answer.Len(), err)
				return
			}
			break
		}
		answer.WriteString(piece)
		if err := sse.WriteJSON(model.StreamEvent{Type: model.EventContent, Text: piece}); err != nil {
			logger.Warnf("client went away: %v", err)
			return
		}
	}

	bot, err := h.saveBotMessage(ownerID, conv.ID, answer.String(), sourceURLs(rr.Context))
	if err != nil {
		logger.Errorf("failed to save bot message: %v", err)
		return
	}
	if err := sse.WriteJSON(model.StreamEvent{Type: model.EventBotMessage, BotMessage: bot}); err != nil {
		logger.Warnf("failed to write bot message: %v", err)
		return
	}
	_ = sse.WriteJSON(model.StreamEvent{Type: model.EventEnd})
}

// keepAlive sends heartbeat frames until ctx is done so idle proxies and
// client watchdogs see traffic while the model is thinking.
func (h *ChatHandler) keepAlive(ctx context.Context, sse *utils.SSEWriter) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := sse.WriteJSON(gin.H{"type": "heartbeat", "timestamp": time.Now().Unix()}); err != nil {
				logger.Warnf("heartbeat failed: %v", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	convs, err := h.storage.ListConversations(currentUser(c).ID)
	if err != nil {
		respondStorageError(c, err)
		return
	}
	out := make([]model.ConversationSummary, len(convs))
	for i, conv := range convs {
		out[i] = conv.Summary()
	}
	c.JSON(http.StatusOK, out)
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req model.CreateConversationRequest
	// an empty body is allowed and gets the default title
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Title = defaultTitle
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = defaultTitle
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.storage.CreateConversation(currentUser(c).ID, conv); err != nil {
		respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv.Summary())
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.storage.GetConversation(currentUser(c).ID, c.Param("id"))
	if err != nil {
		respondStorageError(c, err)
		return
	}
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) RenameConversation(c *gin.Context) {
	var req model.RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	owner := currentUser(c).ID

	conv, err := h.storage.GetConversation(owner, c.Param("id"))
	if err != nil {
		respondStorageError(c, err)
		return
	}
	conv.Title = strings.TrimSpace(req.Title)
	conv.Touch(time.Now())
	if err := h.storage.UpdateConversation(owner, conv); err != nil {
		respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv.Summary())
}

func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	if err := h.storage.DeleteConversation(currentUser(c).ID, c.Param("id")); err != nil {
		respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Conversation deleted successfully"})
}

func truncateString(str string, maxLen int) string {
	runes := []rune(str)
	if len(runes) <= maxLen {
		return str
	}
	return string(runes[:maxLen]) + "..."
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
