// Package cache holds the client-side conversation state: conversations by
// id, their loading/error/streaming flags and the history summary list.
//
// Every operation is total. Missing keys are a no-op (or a defensive insert
// for FinalizeMessage) and nothing returns an error.
package cache

import (
	"sync"

	"vita-chat/internal/model"
)

// ChangeFunc is called after a mutation touching conversationID. An empty id
// means the summary list or the whole cache changed.
type ChangeFunc func(conversationID string)

type Cache struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	loading       map[string]bool
	errors        map[string]string
	// streaming maps a conversation to the temp id of its in-flight message.
	streaming map[string]string
	summaries []model.ConversationSummary

	// version counts removals; removedAt and clearedAt record the version at
	// which an id, or the whole cache, was dropped.
	version   uint64
	removedAt map[string]uint64
	clearedAt uint64

	subMu       sync.RWMutex
	subscribers map[int]ChangeFunc
	nextSub     int
}

func New() *Cache {
	return &Cache{
		conversations: make(map[string]*model.Conversation),
		loading:       make(map[string]bool),
		errors:        make(map[string]string),
		streaming:     make(map[string]string),
		removedAt:     make(map[string]uint64),
		subscribers:   make(map[int]ChangeFunc),
	}
}

// Version returns the current removal version. Pass it to UpsertSince to
// store a copy that was loaded while Remove or Clear may have run.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Subscribe registers fn for change notifications and returns its cancel func.
// fn runs synchronously after the store lock is released.
func (c *Cache) Subscribe(fn ChangeFunc) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

func (c *Cache) notify(conversationID string) {
	c.subMu.RLock()
	fns := make([]ChangeFunc, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		fn(conversationID)
	}
}

// Get returns a copy of the conversation, or false if it is not cached.
func (c *Cache) Get(id string) (*model.Conversation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conv, ok := c.conversations[id]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

func (c *Cache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.conversations[id]
	return ok
}

// Upsert replaces or inserts the conversation wholesale and clears its error.
func (c *Cache) Upsert(id string, conv *model.Conversation) {
	c.upsert(id, conv, nil)
}

// UpsertSince is Upsert for a copy loaded at version. It stores nothing and
// returns false if id was removed, or the cache cleared, after version.
func (c *Cache) UpsertSince(id string, version uint64, conv *model.Conversation) bool {
	return c.upsert(id, conv, &version)
}

func (c *Cache) upsert(id string, conv *model.Conversation, since *uint64) bool {
	if conv == nil {
		return false
	}
	stored := conv.Clone()
	stored.ID = id
	stored.Messages = dedupe(stored.Messages)
	for _, msg := range stored.Messages {
		stored.Touch(msg.LatestTime())
	}

	c.mu.Lock()
	if since != nil && (c.removedAt[id] > *since || c.clearedAt > *since) {
		c.mu.Unlock()
		return false
	}
	// keep the in-flight placeholder if the new copy predates it
	if tempID, ok := c.streaming[id]; ok && stored.IndexOf(tempID) < 0 {
		if prev, ok := c.conversations[id]; ok {
			if idx := prev.IndexOf(tempID); idx >= 0 {
				stored.Messages = append(stored.Messages, prev.Messages[idx])
			}
		}
	}
	c.conversations[id] = stored
	delete(c.errors, id)
	c.mu.Unlock()

	c.notify(id)
	return true
}

// PatchMeta merges header fields into an existing conversation.
func (c *Cache) PatchMeta(id string, patch model.ConversationPatch) {
	c.mu.Lock()
	conv, ok := c.conversations[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	if patch.Title != nil {
		conv.Title = *patch.Title
	}
	if patch.UpdatedAt != nil {
		conv.Touch(*patch.UpdatedAt)
	}
	c.mu.Unlock()

	c.notify(id)
}

// AppendMessage adds msg unless a message with the same id is already there.
func (c *Cache) AppendMessage(id string, msg model.Message) {
	c.mu.Lock()
	conv, ok := c.conversations[id]
	if !ok || conv.IndexOf(msg.ID) >= 0 {
		c.mu.Unlock()
		return
	}
	conv.Messages = append(conv.Messages, msg)
	conv.Touch(msg.LatestTime())
	c.mu.Unlock()

	c.notify(id)
}

// ReplaceMessageContent swaps the content of an existing message in place.
func (c *Cache) ReplaceMessageContent(id, messageID, content string) {
	c.mu.Lock()
	conv, ok := c.conversations[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	idx := conv.IndexOf(messageID)
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	conv.Messages[idx].Content = content
	c.mu.Unlock()

	c.notify(id)
}

// FinalizeMessage reconciles the placeholder tempID with final, keeping its
// position. If tempID is unknown final is appended instead. Either way the
// final id appears once.
func (c *Cache) FinalizeMessage(id, tempID string, final model.Message) {
	c.mu.Lock()
	conv, ok := c.conversations[id]
	if !ok {
		c.mu.Unlock()
		return
	}

	idx := conv.IndexOf(tempID)
	var confirmed model.Message
	if idx >= 0 {
		confirmed = conv.Messages[idx].Confirm(final)
	} else {
		confirmed = model.Message{}.Confirm(final)
	}

	msgs := make([]model.Message, 0, len(conv.Messages)+1)
	for i, msg := range conv.Messages {
		switch {
		case i == idx:
			msgs = append(msgs, confirmed)
		case msg.ID == confirmed.ID:
			// an earlier copy of the final message would duplicate the id
		default:
			msgs = append(msgs, msg)
		}
	}
	if idx < 0 {
		msgs = append(msgs, confirmed)
	}
	conv.Messages = msgs
	conv.Touch(confirmed.LatestTime())
	if c.streaming[id] == tempID {
		delete(c.streaming, id)
	}
	c.mu.Unlock()

	c.notify(id)
}

// Remove deletes the conversation, its flags and its summary row.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	delete(c.conversations, id)
	delete(c.loading, id)
	delete(c.errors, id)
	delete(c.streaming, id)
	c.summaries = removeSummary(c.summaries, id)
	c.version++
	c.removedAt[id] = c.version
	c.mu.Unlock()

	c.notify(id)
}

// Clear drops everything, used on sign-out.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.conversations = make(map[string]*model.Conversation)
	c.loading = make(map[string]bool)
	c.errors = make(map[string]string)
	c.streaming = make(map[string]string)
	c.summaries = nil
	c.version++
	c.clearedAt = c.version
	c.removedAt = make(map[string]uint64)
	c.mu.Unlock()

	c.notify("")
}

func dedupe(msgs []model.Message) []model.Message {
	seen := make(map[string]struct{}, len(msgs))
	out := msgs[:0]
	for _, msg := range msgs {
		if _, dup := seen[msg.ID]; dup {
			continue
		}
		seen[msg.ID] = struct{}{}
		out = append(out, msg)
	}
	return out
}
