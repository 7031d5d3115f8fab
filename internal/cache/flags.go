package cache

import (
	"vita-chat/internal/model"
)

func (c *Cache) SetLoading(id string, loading bool) {
	c.mu.Lock()
	if loading {
		c.loading[id] = true
	} else {
		delete(c.loading, id)
	}
	c.mu.Unlock()

	c.notify(id)
}

func (c *Cache) Loading(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading[id]
}

// SetError records a display error for id; an empty message clears it.
func (c *Cache) SetError(id, message string) {
	c.mu.Lock()
	if message == "" {
		delete(c.errors, id)
	} else {
		c.errors[id] = message
	}
	c.mu.Unlock()

	c.notify(id)
}

func (c *Cache) Error(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errors[id]
}

// BeginStream appends placeholder to the conversation and marks it as the
// in-flight message. A still-pending placeholder from an earlier stream is
// dropped so at most one message is in flight. Returns false if the
// conversation is not cached.
//
// Only the placeholder named by the streaming flag is dropped. One left
// pending by a closed or idle stream, whose flag EndStream already cleared,
// stays in the list until the next fetch replaces the messages.
func (c *Cache) BeginStream(id string, placeholder model.Message) bool {
	c.mu.Lock()
	conv, ok := c.conversations[id]
	if !ok {
		c.mu.Unlock()
		return false
	}

	if prev, streaming := c.streaming[id]; streaming && prev != placeholder.ID {
		if idx := conv.IndexOf(prev); idx >= 0 && conv.Messages[idx].Pending() {
			conv.Messages = append(conv.Messages[:idx], conv.Messages[idx+1:]...)
		}
	}
	if conv.IndexOf(placeholder.ID) < 0 {
		conv.Messages = append(conv.Messages, placeholder)
		conv.Touch(placeholder.LatestTime())
	}
	c.streaming[id] = placeholder.ID
	c.mu.Unlock()

	c.notify(id)
	return true
}

// EndStream clears the streaming flag. Safe to call repeatedly.
func (c *Cache) EndStream(id string) {
	c.mu.Lock()
	_, was := c.streaming[id]
	delete(c.streaming, id)
	c.mu.Unlock()

	if was {
		c.notify(id)
	}
}

func (c *Cache) Streaming(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.streaming[id]
	return ok
}

// StreamingMessageID returns the temp id of the in-flight message, if any.
func (c *Cache) StreamingMessageID(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tempID, ok := c.streaming[id]
	return tempID, ok
}
