package cache

import (
	"vita-chat/internal/model"
)

// SetSummaries replaces the history list.
func (c *Cache) SetSummaries(list []model.ConversationSummary) {
	c.mu.Lock()
	c.summaries = append([]model.ConversationSummary(nil), list...)
	c.mu.Unlock()

	c.notify("")
}

func (c *Cache) Summaries() []model.ConversationSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.ConversationSummary(nil), c.summaries...)
}

// PrependSummary puts s at the top of the list, replacing any row with its id.
func (c *Cache) PrependSummary(s model.ConversationSummary) {
	c.mu.Lock()
	rest := removeSummary(c.summaries, s.ID)
	c.summaries = append([]model.ConversationSummary{s}, rest...)
	c.mu.Unlock()

	c.notify("")
}

// UpdateSummary applies fn to the row with id, if present.
func (c *Cache) UpdateSummary(id string, fn func(*model.ConversationSummary)) {
	c.mu.Lock()
	found := false
	for i := range c.summaries {
		if c.summaries[i].ID == id {
			fn(&c.summaries[i])
			found = true
			break
		}
	}
	c.mu.Unlock()

	if found {
		c.notify("")
	}
}

func (c *Cache) RemoveSummary(id string) {
	c.mu.Lock()
	c.summaries = removeSummary(c.summaries, id)
	c.mu.Unlock()

	c.notify("")
}

func removeSummary(list []model.ConversationSummary, id string) []model.ConversationSummary {
	out := make([]model.ConversationSummary, 0, len(list))
	for _, s := range list {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}
