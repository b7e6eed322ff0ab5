package agent

import (
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

// ConversationStore holds the ordered turns of one chat session
type ConversationStore interface {
	// Append adds a user or assistant turn
	Append(turn *schema.Message) error
	// History returns a copy of all turns, system turn first
	History() []*schema.Message
	// Reset drops everything but the system turn
	Reset()
}

// Conversation is the in-memory ConversationStore. The system instruction
// is fixed at construction and is always the first turn.
type Conversation struct {
	mu    sync.RWMutex
	turns []*schema.Message
}

var _ ConversationStore = (*Conversation)(nil)

// NewConversation starts a conversation with the given system instruction
func NewConversation(systemInstruction string) *Conversation {
	return &Conversation{
		turns: []*schema.Message{schema.SystemMessage(systemInstruction)},
	}
}

// Append adds a user or assistant turn. System turns can only be set at
// construction; tool observations never enter the conversation.
func (c *Conversation) Append(turn *schema.Message) error {
	if turn == nil {
		return llm.InvalidInput("turn cannot be nil")
	}
	switch turn.Role {
	case schema.User, schema.Assistant:
	case schema.System:
		return llm.InvalidInput("system turn can only be set when the conversation starts")
	default:
		return llm.InvalidInput("unsupported turn role %q", turn.Role)
	}

	cp := *turn
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, &cp)
	return nil
}

// History returns a copy of the turns; callers may modify it freely
func (c *Conversation) History() []*schema.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*schema.Message, len(c.turns))
	for i, m := range c.turns {
		cp := *m
		out[i] = &cp
	}
	return out
}

// Len returns the number of turns, system turn included
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Reset keeps only the system turn
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = c.turns[:1:1]
}
