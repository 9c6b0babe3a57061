package analysis

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultConversation is the key used for requests that carry no
// conversation id.
const DefaultConversation = "default"

// Conversation is the continuity state of one client conversation.
type Conversation struct {
	ID              string
	EngineSessionID string // claude --session-id / --resume value
	Continued       bool   // a previous call succeeded; resume it
}

// Conversations is a concurrency-safe store of conversation state keyed by
// conversation id. It lives as long as the process.
type Conversations struct {
	mu    sync.Mutex
	convs map[string]*Conversation
}

// NewConversations returns an empty store.
func NewConversations() *Conversations {
	return &Conversations{convs: make(map[string]*Conversation)}
}

func key(id string) string {
	if id == "" {
		return DefaultConversation
	}
	return id
}

// Get returns a snapshot of the conversation, creating it on first use.
func (c *Conversations) Get(id string) Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.lookup(key(id))
}

func (c *Conversations) lookup(k string) *Conversation {
	conv, ok := c.convs[k]
	if !ok {
		conv = &Conversation{ID: k, EngineSessionID: uuid.NewString()}
		c.convs[k] = conv
	}
	return conv
}

// MarkContinued records a successful call so later calls resume it.
func (c *Conversations) MarkContinued(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookup(key(id)).Continued = true
}

// Abandon gives a conversation that never succeeded a fresh engine session
// id, since the engine may have half-created the old one.
func (c *Conversations) Abandon(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conv := c.lookup(key(id)); !conv.Continued {
		conv.EngineSessionID = uuid.NewString()
	}
}

// Reset forgets a conversation. It reports whether one existed.
func (c *Conversations) Reset(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(id)
	_, ok := c.convs[k]
	delete(c.convs, k)
	return ok
}

// Len returns the number of known conversations.
func (c *Conversations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.convs)
}
