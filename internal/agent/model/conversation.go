package model

import (
	"context"
	"sort"

	"github.com/cloudwego/eino/schema"
)

// Intent is a label from the configured vocabulary.
type Intent string

// IntentUnknown is returned when no configured intent matches.
const IntentUnknown Intent = "unknown"

// IdentitySlot is the slot stored in the typed DNI field.
const IdentitySlot = "dni"

// ConversationContext is the per-conversation dialogue state. It is owned by a
// single conversation and mutated once per utterance.
type ConversationContext struct {
	LastMessage      string            `json:"last_message"`
	Intent           Intent            `json:"intent"`
	IsReferential    bool              `json:"is_referential"`
	RequiresRealData bool              `json:"requires_real_data"`
	DNI              string            `json:"dni,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// Slot returns the value stored for name.
func (c *ConversationContext) Slot(name string) (string, bool) {
	if name == IdentitySlot {
		return c.DNI, c.DNI != ""
	}
	v, ok := c.Extra[name]
	return v, ok && v != ""
}

// SetSlot stores value under name. An empty value deletes the slot.
func (c *ConversationContext) SetSlot(name, value string) {
	if value == "" {
		c.DeleteSlot(name)
		return
	}
	if name == IdentitySlot {
		c.DNI = value
		return
	}
	if c.Extra == nil {
		c.Extra = make(map[string]string)
	}
	c.Extra[name] = value
}

func (c *ConversationContext) DeleteSlot(name string) {
	if name == IdentitySlot {
		c.DNI = ""
		return
	}
	delete(c.Extra, name)
}

// Slots returns every filled slot, including the typed ones.
func (c *ConversationContext) Slots() map[string]string {
	out := make(map[string]string, len(c.Extra)+1)
	for k, v := range c.Extra {
		if v != "" {
			out[k] = v
		}
	}
	if c.DNI != "" {
		out[IdentitySlot] = c.DNI
	}
	return out
}

// SlotNames returns the filled slot names in sorted order.
func (c *ConversationContext) SlotNames() []string {
	slots := c.Slots()
	names := make([]string, 0, len(slots))
	for k := range slots {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (c ConversationContext) Clone() ConversationContext {
	out := c
	out.Extra = nil
	if len(c.Extra) > 0 {
		out.Extra = make(map[string]string, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// SessionState is everything a conversation needs to resume on another worker.
type SessionState struct {
	ConversationID string              `json:"conversation_id"`
	Context        ConversationContext `json:"context"`
	LastPolicy     string              `json:"last_policy,omitempty"`
	History        []*schema.Message   `json:"history,omitempty"`
}

type SessionRepository interface {
	// Load returns the stored state, or (nil, nil) when the session does not exist.
	Load(ctx context.Context, conversationID string) (*SessionState, error)

	// Save stores the state and extends the session lifetime.
	Save(ctx context.Context, state *SessionState) error

	// Delete ends the session.
	Delete(ctx context.Context, conversationID string) error
}
