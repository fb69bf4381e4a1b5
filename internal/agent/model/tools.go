package model

// PendingToolCall is a tool invocation requested during one loop iteration.
// It never outlives the turn.
type PendingToolCall struct {
	ID           string
	Name         string
	Arguments    map[string]any
	RawArguments string
	// Inline is set when the call was parsed out of a text reply.
	Inline bool
}

// TurnOutput is the session boundary output.
type TurnOutput struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}
