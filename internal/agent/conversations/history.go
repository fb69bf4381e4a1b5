package conversations

import (
	"github.com/cloudwego/eino/schema"
)

// TrimHistory keeps the last maxPairs user/assistant exchanges. The result
// always starts at a user message so a pair is never split.
func TrimHistory(messages []*schema.Message, maxPairs int) []*schema.Message {
	if maxPairs <= 0 {
		return nil
	}
	limit := maxPairs * 2
	start := 0
	if len(messages) > limit {
		start = len(messages) - limit
	}
	for start < len(messages) && (messages[start] == nil || messages[start].Role != schema.User) {
		start++
	}
	result := make([]*schema.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		if msg == nil {
			continue
		}
		result = append(result, msg)
	}
	return result
}

// BuildTurnMessages prepends the policy's system prompt to stored history and
// appends the current utterance.
func BuildTurnMessages(systemPrompt string, history []*schema.Message, utterance string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(utterance))
	return messages
}
