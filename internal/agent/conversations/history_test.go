package conversations

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairs(n int) []*schema.Message {
	var out []*schema.Message
	for i := 0; i < n; i++ {
		out = append(out, schema.UserMessage("q"), schema.AssistantMessage("a", nil))
	}
	return out
}

func TestTrimHistory(t *testing.T) {
	assert.Len(t, TrimHistory(pairs(5), 3), 6)
	assert.Len(t, TrimHistory(pairs(2), 3), 4)
	assert.Nil(t, TrimHistory(pairs(2), 0))

	// a dangling assistant message at the cut point is dropped
	msgs := append([]*schema.Message{schema.AssistantMessage("orphan", nil)}, pairs(1)...)
	got := TrimHistory(msgs, 3)
	require.Len(t, got, 2)
	assert.Equal(t, schema.User, got[0].Role)
}

func TestBuildTurnMessages(t *testing.T) {
	msgs := BuildTurnMessages("sys", pairs(1), "hola")
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "hola", msgs[3].Content)
}
