// Package prompts renders system prompts through the eino prompt component so
// that prompt callbacks observe every render.
package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/chative-dialogue/server/internal/agent/config"
	"github.com/chative-dialogue/server/internal/agent/model"
)

//go:embed template/policy_prompt.txt
var policySystemPrompt string

type contextLine struct {
	Name  string
	Value string
}

// RenderPolicySystem renders the policy's instructions plus the injected slot
// values of the current intent.
func RenderPolicySystem(ctx context.Context, policy config.Policy, conv model.ConversationContext, inject []string) (string, error) {
	var lines []contextLine
	for _, name := range inject {
		if v, ok := conv.Slot(name); ok {
			lines = append(lines, contextLine{Name: name, Value: v})
		}
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(policySystemPrompt),
	)
	vars := map[string]any{
		"PolicyPrompt": policy.Prompt,
		"Tools":        policy.Tools,
		"Context":      lines,
		"Referential":  conv.IsReferential && len(lines) > 0,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("policy prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("policy prompt render: empty result")
	}
	return msgs[0].Content, nil
}
