package orchestrator

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/chative-dialogue/server/internal/agent/model"
	"github.com/chative-dialogue/server/internal/agent/tools"
)

// maxInlineContent bounds how much of a reply is scanned for pseudo calls.
const maxInlineContent = 128 * 1024

// Pseudo tool-call syntaxes some completion services emit as plain text.
var (
	inlineFunctionRe = regexp.MustCompile(`(?s)<function=(\w+)>\s*(\{.*?\})\s*(?:</function>|\[/function\]|$)`)
	inlineTagRe      = regexp.MustCompile(`(?s)<(\w+)>\s*(\{.*?\})\s*</(\w+)>`)
	inlineMustacheRe = regexp.MustCompile(`(?s)\{\{(\w+)\((\{.*?\})\)\}\}`)
)

// parseInlineCalls extracts pseudo tool calls from text. Only names accepted
// by known are returned, in order of appearance per syntax.
func parseInlineCalls(text string, known func(string) bool) []model.PendingToolCall {
	if !strings.ContainsAny(text, "<{") {
		return nil
	}
	if len(text) > maxInlineContent {
		text = text[:maxInlineContent]
	}

	var calls []model.PendingToolCall
	add := func(name, raw string) {
		if !known(name) {
			return
		}
		args, err := tools.DecodeArguments(raw)
		if err != nil {
			return
		}
		calls = append(calls, model.PendingToolCall{
			ID:           "inline_" + uuid.NewString(),
			Name:         name,
			Arguments:    args,
			RawArguments: raw,
			Inline:       true,
		})
	}

	for _, m := range inlineFunctionRe.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
	for _, m := range inlineTagRe.FindAllStringSubmatch(text, -1) {
		if m[1] == m[3] {
			add(m[1], m[2])
		}
	}
	for _, m := range inlineMustacheRe.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
	return calls
}
