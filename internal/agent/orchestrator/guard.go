package orchestrator

import (
	"strings"
	"unicode/utf8"

	"github.com/chative-dialogue/server/internal/agent/config"
	errx "github.com/chative-dialogue/server/internal/core/error"
)

// Guard vets replies that did not come from a tool before they reach the user.
type Guard struct {
	minLength int
	forbidden []string
	messages  config.GuardConfig
}

func NewGuard(cfg config.GuardConfig) *Guard {
	forbidden := make([]string, 0, len(cfg.ForbiddenPhrases))
	for _, p := range cfg.ForbiddenPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			forbidden = append(forbidden, p)
		}
	}
	return &Guard{minLength: cfg.MinLength, forbidden: forbidden, messages: cfg}
}

// Check returns the text to show. When the reply is rejected it returns the
// substitute message and a response-guard error describing why.
func (g *Guard) Check(reply string, requiresRealData, toolRan bool) (string, error) {
	text := strings.TrimSpace(reply)
	switch {
	case text == "":
		return g.messages.EmptyMessage, rejection("empty reply")
	case utf8.RuneCountInString(text) < g.minLength:
		return g.messages.ShortMessage, rejection("reply too short")
	}

	lower := strings.ToLower(text)
	for _, p := range g.forbidden {
		if strings.Contains(lower, p) {
			if requiresRealData {
				return g.messages.RealDataMessage, rejection("boilerplate reply: " + p)
			}
			return g.messages.GenericMessage, rejection("boilerplate reply: " + p)
		}
	}

	if requiresRealData && !toolRan {
		return g.messages.RealDataMessage, rejection("real data required but no tool ran")
	}
	return text, nil
}

func rejection(reason string) error {
	return errx.NewKind(errx.KindResponseGuard, nil, 0, reason)
}
