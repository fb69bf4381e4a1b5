// Package intents maps utterances to configured intent labels.
package intents

import (
	"github.com/chative-dialogue/server/internal/agent/config"
	"github.com/chative-dialogue/server/internal/agent/model"
)

// Classifier is the seam for swapping the keyword tables for a statistical
// model without touching the conversation state machine.
type Classifier interface {
	Classify(text string) model.Intent
}

type intentEntry struct {
	name        model.Intent
	topic       string
	mode        string
	verbs       [][]string
	keywords    [][]string
	requiredAny [][]string
	excludeAny  [][]string
}

// KeywordClassifier classifies with verb, opener and keyword tables. It holds
// no mutable state.
type KeywordClassifier struct {
	intents []intentEntry
	openers [][]string
}

var _ Classifier = (*KeywordClassifier)(nil)

func NewKeywordClassifier(cfg *config.Config) *KeywordClassifier {
	c := &KeywordClassifier{openers: Phrases(cfg.QueryOpeners)}
	for _, in := range cfg.Intents {
		if model.Intent(in.Name) == model.IntentUnknown {
			continue
		}
		c.intents = append(c.intents, intentEntry{
			name:        model.Intent(in.Name),
			topic:       in.Topic,
			mode:        in.Mode,
			verbs:       Phrases(in.Verbs),
			keywords:    Phrases(in.Keywords),
			requiredAny: Phrases(in.RequiredAny),
			excludeAny:  Phrases(in.ExcludeAny),
		})
	}
	return c
}

// Classify applies, in order: action verbs, the opener heuristic, the keyword
// table (longest keyword wins, ties by declaration order) and the fallback.
func (c *KeywordClassifier) Classify(text string) model.Intent {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return model.IntentUnknown
	}

	for _, in := range c.intents {
		if ContainsAny(tokens, in.verbs) && in.guardsHold(tokens) {
			return in.name
		}
	}

	best := c.bestKeywordMatch(tokens)
	if best == nil {
		return model.IntentUnknown
	}

	if best.mode == config.ModeCreate && c.startsWithOpener(tokens) {
		for _, in := range c.intents {
			if in.topic == best.topic && in.mode == config.ModeQuery && in.guardsHold(tokens) {
				return in.name
			}
		}
	}
	return best.name
}

func (c *KeywordClassifier) bestKeywordMatch(tokens []string) *intentEntry {
	var (
		best      *intentEntry
		bestWords int
	)
	for i := range c.intents {
		in := &c.intents[i]
		if !in.guardsHold(tokens) {
			continue
		}
		for _, kw := range in.keywords {
			if len(kw) > bestWords && ContainsPhrase(tokens, kw) {
				best, bestWords = in, len(kw)
			}
		}
	}
	return best
}

func (c *KeywordClassifier) startsWithOpener(tokens []string) bool {
	// a leading conjunction ("y", "e") does not hide the opener
	if len(tokens) > 1 && (tokens[0] == "y" || tokens[0] == "e") {
		tokens = tokens[1:]
	}
	for _, o := range c.openers {
		if HasPrefix(tokens, o) {
			return true
		}
	}
	return false
}

func (in *intentEntry) guardsHold(tokens []string) bool {
	if len(in.requiredAny) > 0 && !ContainsAny(tokens, in.requiredAny) {
		return false
	}
	return !ContainsAny(tokens, in.excludeAny)
}
