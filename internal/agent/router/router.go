// Package router selects the policy (system prompt plus allowed tools) that
// handles a turn.
package router

import (
	"github.com/chative-dialogue/server/internal/agent/config"
	"github.com/chative-dialogue/server/internal/agent/intents"
	"github.com/chative-dialogue/server/internal/agent/model"
	logx "github.com/chative-dialogue/server/pkg/logger"
)

// Reason tells which selection rule produced a decision.
type Reason string

const (
	ReasonIntent      Reason = "intent"
	ReasonKeyword     Reason = "keyword"
	ReasonReferential Reason = "referential"
	ReasonDefault     Reason = "default"
)

type scoredPolicy struct {
	policy   config.Policy
	keywords [][]string
}

// Table is the immutable routing configuration, shared by all conversations.
type Table struct {
	byID                map[string]config.Policy
	intentToPolicy      map[model.Intent]string
	scored              []scoredPolicy
	defaultPolicy       config.Policy
	referentialFallback bool
}

func NewTable(cfg *config.Config) *Table {
	t := &Table{
		byID:                make(map[string]config.Policy, len(cfg.Policies)),
		intentToPolicy:      make(map[model.Intent]string, len(cfg.Routing.IntentToPolicy)),
		referentialFallback: cfg.Routing.ReferentialFallback,
	}
	for _, p := range cfg.Policies {
		t.byID[p.ID] = p
		if p.ID == cfg.Routing.DefaultPolicy {
			t.defaultPolicy = p
			continue
		}
		t.scored = append(t.scored, scoredPolicy{policy: p, keywords: intents.Phrases(p.Keywords)})
	}
	for in, id := range cfg.Routing.IntentToPolicy {
		t.intentToPolicy[model.Intent(in)] = id
	}
	return t
}

// Decide applies, in order: direct intent mapping, keyword scoring,
// referential fallback to lastUsed and the default policy. Referential
// fallback never overrides an explicit intent or keyword signal.
func (t *Table) Decide(ctx model.ConversationContext, lastUsed string) (config.Policy, Reason) {
	if id, ok := t.intentToPolicy[ctx.Intent]; ok {
		if p, ok := t.byID[id]; ok {
			return p, ReasonIntent
		}
	}

	tokens := intents.Tokenize(ctx.LastMessage)
	bestScore := 0
	var best config.Policy
	for _, sp := range t.scored {
		score := 0
		for _, kw := range sp.keywords {
			score += intents.CountPhrase(tokens, kw)
		}
		if score > bestScore {
			best, bestScore = sp.policy, score
		}
	}
	if bestScore > 0 {
		return best, ReasonKeyword
	}

	if t.referentialFallback && ctx.IsReferential && lastUsed != "" {
		if p, ok := t.byID[lastUsed]; ok {
			return p, ReasonReferential
		}
	}
	return t.defaultPolicy, ReasonDefault
}

// Router is the per-conversation view of a Table; it remembers the last
// policy used.
type Router struct {
	table    *Table
	lastUsed string
}

func New(table *Table) *Router {
	return &Router{table: table}
}

// Select picks the policy for ctx and records it as last used.
func (r *Router) Select(ctx model.ConversationContext) config.Policy {
	p, reason := r.table.Decide(ctx, r.lastUsed)
	logx.Debug().
		Str("intent", string(ctx.Intent)).
		Bool("referential", ctx.IsReferential).
		Str("previous_policy", r.lastUsed).
		Str("policy", p.ID).
		Str("reason", string(reason)).
		Msg("Policy selected")
	r.lastUsed = p.ID
	return p
}

func (r *Router) LastUsed() string {
	return r.lastUsed
}

// Restore sets the last used policy, used when a session is re-hydrated.
func (r *Router) Restore(lastUsed string) {
	r.lastUsed = lastUsed
}
