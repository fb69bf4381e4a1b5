// Package conversations owns per-conversation dialogue state: slot tracking
// across turns, validation of required slots and chat history bookkeeping.
package conversations

import (
	"github.com/chative-dialogue/server/internal/agent/config"
	"github.com/chative-dialogue/server/internal/agent/intents"
	"github.com/chative-dialogue/server/internal/agent/model"
	"github.com/chative-dialogue/server/internal/agent/slots"
)

// Resolver computes the next ConversationContext from the previous one and
// an utterance. It is stateless and shared by all conversations.
type Resolver struct {
	registry   *slots.Registry
	classifier intents.Classifier
	markers    [][]string
	noData     [][]string
	realData   map[model.Intent]bool
}

func NewResolver(cfg *config.Config, registry *slots.Registry, classifier intents.Classifier) *Resolver {
	realData := make(map[model.Intent]bool, len(cfg.RealDataIntents))
	for _, in := range cfg.RealDataIntents {
		realData[model.Intent(in)] = true
	}
	return &Resolver{
		registry:   registry,
		classifier: classifier,
		markers:    intents.Phrases(cfg.ReferentialMarkers),
		noData:     intents.Phrases(cfg.NoDataIndicators),
		realData:   realData,
	}
}

// Next is a pure function of (prev, text); calling it twice with the same
// arguments yields equal contexts.
func (r *Resolver) Next(prev model.ConversationContext, text string) model.ConversationContext {
	intent := r.classifier.Classify(text)
	tokens := intents.Tokenize(text)

	explicit := make(map[string]string)
	for _, name := range r.registry.Names() {
		if v, ok := r.registry.ExtractValid(name, text); ok {
			explicit[name] = v
		}
	}

	var hasIdentity, identityChanged bool
	for _, name := range r.registry.IdentifyingSlots() {
		v, ok := explicit[name]
		if !ok {
			continue
		}
		hasIdentity = true
		if old, had := prev.Slot(name); had && old != v {
			identityChanged = true
		}
	}

	firstTurn := prev.Intent == ""
	sameIntent := !firstTurn && intent != model.IntentUnknown && intent == prev.Intent
	referential := !hasIdentity && (intents.ContainsAny(tokens, r.markers) || sameIntent)

	next := model.ConversationContext{
		LastMessage:      text,
		Intent:           intent,
		IsReferential:    referential,
		RequiresRealData: r.requiresRealData(intent, tokens),
	}

	for _, name := range r.registry.Names() {
		required := r.registry.IsRequired(intent, name)
		inheritable := r.registry.IsInheritable(intent, name)

		if v, ok := explicit[name]; ok {
			if required || inheritable {
				next.SetSlot(name, v)
			}
			continue
		}
		if identityChanged || r.registry.IsRemoved(intent, name) {
			continue
		}
		old, had := prev.Slot(name)
		if !had {
			continue
		}
		if (referential && inheritable) || (required && intent == prev.Intent) {
			next.SetSlot(name, old)
		}
	}
	return next
}

func (r *Resolver) requiresRealData(intent model.Intent, tokens []string) bool {
	if intents.ContainsAny(tokens, r.noData) {
		return false
	}
	return len(r.realData) == 0 || r.realData[intent]
}

// Store is the mutable context of a single conversation. It is not safe for
// concurrent use; callers serialise turns per conversation.
type Store struct {
	resolver  *Resolver
	validator *Validator
	current   model.ConversationContext
}

func NewStore(resolver *Resolver, validator *Validator) *Store {
	return &Store{resolver: resolver, validator: validator}
}

// Update is the single state transition, run once per utterance.
func (s *Store) Update(text string) model.ConversationContext {
	s.current = s.resolver.Next(s.current, text)
	return s.current.Clone()
}

// Validate checks the current context against the current intent's required
// slots.
func (s *Store) Validate() ValidationErrors {
	return s.validator.Validate(s.current)
}

func (s *Store) Current() model.ConversationContext {
	return s.current.Clone()
}

// Restore replaces the state, used when a session is re-hydrated.
func (s *Store) Restore(ctx model.ConversationContext) {
	s.current = ctx.Clone()
}

func (s *Store) Reset() {
	s.current = model.ConversationContext{}
}
