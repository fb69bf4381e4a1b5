package conversations

import (
	"strings"

	"github.com/chative-dialogue/server/internal/agent/config"
	"github.com/chative-dialogue/server/internal/agent/model"
	"github.com/chative-dialogue/server/internal/agent/slots"
	errx "github.com/chative-dialogue/server/internal/core/error"
)

type SlotError struct {
	Slot    string
	Message string
}

// ValidationErrors keeps the required-slot order of the intent.
type ValidationErrors []SlotError

func (v ValidationErrors) AsMap() map[string]string {
	m := make(map[string]string, len(v))
	for _, e := range v {
		m[e.Slot] = e.Message
	}
	return m
}

// Err returns the first failure as a validation AppError, or nil.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return errx.Validation(v[0].Slot, v[0].Message)
}

type Validator struct {
	registry   *slots.Registry
	messages   map[string]string
	missingTpl string
	invalidTpl string
}

func NewValidator(cfg *config.Config, registry *slots.Registry) *Validator {
	return &Validator{
		registry:   registry,
		messages:   cfg.Errors,
		missingTpl: cfg.Messages.MissingSlot,
		invalidTpl: cfg.Messages.InvalidSlot,
	}
}

// Validate returns one error per required slot that is missing or fails its
// validator; empty when the context is sufficient.
func (v *Validator) Validate(ctx model.ConversationContext) ValidationErrors {
	var errs ValidationErrors
	for _, name := range v.registry.RequiredFor(ctx.Intent) {
		value, ok := ctx.Slot(name)
		switch {
		case !ok:
			errs = append(errs, SlotError{Slot: name, Message: v.message(ctx.Intent, name, v.missingTpl)})
		case !v.registry.Validate(name, value):
			errs = append(errs, SlotError{Slot: name, Message: v.message(ctx.Intent, name, v.invalidTpl)})
		}
	}
	return errs
}

func (v *Validator) message(intent model.Intent, slot, fallback string) string {
	if m, ok := v.messages[string(intent)+"."+slot]; ok {
		return m
	}
	if m, ok := v.messages[slot]; ok {
		return m
	}
	return strings.ReplaceAll(fallback, "{slot}", slot)
}
