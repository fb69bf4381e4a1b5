// Package slots compiles slot definitions into an immutable registry used to
// extract, normalise and validate slot values.
package slots

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/chative-dialogue/server/internal/agent/config"
	"github.com/chative-dialogue/server/internal/agent/model"
)

type slotEntry struct {
	def       config.SlotDefinition
	patterns  []*regexp.Regexp
	validator *regexp.Regexp
}

type intentRules struct {
	require []string
	inherit []string
	remove  []string
	inject  []string
}

// Registry is safe for concurrent use; nothing mutates it after New.
type Registry struct {
	slots []slotEntry
	index map[string]int
	rules map[model.Intent]intentRules
}

func New(cfg *config.Config) (*Registry, error) {
	r := &Registry{
		index: make(map[string]int, len(cfg.Slots)),
		rules: make(map[model.Intent]intentRules, len(cfg.Intents)),
	}

	for _, def := range cfg.Slots {
		entry := slotEntry{def: def}
		for _, p := range def.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("slot %q: %w", def.Name, err)
			}
			entry.patterns = append(entry.patterns, re)
		}
		v, err := config.CompileValidator(def.Validator)
		if err != nil {
			return nil, fmt.Errorf("slot %q: %w", def.Name, err)
		}
		entry.validator = v
		r.index[def.Name] = len(r.slots)
		r.slots = append(r.slots, entry)
	}

	for _, in := range cfg.Intents {
		r.rules[model.Intent(in.Name)] = intentRules{
			require: slices.Clone(in.Require),
			inherit: slices.Clone(in.Inherit),
			remove:  slices.Clone(in.Remove),
			inject:  slices.Clone(in.Inject),
		}
	}
	// slot-level required_for lists, declaration order after the intent's own list
	for _, def := range cfg.Slots {
		for _, in := range def.RequiredFor {
			rules := r.rules[model.Intent(in)]
			if !slices.Contains(rules.require, def.Name) {
				rules.require = append(rules.require, def.Name)
			}
			r.rules[model.Intent(in)] = rules
		}
	}
	return r, nil
}

// Names returns slot names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.slots))
	for i, s := range r.slots {
		names[i] = s.def.Name
	}
	return names
}

// Extract returns the first pattern match for slot in text: the first capturing
// group when the pattern has one, the whole match otherwise.
func (r *Registry) Extract(slot, text string) (string, bool) {
	i, ok := r.index[slot]
	if !ok {
		return "", false
	}
	entry := r.slots[i]
	for _, re := range entry.patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v := entry.normalize(pick(m)); v != "" {
			return v, true
		}
	}
	return "", false
}

// ExtractValid is like Extract but skips matches that fail the slot's
// validator, so an invalid raw match never shadows a later valid one.
func (r *Registry) ExtractValid(slot, text string) (string, bool) {
	i, ok := r.index[slot]
	if !ok {
		return "", false
	}
	entry := r.slots[i]
	for _, re := range entry.patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := entry.normalize(pick(m))
			if v != "" && entry.valid(v) {
				return v, true
			}
		}
	}
	return "", false
}

// Validate reports whether value is acceptable for slot. Slots without a
// validator accept any value; unknown slots accept nothing.
func (r *Registry) Validate(slot, value string) bool {
	i, ok := r.index[slot]
	if !ok {
		return false
	}
	return r.slots[i].valid(value)
}

// RequiredFor returns the slots the intent needs before any tool may run.
func (r *Registry) RequiredFor(intent model.Intent) []string {
	return slices.Clone(r.rules[intent].require)
}

func (r *Registry) InheritFor(intent model.Intent) []string {
	return slices.Clone(r.rules[intent].inherit)
}

func (r *Registry) RemoveFor(intent model.Intent) []string {
	return slices.Clone(r.rules[intent].remove)
}

func (r *Registry) InjectFor(intent model.Intent) []string {
	return slices.Clone(r.rules[intent].inject)
}

func (r *Registry) IsRequired(intent model.Intent, slot string) bool {
	return slices.Contains(r.rules[intent].require, slot)
}

func (r *Registry) IsInheritable(intent model.Intent, slot string) bool {
	return slices.Contains(r.rules[intent].inherit, slot)
}

func (r *Registry) IsRemoved(intent model.Intent, slot string) bool {
	return slices.Contains(r.rules[intent].remove, slot)
}

// IdentifyingSlots lists slots whose explicit presence marks a fresh subject.
func (r *Registry) IdentifyingSlots() []string {
	var out []string
	for _, s := range r.slots {
		if s.def.Identifying {
			out = append(out, s.def.Name)
		}
	}
	return out
}

func (e slotEntry) valid(value string) bool {
	if e.validator == nil {
		return true
	}
	return e.validator.MatchString(value)
}

func (e slotEntry) normalize(v string) string {
	v = strings.TrimSpace(v)
	switch e.def.Normalize {
	case "upper":
		return strings.ToUpper(v)
	case "lower":
		return strings.ToLower(v)
	}
	return v
}

func pick(m []string) string {
	if len(m) > 1 && m[1] != "" {
		return m[1]
	}
	return m[0]
}
