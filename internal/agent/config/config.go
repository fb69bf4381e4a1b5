// Package config holds the dialogue configuration surface: intent vocabulary,
// slot definitions, per-intent slot rules, user-facing messages, routing
// policies and response templates. It is loaded once at startup and treated as
// immutable afterwards; Load is the explicit reload path.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chative-dialogue/server/internal/agent/model"
	errx "github.com/chative-dialogue/server/internal/core/error"
)

//go:embed default.yaml
var defaultConfig []byte

// Intent modes used by the classifier's opener heuristic.
const (
	ModeQuery  = "query"
	ModeCreate = "create"
)

// Template types understood by the formatter.
const (
	TemplateTable      = "table"
	TemplateSingleItem = "single_item"
	TemplateList       = "list"
	TemplateCards      = "cards"
	TemplateSuccess    = "success"
)

// Config is the root of the YAML document.
type Config struct {
	Intents            []IntentDefinition  `yaml:"intents"`
	Slots              []SlotDefinition    `yaml:"slots"`
	QueryOpeners       []string            `yaml:"query_openers"`
	ReferentialMarkers []string            `yaml:"referential_markers"`
	NoDataIndicators   []string            `yaml:"no_data_indicators"`
	RealDataIntents    []string            `yaml:"real_data_intents"`
	Greetings          []string            `yaml:"greetings"`
	Farewells          []string            `yaml:"farewells"`
	Errors             map[string]string   `yaml:"errors"`
	Messages           Messages            `yaml:"messages"`
	Guard              GuardConfig         `yaml:"guard"`
	Routing            RoutingConfig       `yaml:"routing"`
	Policies           []Policy            `yaml:"policies"`
	Templates          map[string]Template `yaml:"templates"`
}

// IntentDefinition describes one intent and the slot rules that apply while it
// is current.
type IntentDefinition struct {
	Name     string   `yaml:"name"`
	Topic    string   `yaml:"topic"`
	Mode     string   `yaml:"mode"`
	Verbs    []string `yaml:"verbs"`
	Keywords []string `yaml:"keywords"`

	// Context guards: at least one of RequiredAny must appear, none of ExcludeAny.
	RequiredAny []string `yaml:"required_any"`
	ExcludeAny  []string `yaml:"exclude_any"`

	Require []string `yaml:"require"`
	Inherit []string `yaml:"inherit"`
	Remove  []string `yaml:"remove"`
	Inject  []string `yaml:"inject"`
}

// SlotDefinition is an extractable field.
type SlotDefinition struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Patterns    []string `yaml:"patterns"`
	RequiredFor []string `yaml:"required_for"`
	// Validator is a built-in name (dni, email, phone) or an anchored regex.
	Validator   string `yaml:"validator"`
	Normalize   string `yaml:"normalize"`
	Identifying bool   `yaml:"identifying"`
}

type Messages struct {
	GreetingReply     string `yaml:"greeting_reply"`
	FarewellReply     string `yaml:"farewell_reply"`
	Apology           string `yaml:"apology"`
	ForcedToolFailure string `yaml:"forced_tool_failure"`
	ForceInstruction  string `yaml:"force_instruction"`
	MissingSlot       string `yaml:"missing_slot"`
	InvalidSlot       string `yaml:"invalid_slot"`
}

type GuardConfig struct {
	MinLength        int      `yaml:"min_length"`
	ForbiddenPhrases []string `yaml:"forbidden_phrases"`
	EmptyMessage     string   `yaml:"empty_message"`
	ShortMessage     string   `yaml:"short_message"`
	GenericMessage   string   `yaml:"generic_message"`
	RealDataMessage  string   `yaml:"real_data_message"`
}

type RoutingConfig struct {
	DefaultPolicy       string            `yaml:"default_policy"`
	ReferentialFallback bool              `yaml:"referential_fallback"`
	IntentToPolicy      map[string]string `yaml:"intent_to_policy"`
}

// Policy bundles system instructions with an allowed tool subset.
type Policy struct {
	ID             string   `yaml:"id"`
	Description    string   `yaml:"description"`
	Prompt         string   `yaml:"prompt"`
	Tools          []string `yaml:"tools"`
	Keywords       []string `yaml:"keywords"`
	ForceToolUsage bool     `yaml:"force_tool_usage"`
}

// Template configures deterministic rendering of one tool's result.
type Template struct {
	Type         string `yaml:"type"`
	Title        string `yaml:"title"`
	DataKey      string `yaml:"data_key"`
	EmptyMessage string `yaml:"empty_message"`

	Headers []string   `yaml:"headers"`
	Columns []string   `yaml:"columns"`
	Total   *TotalSpec `yaml:"total"`

	Fields      []FieldSpec  `yaml:"fields"`
	NestedLists []NestedList `yaml:"nested_lists"`

	ItemFormat string `yaml:"item_format"`
	ShowCount  bool   `yaml:"show_count"`

	CardTitle  string      `yaml:"card_title"`
	CardFields []FieldSpec `yaml:"card_fields"`

	MessageTemplate string `yaml:"message_template"`
	ShowDetails     bool   `yaml:"show_details"`
}

type TotalSpec struct {
	Column   string `yaml:"column"`
	Currency string `yaml:"currency"`
}

type FieldSpec struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
	Icon  string `yaml:"icon"`
}

type NestedList struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
}

// Default returns the embedded configuration.
func Default() (*Config, error) {
	return Parse(defaultConfig)
}

// MustDefault is Default for tests and wiring that cannot proceed without it.
func MustDefault() *Config {
	cfg, err := Default()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads and validates a YAML file. An empty path yields the default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.Config(fmt.Errorf("read %s: %w", path, err))
	}
	return Parse(b)
}

// Parse decodes and validates a YAML document.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errx.Config(fmt.Errorf("decode yaml: %w", err))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errx.Config(err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Messages.MissingSlot == "" {
		c.Messages.MissingSlot = "Falta el campo requerido: {slot}"
	}
	if c.Messages.InvalidSlot == "" {
		c.Messages.InvalidSlot = "El campo {slot} no tiene un formato válido."
	}
	if c.Messages.Apology == "" {
		c.Messages.Apology = "Lo siento, ocurrió un error interno al procesar tu solicitud. Por favor, inténtalo de nuevo más tarde."
	}
	if c.Messages.ForcedToolFailure == "" {
		c.Messages.ForcedToolFailure = "No pude ejecutar ninguna herramienta para procesar tu consulta."
	}
	if c.Guard.MinLength <= 0 {
		c.Guard.MinLength = 5
	}
	if c.Routing.DefaultPolicy == "" {
		c.Routing.DefaultPolicy = "default"
	}
	if c.Errors == nil {
		c.Errors = map[string]string{}
	}
}

// Validate checks cross references and compiles every pattern once.
func (c *Config) Validate() error {
	intents := make(map[string]bool, len(c.Intents))
	for i, in := range c.Intents {
		if in.Name == "" {
			return fmt.Errorf("intents[%d]: name is required", i)
		}
		if intents[in.Name] {
			return fmt.Errorf("intent %q declared twice", in.Name)
		}
		if in.Name == string(model.IntentUnknown) && (len(in.Verbs) > 0 || len(in.Keywords) > 0) {
			return fmt.Errorf("intent %q is the fallback and cannot declare verbs or keywords", in.Name)
		}
		if in.Mode != "" && in.Mode != ModeQuery && in.Mode != ModeCreate {
			return fmt.Errorf("intent %q: unknown mode %q", in.Name, in.Mode)
		}
		intents[in.Name] = true
	}

	slots := make(map[string]bool, len(c.Slots))
	for i, s := range c.Slots {
		if s.Name == "" {
			return fmt.Errorf("slots[%d]: name is required", i)
		}
		if slots[s.Name] {
			return fmt.Errorf("slot %q declared twice", s.Name)
		}
		slots[s.Name] = true
		if len(s.Patterns) == 0 {
			return fmt.Errorf("slot %q: at least one pattern is required", s.Name)
		}
		for _, p := range s.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("slot %q: pattern %q: %w", s.Name, p, err)
			}
		}
		if _, err := CompileValidator(s.Validator); err != nil {
			return fmt.Errorf("slot %q: %w", s.Name, err)
		}
		for _, in := range s.RequiredFor {
			if !intents[in] {
				return fmt.Errorf("slot %q: required_for references unknown intent %q", s.Name, in)
			}
		}
	}

	for _, in := range c.Intents {
		for _, list := range [][]string{in.Require, in.Inherit, in.Remove, in.Inject} {
			for _, name := range list {
				if !slots[name] {
					return fmt.Errorf("intent %q references unknown slot %q", in.Name, name)
				}
			}
		}
	}

	policies := make(map[string]bool, len(c.Policies))
	for i, p := range c.Policies {
		if p.ID == "" {
			return fmt.Errorf("policies[%d]: id is required", i)
		}
		if policies[p.ID] {
			return fmt.Errorf("policy %q declared twice", p.ID)
		}
		policies[p.ID] = true
	}
	if !policies[c.Routing.DefaultPolicy] {
		return fmt.Errorf("default policy %q is not declared", c.Routing.DefaultPolicy)
	}
	for in, p := range c.Routing.IntentToPolicy {
		if !intents[in] {
			return fmt.Errorf("intent_to_policy references unknown intent %q", in)
		}
		if !policies[p] {
			return fmt.Errorf("intent_to_policy references unknown policy %q", p)
		}
	}

	for name, t := range c.Templates {
		switch t.Type {
		case TemplateTable, TemplateSingleItem, TemplateList, TemplateCards, TemplateSuccess:
		default:
			return fmt.Errorf("template %q: unknown type %q", name, t.Type)
		}
		if t.Type == TemplateTable && len(t.Headers) != len(t.Columns) {
			return fmt.Errorf("template %q: headers and columns differ in length", name)
		}
	}
	return nil
}

// Intent returns the definition for name.
func (c *Config) Intent(name model.Intent) (IntentDefinition, bool) {
	for _, in := range c.Intents {
		if in.Name == string(name) {
			return in, true
		}
	}
	return IntentDefinition{}, false
}

// Policy returns the policy with id.
func (c *Config) Policy(id string) (Policy, bool) {
	for _, p := range c.Policies {
		if p.ID == id {
			return p, true
		}
	}
	return Policy{}, false
}

// IsGreeting reports whether text is exactly one of the configured greetings.
func (c *Config) IsGreeting(text string) bool {
	return matchesPhrase(c.Greetings, text)
}

// IsFarewell reports whether text is exactly one of the configured farewells.
func (c *Config) IsFarewell(text string) bool {
	return matchesPhrase(c.Farewells, text)
}

func matchesPhrase(phrases []string, text string) bool {
	norm := NormalizePhrase(text)
	if norm == "" {
		return false
	}
	for _, p := range phrases {
		if NormalizePhrase(p) == norm {
			return true
		}
	}
	return false
}

// NormalizePhrase lowercases, collapses whitespace and strips surrounding
// punctuation so "¡Hola!" equals "hola".
func NormalizePhrase(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.Trim(s, "¡!¿?.,;: ")
}
