package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/chative-dialogue/server/internal/core/error"
)

func TestDefaultConfigLoads(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "general", cfg.Routing.DefaultPolicy)
	assert.True(t, cfg.Routing.ReferentialFallback)
	assert.Equal(t, 5, cfg.Guard.MinLength)

	in, ok := cfg.Intent("incidencia_creacion")
	require.True(t, ok)
	assert.Equal(t, ModeCreate, in.Mode)
	assert.Contains(t, in.Require, "ubicacion")

	p, ok := cfg.Policy("facturacion")
	require.True(t, ok)
	assert.True(t, p.ForceToolUsage)
	assert.Contains(t, p.Tools, "todas_las_facturas")

	tpl, ok := cfg.Templates["todas_las_facturas"]
	require.True(t, ok)
	assert.Equal(t, TemplateTable, tpl.Type)
	require.NotNil(t, tpl.Total)
	assert.Equal(t, "importe", tpl.Total.Column)
}

func TestGreetingsAndFarewells(t *testing.T) {
	cfg := MustDefault()

	assert.True(t, cfg.IsGreeting("Hola"))
	assert.True(t, cfg.IsGreeting("  ¡Buenos   días! "))
	assert.False(t, cfg.IsGreeting("hola, quiero mis facturas"))
	assert.True(t, cfg.IsFarewell("Adiós"))
	assert.False(t, cfg.IsFarewell(""))
}

func TestParseRejectsBrokenReferences(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown slot in intent rules",
			doc: `
intents:
  - name: factura
    require: [iban]
policies:
  - id: default
`,
		},
		{
			name: "bad slot pattern",
			doc: `
slots:
  - name: dni
    patterns: ['(\d{8}']
policies:
  - id: default
`,
		},
		{
			name: "missing default policy",
			doc: `
routing:
  default_policy: general
policies:
  - id: facturacion
`,
		},
		{
			name: "intent mapped to unknown policy",
			doc: `
intents:
  - name: factura
    keywords: [factura]
routing:
  intent_to_policy:
    factura: facturacion
policies:
  - id: default
`,
		},
		{
			name: "table headers and columns mismatch",
			doc: `
policies:
  - id: default
templates:
  facturas:
    type: table
    headers: [Fecha]
    columns: [fecha, importe]
`,
		},
		{
			name: "fallback intent with keywords",
			doc: `
intents:
  - name: unknown
    keywords: [algo]
policies:
  - id: default
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, errx.KindConfig, errx.KindOf(err))
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialogue.yaml")
	doc := `
slots:
  - name: dni
    patterns: ['\b(\d{8}[A-Za-z])\b']
    validator: dni
policies:
  - id: default
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Routing.DefaultPolicy)
	assert.Equal(t, "Falta el campo requerido: {slot}", cfg.Messages.MissingSlot)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCompileValidator(t *testing.T) {
	re, err := CompileValidator("dni")
	require.NoError(t, err)
	assert.True(t, re.MatchString("12345678Z"))
	assert.False(t, re.MatchString("1234567Z"))

	re, err = CompileValidator("")
	require.NoError(t, err)
	assert.Nil(t, re)

	_, err = CompileValidator("([")
	assert.Error(t, err)
}

func TestCustomValidatorMatchesWholeValue(t *testing.T) {
	tests := []struct {
		def   string
		value string
		want  bool
	}{
		{`[A-Z]{2}\d{4}`, "AB1234", true},
		{`[A-Z]{2}\d{4}`, "xxAB1234yy", false},
		{`[A-Z]{2}\d{4}`, "AB12345", false},
		{`^[A-Z]{2}\d{4}$`, "AB1234", true},
		{`alta|baja`, "baja", true},
		{`alta|baja`, "altavoz", false},
	}
	for _, tt := range tests {
		re, err := CompileValidator(tt.def)
		require.NoError(t, err)
		assert.Equal(t, tt.want, re.MatchString(tt.value), "%s on %q", tt.def, tt.value)
	}
}
