package intents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chative-dialogue/server/internal/agent/config"
	"github.com/chative-dialogue/server/internal/agent/model"
)

func TestClassifyDefaultVocabulary(t *testing.T) {
	c := NewKeywordClassifier(config.MustDefault())

	tests := []struct {
		text string
		want model.Intent
	}{
		{"¿Cuáles son mis facturas?", "factura"},
		{"Facturas de 12345678A", "factura"},
		{"¿Y sus incidencias?", "incidencia"},
		{"Crear incidencia en Madrid, descripción: no hay internet", "incidencia_creacion"},
		{"Quiero una nueva incidencia", "incidencia_creacion"},
		{"¿Hay una nueva incidencia en Madrid?", "incidencia"},
		{"¿Y hay alguna nueva incidencia?", "incidencia"},
		{"abrir la factura de marzo", "factura"},
		{"facturas e incidencias", "incidencia"},
		{"¿Cuál es la dirección del abonado?", "abonado"},
		{"hola qué tal", model.IntentUnknown},
		{"", model.IntentUnknown},
		{"¿¡!?", model.IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text))
		})
	}
}

func TestClassifyPrefersLongerKeywords(t *testing.T) {
	cfg := &config.Config{
		Intents: []config.IntentDefinition{
			{Name: "pagos", Keywords: []string{"pago"}},
			{Name: "estado", Keywords: []string{"estado de pago"}},
			{Name: "otro", Keywords: []string{"pago"}},
		},
	}
	c := NewKeywordClassifier(cfg)

	assert.Equal(t, model.Intent("estado"), c.Classify("quiero el estado de pago"))
	assert.Equal(t, model.Intent("pagos"), c.Classify("un pago"), "ties go to declaration order")
}

func TestClassifyVerbsBeatKeywords(t *testing.T) {
	cfg := &config.Config{
		Intents: []config.IntentDefinition{
			{Name: "consulta", Keywords: []string{"pedido urgente"}},
			{Name: "alta", Verbs: []string{"registrar"}},
		},
	}
	c := NewKeywordClassifier(cfg)

	assert.Equal(t, model.Intent("alta"), c.Classify("registrar pedido urgente"))
	assert.Equal(t, model.Intent("consulta"), c.Classify("registrarse pedido urgente"), "verbs match whole words only")
}

func TestPhraseHelpers(t *testing.T) {
	tokens := Tokenize("¿Consulta su factura? Su factura, sí.")
	assert.Equal(t, []string{"consulta", "su", "factura", "su", "factura", "sí"}, tokens)

	assert.Equal(t, 2, CountPhrase(tokens, []string{"su", "factura"}))
	assert.False(t, ContainsPhrase(Tokenize("consulta"), []string{"su"}))
	assert.True(t, HasPrefix(tokens, []string{"consulta"}))
	assert.False(t, HasPrefix(tokens, nil))
	assert.Empty(t, Phrases([]string{"", "¿?"}))
}
