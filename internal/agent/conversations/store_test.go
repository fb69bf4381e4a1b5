package conversations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-dialogue/server/internal/agent/config"
	"github.com/chative-dialogue/server/internal/agent/intents"
	"github.com/chative-dialogue/server/internal/agent/model"
	"github.com/chative-dialogue/server/internal/agent/slots"
	errx "github.com/chative-dialogue/server/internal/core/error"
)

func newTestStore(t *testing.T) (*Store, *Resolver) {
	t.Helper()
	cfg := config.MustDefault()
	registry, err := slots.New(cfg)
	require.NoError(t, err)
	resolver := NewResolver(cfg, registry, intents.NewKeywordClassifier(cfg))
	return NewStore(resolver, NewValidator(cfg, registry)), resolver
}

func TestExplicitIdentityIsNeverReferential(t *testing.T) {
	_, resolver := newTestStore(t)

	prev := model.ConversationContext{Intent: "factura", DNI: "11111111H"}
	texts := []string{
		"Facturas de 12345678A",
		"¿Y sus facturas? DNI 12345678A",
		"este mismo abonado 12345678a",
		"su dirección, 12345678A",
		"facturas de 11111111H",
	}
	for _, text := range texts {
		for _, p := range []model.ConversationContext{{}, prev} {
			got := resolver.Next(p, text)
			assert.False(t, got.IsReferential, "text %q after %+v", text, p)
		}
	}
}

func TestNextIsIdempotent(t *testing.T) {
	_, resolver := newTestStore(t)

	prevs := []model.ConversationContext{
		{},
		{Intent: "factura", DNI: "12345678A", LastMessage: "Facturas de 12345678A"},
		{Intent: "incidencia_creacion", DNI: "12345678A", Extra: map[string]string{"ubicacion": "Madrid", "descripcion": "sin red"}},
		{Intent: model.IntentUnknown, DNI: "12345678A"},
	}
	texts := []string{
		"¿Y sus incidencias?",
		"Facturas de 87654321B",
		"Crear incidencia en Sevilla, descripción: corte de luz",
		"gracias",
		"",
	}
	for _, p := range prevs {
		for _, text := range texts {
			first := resolver.Next(p.Clone(), text)
			second := resolver.Next(p.Clone(), text)
			assert.Equal(t, first, second, "text %q", text)
		}
	}
}

func TestMissingIdentityScenario(t *testing.T) {
	store, _ := newTestStore(t)

	ctx := store.Update("¿Cuáles son mis facturas?")
	assert.Equal(t, model.Intent("factura"), ctx.Intent)

	errs := store.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "dni", errs[0].Slot)
	assert.Equal(t, config.MustDefault().Errors["factura.dni"], errs[0].Message)
	assert.Equal(t, errx.KindValidation, errx.KindOf(errs.Err()))
}

func TestReferentialFollowUpScenario(t *testing.T) {
	store, _ := newTestStore(t)

	ctx := store.Update("Facturas de 12345678A")
	assert.Equal(t, model.Intent("factura"), ctx.Intent)
	assert.Equal(t, "12345678A", ctx.DNI)
	assert.False(t, ctx.IsReferential)
	assert.True(t, ctx.RequiresRealData)
	assert.Empty(t, store.Validate())

	ctx = store.Update("¿Y sus incidencias?")
	assert.Equal(t, model.Intent("incidencia"), ctx.Intent)
	assert.True(t, ctx.IsReferential)
	assert.Equal(t, "12345678A", ctx.DNI)
	assert.Empty(t, store.Validate())
}

func TestIdentityLearnedBeforeQuestion(t *testing.T) {
	store, _ := newTestStore(t)

	ctx := store.Update("Mi DNI es 12345678A")
	assert.Equal(t, model.IntentUnknown, ctx.Intent)
	assert.Equal(t, "12345678A", ctx.DNI)

	ctx = store.Update("¿Cuáles son mis facturas?")
	assert.True(t, ctx.IsReferential)
	assert.Equal(t, "12345678A", ctx.DNI)
	assert.Empty(t, store.Validate())
}

func TestIdentityChangeClearsCarryOver(t *testing.T) {
	_, resolver := newTestStore(t)

	prev := model.ConversationContext{
		Intent: "incidencia",
		DNI:    "12345678A",
		Extra:  map[string]string{"ubicacion": "Madrid"},
	}
	got := resolver.Next(prev, "incidencias de 87654321B")

	assert.Equal(t, "87654321B", got.DNI)
	_, ok := got.Slot("ubicacion")
	assert.False(t, ok)
}

func TestStaleSlotsAreDropped(t *testing.T) {
	_, resolver := newTestStore(t)

	prev := model.ConversationContext{
		Intent: "incidencia_creacion",
		DNI:    "12345678A",
		Extra:  map[string]string{"ubicacion": "Madrid", "descripcion": "sin red"},
	}
	got := resolver.Next(prev, "¿y sus facturas?")

	assert.Equal(t, model.Intent("factura"), got.Intent)
	assert.Equal(t, []string{"dni"}, got.SlotNames())
}

func TestRepeatedCreationKeepsLocationButNotDescription(t *testing.T) {
	store, _ := newTestStore(t)

	store.Update("Crear incidencia en Madrid, descripción: no hay internet. DNI 12345678A")
	require.Empty(t, store.Validate())

	ctx := store.Update("Crear otra incidencia")
	assert.Equal(t, model.Intent("incidencia_creacion"), ctx.Intent)
	assert.Equal(t, "12345678A", ctx.DNI)
	loc, _ := ctx.Slot("ubicacion")
	assert.Equal(t, "Madrid", loc)

	errs := store.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "descripcion", errs[0].Slot)
}

func TestReferentialWithoutPriorValueFailsValidation(t *testing.T) {
	store, _ := newTestStore(t)

	ctx := store.Update("¿Y sus incidencias?")
	assert.True(t, ctx.IsReferential)
	assert.Contains(t, store.Validate().AsMap(), "dni")
}

func TestRequiresRealData(t *testing.T) {
	_, resolver := newTestStore(t)

	assert.True(t, resolver.Next(model.ConversationContext{}, "Facturas de 12345678A").RequiresRealData)
	assert.False(t, resolver.Next(model.ConversationContext{}, "Dame un ejemplo de factura").RequiresRealData)
	assert.False(t, resolver.Next(model.ConversationContext{}, "hola qué tal").RequiresRealData)
}

func TestStoreRestoreAndReset(t *testing.T) {
	store, _ := newTestStore(t)

	store.Restore(model.ConversationContext{Intent: "factura", DNI: "12345678A"})
	ctx := store.Update("¿y el último pago?")
	assert.Equal(t, "12345678A", ctx.DNI)

	store.Reset()
	assert.Equal(t, model.ConversationContext{}, store.Current())
}
