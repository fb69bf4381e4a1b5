package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/chative-dialogue/server/internal/agent/config"
	"github.com/chative-dialogue/server/internal/agent/conversations"
	"github.com/chative-dialogue/server/internal/agent/formatter"
	"github.com/chative-dialogue/server/internal/agent/intents"
	agentmodel "github.com/chative-dialogue/server/internal/agent/model"
	"github.com/chative-dialogue/server/internal/agent/orchestrator"
	"github.com/chative-dialogue/server/internal/agent/router"
	"github.com/chative-dialogue/server/internal/agent/slots"
	"github.com/chative-dialogue/server/internal/agent/tools"
	"github.com/chative-dialogue/server/internal/repo"
	logx "github.com/chative-dialogue/server/pkg/logger"
)

func TestMain(m *testing.M) {
	logx.Disable()
	goleak.VerifyTestMain(m)
}

// watchModel answers every request and flags overlapping requests from the
// same conversation. The conversation tag is the last word of the utterance.
type watchModel struct {
	mu      sync.Mutex
	active  map[string]int
	overlap bool
	delay   time.Duration
}

func (w *watchModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	words := strings.Fields(in[len(in)-1].Content)
	tag := words[len(words)-1]

	w.mu.Lock()
	if w.active == nil {
		w.active = make(map[string]int)
	}
	w.active[tag]++
	if w.active[tag] > 1 {
		w.overlap = true
	}
	w.mu.Unlock()

	time.Sleep(w.delay)

	w.mu.Lock()
	w.active[tag]--
	w.mu.Unlock()
	return schema.AssistantMessage("Respuesta general para "+tag, nil), nil
}

type emptyCatalog struct{}

func (emptyCatalog) Catalog(context.Context) (*tools.Catalog, error) {
	return tools.NewCatalog(nil), nil
}

func newOrchestrator(t *testing.T, m orchestrator.ChatModel) (*orchestrator.Orchestrator, *config.Config) {
	t.Helper()
	cfg := config.MustDefault()
	registry, err := slots.New(cfg)
	require.NoError(t, err)

	orch, err := orchestrator.New(orchestrator.Deps{
		Config:    cfg,
		Registry:  registry,
		Resolver:  conversations.NewResolver(cfg, registry, intents.NewKeywordClassifier(cfg)),
		Validator: conversations.NewValidator(cfg, registry),
		Routes:    router.NewTable(cfg),
		Formatter: formatter.New(cfg.Templates),
		Model:     m,
		Tools:     emptyCatalog{},
		NewTool:   orchestrator.InvokerFactory(tools.NewInvoker(agentmodel.ToolProviderConfig{}, nil)),
	})
	require.NoError(t, err)
	return orch, cfg
}

func TestHandleTurnRejectsEmptyID(t *testing.T) {
	orch, _ := newOrchestrator(t, &watchModel{})
	m, err := NewManager(orch, nil, 0)
	require.NoError(t, err)

	_, err = m.HandleTurn(context.Background(), "  ", "hola")
	assert.ErrorIs(t, err, ErrEmptyConversationID)
	assert.ErrorIs(t, m.End(context.Background(), ""), ErrEmptyConversationID)
}

func TestTurnsAreSerialisedPerConversation(t *testing.T) {
	wm := &watchModel{delay: 5 * time.Millisecond}
	orch, _ := newOrchestrator(t, wm)
	m, err := NewManager(orch, nil, 0)
	require.NoError(t, err)

	var g errgroup.Group
	for c := 0; c < 4; c++ {
		id := fmt.Sprintf("conv-%d", c)
		for i := 0; i < 5; i++ {
			g.Go(func() error {
				reply, err := m.HandleTurn(context.Background(), id, "Explícame la fibra óptica "+id)
				if err != nil {
					return err
				}
				if reply != "Respuesta general para "+id {
					return fmt.Errorf("unexpected reply %q", reply)
				}
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())
	assert.False(t, wm.overlap)
	assert.Equal(t, 4, m.Len())

	state, ok := m.Snapshot("conv-0")
	require.True(t, ok)
	assert.Len(t, state.History, 2*orchestrator.DefaultMaxTurnPairs)
}

func TestStateSurvivesAcrossManagers(t *testing.T) {
	orch, cfg := newOrchestrator(t, &watchModel{})
	store := repo.NewMemorySessionRepository(0, 0)

	first, err := NewManager(orch, store, 0)
	require.NoError(t, err)
	_, err = first.HandleTurn(context.Background(), "c1", "Mi DNI es 12345678A")
	require.NoError(t, err)

	second, err := NewManager(orch, store, 0)
	require.NoError(t, err)
	reply, err := second.HandleTurn(context.Background(), "c1", "¿Cuáles son mis facturas?")
	require.NoError(t, err)

	assert.NotEqual(t, cfg.Errors["factura.dni"], reply)
	state, ok := second.Snapshot("c1")
	require.True(t, ok)
	assert.Equal(t, "12345678A", state.Context.DNI)
	assert.Len(t, state.History, 4)
}

func TestEvictedConversationReloads(t *testing.T) {
	orch, cfg := newOrchestrator(t, &watchModel{})
	store := repo.NewMemorySessionRepository(0, 0)
	m, err := NewManager(orch, store, 1)
	require.NoError(t, err)

	_, err = m.HandleTurn(context.Background(), "a", "Mi DNI es 12345678A")
	require.NoError(t, err)
	_, err = m.HandleTurn(context.Background(), "b", "Mi DNI es 87654321B")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	reply, err := m.HandleTurn(context.Background(), "a", "¿Cuáles son mis facturas?")
	require.NoError(t, err)
	assert.NotEqual(t, cfg.Errors["factura.dni"], reply)

	state, ok := m.Snapshot("a")
	require.True(t, ok)
	assert.Equal(t, "12345678A", state.Context.DNI)
}

func TestEndForgetsConversation(t *testing.T) {
	orch, cfg := newOrchestrator(t, &watchModel{})
	store := repo.NewMemorySessionRepository(0, 0)
	m, err := NewManager(orch, store, 0)
	require.NoError(t, err)

	_, err = m.HandleTurn(context.Background(), "c1", "Mi DNI es 12345678A")
	require.NoError(t, err)
	require.NoError(t, m.End(context.Background(), "c1"))

	saved, err := store.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, saved)

	reply, err := m.HandleTurn(context.Background(), "c1", "¿Cuáles son mis facturas?")
	require.NoError(t, err)
	assert.Equal(t, cfg.Errors["factura.dni"], reply)
}

type failingRepo struct{ *repo.MemorySessionRepository }

func (failingRepo) Save(context.Context, *agentmodel.SessionState) error {
	return errors.New("store unavailable")
}

func TestSaveFailureStillReplies(t *testing.T) {
	orch, cfg := newOrchestrator(t, &watchModel{})
	m, err := NewManager(orch, failingRepo{repo.NewMemorySessionRepository(0, 0)}, 0)
	require.NoError(t, err)

	reply, err := m.HandleTurn(context.Background(), "c1", "hola")
	assert.Error(t, err)
	assert.Equal(t, cfg.Messages.GreetingReply, reply)
}
