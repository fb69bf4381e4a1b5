// Package session maps conversation ids to live conversations and serialises
// turns within each conversation.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chative-dialogue/server/internal/agent/model"
	"github.com/chative-dialogue/server/internal/agent/orchestrator"
	logx "github.com/chative-dialogue/server/pkg/logger"
)

var ErrEmptyConversationID = errors.New("conversation id is empty")

const DefaultMaxSessions = 1024

// Handler is the session boundary: one utterance in, one reply out.
type Handler interface {
	HandleTurn(ctx context.Context, conversationID, text string) (string, error)
	End(ctx context.Context, conversationID string) error
}

type entry struct {
	mu   sync.Mutex
	conv *orchestrator.Conversation
	refs int
}

// Manager keeps recently used conversations in an LRU. With a repository,
// evicted or unknown conversations are reloaded from it and every turn is
// saved back.
type Manager struct {
	orch *orchestrator.Orchestrator
	repo model.SessionRepository

	mu       sync.Mutex
	cache    *lru.Cache[string, *entry]
	inflight map[string]*entry
}

var _ Handler = (*Manager)(nil)

// NewManager builds a Manager. repo may be nil for process-local sessions.
func NewManager(orch *orchestrator.Orchestrator, repo model.SessionRepository, maxSessions int) (*Manager, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	cache, err := lru.New[string, *entry](maxSessions)
	if err != nil {
		return nil, err
	}
	return &Manager{
		orch:     orch,
		repo:     repo,
		cache:    cache,
		inflight: make(map[string]*entry),
	}, nil
}

// HandleTurn runs one turn. Turns of the same conversation never overlap;
// different conversations proceed independently. The error is only about
// session bookkeeping; the reply is always usable.
func (m *Manager) HandleTurn(ctx context.Context, conversationID, text string) (string, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return "", ErrEmptyConversationID
	}

	e := m.acquire(conversationID)
	defer m.release(conversationID, e)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conv == nil {
		e.conv = m.load(ctx, conversationID)
	}

	reply := m.orch.HandleTurn(ctx, e.conv, text)

	if m.repo != nil {
		// The turn is committed once it ran, even if the caller went away.
		if err := m.repo.Save(context.WithoutCancel(ctx), e.conv.State()); err != nil {
			logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("Failed to persist conversation state")
			return reply, err
		}
	}
	return reply, nil
}

// End forgets a conversation. The next turn with the same id starts fresh.
func (m *Manager) End(ctx context.Context, conversationID string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return ErrEmptyConversationID
	}

	e := m.acquire(conversationID)
	defer m.release(conversationID, e)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.conv = nil

	if m.repo != nil {
		if err := m.repo.Delete(ctx, conversationID); err != nil {
			return err
		}
	}
	logx.Debug().Str("conversation_id", conversationID).Msg("Conversation ended")
	return nil
}

// Snapshot returns the state of a live conversation.
func (m *Manager) Snapshot(conversationID string) (*model.SessionState, bool) {
	m.mu.Lock()
	e, ok := m.inflight[conversationID]
	if !ok {
		e, ok = m.cache.Peek(conversationID)
	}
	m.mu.Unlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conv == nil {
		return nil, false
	}
	return e.conv.State(), true
}

// Len is the number of conversations held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

// acquire returns the single entry for id. An entry in use is pinned in
// inflight so that LRU eviction cannot split a conversation in two.
func (m *Manager) acquire(id string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.inflight[id]
	if !ok {
		if e, ok = m.cache.Get(id); !ok {
			e = &entry{}
			m.cache.Add(id, e)
		}
		m.inflight[id] = e
	}
	e.refs++
	return e
}

func (m *Manager) release(id string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs > 0 {
		return
	}
	delete(m.inflight, id)
	if e.conv != nil {
		m.cache.Add(id, e)
	}
}

func (m *Manager) load(ctx context.Context, id string) *orchestrator.Conversation {
	if m.repo == nil {
		return m.orch.NewConversation(id)
	}
	state, err := m.repo.Load(ctx, id)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", id).Msg("Failed to load conversation state; starting fresh")
		return m.orch.NewConversation(id)
	}
	if state == nil {
		return m.orch.NewConversation(id)
	}
	return m.orch.Resume(state)
}
