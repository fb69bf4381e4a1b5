package main

import (
	"context"
	"fmt"
	"net/http"

	einocb "github.com/cloudwego/eino/callbacks"

	"github.com/chative-dialogue/server/internal/agent/config"
	"github.com/chative-dialogue/server/internal/agent/conversations"
	"github.com/chative-dialogue/server/internal/agent/formatter"
	"github.com/chative-dialogue/server/internal/agent/intents"
	"github.com/chative-dialogue/server/internal/agent/llm"
	"github.com/chative-dialogue/server/internal/agent/model"
	"github.com/chative-dialogue/server/internal/agent/observers"
	"github.com/chative-dialogue/server/internal/agent/orchestrator"
	"github.com/chative-dialogue/server/internal/agent/router"
	"github.com/chative-dialogue/server/internal/agent/session"
	"github.com/chative-dialogue/server/internal/agent/slots"
	"github.com/chative-dialogue/server/internal/agent/tools"
	"github.com/chative-dialogue/server/internal/repo"
	logx "github.com/chative-dialogue/server/pkg/logger"
)

// app is the wired dialogue manager shared by every command.
type app struct {
	sessions *session.Manager
	tools    *tools.Cache
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logx.Warn().Err(err).Msg("Error during shutdown")
		}
	}
}

func buildApp(ctx context.Context, cfg *AppConfig) (*app, error) {
	dialogue, err := config.Load(cfg.DialogueConfig)
	if err != nil {
		return nil, err
	}
	registry, err := slots.New(dialogue)
	if err != nil {
		return nil, fmt.Errorf("slot registry: %w", err)
	}

	client := &http.Client{}
	cache := tools.NewCache(tools.NewOpenAPISource(cfg.ToolProvider, client))
	if catalog, err := cache.Catalog(ctx); err != nil {
		logx.Warn().Err(err).Str("provider", cfg.ToolProvider.BaseURL).Msg("Tool catalog not loaded yet; will retry on first turn")
	} else {
		logx.Info().Int("tools", catalog.Len()).Msg("Tool catalog loaded")
	}

	chatModel, err := llm.NewChatModel(ctx, llm.ChatModelConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Completion: cfg.Completion,
	})
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Config:    dialogue,
		Registry:  registry,
		Resolver:  conversations.NewResolver(dialogue, registry, intents.NewKeywordClassifier(dialogue)),
		Validator: conversations.NewValidator(dialogue, registry),
		Routes:    router.NewTable(dialogue),
		Formatter: formatter.New(dialogue.Templates),
		Model:     chatModel,
		ModelName: cfg.Completion.Model,
		Tools:     cache,
		NewTool:   orchestrator.InvokerFactory(tools.NewInvoker(cfg.ToolProvider, client)),
		Callbacks: []einocb.Handler{observers.NewAllCallbacks(cfg.Completion.Model)},
		Limits: orchestrator.Limits{
			RetryLimit:        cfg.Conversation.ToolRetryLimit,
			MaxToolCalls:      cfg.Conversation.ToolMaxCalls,
			MaxTurnPairs:      cfg.Conversation.MaxTurnPairs,
			CompletionTimeout: cfg.Completion.Timeout,
		},
	})
	if err != nil {
		return nil, err
	}

	a := &app{tools: cache}
	store, err := buildRepository(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.sessions, err = session.NewManager(orch, store, cfg.Conversation.MaxSessions)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func buildRepository(ctx context.Context, cfg *AppConfig, a *app) (model.SessionRepository, error) {
	ttl, err := cfg.ConversationTTL()
	if err != nil {
		return nil, err
	}

	switch cfg.SessionStore.Backend {
	case "", "memory":
		return repo.NewMemorySessionRepository(cfg.SessionStore.MemoryMaxEntries, ttl), nil
	case "redis":
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		logx.Info().Msg("Connected to Redis successfully")
		return repo.NewRedisSessionRepository(rdb, ttl), nil
	default:
		return nil, fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore.Backend)
	}
}
