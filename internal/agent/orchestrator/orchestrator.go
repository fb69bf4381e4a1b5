// Package orchestrator runs one dialogue turn: context update, validation,
// policy routing, the bounded tool loop and the reply guard.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/chative-dialogue/server/internal/agent/config"
	"github.com/chative-dialogue/server/internal/agent/conversations"
	"github.com/chative-dialogue/server/internal/agent/formatter"
	agentmodel "github.com/chative-dialogue/server/internal/agent/model"
	"github.com/chative-dialogue/server/internal/agent/prompts"
	"github.com/chative-dialogue/server/internal/agent/router"
	"github.com/chative-dialogue/server/internal/agent/slots"
	"github.com/chative-dialogue/server/internal/agent/tools"
	errx "github.com/chative-dialogue/server/internal/core/error"
	logx "github.com/chative-dialogue/server/pkg/logger"
)

// ChatModel is the completion service. *gemini.ChatModel satisfies it.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ToolCatalog yields the provider's tool descriptors. *tools.Cache satisfies it.
type ToolCatalog interface {
	Catalog(ctx context.Context) (*tools.Catalog, error)
}

// ToolFactory binds a descriptor to an executable tool.
type ToolFactory func(d tools.Descriptor) tool.InvokableTool

// InvokerFactory adapts a tools.Invoker to a ToolFactory.
func InvokerFactory(inv *tools.Invoker) ToolFactory {
	return func(d tools.Descriptor) tool.InvokableTool { return inv.Tool(d) }
}

// Deps are the shared, stateless collaborators of every conversation.
type Deps struct {
	Config    *config.Config
	Registry  *slots.Registry
	Resolver  *conversations.Resolver
	Validator *conversations.Validator
	Routes    *router.Table
	Formatter *formatter.Formatter

	Model     ChatModel
	ModelName string
	Tools     ToolCatalog
	NewTool   ToolFactory

	// Callbacks observe the model, tool and prompt components. Optional.
	Callbacks []einocb.Handler
	Limits    Limits
}

type Orchestrator struct {
	deps   Deps
	cfg    *config.Config
	limits Limits
	guard  *Guard
}

func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("orchestrator: config is nil")
	case deps.Registry == nil || deps.Resolver == nil || deps.Validator == nil:
		return nil, fmt.Errorf("orchestrator: dialogue state components are nil")
	case deps.Routes == nil || deps.Formatter == nil:
		return nil, fmt.Errorf("orchestrator: router or formatter is nil")
	case deps.Model == nil:
		return nil, fmt.Errorf("orchestrator: chat model is nil")
	case deps.Tools == nil || deps.NewTool == nil:
		return nil, fmt.Errorf("orchestrator: tool catalog or factory is nil")
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    deps.Config,
		limits: deps.Limits.normalized(),
		guard:  NewGuard(deps.Config.Guard),
	}, nil
}

// Conversation is the state of one conversation. It is not safe for
// concurrent use; the session layer serialises turns.
type Conversation struct {
	ID      string
	store   *conversations.Store
	router  *router.Router
	history []*schema.Message
}

func (o *Orchestrator) NewConversation(id string) *Conversation {
	return &Conversation{
		ID:     id,
		store:  conversations.NewStore(o.deps.Resolver, o.deps.Validator),
		router: router.New(o.deps.Routes),
	}
}

// Resume rebuilds a conversation from persisted state.
func (o *Orchestrator) Resume(state *agentmodel.SessionState) *Conversation {
	c := o.NewConversation(state.ConversationID)
	c.store.Restore(state.Context)
	c.router.Restore(state.LastPolicy)
	c.history = append([]*schema.Message(nil), state.History...)
	return c
}

// State snapshots the conversation for persistence.
func (c *Conversation) State() *agentmodel.SessionState {
	return &agentmodel.SessionState{
		ConversationID: c.ID,
		Context:        c.store.Current(),
		LastPolicy:     c.router.LastUsed(),
		History:        append([]*schema.Message(nil), c.history...),
	}
}

func (c *Conversation) Context() agentmodel.ConversationContext {
	return c.store.Current()
}

func (c *Conversation) History() []*schema.Message {
	return append([]*schema.Message(nil), c.history...)
}

func (c *Conversation) record(user, assistant string, maxPairs int) {
	c.history = append(c.history, schema.UserMessage(user), schema.AssistantMessage(assistant, nil))
	c.history = conversations.TrimHistory(c.history, maxPairs)
}

// HandleTurn processes one utterance and always returns a user-facing reply.
// Failures are logged and converted to the configured messages.
func (o *Orchestrator) HandleTurn(ctx context.Context, conv *Conversation, text string) (reply string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logx.Error().
				Str("conversation_id", conv.ID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Turn panicked")
			reply = o.cfg.Messages.Apology
		}
	}()

	text = strings.TrimSpace(text)
	if o.cfg.IsGreeting(text) {
		return o.cfg.Messages.GreetingReply
	}
	if o.cfg.IsFarewell(text) {
		return o.cfg.Messages.FarewellReply
	}

	out, err := o.runTurn(ctx, conv, text)
	if err != nil {
		out = o.replyForError(conv, err)
	}
	conv.record(text, out, o.limits.MaxTurnPairs)

	logx.Info().
		Str("conversation_id", conv.ID).
		Str("intent", string(conv.store.Current().Intent)).
		Str("policy", conv.router.LastUsed()).
		Dur("elapsed", time.Since(start)).
		Bool("failed", err != nil).
		Msg("Turn handled")
	return out
}

func (o *Orchestrator) replyForError(conv *Conversation, err error) string {
	var ae *errx.AppError
	kind := errx.KindOf(err)
	switch {
	case kind == errx.KindValidation && errors.As(err, &ae):
		logx.Debug().Str("conversation_id", conv.ID).Err(err).Msg("Context incomplete")
		return ae.Message
	case kind == errx.KindForcedToolUsage:
		logx.Warn().Str("conversation_id", conv.ID).Err(err).Msg("Forced tool usage unsatisfied")
		return o.cfg.Messages.ForcedToolFailure
	default:
		logx.Error().Str("conversation_id", conv.ID).Str("kind", string(kind)).Err(err).Msg("Turn failed")
		return o.cfg.Messages.Apology
	}
}

func (o *Orchestrator) runTurn(ctx context.Context, conv *Conversation, text string) (string, error) {
	state := conv.store.Update(text)
	if errs := conv.store.Validate(); len(errs) > 0 {
		return "", errs.Err()
	}

	policy := conv.router.Select(state)

	promptCtx := o.withCallbacks(ctx, "PolicyPrompt", "DefaultChatTemplate", components.ComponentOfPrompt)
	system, err := prompts.RenderPolicySystem(promptCtx, policy, state, o.injectSlots(state.Intent))
	if err != nil {
		return "", err
	}

	catalog, err := o.deps.Tools.Catalog(ctx)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", conv.ID).Msg("Tool catalog unavailable; continuing without tools")
		catalog = tools.NewCatalog(nil)
	}

	loop := newTurnLoop(o, conv, state, policy, catalog,
		conversations.BuildTurnMessages(system, conv.history, text))
	return loop.run(ctx)
}

// injectSlots lists the slots shown to the model. Without an explicit inject
// list the intent's required and inherited slots are used.
func (o *Orchestrator) injectSlots(intent agentmodel.Intent) []string {
	if inject := o.deps.Registry.InjectFor(intent); len(inject) > 0 {
		return inject
	}
	names := o.deps.Registry.RequiredFor(intent)
	for _, name := range o.deps.Registry.InheritFor(intent) {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

func (o *Orchestrator) withCallbacks(ctx context.Context, name, typ string, component components.Component) context.Context {
	if len(o.deps.Callbacks) == 0 {
		return ctx
	}
	return einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      name,
		Type:      typ,
		Component: component,
	}, o.deps.Callbacks...)
}
