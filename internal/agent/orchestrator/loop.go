package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/chative-dialogue/server/internal/agent/config"
	agentmodel "github.com/chative-dialogue/server/internal/agent/model"
	"github.com/chative-dialogue/server/internal/agent/tools"
	errx "github.com/chative-dialogue/server/internal/core/error"
	logx "github.com/chative-dialogue/server/pkg/logger"
)

// turnLoop is the tool loop of a single turn. Nothing in it outlives the turn.
type turnLoop struct {
	o        *Orchestrator
	conv     *Conversation
	state    agentmodel.ConversationContext
	policy   config.Policy
	catalog  *tools.Catalog
	allowed  map[string]tools.Descriptor
	infos    []*schema.ToolInfo
	messages []*schema.Message
	seen     map[string]bool
	budget   callBudget
	toolRan  bool
}

func newTurnLoop(o *Orchestrator, conv *Conversation, state agentmodel.ConversationContext,
	policy config.Policy, catalog *tools.Catalog, messages []*schema.Message) *turnLoop {
	selected := catalog.Select(policy.Tools)
	allowed := make(map[string]tools.Descriptor, len(selected))
	for _, d := range selected {
		allowed[d.Name] = d
	}
	return &turnLoop{
		o:        o,
		conv:     conv,
		state:    state,
		policy:   policy,
		catalog:  catalog,
		allowed:  allowed,
		infos:    catalog.Infos(policy.Tools),
		messages: messages,
		seen:     make(map[string]bool),
		budget:   callBudget{max: o.limits.MaxToolCalls},
	}
}

func (l *turnLoop) run(ctx context.Context) (string, error) {
	text, done, err := l.iterate(ctx, schema.ToolChoiceAllowed, l.o.limits.RetryLimit)
	if err != nil {
		return "", err
	}
	if done {
		return text, nil
	}

	if l.policy.ForceToolUsage {
		return l.force(ctx)
	}

	reply, rejected := l.o.guard.Check(text, l.state.RequiresRealData, l.toolRan)
	if rejected != nil {
		logx.Warn().
			Str("conversation_id", l.conv.ID).
			Str("policy", l.policy.ID).
			Err(rejected).
			Msg("Reply replaced by guard")
	}
	return reply, nil
}

// force gives the model one more chance with tool use required.
func (l *turnLoop) force(ctx context.Context) (string, error) {
	if errs := l.conv.store.Validate(); len(errs) > 0 {
		return "", errs.Err()
	}
	if len(l.allowed) == 0 {
		return "", errx.ForcedToolUsage(l.policy.ID)
	}

	logx.Warn().
		Str("conversation_id", l.conv.ID).
		Str("policy", l.policy.ID).
		Msg("No tool result for a tool-only policy; retrying with forced tool choice")

	l.messages = append(l.messages, schema.UserMessage(l.o.cfg.Messages.ForceInstruction))
	text, done, err := l.iterate(ctx, schema.ToolChoiceForced, 1)
	if errx.KindOf(err) == errx.KindCompletion {
		return "", err
	}
	if err == nil && done {
		return text, nil
	}
	return "", errx.ForcedToolUsage(l.policy.ID)
}

// iterate asks the model up to attempts times. It returns done=true with the
// rendered tool result on the first successful call, or done=false with the
// model's text once it stops calling tools.
func (l *turnLoop) iterate(ctx context.Context, choice schema.ToolChoice, attempts int) (string, bool, error) {
	for i := 0; i < attempts; i++ {
		msg, err := l.generate(ctx, choice)
		if err != nil {
			return "", false, errx.Completion(err)
		}

		calls, malformed := l.pendingCalls(msg)
		if len(calls) == 0 && len(malformed) == 0 {
			return msg.Content, false, nil
		}
		l.messages = append(l.messages, msg)

		for _, call := range malformed {
			logx.Warn().
				Str("conversation_id", l.conv.ID).
				Str("tool_name", call.Name).
				Str("arguments", call.RawArguments).
				Msg("Malformed tool call skipped")
			l.appendToolResult(call, errorPayload("invalid_arguments", call.Name, "arguments must be a JSON object"))
		}

		executed := false
		for _, call := range calls {
			d, known := l.allowed[call.Name]
			args := call.Arguments
			if known {
				args = tools.CompleteArguments(d, args, l.state.Slots())
			}

			key := dedupKey(call.Name, args)
			if l.seen[key] {
				logx.Warn().
					Str("conversation_id", l.conv.ID).
					Str("tool_name", call.Name).
					Msg("Repeated tool call; leaving tool loop")
				return "", false, nil
			}
			l.seen[key] = true

			if !known {
				executed = true
				err := errx.ToolNotFound(call.Name)
				logx.Warn().Str("conversation_id", l.conv.ID).Err(err).Msg("Unknown tool requested")
				l.appendToolResult(call, errorPayload("unknown_tool", call.Name, err.Error()))
				continue
			}
			if !l.budget.take() {
				logx.Warn().
					Str("conversation_id", l.conv.ID).
					Str("tool_name", call.Name).
					Int("max_calls", l.budget.max).
					Msg("Tool call limit reached")
				l.appendToolResult(call, errorPayload("tool_call_limit_reached", call.Name, "no more tool calls allowed in this turn"))
				continue
			}

			executed = true
			l.toolRan = true
			out, err := l.execute(ctx, d, args)
			if err == nil {
				return l.o.deps.Formatter.Render(d.Name, out), true, nil
			}
			logx.Warn().
				Str("conversation_id", l.conv.ID).
				Str("tool_name", d.Name).
				Err(err).
				Msg("Tool call failed")
			l.appendToolResult(call, errorPayload("tool_execution", call.Name, err.Error()))
		}

		if executed {
			choice = schema.ToolChoiceAllowed
		} else {
			choice = schema.ToolChoiceForbidden
		}
	}
	return "", false, errx.RetryLimitExceeded(attempts)
}

func (l *turnLoop) generate(ctx context.Context, choice schema.ToolChoice) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, l.o.limits.CompletionTimeout)
	defer cancel()
	ctx = l.o.withCallbacks(ctx, l.o.deps.ModelName, "ChatModel", components.ComponentOfChatModel)

	var opts []model.Option
	if len(l.infos) > 0 {
		opts = append(opts, model.WithTools(l.infos), model.WithToolChoice(choice))
	}
	msg, err := l.o.deps.Model.Generate(ctx, l.messages, opts...)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("completion returned no message")
	}
	return msg, nil
}

// pendingCalls reads structured tool calls, falling back to pseudo calls
// written inside the text.
func (l *turnLoop) pendingCalls(msg *schema.Message) (calls, malformed []agentmodel.PendingToolCall) {
	for i := range msg.ToolCalls {
		tc := &msg.ToolCalls[i]
		if tc.ID == "" {
			tc.ID = "call_" + uuid.NewString()
		}
		call := agentmodel.PendingToolCall{
			ID:           tc.ID,
			Name:         strings.TrimSpace(tc.Function.Name),
			RawArguments: tc.Function.Arguments,
		}
		args, err := tools.DecodeArguments(tc.Function.Arguments)
		if err != nil || call.Name == "" {
			malformed = append(malformed, call)
			continue
		}
		call.Arguments = args
		calls = append(calls, call)
	}
	if len(msg.ToolCalls) > 0 {
		return calls, malformed
	}

	known := func(name string) bool {
		_, ok := l.catalog.Lookup(name)
		return ok
	}
	return parseInlineCalls(msg.Content, known), nil
}

func (l *turnLoop) execute(ctx context.Context, d tools.Descriptor, args map[string]any) ([]byte, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, errx.ToolExecution(d.Name, fmt.Errorf("encode arguments: %w", err))
	}
	ctx = l.o.withCallbacks(ctx, d.Name, "HTTPTool", components.ComponentOfTool)
	out, err := l.o.deps.NewTool(d).InvokableRun(ctx, string(raw))
	if err != nil {
		if errx.KindOf(err) == errx.KindUnknown {
			err = errx.ToolExecution(d.Name, err)
		}
		return nil, err
	}
	return []byte(out), nil
}

// appendToolResult feeds a tool outcome back to the model. Inline calls have
// no structured call to answer, so they get a user message instead.
func (l *turnLoop) appendToolResult(call agentmodel.PendingToolCall, payload string) {
	if call.Inline {
		l.messages = append(l.messages, schema.UserMessage(fmt.Sprintf("[%s] %s", call.Name, payload)))
		return
	}
	l.messages = append(l.messages, schema.ToolMessage(payload, call.ID, schema.WithToolName(call.Name)))
}

// dedupKey identifies a call by name and arguments; map keys marshal sorted.
func dedupKey(name string, args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil {
		return name + "|" + fmt.Sprint(args)
	}
	return name + "|" + string(b)
}

func errorPayload(kind, name, detail string) string {
	b, _ := json.Marshal(map[string]string{"error": kind, "name": name, "detail": detail})
	return string(b)
}
