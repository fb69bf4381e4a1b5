package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/chative-dialogue/server/internal/agent/model"
	errx "github.com/chative-dialogue/server/internal/core/error"
)

const maxErrorBody = 512

// Invoker calls provider operations over HTTP.
type Invoker struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewInvoker(cfg model.ToolProviderConfig, client *http.Client) *Invoker {
	if client == nil {
		client = &http.Client{}
	}
	return &Invoker{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		timeout: cfg.Timeout,
	}
}

// Tool wraps a descriptor as an eino InvokableTool.
func (inv *Invoker) Tool(d Descriptor) *HTTPTool {
	return &HTTPTool{desc: d, invoker: inv}
}

// Call performs the request. GET and DELETE send arguments as query
// parameters, everything else as a JSON body; {name} path segments are
// filled from the arguments. Any non-2xx status is a tool execution error.
func (inv *Invoker) Call(ctx context.Context, d Descriptor, args map[string]any) ([]byte, error) {
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	rest := make(map[string]any, len(args))
	for k, v := range args {
		rest[k] = v
	}
	path := d.Path
	for k, v := range args {
		placeholder := "{" + k + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(fmt.Sprint(v)))
			delete(rest, k)
		}
	}

	target := inv.baseURL + path
	var body io.Reader
	switch d.Method {
	case http.MethodGet, http.MethodDelete:
		if len(rest) > 0 {
			target += "?" + encodeQuery(rest)
		}
	default:
		b, err := json.Marshal(rest)
		if err != nil {
			return nil, errx.ToolExecution(d.Name, fmt.Errorf("encode arguments: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, target, body)
	if err != nil {
		return nil, errx.ToolExecution(d.Name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := inv.client.Do(req)
	if err != nil {
		return nil, errx.ToolExecution(d.Name, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errx.ToolExecution(d.Name, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(out))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, errx.ToolExecution(d.Name, fmt.Errorf("status %d: %s", resp.StatusCode, snippet))
	}
	return out, nil
}

func encodeQuery(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := url.Values{}
	for _, k := range keys {
		switch v := args[k].(type) {
		case nil:
		case string:
			q.Set(k, v)
		default:
			q.Set(k, fmt.Sprint(v))
		}
	}
	return q.Encode()
}

// HTTPTool is a provider operation exposed through eino's tool interface so
// that registered tool callbacks observe every call.
type HTTPTool struct {
	desc    Descriptor
	invoker *Invoker
}

var _ tool.InvokableTool = (*HTTPTool)(nil)

func (t *HTTPTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return t.desc.Info, nil
}

func (t *HTTPTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	ctx = callbacks.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: argumentsInJSON})

	args, err := DecodeArguments(argumentsInJSON)
	if err != nil {
		err = errx.ToolExecution(t.desc.Name, fmt.Errorf("decode arguments: %w", err))
		callbacks.OnError(ctx, err)
		return "", err
	}

	out, err := t.invoker.Call(ctx, t.desc, args)
	if err != nil {
		callbacks.OnError(ctx, err)
		return "", err
	}
	callbacks.OnEnd(ctx, &tool.CallbackOutput{Response: string(out)})
	return string(out), nil
}

// IsCallbacksEnabled tells eino this component fires its own callbacks.
func (t *HTTPTool) IsCallbacksEnabled() bool {
	return true
}

func (t *HTTPTool) GetType() string {
	return "HTTPTool"
}
