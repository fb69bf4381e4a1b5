package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-dialogue/server/internal/agent/model"
	errx "github.com/chative-dialogue/server/internal/core/error"
)

func TestInvokerPostsJSONBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/facturas/todas", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"facturas":[]}`))
	}))
	defer srv.Close()

	inv := NewInvoker(model.ToolProviderConfig{BaseURL: srv.URL, Timeout: time.Second}, srv.Client())
	out, err := inv.Call(context.Background(), Descriptor{Name: "todas_las_facturas", Method: http.MethodPost, Path: "/facturas/todas"},
		map[string]any{"dni": "12345678A"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"facturas":[]}`, string(out))
	assert.Equal(t, map[string]any{"dni": "12345678A"}, got)
}

func TestInvokerQueryAndPathParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "/incidencias", r.URL.Path)
			assert.Equal(t, "Madrid", r.URL.Query().Get("ubicacion"))
		case http.MethodDelete:
			assert.Equal(t, "/incidencias/42", r.URL.Path)
			assert.Empty(t, r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	inv := NewInvoker(model.ToolProviderConfig{BaseURL: srv.URL}, srv.Client())
	_, err := inv.Call(context.Background(), Descriptor{Name: "q", Method: http.MethodGet, Path: "/incidencias"}, map[string]any{"ubicacion": "Madrid"})
	require.NoError(t, err)
	_, err = inv.Call(context.Background(), Descriptor{Name: "d", Method: http.MethodDelete, Path: "/incidencias/{id}"}, map[string]any{"id": 42})
	require.NoError(t, err)
}

func TestInvokerNon2xxIsToolExecutionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"abonado no encontrado"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	inv := NewInvoker(model.ToolProviderConfig{BaseURL: srv.URL}, srv.Client())
	_, err := inv.Call(context.Background(), Descriptor{Name: "datos_abonado", Method: http.MethodPost, Path: "/abonado"}, nil)
	require.Error(t, err)
	assert.Equal(t, errx.KindToolExecution, errx.KindOf(err))
	assert.Contains(t, err.Error(), "404")
}

func TestInvokerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	inv := NewInvoker(model.ToolProviderConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, srv.Client())
	_, err := inv.Call(context.Background(), Descriptor{Name: "lento", Method: http.MethodPost, Path: "/"}, nil)
	require.Error(t, err)
	assert.Equal(t, errx.KindToolExecution, errx.KindOf(err))
}

func TestHTTPToolKeepsLargeIntegers(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	inv := NewInvoker(model.ToolProviderConfig{BaseURL: srv.URL}, srv.Client())
	tl := inv.Tool(Descriptor{Name: "detalle_incidencia", Method: http.MethodPost, Path: "/incidencias/detalle"})

	_, err := tl.InvokableRun(context.Background(), `{"id":9007199254740993}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9007199254740993}`, body)
	assert.Contains(t, body, "9007199254740993")
}

func TestHTTPToolFiresCallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"deuda":10}`))
	}))
	defer srv.Close()

	var starts, ends, errs int
	handler := callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, _ *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			starts++
			return ctx
		}).
		OnEndFn(func(ctx context.Context, _ *callbacks.RunInfo, _ callbacks.CallbackOutput) context.Context {
			ends++
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, _ *callbacks.RunInfo, _ error) context.Context {
			errs++
			return ctx
		}).
		Build()

	inv := NewInvoker(model.ToolProviderConfig{BaseURL: srv.URL}, srv.Client())
	tl := inv.Tool(Descriptor{Name: "deuda_total", Method: http.MethodPost, Path: "/deuda"})

	ctx := callbacks.InitCallbacks(context.Background(), &callbacks.RunInfo{Name: "deuda_total", Type: tl.GetType(), Component: components.ComponentOfTool}, handler)
	out, err := tl.InvokableRun(ctx, `{"dni":"12345678A"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"deuda":10}`, out)

	_, err = tl.InvokableRun(ctx, `{broken`)
	require.Error(t, err)

	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, ends)
	assert.Equal(t, 1, errs)
}
