package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/chative-dialogue/server/internal/agent/model"
	logx "github.com/chative-dialogue/server/pkg/logger"
)

// Source produces the provider's descriptors.
type Source interface {
	Fetch(ctx context.Context) ([]Descriptor, error)
}

// OpenAPISource reads descriptors from the provider's OpenAPI document.
type OpenAPISource struct {
	url    string
	client *http.Client
}

var _ Source = (*OpenAPISource)(nil)

func NewOpenAPISource(cfg model.ToolProviderConfig, client *http.Client) *OpenAPISource {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAPISource{
		url:    strings.TrimRight(cfg.BaseURL, "/") + cfg.OpenAPIPath,
		client: client,
	}
}

func (s *OpenAPISource) Fetch(ctx context.Context) ([]Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build openapi request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch openapi document: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openapi document: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch openapi document: status %d", resp.StatusCode)
	}
	return ParseOpenAPI(body)
}

// ParseOpenAPI turns every operation with an operationId into a Descriptor.
// Inputs come from the application/json request body, or from the query and
// path parameters when there is no body.
func ParseOpenAPI(data []byte) ([]Descriptor, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}

	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []Descriptor
	for _, path := range paths {
		item := doc.Paths[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for m := range ops {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		for _, method := range methods {
			op := ops[method]
			if op == nil || op.OperationID == "" {
				continue
			}
			input := CleanSchema(inputSchema(item, op))
			desc := firstNonEmpty(op.Description, op.Summary, fmt.Sprintf("Operación %s %s", strings.ToUpper(method), path))
			out = append(out, Descriptor{
				Name:        op.OperationID,
				Description: desc,
				Method:      strings.ToUpper(method),
				Path:        path,
				Schema:      input,
				Info: &schema.ToolInfo{
					Name:        op.OperationID,
					Desc:        desc,
					ParamsOneOf: schema.NewParamsOneOfByParams(ToParams(input)),
				},
			})
		}
	}
	logx.Debug().Int("tools", len(out)).Msg("OpenAPI document parsed")
	return out, nil
}

func inputSchema(item *openapi3.PathItem, op *openapi3.Operation) *openapi3.Schema {
	if op.RequestBody != nil && op.RequestBody.Value != nil {
		if mt := op.RequestBody.Value.Content.Get("application/json"); mt != nil && mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema.Value
		}
	}

	obj := openapi3.NewObjectSchema()
	params := append(openapi3.Parameters{}, item.Parameters...)
	params = append(params, op.Parameters...)
	for _, ref := range params {
		if ref == nil || ref.Value == nil {
			continue
		}
		p := ref.Value
		if p.In != openapi3.ParameterInQuery && p.In != openapi3.ParameterInPath {
			continue
		}
		prop := openapi3.NewStringSchema()
		if p.Schema != nil && p.Schema.Value != nil {
			prop = p.Schema.Value
		}
		if prop.Description == "" && p.Description != "" {
			cp := *prop
			cp.Description = p.Description
			prop = &cp
		}
		obj.WithProperty(p.Name, prop)
		if p.Required {
			obj.Required = append(obj.Required, p.Name)
		}
	}
	return obj
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
