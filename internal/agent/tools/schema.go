package tools

import (
	"slices"

	"github.com/cloudwego/eino/schema"
	"github.com/getkin/kin-openapi/openapi3"
)

// maxSchemaDepth bounds nesting in tool schemas. Deeper levels, and any
// schema that refers back to one of its ancestors, are cut to a bare type.
const maxSchemaDepth = 8

// CleanSchema returns a copy of s that completion services accept: anyOf
// unions are collapsed to a single type, preferring string, and only the
// keywords the tool schema needs are kept. The result is always acyclic.
func CleanSchema(s *openapi3.Schema) *openapi3.Schema {
	return cleanSchema(s, make(map[*openapi3.Schema]bool), 0)
}

func cleanSchema(s *openapi3.Schema, path map[*openapi3.Schema]bool, depth int) *openapi3.Schema {
	if s == nil {
		return nil
	}
	out := &openapi3.Schema{
		Type:        s.Type,
		Title:       s.Title,
		Description: s.Description,
		Format:      s.Format,
		Enum:        slices.Clone(s.Enum),
		Required:    slices.Clone(s.Required),
	}
	if out.Type == "" && len(s.AnyOf) > 0 {
		out.Type = collapseAnyOf(s.AnyOf)
	}
	if path[s] || depth >= maxSchemaDepth {
		out.Required = nil
		if out.Type == "" {
			out.Type = openapi3.TypeObject
		}
		return out
	}
	path[s] = true
	defer delete(path, s)

	if len(s.Properties) > 0 {
		out.Properties = make(openapi3.Schemas, len(s.Properties))
		for name, ref := range s.Properties {
			if ref == nil || ref.Value == nil {
				continue
			}
			out.Properties[name] = openapi3.NewSchemaRef("", cleanSchema(ref.Value, path, depth+1))
		}
		if out.Type == "" {
			out.Type = openapi3.TypeObject
		}
	}
	if s.Items != nil && s.Items.Value != nil {
		out.Items = openapi3.NewSchemaRef("", cleanSchema(s.Items.Value, path, depth+1))
	}
	return out
}

func collapseAnyOf(refs openapi3.SchemaRefs) string {
	var first string
	for _, ref := range refs {
		if ref == nil || ref.Value == nil {
			continue
		}
		t := ref.Value.Type
		if t == openapi3.TypeString {
			return t
		}
		if first == "" && t != "" && t != "null" {
			first = t
		}
	}
	if first == "" {
		return openapi3.TypeString
	}
	return first
}

// ToParams converts an object schema into eino parameter definitions.
// Recursive references stop at the first repeated schema.
func ToParams(s *openapi3.Schema) map[string]*schema.ParameterInfo {
	return toParams(s, make(map[*openapi3.Schema]bool), 0)
}

func toParams(s *openapi3.Schema, path map[*openapi3.Schema]bool, depth int) map[string]*schema.ParameterInfo {
	params := make(map[string]*schema.ParameterInfo)
	if s == nil || path[s] || depth >= maxSchemaDepth {
		return params
	}
	path[s] = true
	defer delete(path, s)

	for name, ref := range s.Properties {
		if ref == nil || ref.Value == nil {
			continue
		}
		params[name] = paramInfo(ref.Value, slices.Contains(s.Required, name), path, depth+1)
	}
	return params
}

func paramInfo(s *openapi3.Schema, required bool, path map[*openapi3.Schema]bool, depth int) *schema.ParameterInfo {
	p := &schema.ParameterInfo{
		Type:     dataType(s.Type),
		Desc:     firstNonEmpty(s.Description, s.Title),
		Required: required,
	}
	for _, e := range s.Enum {
		if v, ok := e.(string); ok {
			p.Enum = append(p.Enum, v)
		}
	}
	if path[s] || depth >= maxSchemaDepth {
		return p
	}
	switch p.Type {
	case schema.Array:
		if s.Items != nil && s.Items.Value != nil {
			path[s] = true
			p.ElemInfo = paramInfo(s.Items.Value, false, path, depth+1)
			delete(path, s)
		}
	case schema.Object:
		p.SubParams = toParams(s, path, depth)
	}
	return p
}

func dataType(t string) schema.DataType {
	switch t {
	case openapi3.TypeObject:
		return schema.Object
	case openapi3.TypeArray:
		return schema.Array
	case openapi3.TypeInteger:
		return schema.Integer
	case openapi3.TypeNumber:
		return schema.Number
	case openapi3.TypeBoolean:
		return schema.Boolean
	}
	return schema.String
}
