package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecodeArguments parses a tool call's JSON arguments. Numbers are kept as
// json.Number so large identifiers reach the provider unchanged. Blank input
// yields an empty map.
func DecodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, err
	}
	if args == nil {
		return nil, errors.New("arguments are null")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after arguments")
	}
	return args, nil
}

// placeholderValues are argument values completion services emit when they
// know an argument is needed but not its value.
var placeholderValues = map[string]bool{
	"":                true,
	"dni":             true,
	"dni del abonado": true,
	"your dni":        true,
	"dni_value":       true,
	"<dni>":           true,
	"string":          true,
	"null":            true,
	"none":            true,
}

func isPlaceholder(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return placeholderValues[strings.ToLower(strings.TrimSpace(x))]
	}
	return false
}

// CompleteArguments trims string arguments and fills every schema property
// that is missing or holds a placeholder with the conversation slot of the
// same name. Values the model supplied explicitly are kept.
func CompleteArguments(d Descriptor, args map[string]any, slots map[string]string) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		out[k] = v
	}

	var names []string
	if d.Schema != nil {
		for name := range d.Schema.Properties {
			names = append(names, name)
		}
	}
	for name := range out {
		names = append(names, name)
	}

	for _, name := range names {
		value, ok := slots[name]
		if !ok || value == "" {
			continue
		}
		if cur, present := out[name]; !present || isPlaceholder(cur) {
			out[name] = value
		}
	}
	return out
}
