package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Built-in slot validators.
var builtinValidators = map[string]string{
	"dni":   `^\d{8}[A-Za-z]$`,
	"email": `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`,
	"phone": `^(\+34|0034|34)?[6789]\d{8}$`,
}

// CompileValidator resolves a validator definition into a regexp. An empty definition
// returns nil, meaning every value is accepted. Custom expressions must match
// the whole value.
func CompileValidator(def string) (*regexp.Regexp, error) {
	def = strings.TrimSpace(def)
	if def == "" {
		return nil, nil
	}
	if expr, ok := builtinValidators[def]; ok {
		return regexp.MustCompile(expr), nil
	}
	re, err := regexp.Compile(`^(?:` + def + `)$`)
	if err != nil {
		return nil, fmt.Errorf("validator %q: %w", def, err)
	}
	return re, nil
}
