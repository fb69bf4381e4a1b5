// Package formatter renders tool results into user-facing markdown using the
// configured per-tool templates.
package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/chative-dialogue/server/internal/agent/config"
	logx "github.com/chative-dialogue/server/pkg/logger"
)

const missingValue = "N/A"

// Formatter is pure and safe for concurrent use.
type Formatter struct {
	templates map[string]config.Template
}

func New(templates map[string]config.Template) *Formatter {
	return &Formatter{templates: templates}
}

// Render formats a tool's raw JSON result. It never panics; any template
// failure degrades to the generic rendering.
func (f *Formatter) Render(tool string, result []byte) (out string) {
	data, err := decode(result)
	if err != nil {
		return fmt.Sprintf("### Respuesta de %s\n\n%s", tool, strings.TrimSpace(string(result)))
	}

	tpl, ok := f.templates[tool]
	if !ok {
		return defaultFormat(tool, data)
	}

	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("tool_name", tool).Interface("panic", r).Msg("Template rendering failed, using default format")
			out = defaultFormat(tool, data)
		}
	}()

	switch tpl.Type {
	case config.TemplateTable:
		return formatTable(tpl, data)
	case config.TemplateSingleItem:
		return formatSingleItem(tpl, data)
	case config.TemplateList:
		return formatList(tpl, data)
	case config.TemplateCards:
		return formatCards(tpl, data)
	case config.TemplateSuccess:
		return formatSuccess(tpl, data)
	}
	return defaultFormat(tool, data)
}

func decode(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// ===== Templates =====

func formatTable(tpl config.Template, data any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", or(tpl.Title, "Datos"))

	items := listAt(data, or(tpl.DataKey, "items"))
	if len(items) == 0 {
		b.WriteString(or(tpl.EmptyMessage, "No hay datos disponibles."))
		return b.String()
	}
	if len(tpl.Headers) == 0 || len(tpl.Columns) == 0 {
		return b.String()
	}

	b.WriteString("| " + strings.Join(tpl.Headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("-------|", len(tpl.Headers)) + "\n")

	var total float64
	for _, raw := range items {
		item, _ := raw.(map[string]any)
		row := make([]string, len(tpl.Columns))
		for i, col := range tpl.Columns {
			v, ok := item[col]
			if !ok {
				row[i] = missingValue
			} else {
				row[i] = stringify(v)
			}
			if tpl.Total != nil && col == tpl.Total.Column && ok {
				total += parseAmount(stringify(v))
			}
		}
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}

	if tpl.Total != nil && total > 0 {
		fmt.Fprintf(&b, "\n**Total:** %.2f%s\n", total, tpl.Total.Currency)
	}
	return b.String()
}

func formatSingleItem(tpl config.Template, data any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", or(tpl.Title, "Información"))

	item := asMap(data)
	if tpl.DataKey != "" {
		item = asMap(item[tpl.DataKey])
	}
	if len(item) == 0 {
		b.WriteString("No se encontraron datos.")
		return b.String()
	}

	for _, field := range tpl.Fields {
		v, ok := item[field.Key]
		if !ok || v == nil {
			continue
		}
		label := or(field.Label, field.Key)
		if field.Icon != "" {
			label = field.Icon + " " + label
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", label, stringify(v))
	}

	for _, nested := range tpl.NestedLists {
		list, _ := item[nested.Key].([]any)
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n**%s:**\n", or(nested.Title, nested.Key))
		for _, v := range list {
			fmt.Fprintf(&b, "- %s\n", stringify(v))
		}
	}
	return b.String()
}

func formatList(tpl config.Template, data any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", or(tpl.Title, "Lista"))

	items := listAt(data, or(tpl.DataKey, "items"))
	if len(items) == 0 {
		b.WriteString("No hay elementos en la lista.")
		return b.String()
	}
	if tpl.ShowCount {
		fmt.Fprintf(&b, "Se encontraron %d elementos:\n\n", len(items))
	}

	format := or(tpl.ItemFormat, "- {}")
	for _, raw := range items {
		switch v := raw.(type) {
		case map[string]any:
			b.WriteString(fill(format, v))
		case nil:
			b.WriteString(missingValue)
		default:
			b.WriteString(strings.ReplaceAll(format, "{}", stringify(v)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatCards(tpl config.Template, data any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", or(tpl.Title, "Tarjetas"))

	items := listAt(data, or(tpl.DataKey, "items"))
	if len(items) == 0 {
		b.WriteString(or(tpl.EmptyMessage, "No hay datos disponibles."))
		return b.String()
	}

	for _, raw := range items {
		item := asMap(raw)
		fmt.Fprintf(&b, "### %s\n", fill(or(tpl.CardTitle, "Elemento"), item))
		for _, field := range tpl.CardFields {
			v, ok := item[field.Key]
			value := missingValue
			if ok && v != nil {
				value = stringify(v)
			}
			fmt.Fprintf(&b, "**%s:** %s\n", or(field.Label, titleKey(field.Key)), value)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatSuccess(tpl config.Template, data any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", or(tpl.Title, "✅ Éxito"))

	root := asMap(data)
	b.WriteString(fill(or(tpl.MessageTemplate, "Operación completada."), root))
	b.WriteString("\n")

	if tpl.ShowDetails {
		details := asMap(root[or(tpl.DataKey, "result")])
		if len(details) > 0 {
			b.WriteString("\n### Detalles:\n")
			for _, k := range sortedKeys(details) {
				fmt.Fprintf(&b, "**%s:** %s\n", titleKey(k), stringify(details[k]))
			}
		}
	}
	return b.String()
}

// defaultFormat is used for tools without a template and when a template fails.
func defaultFormat(tool string, data any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Respuesta de %s\n\n", tool)

	m, isMap := data.(map[string]any)
	switch {
	case !isMap:
		fmt.Fprintf(&b, "```json\n%s\n```", prettyJSON(data))
	case len(m) == 1 && m["message"] != nil:
		b.WriteString(stringify(m["message"]))
	case len(m) == 1 && m["mensaje"] != nil:
		b.WriteString(stringify(m["mensaje"]))
	case m["error"] != nil:
		fmt.Fprintf(&b, "❌ Error: %s", stringify(m["error"]))
	case truthy(m["success"]):
		msg := "Operación completada exitosamente"
		if v, ok := m["message"]; ok && v != nil {
			msg = stringify(v)
		}
		fmt.Fprintf(&b, "✅ %s", msg)
	default:
		for _, k := range sortedKeys(m) {
			switch v := m[k].(type) {
			case map[string]any, []any:
				fmt.Fprintf(&b, "**%s:**\n```json\n%s\n```\n\n", titleKey(k), prettyJSON(v))
			default:
				fmt.Fprintf(&b, "**%s:** %s\n", titleKey(k), stringify(v))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// ===== Helpers =====

var amountCleaner = regexp.MustCompile(`[^\d.,-]`)

// parseAmount reads amounts such as "45.5", "45,5 €" or 45. Unparsable
// values count as zero.
func parseAmount(s string) float64 {
	clean := strings.ReplaceAll(amountCleaner.ReplaceAllString(s, ""), ",", ".")
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return f
}

// listAt returns data[key] as a list, or data itself when it is a list.
func listAt(data any, key string) []any {
	if list, ok := data.([]any); ok {
		return list
	}
	list, _ := asMap(data)[key].([]any)
	return list
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// stringify prints JSON scalars as they appeared in the payload.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return missingValue
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

func prettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(buf.String())
}

// fill replaces {key} placeholders with values from data; unknown
// placeholders are left as written.
func fill(template string, data map[string]any) string {
	if len(data) == 0 {
		return template
	}
	pairs := make([]string, 0, len(data)*2)
	for _, k := range sortedKeys(data) {
		pairs = append(pairs, "{"+k+"}", stringify(data[k]))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func titleKey(k string) string {
	return cases.Title(language.Spanish).String(strings.ReplaceAll(k, "_", " "))
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		return x.String() != "0"
	case nil:
		return false
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
