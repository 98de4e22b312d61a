package docxstream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	placeholderOpen  = "{{"
	placeholderClose = "}}"
	rowIndexToken    = "$index"
	upperModifier    = "^"
	rawModifier      = "@"
)

// ValueFormatter turns placeholder values into document text. Supply a custom
// implementation through Generator.SetFormatter to change how values render
// without touching the engine.
type ValueFormatter interface {
	// Replace resolves a text node outside of an expanding table. Nodes that
	// are not a whole {{...}} placeholder are returned unchanged.
	Replace(text string, data PlaceholderMap) string

	// ReplaceInRow resolves a text node of a generated table row against one
	// flattened record. index is the zero-based generated row number.
	ReplaceInRow(index int, token string, record Record) string
}

// DefaultFormatter is the ValueFormatter used when none is configured.
//
// Tokens support three modifiers after brackets are stripped:
//
//	[^key]   upper-cased value
//	[@key]   raw value, used for base64 images
//	[$index] zero-based row index
//
// Unresolved keys render as "". DefaultFormatter is stateless and safe for
// concurrent use.
type DefaultFormatter struct{}

// NewDefaultFormatter creates a DefaultFormatter.
func NewDefaultFormatter() *DefaultFormatter {
	return &DefaultFormatter{}
}

// Replace implements ValueFormatter.
func (f *DefaultFormatter) Replace(text string, data PlaceholderMap) string {
	if strings.HasPrefix(text, placeholderOpen) && strings.HasSuffix(text, placeholderClose) {
		return f.resolve(0, text, func(key string) (any, bool) {
			v, ok := data[key]
			return v, ok
		})
	}
	return text
}

// ReplaceInRow implements ValueFormatter.
func (f *DefaultFormatter) ReplaceInRow(index int, token string, record Record) string {
	return f.resolve(index, token, func(key string) (any, bool) {
		v, ok := record[key]
		return v, ok
	})
}

func (f *DefaultFormatter) resolve(index int, token string, lookup func(string) (any, bool)) string {
	key := strings.NewReplacer("[", "", "]", "").Replace(token)

	value := func(k string) string {
		if v, ok := lookup(k); ok {
			return FormatValue(v)
		}
		return ""
	}

	switch {
	case strings.Contains(key, upperModifier):
		// Casers carry state between calls, so each use gets its own.
		return cases.Upper(language.Und).String(value(strings.ReplaceAll(key, upperModifier, "")))
	case strings.Contains(key, rawModifier):
		return value(strings.ReplaceAll(key, rawModifier, ""))
	case key == rowIndexToken:
		return strconv.Itoa(index)
	default:
		return value(key)
	}
}

// FormatValue renders a single value as text: strings verbatim, null as "",
// numbers with two decimals, everything else as JSON.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return fmt.Sprintf("%.2f", f)
		}
		return ""
	case float64:
		return fmt.Sprintf("%.2f", t)
	case float32:
		return fmt.Sprintf("%.2f", t)
	case int:
		return fmt.Sprintf("%.2f", float64(t))
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		f, _ := strconv.ParseFloat(fmt.Sprint(t), 64)
		return fmt.Sprintf("%.2f", f)
	}

	raw, err := json.Marshal(normalize(v))
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
