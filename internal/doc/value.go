package doc

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ValueKind string

const (
	ValueLiteral ValueKind = "literal"
	ValueBinding ValueKind = "binding"
)

// Value is the closed content union of an element: either a scalar literal or
// a binding path into the document's Data object. Nothing else flows through
// an element; arbitrary JSON shapes are rejected at the codec boundary.
type Value struct {
	Kind    ValueKind       `json:"kind"`
	Literal json.RawMessage `json:"literal,omitempty"`
	Path    string          `json:"path,omitempty"`
}

func LiteralString(text string) Value {
	raw, _ := json.Marshal(text)
	return Value{Kind: ValueLiteral, Literal: raw}
}

func Binding(path string) Value {
	return Value{Kind: ValueBinding, Path: path}
}

// Validate enforces the union shape: a literal must be a JSON string, number
// or bool; a binding must carry a non-empty dotted path and no literal.
func (v Value) Validate() error {
	switch v.Kind {
	case ValueLiteral:
		if v.Path != "" {
			return fmt.Errorf("literal value carries a binding path")
		}
		var scalar any
		if err := json.Unmarshal(v.Literal, &scalar); err != nil {
			return fmt.Errorf("literal is not valid JSON")
		}
		switch scalar.(type) {
		case string, float64, bool:
			return nil
		default:
			return fmt.Errorf("literal must be a string, number or bool")
		}
	case ValueBinding:
		if len(v.Literal) != 0 {
			return fmt.Errorf("binding value carries a literal")
		}
		if strings.TrimSpace(v.Path) == "" {
			return fmt.Errorf("binding path is empty")
		}
		return nil
	default:
		return fmt.Errorf("unknown value kind %q", v.Kind)
	}
}

// StringValue resolves the value against data and renders it as a string.
// Used for media slots (asset ids) and search indexing.
func (v Value) StringValue(data map[string]any) string {
	switch v.Kind {
	case ValueLiteral:
		var text string
		if err := json.Unmarshal(v.Literal, &text); err == nil {
			return text
		}
		return strings.TrimSpace(string(v.Literal))
	case ValueBinding:
		resolved, ok := ResolveBinding(data, v.Path)
		if !ok {
			return ""
		}
		if text, ok := resolved.(string); ok {
			return text
		}
		raw, _ := json.Marshal(resolved)
		return string(raw)
	}
	return ""
}

// ResolveBinding walks a dotted path through nested maps in Data.
func ResolveBinding(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = data
	for _, part := range parts {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
