// Package substitution turns a raw workflow document plus a set of user
// inputs into a runnable document by replacing each field's placeholder
// token with the user's value.
package substitution

import (
	"encoding/json"
	"strings"

	"flowsaas/backend/internal/schema"
)

// Values maps a field's label to the user-entered value. A field's stable
// id may also be used as a key; when both are present the id entry wins,
// so duplicate labels cannot silently bind the wrong value.
type Values map[string]string

// Apply replaces every literal occurrence of each descriptor's placeholder
// in the document with the corresponding value. Replacement is textual; when
// several descriptors share a placeholder token, the last one in schema
// order binds the value for every occurrence. Fields with no corresponding
// value substitute the empty string; descriptors with an empty placeholder
// match nothing.
//
// Values are escaped for JSON string context before substitution so quotes
// or backslashes in user input cannot malform the document. Apply is a pure
// function and never fails; a document the engine ultimately rejects
// surfaces downstream.
func Apply(document string, fields []schema.FieldDescriptor, values Values) string {
	// Collapse the schema to one effective descriptor per token before the
	// textual pass: a single ReplaceAll per token would otherwise let the
	// first descriptor consume every occurrence. Tokens keep first-seen
	// order; the descriptor kept for each token is the last one.
	tokens := make([]string, 0, len(fields))
	effective := make(map[string]schema.FieldDescriptor, len(fields))
	for _, f := range fields {
		if f.Placeholder == "" {
			continue
		}
		if _, seen := effective[f.Placeholder]; !seen {
			tokens = append(tokens, f.Placeholder)
		}
		effective[f.Placeholder] = f
	}
	for _, token := range tokens {
		document = strings.ReplaceAll(document, token, escapeJSON(values.lookup(effective[token])))
	}
	return document
}

// Placeholders reports which descriptors' tokens occur in the document,
// keyed by field id. Used by the admin editor to flag anchors that no
// longer match anything.
func Placeholders(document string, fields []schema.FieldDescriptor) map[string]bool {
	found := make(map[string]bool, len(fields))
	for _, f := range fields {
		found[f.ID] = f.Placeholder != "" && strings.Contains(document, f.Placeholder)
	}
	return found
}

func (v Values) lookup(f schema.FieldDescriptor) string {
	if f.ID != "" {
		if val, ok := v[f.ID]; ok {
			return val
		}
	}
	return v[f.Label]
}

// escapeJSON escapes a value for a JSON string context. Values without
// special characters pass through byte-identical.
func escapeJSON(value string) string {
	if !strings.ContainsAny(value, `"\`) && !hasControl(value) {
		return value
	}
	// json.Marshal of a string never fails.
	quoted, _ := json.Marshal(value)
	return string(quoted[1 : len(quoted)-1])
}

func hasControl(s string) bool {
	for _, r := range s {
		if r < 0x20 {
			return true
		}
	}
	return false
}
