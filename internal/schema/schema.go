// Package schema models a template's input schema: the ordered list of
// user-fillable field descriptors persisted alongside the raw workflow
// document.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FieldType hints how an input should be rendered. It carries no validation
// or coercion contract; "password" only masks display.
type FieldType string

const (
	FieldTypeText       FieldType = "text"
	FieldTypeNumber     FieldType = "number"
	FieldTypeCredential FieldType = "credential"
	FieldTypePassword   FieldType = "password"
)

// FieldDescriptor is one entry in a template's input schema. Placeholder is
// the literal token expected to occur in the raw workflow document; a
// descriptor with an empty placeholder is substitution-inert.
type FieldDescriptor struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Placeholder string    `json:"placeholder"`
}

// NewFieldID returns a short opaque identifier for a field descriptor.
// Uniqueness is only needed within one schema.
func NewFieldID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// Parse deserializes a persisted input schema. Malformed schema text is an
// error reported to the caller, never silently treated as an empty schema.
// Empty text parses to an empty schema: a freshly uploaded template has no
// fields configured yet.
func Parse(text string) ([]FieldDescriptor, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var fields []FieldDescriptor
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("parse input schema: %w", err)
	}
	for i := range fields {
		if fields[i].Type == "" {
			fields[i].Type = FieldTypeText
		}
	}
	return fields, nil
}

// Serialize renders the schema to its persisted JSON-array form.
func Serialize(fields []FieldDescriptor) (string, error) {
	if fields == nil {
		fields = []FieldDescriptor{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("serialize input schema: %w", err)
	}
	return string(data), nil
}
