package models

import "time"

// Tool is a small stateless developer tool listed in the public catalog.
// Execution happens in an external sandbox; this service only owns the
// catalog entry and its input schema.
type Tool struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Icon        string    `json:"icon,omitempty"`
	InputType   string    `json:"input_type"`
	OutputType  string    `json:"output_type"`
	InputSchema string    `json:"input_schema,omitempty"`
	IsActive    bool      `json:"is_active"`
	UsageCount  int       `json:"usage_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
