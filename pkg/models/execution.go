package models

import "time"

// Execution is the tracked outcome of one run of a Template. Terminal
// records are read-only.
type Execution struct {
	ID                string          `json:"id"`
	TemplateID        string          `json:"template_id"`
	UserID            string          `json:"user_id"`
	Status            ExecutionStatus `json:"status"`
	CreditsUsed       int             `json:"credits_used"`
	EngineWorkflowID  string          `json:"engine_workflow_id,omitempty"`
	EngineExecutionID string          `json:"engine_execution_id,omitempty"`
	StartedAt         time.Time       `json:"started_at"`
	EndedAt           *time.Time      `json:"ended_at,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
}

// ExecutionSummary is the execution list shape, joined with the owning
// template's name for display.
type ExecutionSummary struct {
	Execution
	TemplateName string `json:"template_name"`
}
