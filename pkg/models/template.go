package models

import "time"

// Template is a reusable workflow definition with metadata, pricing and an
// input schema. The raw workflow document is an opaque text blob handed to
// the external execution engine after placeholder substitution.
type Template struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	WorkflowDocument string    `json:"workflow_document"`
	EngineWorkflowID string    `json:"engine_workflow_id,omitempty"` // set after first successful test run
	IsFree           bool      `json:"is_free"`
	CreditsPerRun    int       `json:"credits_per_run"`
	InputSchema      string    `json:"input_schema"` // serialized JSON array of field descriptors
	IsActive         bool      `json:"is_active"`
	CreatedBy        string    `json:"created_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TemplatePublic is the marketplace shape of a Template. The raw workflow
// document is never exposed to end users.
type TemplatePublic struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	IsFree        bool   `json:"is_free"`
	CreditsPerRun int    `json:"credits_per_run"`
	InputSchema   string `json:"input_schema"`
}

// Public strips the private fields from a Template.
func (t *Template) Public() TemplatePublic {
	return TemplatePublic{
		ID:            t.ID,
		Name:          t.Name,
		Description:   t.Description,
		Category:      t.Category,
		IsFree:        t.IsFree,
		CreditsPerRun: t.CreditsPerRun,
		InputSchema:   t.InputSchema,
	}
}

// TemplateUpload is the admin request to create a template from an uploaded
// workflow document. Templates always start inactive.
type TemplateUpload struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	WorkflowDocument string `json:"workflow_document"`
	IsFree           bool   `json:"is_free"`
	CreditsPerRun    int    `json:"credits_per_run"`
	InputSchema      string `json:"input_schema,omitempty"`
}

// TemplateUpdate carries a partial configuration change. Nil fields are
// left untouched.
type TemplateUpdate struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	Category      *string `json:"category,omitempty"`
	IsFree        *bool   `json:"is_free,omitempty"`
	CreditsPerRun *int    `json:"credits_per_run,omitempty"`
	InputSchema   *string `json:"input_schema,omitempty"`
}

// RunRequest is a user's request to run an active template. Values are
// keyed by field label; a field's stable id is also accepted and wins over
// the label when both are present.
type RunRequest struct {
	Inputs map[string]string `json:"inputs"`
}

// RunResponse references the execution record created for a submitted run.
type RunResponse struct {
	ExecutionID       string `json:"execution_id"`
	EngineExecutionID string `json:"engine_execution_id,omitempty"`
}

// TestRunRequest is the admin request to test a template before activation.
type TestRunRequest struct {
	Inputs map[string]string `json:"inputs"`
}

// TestRunResponse reports the outcome of a template test run.
type TestRunResponse struct {
	Success          bool   `json:"success"`
	EngineWorkflowID string `json:"engine_workflow_id,omitempty"`
	Error            string `json:"error,omitempty"`
}
