package services

import (
	"context"
	"time"
)

// EngineWorkflow is the engine's view of a deployed workflow.
type EngineWorkflow struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// EngineExecution is the engine's view of a single workflow run.
type EngineExecution struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflowId"`
	Status     string     `json:"status"`
	Finished   bool       `json:"finished"`
	StartedAt  *time.Time `json:"startedAt"`
	StoppedAt  *time.Time `json:"stoppedAt"`
}

// Terminal reports whether the engine considers this run finished.
func (e EngineExecution) Terminal() bool {
	switch e.Status {
	case "success", "error", "crashed", "canceled":
		return true
	}
	return e.Finished
}

// Succeeded reports whether a terminal run completed without error.
func (e EngineExecution) Succeeded() bool {
	return e.Status == "success" || (e.Finished && e.Status == "")
}

// EngineClient is an interface for communicating with the workflow engine.
type EngineClient interface {
	// CreateWorkflow deploys a workflow document under the given name and
	// returns the engine's workflow id.
	CreateWorkflow(ctx context.Context, name, document string) (string, error)
	// UpdateWorkflow replaces the document of an existing workflow.
	UpdateWorkflow(ctx context.Context, id, name, document string) error
	GetWorkflow(ctx context.Context, id string) (*EngineWorkflow, error)
	ActivateWorkflow(ctx context.Context, id string) error
	DeactivateWorkflow(ctx context.Context, id string) error
	// CreateCredential stores a secret inside the engine's credential vault
	// and returns the engine credential id. The secret never touches our
	// database.
	CreateCredential(ctx context.Context, name, credType string, data map[string]string) (string, error)
	// ListExecutions returns the runs recorded for a workflow, newest first.
	ListExecutions(ctx context.Context, workflowID string) ([]EngineExecution, error)
	GetExecution(ctx context.Context, id string) (*EngineExecution, error)
}

// AIClient is an interface for the workflow-generation sidecar.
type AIClient interface {
	// Generate asks the sidecar to draft a workflow document and input
	// schema from a natural-language prompt.
	Generate(ctx context.Context, prompt, provider string) (*GeneratedWorkflow, error)
}

// GeneratedWorkflow is the sidecar's draft output.
type GeneratedWorkflow struct {
	WorkflowDocument string `json:"workflow_document"`
	InputSchema      string `json:"input_schema"`
}
