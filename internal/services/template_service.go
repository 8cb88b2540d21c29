package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"flowsaas/backend/internal/repository"
	"flowsaas/backend/internal/schema"
	"flowsaas/backend/internal/substitution"
	"flowsaas/backend/pkg/models"
)

// ErrNotTested is returned when activation is requested for a template that
// has never passed a test run.
var ErrNotTested = errors.New("template has no engine workflow; run a test first")

// ErrNoInputSchema is returned when activation is requested for a template
// without a configured input schema.
var ErrNoInputSchema = errors.New("template has no input schema configured")

// ErrInvalidDocument is returned when an uploaded workflow document is not
// well-formed JSON.
var ErrInvalidDocument = errors.New("workflow document is not valid JSON")

// TemplateService owns the template lifecycle: upload as draft, configure,
// test against the engine, activate into the marketplace, deactivate.
type TemplateService struct {
	store  repository.TemplateStore
	engine EngineClient
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(store repository.TemplateStore, engine EngineClient) *TemplateService {
	return &TemplateService{store: store, engine: engine}
}

// CreateFromJSON validates an uploaded workflow document and stores it as an
// inactive draft. The input schema text, when provided, must parse.
func (s *TemplateService) CreateFromJSON(ctx context.Context, upload *models.TemplateUpload, createdBy string) (*models.Template, error) {
	if !json.Valid([]byte(upload.WorkflowDocument)) {
		return nil, ErrInvalidDocument
	}

	inputSchema := upload.InputSchema
	if inputSchema == "" {
		inputSchema = "[]"
	}
	fields, err := schema.Parse(inputSchema)
	if err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}
	inputSchema, err = schema.Serialize(fields)
	if err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}

	tmpl := &models.Template{
		ID:               uuid.New().String(),
		Name:             upload.Name,
		Description:      upload.Description,
		Category:         upload.Category,
		WorkflowDocument: upload.WorkflowDocument,
		IsFree:           upload.IsFree,
		CreditsPerRun:    upload.CreditsPerRun,
		InputSchema:      inputSchema,
		IsActive:         false,
		CreatedBy:        createdBy,
	}
	if err := s.store.CreateTemplate(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// UpdateConfig applies a partial update to a template's metadata, pricing or
// input schema. A schema that does not parse is rejected before anything is
// written.
func (s *TemplateService) UpdateConfig(ctx context.Context, id string, update *models.TemplateUpdate) (*models.Template, error) {
	tmpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		tmpl.Name = *update.Name
	}
	if update.Description != nil {
		tmpl.Description = *update.Description
	}
	if update.Category != nil {
		tmpl.Category = *update.Category
	}
	if update.IsFree != nil {
		tmpl.IsFree = *update.IsFree
	}
	if update.CreditsPerRun != nil {
		tmpl.CreditsPerRun = *update.CreditsPerRun
	}
	if update.InputSchema != nil {
		fields, err := schema.Parse(*update.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("input schema: %w", err)
		}
		serialized, err := schema.Serialize(fields)
		if err != nil {
			return nil, fmt.Errorf("input schema: %w", err)
		}
		tmpl.InputSchema = serialized
	}

	if err := s.store.UpdateTemplate(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// TestRun substitutes admin-provided values into the template document,
// deploys the result to the engine under a test name and activates it. The
// engine workflow id is recorded on the template; activation requires it.
func (s *TemplateService) TestRun(ctx context.Context, id string, inputs map[string]string) (*models.TestRunResponse, error) {
	tmpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	fields, err := schema.Parse(tmpl.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}

	document := substitution.Apply(tmpl.WorkflowDocument, fields, inputs)
	name := fmt.Sprintf("TEST_RUN: %s - %d", tmpl.Name, time.Now().Unix())

	workflowID, err := s.engine.CreateWorkflow(ctx, name, document)
	if err != nil {
		return &models.TestRunResponse{Success: false, Error: err.Error()}, nil
	}
	if err := s.engine.ActivateWorkflow(ctx, workflowID); err != nil {
		return &models.TestRunResponse{Success: false, Error: err.Error()}, nil
	}

	tmpl.EngineWorkflowID = workflowID
	if err := s.store.UpdateTemplate(ctx, tmpl); err != nil {
		return nil, err
	}

	return &models.TestRunResponse{Success: true, EngineWorkflowID: workflowID}, nil
}

// Activate makes a template visible in the marketplace. It requires a
// recorded engine workflow id (a passed test run) and a non-empty input
// schema.
func (s *TemplateService) Activate(ctx context.Context, id string) (*models.Template, error) {
	tmpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if tmpl.EngineWorkflowID == "" {
		return nil, ErrNotTested
	}
	fields, err := schema.Parse(tmpl.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNoInputSchema
	}

	tmpl.IsActive = true
	if err := s.store.UpdateTemplate(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// Deactivate hides a template from the marketplace. Nothing else changes;
// the template keeps its test state and can be re-activated.
func (s *TemplateService) Deactivate(ctx context.Context, id string) (*models.Template, error) {
	tmpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	tmpl.IsActive = false
	if err := s.store.UpdateTemplate(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// Delete removes a template permanently.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteTemplate(ctx, id)
}
