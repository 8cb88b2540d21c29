package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"flowsaas/backend/internal/repository"
	"flowsaas/backend/internal/schema"
	"flowsaas/backend/internal/substitution"
	"flowsaas/backend/pkg/models"
)

const (
	defaultPollTimeout = 90 * time.Second
	pollInitialDelay   = 500 * time.Millisecond
	pollMaxDelay       = 5 * time.Second
)

// RunService submits marketplace runs: it charges credits, exchanges
// credential values, substitutes inputs into the workflow document, deploys
// the instance to the engine and tracks the resulting execution record.
type RunService struct {
	store       repository.Store
	engine      EngineClient
	logger      Logger
	pollTimeout time.Duration
	runCounter  metric.Int64Counter
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewRunService creates a new RunService. A zero pollTimeout selects the
// 90s default.
func NewRunService(store repository.Store, engine EngineClient, logger Logger, pollTimeout time.Duration) *RunService {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	meter := otel.Meter("flowsaas/backend/internal/services")
	runCounter, _ := meter.Int64Counter("flowsaas.template.runs",
		metric.WithDescription("Number of template runs submitted"))
	return &RunService{
		store:       store,
		engine:      engine,
		logger:      logger,
		pollTimeout: pollTimeout,
		runCounter:  runCounter,
	}
}

// Run submits a run of an active template for the given user. Credits are
// deducted through the ledger before any engine work happens; an
// insufficient balance returns repository.ErrInsufficientCredits and the run
// never starts. The returned execution record is RUNNING; a background
// poller moves it to a terminal state.
func (s *RunService) Run(ctx context.Context, templateID string, user *models.User, inputs map[string]string) (*models.RunResponse, error) {
	tmpl, err := s.store.GetActiveTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	fields, err := schema.Parse(tmpl.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}

	executionID := uuid.New().String()
	charge := 0
	if !tmpl.IsFree && tmpl.CreditsPerRun > 0 {
		charge = tmpl.CreditsPerRun
		description := "Workflow Execution: " + tmpl.Name
		if _, err := s.store.RecordTransaction(ctx, user.ID, -charge, description, executionID); err != nil {
			return nil, err
		}
	}

	exec := &models.Execution{
		ID:          executionID,
		TemplateID:  tmpl.ID,
		UserID:      user.ID,
		Status:      models.ExecutionStatusPending,
		CreditsUsed: charge,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}

	values, err := s.exchangeCredentials(ctx, user, tmpl.Name, fields, inputs)
	if err != nil {
		return nil, s.failRun(ctx, exec, user, charge, tmpl.Name, err)
	}

	document := substitution.Apply(tmpl.WorkflowDocument, fields, values)
	name := fmt.Sprintf("USER_RUN: %s - %d", tmpl.Name, time.Now().Unix())

	workflowID, err := s.engine.CreateWorkflow(ctx, name, document)
	if err != nil {
		return nil, s.failRun(ctx, exec, user, charge, tmpl.Name, err)
	}
	if err := s.engine.ActivateWorkflow(ctx, workflowID); err != nil {
		return nil, s.failRun(ctx, exec, user, charge, tmpl.Name, err)
	}

	exec.EngineWorkflowID = workflowID
	exec.Status = models.ExecutionStatusRunning
	if err := s.store.UpdateExecution(ctx, exec); err != nil {
		return nil, err
	}

	s.runCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("template.id", tmpl.ID),
		attribute.Bool("template.free", tmpl.IsFree),
	))

	go s.awaitCompletion(*exec)

	return &models.RunResponse{ExecutionID: exec.ID}, nil
}

// SyncStatus refreshes a non-terminal execution record from the engine and
// returns the current state. Terminal records are returned as stored.
func (s *RunService) SyncStatus(ctx context.Context, executionID string) (*models.Execution, error) {
	exec, err := s.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if exec.Status.Terminal() {
		return exec, nil
	}

	engineExec, err := s.lookupEngineExecution(ctx, exec)
	if err != nil {
		return nil, err
	}
	if engineExec == nil || !engineExec.Terminal() {
		return exec, nil
	}

	s.applyEngineResult(exec, engineExec)
	if err := s.store.UpdateExecution(ctx, exec); err != nil {
		return nil, err
	}
	return exec, nil
}

// exchangeCredentials swaps credential-typed input values for engine
// credential ids so secrets never enter the workflow document directly. A
// reference row is recorded for the user.
func (s *RunService) exchangeCredentials(ctx context.Context, user *models.User, templateName string, fields []schema.FieldDescriptor, inputs map[string]string) (map[string]string, error) {
	values := make(map[string]string, len(inputs))
	for k, v := range inputs {
		values[k] = v
	}

	for _, f := range fields {
		if f.Type != schema.FieldTypeCredential {
			continue
		}
		raw, ok := lookupInput(values, f)
		if !ok || raw == "" {
			continue
		}

		name := fmt.Sprintf("%s - %s", templateName, f.Label)
		credentialID, err := s.engine.CreateCredential(ctx, name, string(f.Type), map[string]string{"value": raw})
		if err != nil {
			return nil, fmt.Errorf("credential exchange for %q: %w", f.Label, err)
		}

		if err := s.store.CreateCredential(ctx, &models.UserCredential{
			UserID:             user.ID,
			Name:               f.Label,
			CredentialType:     string(f.Type),
			EngineCredentialID: credentialID,
		}); err != nil {
			return nil, err
		}

		// the substituted value is the engine's credential id, not the secret
		if _, byID := values[f.ID]; byID && f.ID != "" {
			values[f.ID] = credentialID
		} else {
			values[f.Label] = credentialID
		}
	}
	return values, nil
}

// awaitCompletion polls the engine until the run reaches a terminal state or
// the deadline expires. Backoff doubles from 500ms to a 5s cap; on expiry
// the record is marked FAILED as stalled instead of polling forever.
func (s *RunService) awaitCompletion(exec models.Execution) {
	ctx, cancel := context.WithTimeout(context.Background(), s.pollTimeout)
	defer cancel()

	delay := pollInitialDelay
	for {
		select {
		case <-ctx.Done():
			s.markStalled(&exec)
			return
		case <-time.After(delay):
		}

		engineExec, err := s.lookupEngineExecution(ctx, &exec)
		if err != nil {
			if ctx.Err() != nil {
				s.markStalled(&exec)
				return
			}
			s.logger.Debug("execution poll failed", "execution_id", exec.ID, "error", err)
		} else if engineExec != nil {
			if exec.EngineExecutionID == "" {
				exec.EngineExecutionID = engineExec.ID
			}
			if engineExec.Terminal() {
				s.applyEngineResult(&exec, engineExec)
				if err := s.store.UpdateExecution(ctx, &exec); err != nil {
					// ErrNotFound means a status sync already landed the
					// terminal state; the immutability guard did its job.
					if errors.Is(err, repository.ErrNotFound) {
						s.logger.Debug("execution already terminal", "execution_id", exec.ID)
					} else {
						s.logger.Error("failed to record execution result", "execution_id", exec.ID, "error", err)
					}
				}
				return
			}
		}

		delay *= 2
		if delay > pollMaxDelay {
			delay = pollMaxDelay
		}
	}
}

func (s *RunService) markStalled(exec *models.Execution) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	exec.Status = models.ExecutionStatusFailed
	exec.EndedAt = &now
	exec.ErrorMessage = "execution stalled: engine reported no terminal status before the deadline"
	if err := s.store.UpdateExecution(ctx, exec); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("execution already terminal", "execution_id", exec.ID)
		} else {
			s.logger.Error("failed to mark execution stalled", "execution_id", exec.ID, "error", err)
		}
	}
}

// lookupEngineExecution finds the engine-side run for an execution record,
// by execution id when known, otherwise by scanning the instance workflow's
// runs.
func (s *RunService) lookupEngineExecution(ctx context.Context, exec *models.Execution) (*EngineExecution, error) {
	if exec.EngineExecutionID != "" {
		return s.engine.GetExecution(ctx, exec.EngineExecutionID)
	}
	if exec.EngineWorkflowID == "" {
		return nil, nil
	}
	executions, err := s.engine.ListExecutions(ctx, exec.EngineWorkflowID)
	if err != nil {
		return nil, err
	}
	if len(executions) == 0 {
		return nil, nil
	}
	return &executions[0], nil
}

func (s *RunService) applyEngineResult(exec *models.Execution, engineExec *EngineExecution) {
	exec.EngineExecutionID = engineExec.ID
	if engineExec.Succeeded() {
		exec.Status = models.ExecutionStatusSuccess
	} else {
		exec.Status = models.ExecutionStatusFailed
		exec.ErrorMessage = "engine reported status " + engineExec.Status
	}
	ended := time.Now().UTC()
	if engineExec.StoppedAt != nil {
		ended = engineExec.StoppedAt.UTC()
	}
	exec.EndedAt = &ended
}

// failRun marks the execution FAILED, refunds any charge and returns an
// error describing the failure.
func (s *RunService) failRun(ctx context.Context, exec *models.Execution, user *models.User, charge int, templateName string, cause error) error {
	now := time.Now().UTC()
	exec.Status = models.ExecutionStatusFailed
	exec.EndedAt = &now
	exec.ErrorMessage = cause.Error()
	if err := s.store.UpdateExecution(ctx, exec); err != nil {
		s.logger.Error("failed to record failed execution", "execution_id", exec.ID, "error", err)
	}
	if charge > 0 {
		if _, err := s.store.RecordTransaction(ctx, user.ID, charge, "Refund: "+templateName, exec.ID); err != nil {
			s.logger.Error("failed to refund charge", "execution_id", exec.ID, "error", err)
		}
	}
	return cause
}

func lookupInput(values map[string]string, f schema.FieldDescriptor) (string, bool) {
	if f.ID != "" {
		if v, ok := values[f.ID]; ok {
			return v, true
		}
	}
	v, ok := values[f.Label]
	return v, ok
}
