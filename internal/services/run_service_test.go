package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsaas/backend/internal/repository"
	"flowsaas/backend/pkg/models"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

// fakeStore is an in-memory repository.Store for service tests. Unused
// interface methods panic via the embedded nil Store.
type fakeStore struct {
	repository.Store

	mu          sync.Mutex
	templates   map[string]*models.Template
	executions  map[string]*models.Execution
	credentials []*models.UserCredential
	balances    map[string]int
	ledger      []*models.CreditTransaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		templates:  map[string]*models.Template{},
		executions: map[string]*models.Execution{},
		balances:   map[string]int{},
	}
}

func (f *fakeStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *t
	f.templates[t.ID] = &copied
	return nil
}

func (f *fakeStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeStore) GetActiveTemplate(ctx context.Context, id string) (*models.Template, error) {
	t, err := f.GetTemplate(ctx, id)
	if err != nil || !t.IsActive {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) UpdateTemplate(ctx context.Context, t *models.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[t.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := *t
	f.templates[t.ID] = &copied
	return nil
}

func (f *fakeStore) DeleteTemplate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.templates, id)
	return nil
}

func (f *fakeStore) CreateExecution(ctx context.Context, e *models.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *e
	f.executions[e.ID] = &copied
	return nil
}

func (f *fakeStore) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.executions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeStore) UpdateExecution(ctx context.Context, e *models.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.executions[e.ID]
	if !ok || stored.Status.Terminal() {
		return repository.ErrNotFound
	}
	copied := *e
	f.executions[e.ID] = &copied
	return nil
}

func (f *fakeStore) RecordTransaction(ctx context.Context, userID string, amount int, description, referenceID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance := f.balances[userID] + amount
	if balance < 0 {
		return 0, repository.ErrInsufficientCredits
	}
	f.balances[userID] = balance
	f.ledger = append(f.ledger, &models.CreditTransaction{
		UserID:       userID,
		Amount:       amount,
		Description:  description,
		ReferenceID:  referenceID,
		BalanceAfter: balance,
	})
	return balance, nil
}

func (f *fakeStore) CreateCredential(ctx context.Context, c *models.UserCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *c
	f.credentials = append(f.credentials, &copied)
	return nil
}

func (f *fakeStore) balance(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func (f *fakeStore) executionStatus(id string) (models.ExecutionStatus, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.executions[id]
	if !ok {
		return "", ""
	}
	return e.Status, e.ErrorMessage
}

// recordingLogger captures Error calls so tests can assert on noise.
type recordingLogger struct {
	mu   sync.Mutex
	errs []string
}

func (l *recordingLogger) Debug(msg string, args ...any) {}
func (l *recordingLogger) Info(msg string, args ...any)  {}
func (l *recordingLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

func (l *recordingLogger) errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errs...)
}

type createdWorkflow struct {
	name     string
	document string
}

// fakeEngine is an in-memory EngineClient.
type fakeEngine struct {
	mu          sync.Mutex
	created     []createdWorkflow
	activated   []string
	credentials []string
	executions  map[string][]EngineExecution
	failCreate  bool
	nextID      int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{executions: map[string][]EngineExecution{}}
}

func (f *fakeEngine) CreateWorkflow(ctx context.Context, name, document string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return "", errors.New("engine rejected the workflow")
	}
	f.nextID++
	f.created = append(f.created, createdWorkflow{name: name, document: document})
	return fmt.Sprintf("wf-%d", f.nextID), nil
}

func (f *fakeEngine) UpdateWorkflow(ctx context.Context, id, name, document string) error { return nil }

func (f *fakeEngine) GetWorkflow(ctx context.Context, id string) (*EngineWorkflow, error) {
	return &EngineWorkflow{ID: id}, nil
}

func (f *fakeEngine) ActivateWorkflow(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, id)
	return nil
}

func (f *fakeEngine) DeactivateWorkflow(ctx context.Context, id string) error { return nil }

func (f *fakeEngine) CreateCredential(ctx context.Context, name, credType string, data map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("cred-%d", len(f.credentials)+1)
	f.credentials = append(f.credentials, id)
	return id, nil
}

func (f *fakeEngine) ListExecutions(ctx context.Context, workflowID string) ([]EngineExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executions[workflowID], nil
}

func (f *fakeEngine) GetExecution(ctx context.Context, id string) (*EngineExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, execs := range f.executions {
		for _, e := range execs {
			if e.ID == id {
				copied := e
				return &copied, nil
			}
		}
	}
	return nil, errors.New("execution not found")
}

func (f *fakeEngine) setResult(workflowID string, exec EngineExecution) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exec.WorkflowID = workflowID
	f.executions[workflowID] = []EngineExecution{exec}
}

func (f *fakeEngine) lastCreated() createdWorkflow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[len(f.created)-1]
}

func seedTemplate(t *testing.T, store *fakeStore) *models.Template {
	t.Helper()
	tmpl := &models.Template{
		ID:               "tmpl-1",
		Name:             "Email Digest",
		WorkflowDocument: `{"nodes": [{"parameters": {"key": "{{API_KEY}}"}}], "connections": {}}`,
		CreditsPerRun:    10,
		InputSchema:      `[{"id":"k1","label":"API Key","type":"text","placeholder":"{{API_KEY}}"}]`,
		IsActive:         true,
	}
	require.NoError(t, store.CreateTemplate(context.Background(), tmpl))
	return tmpl
}

func TestRun_InsufficientCreditsBlocksRun(t *testing.T) {
	store := newFakeStore()
	engine := newFakeEngine()
	tmpl := seedTemplate(t, store)
	user := &models.User{ID: "u1", Email: "u@x.io"}
	store.balances[user.ID] = 3 // below the 10-credit price

	svc := NewRunService(store, engine, &NoOpLogger{}, time.Second)
	_, err := svc.Run(context.Background(), tmpl.ID, user, map[string]string{"API Key": "sk-1"})

	assert.ErrorIs(t, err, repository.ErrInsufficientCredits)
	assert.Equal(t, 3, store.balance(user.ID))
	assert.Empty(t, engine.created, "engine must not be touched when the gate rejects")
	assert.Empty(t, store.executions)
}

func TestRun_FreeTemplateSkipsLedger(t *testing.T) {
	store := newFakeStore()
	engine := newFakeEngine()
	tmpl := seedTemplate(t, store)
	tmpl.IsFree = true
	require.NoError(t, store.UpdateTemplate(context.Background(), tmpl))
	user := &models.User{ID: "u1"}

	svc := NewRunService(store, engine, &NoOpLogger{}, time.Second)
	resp, err := svc.Run(context.Background(), tmpl.ID, user, map[string]string{"API Key": "sk-1"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ExecutionID)

	assert.Empty(t, store.ledger)
	exec, err := store.GetExecution(context.Background(), resp.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, 0, exec.CreditsUsed)
}

func TestRun_SuccessfulRun(t *testing.T) {
	store := newFakeStore()
	engine := newFakeEngine()
	tmpl := seedTemplate(t, store)
	user := &models.User{ID: "u1", Email: "u@x.io"}
	store.balances[user.ID] = 100

	svc := NewRunService(store, engine, &NoOpLogger{}, 5*time.Second)
	resp, err := svc.Run(context.Background(), tmpl.ID, user, map[string]string{"API Key": "sk-123"})
	require.NoError(t, err)

	// deducted up front, referenced to the execution
	assert.Equal(t, 90, store.balance(user.ID))
	require.Len(t, store.ledger, 1)
	assert.Equal(t, resp.ExecutionID, store.ledger[0].ReferenceID)
	assert.Equal(t, -10, store.ledger[0].Amount)

	created := engine.lastCreated()
	assert.True(t, strings.HasPrefix(created.name, "USER_RUN: Email Digest"))
	assert.Contains(t, created.document, "sk-123")
	assert.NotContains(t, created.document, "{{API_KEY}}")

	status, _ := store.executionStatus(resp.ExecutionID)
	assert.Equal(t, models.ExecutionStatusRunning, status)

	// engine finishes; the poller lands the terminal state
	engine.setResult("wf-1", EngineExecution{ID: "exec-1", Status: "success", Finished: true})
	assert.Eventually(t, func() bool {
		status, _ := store.executionStatus(resp.ExecutionID)
		return status == models.ExecutionStatusSuccess
	}, 5*time.Second, 50*time.Millisecond)

	exec, err := store.GetExecution(context.Background(), resp.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "exec-1", exec.EngineExecutionID)
	assert.NotNil(t, exec.EndedAt)
}

func TestRun_PollerDeadlineMarksStalled(t *testing.T) {
	store := newFakeStore()
	engine := newFakeEngine() // never reports a terminal execution
	tmpl := seedTemplate(t, store)
	tmpl.IsFree = true
	require.NoError(t, store.UpdateTemplate(context.Background(), tmpl))
	user := &models.User{ID: "u1"}

	svc := NewRunService(store, engine, &NoOpLogger{}, 200*time.Millisecond)
	resp, err := svc.Run(context.Background(), tmpl.ID, user, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		status, msg := store.executionStatus(resp.ExecutionID)
		return status == models.ExecutionStatusFailed && strings.Contains(msg, "stalled")
	}, 5*time.Second, 50*time.Millisecond)
}

func TestRun_CredentialValuesExchanged(t *testing.T) {
	store := newFakeStore()
	engine := newFakeEngine()
	tmpl := &models.Template{
		ID:               "tmpl-cred",
		Name:             "Slack Notifier",
		WorkflowDocument: `{"nodes": [{"parameters": {"token": "{{TOKEN}}"}}], "connections": {}}`,
		IsFree:           true,
		InputSchema:      `[{"id":"c1","label":"Slack Token","type":"credential","placeholder":"{{TOKEN}}"}]`,
		IsActive:         true,
	}
	require.NoError(t, store.CreateTemplate(context.Background(), tmpl))
	user := &models.User{ID: "u1", Email: "u@x.io"}

	svc := NewRunService(store, engine, &NoOpLogger{}, time.Second)
	_, err := svc.Run(context.Background(), tmpl.ID, user, map[string]string{"Slack Token": "xoxb-secret"})
	require.NoError(t, err)

	// the secret never reaches the workflow document
	created := engine.lastCreated()
	assert.NotContains(t, created.document, "xoxb-secret")
	assert.Contains(t, created.document, "cred-1")

	require.Len(t, store.credentials, 1)
	assert.Equal(t, "cred-1", store.credentials[0].EngineCredentialID)
	assert.Equal(t, "Slack Token", store.credentials[0].Name)
}

func TestRun_EngineFailureRefunds(t *testing.T) {
	store := newFakeStore()
	engine := newFakeEngine()
	engine.failCreate = true
	tmpl := seedTemplate(t, store)
	user := &models.User{ID: "u1"}
	store.balances[user.ID] = 50

	svc := NewRunService(store, engine, &NoOpLogger{}, time.Second)
	_, err := svc.Run(context.Background(), tmpl.ID, user, map[string]string{"API Key": "sk-1"})
	require.Error(t, err)

	assert.Equal(t, 50, store.balance(user.ID), "charge refunded after engine failure")
	require.Len(t, store.ledger, 2)
	assert.Equal(t, -10, store.ledger[0].Amount)
	assert.Equal(t, 10, store.ledger[1].Amount)
	assert.True(t, strings.HasPrefix(store.ledger[1].Description, "Refund"))
}

func TestAwaitCompletionToleratesConcurrentTerminalWrite(t *testing.T) {
	store := newFakeStore()
	engine := newFakeEngine()
	logger := &recordingLogger{}
	svc := NewRunService(store, engine, logger, 2*time.Second)

	exec := models.Execution{ID: "e-race", Status: models.ExecutionStatusRunning, EngineWorkflowID: "wf-1"}
	require.NoError(t, store.CreateExecution(context.Background(), &exec))
	engine.setResult("wf-1", EngineExecution{ID: "ee-1", Status: "success", Finished: true})

	// a user-driven status sync lands the terminal state first
	got, err := svc.SyncStatus(context.Background(), "e-race")
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusSuccess, got.Status)

	// the poller's late write hits the immutability guard; that is the
	// expected outcome of the race, not a failure worth reporting
	svc.awaitCompletion(exec)
	assert.Empty(t, logger.errors())

	status, _ := store.executionStatus("e-race")
	assert.Equal(t, models.ExecutionStatusSuccess, status)
}

func TestSyncStatus(t *testing.T) {
	store := newFakeStore()
	engine := newFakeEngine()
	svc := NewRunService(store, engine, &NoOpLogger{}, time.Second)

	t.Run("terminal record returned as stored", func(t *testing.T) {
		ended := time.Now().UTC()
		exec := &models.Execution{ID: "e1", Status: models.ExecutionStatusSuccess, EndedAt: &ended}
		require.NoError(t, store.CreateExecution(context.Background(), exec))

		got, err := svc.SyncStatus(context.Background(), "e1")
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusSuccess, got.Status)
	})

	t.Run("running record refreshed from engine", func(t *testing.T) {
		exec := &models.Execution{ID: "e2", Status: models.ExecutionStatusRunning, EngineWorkflowID: "wf-9"}
		require.NoError(t, store.CreateExecution(context.Background(), exec))
		engine.setResult("wf-9", EngineExecution{ID: "ee-9", Status: "error", Finished: true})

		got, err := svc.SyncStatus(context.Background(), "e2")
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusFailed, got.Status)
		assert.Equal(t, "ee-9", got.EngineExecutionID)
		assert.NotNil(t, got.EndedAt)
	})
}
