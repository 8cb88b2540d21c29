package mcp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsaas/backend/internal/auth"
	"flowsaas/backend/internal/repository"
	"flowsaas/backend/internal/services"
	"flowsaas/backend/pkg/models"
)

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// fakeStore is an in-memory repository.Store. Unused interface methods panic
// via the embedded nil Store.
type fakeStore struct {
	repository.Store

	mu         sync.Mutex
	templates  map[string]*models.Template
	executions map[string]*models.Execution
	balances   map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		templates:  map[string]*models.Template{},
		executions: map[string]*models.Execution{},
		balances:   map[string]int{},
	}
}

func (f *fakeStore) GetActiveTemplate(ctx context.Context, id string) (*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok || !t.IsActive {
		return nil, repository.ErrNotFound
	}
	copied := *t
	return &copied, nil
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
	return balance, nil
}

func (f *fakeStore) balance(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func (f *fakeStore) executionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executions)
}

// fakeEngine is an in-memory services.EngineClient.
type fakeEngine struct {
	mu      sync.Mutex
	created int
}

func (f *fakeEngine) CreateWorkflow(ctx context.Context, name, document string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return "wf-1", nil
}

func (f *fakeEngine) UpdateWorkflow(ctx context.Context, id, name, document string) error { return nil }

func (f *fakeEngine) GetWorkflow(ctx context.Context, id string) (*services.EngineWorkflow, error) {
	return &services.EngineWorkflow{ID: id}, nil
}

func (f *fakeEngine) ActivateWorkflow(ctx context.Context, id string) error   { return nil }
func (f *fakeEngine) DeactivateWorkflow(ctx context.Context, id string) error { return nil }

func (f *fakeEngine) CreateCredential(ctx context.Context, name, credType string, data map[string]string) (string, error) {
	return "cred-1", nil
}

func (f *fakeEngine) ListExecutions(ctx context.Context, workflowID string) ([]services.EngineExecution, error) {
	return []services.EngineExecution{{ID: "ee-1", WorkflowID: workflowID, Status: "success", Finished: true}}, nil
}

func (f *fakeEngine) GetExecution(ctx context.Context, id string) (*services.EngineExecution, error) {
	return &services.EngineExecution{ID: id, Status: "success", Finished: true}, nil
}

func (f *fakeEngine) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func newTestServer(store *fakeStore, engine *fakeEngine) *Server {
	runs := services.NewRunService(store, engine, noopLogger{}, 2*time.Second)
	return NewServer(store, runs)
}

func runTemplateRequest(templateID string) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = "run_template"
	req.Params.Arguments = map[string]interface{}{
		"template_id": templateID,
		"inputs":      map[string]interface{}{"Name": "Ada"},
	}
	return req
}

func seedTemplate(store *fakeStore) *models.Template {
	tmpl := &models.Template{
		ID:               "tmpl-1",
		Name:             "Greeter",
		WorkflowDocument: `{"nodes": [{"parameters": {"who": "{{NAME}}"}}], "connections": {}}`,
		CreditsPerRun:    5,
		InputSchema:      `[{"id":"f1","label":"Name","type":"text","placeholder":"{{NAME}}"}]`,
		IsActive:         true,
	}
	store.mu.Lock()
	store.templates[tmpl.ID] = tmpl
	store.mu.Unlock()
	return tmpl
}

func TestRunTemplateRequiresCallingAccount(t *testing.T) {
	store := newFakeStore()
	engine := &fakeEngine{}
	seedTemplate(store)
	srv := newTestServer(store, engine)

	// no account in the request context: nothing may be charged or started
	result, err := srv.handleRunTemplate(context.Background(), runTemplateRequest("tmpl-1"))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Zero(t, engine.createdCount())
	assert.Zero(t, store.executionCount())
}

func TestRunTemplateChargesCallingAccount(t *testing.T) {
	store := newFakeStore()
	engine := &fakeEngine{}
	tmpl := seedTemplate(store)
	srv := newTestServer(store, engine)

	user := &models.User{ID: "u1", Email: "u@x.io", IsActive: true}
	store.balances[user.ID] = 20
	ctx := context.WithValue(context.Background(), auth.ContextKeyUser, user)

	result, err := srv.handleRunTemplate(ctx, runTemplateRequest(tmpl.ID))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, 15, store.balance(user.ID))
	assert.Equal(t, 1, engine.createdCount())
}

func TestGetExecutionHidesForeignExecution(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(store, &fakeEngine{})

	ended := time.Now().UTC()
	require.NoError(t, store.CreateExecution(context.Background(), &models.Execution{
		ID: "e1", UserID: "owner", Status: models.ExecutionStatusSuccess, EndedAt: &ended,
	}))

	var req mcp.CallToolRequest
	req.Params.Name = "get_execution"
	req.Params.Arguments = map[string]interface{}{"id": "e1"}

	stranger := &models.User{ID: "u2", IsActive: true}
	result, err := srv.handleGetExecution(context.WithValue(context.Background(), auth.ContextKeyUser, stranger), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)

	owner := &models.User{ID: "owner", IsActive: true}
	result, err = srv.handleGetExecution(context.WithValue(context.Background(), auth.ContextKeyUser, owner), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)
}
