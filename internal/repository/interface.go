// Package repository persists FlowSaaS domain state in PostgreSQL.
package repository

import (
	"context"
	"errors"

	"flowsaas/backend/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInsufficientCredits is returned when a ledger deduction would push a
// user's balance below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

// TemplateStore persists workflow templates and their input schemas.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *models.Template) error
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	// GetActiveTemplate returns a template only if it is visible in the
	// marketplace.
	GetActiveTemplate(ctx context.Context, id string) (*models.Template, error)
	// ListTemplates returns every template, including drafts. Admin use.
	ListTemplates(ctx context.Context) ([]*models.Template, error)
	// ListActiveTemplates returns marketplace-visible templates only.
	ListActiveTemplates(ctx context.Context) ([]*models.Template, error)
	UpdateTemplate(ctx context.Context, t *models.Template) error
	DeleteTemplate(ctx context.Context, id string) error
}

// ExecutionStore persists execution records. Terminal records are never
// updated again.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, e *models.Execution) error
	GetExecution(ctx context.Context, id string) (*models.Execution, error)
	// ListExecutionsByUser returns the user's most recent executions joined
	// with template names, newest first.
	ListExecutionsByUser(ctx context.Context, userID string, limit int) ([]*models.ExecutionSummary, error)
	UpdateExecution(ctx context.Context, e *models.Execution) error
}

// UserStore persists accounts and the append-only credit ledger.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	SetAdmin(ctx context.Context, email string, admin bool) error
	// RecordTransaction appends a ledger row and updates the cached balance
	// atomically under a row lock. A deduction that would overdraw returns
	// ErrInsufficientCredits and writes nothing.
	RecordTransaction(ctx context.Context, userID string, amount int, description, referenceID string) (int, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*models.CreditTransaction, error)
}

// CredentialStore persists references to engine-held credentials.
type CredentialStore interface {
	CreateCredential(ctx context.Context, c *models.UserCredential) error
	ListCredentialsByUser(ctx context.Context, userID string) ([]*models.UserCredential, error)
}

// ToolStore persists the public tool catalog.
type ToolStore interface {
	CreateTool(ctx context.Context, t *models.Tool) error
	GetToolBySlug(ctx context.Context, slug string) (*models.Tool, error)
	ListActiveTools(ctx context.Context) ([]*models.Tool, error)
	IncrementToolUsage(ctx context.Context, slug string) error
}

// Store is the full persistence surface of the control plane.
type Store interface {
	TemplateStore
	ExecutionStore
	UserStore
	CredentialStore
	ToolStore
	Ping(ctx context.Context) error
}
