package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"flowsaas/backend/pkg/models"
)

const templateColumns = `id, name, description, category, workflow_document,
	engine_workflow_id, is_free, credits_per_run, input_schema, is_active,
	COALESCE(created_by::text, ''), created_at, updated_at`

// CreateTemplate inserts a new template. New templates start inactive.
// Missing ids are generated.
func (s *PostgresStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.Exec(ctx, `
		INSERT INTO templates (id, name, description, category, workflow_document,
			engine_workflow_id, is_free, credits_per_run, input_schema, is_active,
			created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::uuid, $12, $13)`,
		t.ID, t.Name, t.Description, t.Category, t.WorkflowDocument,
		t.EngineWorkflowID, t.IsFree, t.CreditsPerRun, t.InputSchema, t.IsActive,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetTemplate retrieves a template by id, drafts included.
func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	row := s.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	return scanTemplate(row)
}

// GetActiveTemplate retrieves a template only if it is marketplace-visible.
func (s *PostgresStore) GetActiveTemplate(ctx context.Context, id string) (*models.Template, error) {
	row := s.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1 AND is_active`, id)
	return scanTemplate(row)
}

// ListTemplates returns every template, drafts included. Admin use.
func (s *PostgresStore) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	rows, err := s.db.Query(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTemplates(rows)
}

// ListActiveTemplates returns marketplace-visible templates only.
func (s *PostgresStore) ListActiveTemplates(ctx context.Context) ([]*models.Template, error) {
	rows, err := s.db.Query(ctx, `SELECT `+templateColumns+` FROM templates WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTemplates(rows)
}

// UpdateTemplate persists the full template row.
func (s *PostgresStore) UpdateTemplate(ctx context.Context, t *models.Template) error {
	t.UpdatedAt = time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE templates SET name = $1, description = $2, category = $3,
			workflow_document = $4, engine_workflow_id = $5, is_free = $6,
			credits_per_run = $7, input_schema = $8, is_active = $9, updated_at = $10
		WHERE id = $11`,
		t.Name, t.Description, t.Category, t.WorkflowDocument, t.EngineWorkflowID,
		t.IsFree, t.CreditsPerRun, t.InputSchema, t.IsActive, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTemplate removes a template. Execution history is kept.
func (s *PostgresStore) DeleteTemplate(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTemplate(row pgx.Row) (*models.Template, error) {
	var t models.Template
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.WorkflowDocument,
		&t.EngineWorkflowID, &t.IsFree, &t.CreditsPerRun, &t.InputSchema, &t.IsActive,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func scanTemplates(rows pgx.Rows) ([]*models.Template, error) {
	var templates []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
