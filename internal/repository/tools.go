package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"flowsaas/backend/pkg/models"
)

// CreateTool inserts a catalog entry.
func (s *PostgresStore) CreateTool(ctx context.Context, t *models.Tool) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.Exec(ctx, `
		INSERT INTO tools (id, name, slug, description, category, icon,
			input_type, output_type, input_schema, is_active, usage_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.Name, t.Slug, t.Description, t.Category, t.Icon,
		t.InputType, t.OutputType, t.InputSchema, t.IsActive, t.UsageCount, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetToolBySlug retrieves an active tool by its slug.
func (s *PostgresStore) GetToolBySlug(ctx context.Context, slug string) (*models.Tool, error) {
	var t models.Tool
	err := s.db.QueryRow(ctx, `
		SELECT id, name, slug, description, category, icon,
			input_type, output_type, input_schema, is_active, usage_count, created_at, updated_at
		FROM tools WHERE slug = $1 AND is_active`, slug).
		Scan(&t.ID, &t.Name, &t.Slug, &t.Description, &t.Category, &t.Icon,
			&t.InputType, &t.OutputType, &t.InputSchema, &t.IsActive, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListActiveTools returns catalog-visible tools ordered by usage.
func (s *PostgresStore) ListActiveTools(ctx context.Context) ([]*models.Tool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, slug, description, category, icon,
			input_type, output_type, input_schema, is_active, usage_count, created_at, updated_at
		FROM tools WHERE is_active ORDER BY usage_count DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Tool
	for rows.Next() {
		var t models.Tool
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Description, &t.Category, &t.Icon,
			&t.InputType, &t.OutputType, &t.InputSchema, &t.IsActive, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// IncrementToolUsage bumps the usage counter for analytics.
func (s *PostgresStore) IncrementToolUsage(ctx context.Context, slug string) error {
	_, err := s.db.Exec(ctx, `UPDATE tools SET usage_count = usage_count + 1 WHERE slug = $1`, slug)
	return err
}
