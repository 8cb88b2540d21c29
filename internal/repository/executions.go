package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"flowsaas/backend/pkg/models"
)

// CreateExecution inserts a new execution record.
func (s *PostgresStore) CreateExecution(ctx context.Context, e *models.Execution) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO executions (id, template_id, user_id, status, credits_used,
			engine_workflow_id, engine_execution_id, started_at, ended_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.TemplateID, e.UserID, e.Status, e.CreditsUsed,
		e.EngineWorkflowID, e.EngineExecutionID, e.StartedAt, e.EndedAt, e.ErrorMessage)
	return err
}

// GetExecution retrieves an execution record by id.
func (s *PostgresStore) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	var e models.Execution
	err := s.db.QueryRow(ctx, `
		SELECT id, template_id, user_id, status, credits_used,
			engine_workflow_id, engine_execution_id, started_at, ended_at, error_message
		FROM executions WHERE id = $1`, id).
		Scan(&e.ID, &e.TemplateID, &e.UserID, &e.Status, &e.CreditsUsed,
			&e.EngineWorkflowID, &e.EngineExecutionID, &e.StartedAt, &e.EndedAt, &e.ErrorMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListExecutionsByUser returns the user's most recent executions joined with
// the owning template's name, newest first.
func (s *PostgresStore) ListExecutionsByUser(ctx context.Context, userID string, limit int) ([]*models.ExecutionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT e.id, e.template_id, e.user_id, e.status, e.credits_used,
			e.engine_workflow_id, e.engine_execution_id, e.started_at, e.ended_at, e.error_message,
			COALESCE(t.name, 'Unknown Workflow')
		FROM executions e
		LEFT JOIN templates t ON t.id = e.template_id
		WHERE e.user_id = $1
		ORDER BY e.started_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ExecutionSummary
	for rows.Next() {
		var e models.ExecutionSummary
		if err := rows.Scan(&e.ID, &e.TemplateID, &e.UserID, &e.Status, &e.CreditsUsed,
			&e.EngineWorkflowID, &e.EngineExecutionID, &e.StartedAt, &e.EndedAt, &e.ErrorMessage,
			&e.TemplateName); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// UpdateExecution persists status changes. Rows already in a terminal state
// are left untouched; execution records are immutable once terminal.
func (s *PostgresStore) UpdateExecution(ctx context.Context, e *models.Execution) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE executions SET status = $1, engine_workflow_id = $2,
			engine_execution_id = $3, ended_at = $4, error_message = $5
		WHERE id = $6 AND status NOT IN ($7, $8)`,
		e.Status, e.EngineWorkflowID, e.EngineExecutionID, e.EndedAt, e.ErrorMessage,
		e.ID, models.ExecutionStatusSuccess, models.ExecutionStatusFailed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
