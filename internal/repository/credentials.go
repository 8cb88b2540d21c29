package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"flowsaas/backend/pkg/models"
)

// CreateCredential records a reference to an engine-held credential.
func (s *PostgresStore) CreateCredential(ctx context.Context, c *models.UserCredential) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_credentials (id, user_id, name, credential_type, engine_credential_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.Name, c.CredentialType, c.EngineCredentialID, c.CreatedAt)
	return err
}

// ListCredentialsByUser returns the user's credential references, newest first.
func (s *PostgresStore) ListCredentialsByUser(ctx context.Context, userID string) ([]*models.UserCredential, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, credential_type, engine_credential_id, created_at
		FROM user_credentials WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.UserCredential
	for rows.Next() {
		var c models.UserCredential
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CredentialType, &c.EngineCredentialID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
