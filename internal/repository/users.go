package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"flowsaas/backend/pkg/models"
)

// GetUserByEmail retrieves a user by email address.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, credits_balance, is_active, is_admin, created_at
		FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetUser retrieves a user by id.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, credits_balance, is_active, is_admin, created_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// CreateUser inserts a new account. Missing ids are generated.
func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, email, credits_balance, is_active, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.CreditsBalance, u.IsActive, u.IsAdmin, u.CreatedAt)
	return err
}

// SetAdmin toggles the admin flag for the account with the given email.
func (s *PostgresStore) SetAdmin(ctx context.Context, email string, admin bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET is_admin = $1 WHERE email = $2`, admin, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordTransaction appends a ledger row and updates the cached balance in
// one transaction. The user row is locked for the duration so concurrent
// deductions cannot overdraw. A deduction below zero returns
// ErrInsufficientCredits and leaves both tables untouched.
func (s *PostgresStore) RecordTransaction(ctx context.Context, userID string, amount int, description, referenceID string) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var balance int
	err = tx.QueryRow(ctx, `SELECT credits_balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	balance += amount
	if balance < 0 {
		return 0, ErrInsufficientCredits
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET credits_balance = $1 WHERE id = $2`, balance, userID); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, reference_id, description, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), userID, amount, referenceID, description, balance, time.Now().UTC()); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// ListTransactions returns the user's ledger history, newest first.
func (s *PostgresStore) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, amount, reference_id, description, balance_after, created_at
		FROM credit_transactions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.ReferenceID, &t.Description, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.CreditsBalance, &u.IsActive, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
