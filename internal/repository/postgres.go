package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaDDL)
	return err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	credits_balance INT NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS templates (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	workflow_document TEXT NOT NULL,
	engine_workflow_id TEXT NOT NULL DEFAULT '',
	is_free BOOLEAN NOT NULL DEFAULT FALSE,
	credits_per_run INT NOT NULL DEFAULT 0 CHECK (credits_per_run >= 0),
	input_schema TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT FALSE,
	created_by UUID,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS executions (
	id UUID PRIMARY KEY,
	template_id UUID NOT NULL,
	user_id UUID NOT NULL,
	status TEXT NOT NULL,
	credits_used INT NOT NULL DEFAULT 0,
	engine_workflow_id TEXT NOT NULL DEFAULT '',
	engine_execution_id TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	ended_at TIMESTAMPTZ,
	error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS executions_user_started_idx ON executions (user_id, started_at DESC);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	amount INT NOT NULL,
	reference_id TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	balance_after INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS credit_transactions_user_idx ON credit_transactions (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS user_credentials (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	name TEXT NOT NULL,
	credential_type TEXT NOT NULL,
	engine_credential_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tools (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	input_type TEXT NOT NULL DEFAULT '',
	output_type TEXT NOT NULL DEFAULT '',
	input_schema TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT FALSE,
	usage_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
