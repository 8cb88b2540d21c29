package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"flowsaas/backend/pkg/models"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx))

	user := &models.User{Email: "tester@flowsaas.dev", IsActive: true}
	require.NoError(t, store.CreateUser(ctx, user))

	t.Run("template lifecycle and marketplace visibility", func(t *testing.T) {
		tmpl := &models.Template{
			ID:               uuid.New().String(),
			Name:             "Telegram Digest",
			Description:      "Posts a daily digest to a Telegram chat",
			Category:         "Bot",
			WorkflowDocument: `{"nodes": [], "connections": {}}`,
			CreditsPerRun:    5,
			InputSchema:      `[{"id":"ab12cd34","label":"Chat ID","type":"text","placeholder":"{{CHAT}}"}]`,
		}
		require.NoError(t, store.CreateTemplate(ctx, tmpl))

		// drafts never appear in marketplace listings
		active, err := store.ListActiveTemplates(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)

		_, err = store.GetActiveTemplate(ctx, tmpl.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		all, err := store.ListTemplates(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)

		tmpl.IsActive = true
		require.NoError(t, store.UpdateTemplate(ctx, tmpl))

		active, err = store.ListActiveTemplates(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, tmpl.ID, active[0].ID)

		got, err := store.GetActiveTemplate(ctx, tmpl.ID)
		require.NoError(t, err)
		assert.Equal(t, "Telegram Digest", got.Name)

		// deactivation hides it again without deleting anything
		tmpl.IsActive = false
		require.NoError(t, store.UpdateTemplate(ctx, tmpl))
		active, err = store.ListActiveTemplates(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)
	})

	t.Run("credit ledger", func(t *testing.T) {
		balance, err := store.RecordTransaction(ctx, user.ID, 100, "Top up", "pay-1")
		require.NoError(t, err)
		assert.Equal(t, 100, balance)

		balance, err = store.RecordTransaction(ctx, user.ID, -30, "Workflow Execution", "exec-1")
		require.NoError(t, err)
		assert.Equal(t, 70, balance)

		// overdraft rejected, balance untouched
		_, err = store.RecordTransaction(ctx, user.ID, -500, "Workflow Execution", "exec-2")
		assert.ErrorIs(t, err, ErrInsufficientCredits)

		got, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 70, got.CreditsBalance)

		history, err := store.ListTransactions(ctx, user.ID, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, 70, history[0].BalanceAfter)
		assert.Equal(t, -30, history[0].Amount)
	})

	t.Run("executions are immutable once terminal", func(t *testing.T) {
		exec := &models.Execution{
			ID:         uuid.New().String(),
			TemplateID: uuid.New().String(),
			UserID:     user.ID,
			Status:     models.ExecutionStatusRunning,
			StartedAt:  time.Now().UTC(),
		}
		require.NoError(t, store.CreateExecution(ctx, exec))

		ended := time.Now().UTC()
		exec.Status = models.ExecutionStatusSuccess
		exec.EndedAt = &ended
		require.NoError(t, store.UpdateExecution(ctx, exec))

		exec.Status = models.ExecutionStatusFailed
		exec.ErrorMessage = "must not land"
		assert.ErrorIs(t, store.UpdateExecution(ctx, exec), ErrNotFound)

		got, err := store.GetExecution(ctx, exec.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusSuccess, got.Status)
		assert.Empty(t, got.ErrorMessage)
	})

	t.Run("execution listing joins template names", func(t *testing.T) {
		tmpl := &models.Template{
			ID:               uuid.New().String(),
			Name:             "Sheet Sync",
			WorkflowDocument: `{}`,
		}
		require.NoError(t, store.CreateTemplate(ctx, tmpl))

		exec := &models.Execution{
			ID:         uuid.New().String(),
			TemplateID: tmpl.ID,
			UserID:     user.ID,
			Status:     models.ExecutionStatusRunning,
			StartedAt:  time.Now().UTC(),
		}
		require.NoError(t, store.CreateExecution(ctx, exec))

		list, err := store.ListExecutionsByUser(ctx, user.ID, 10)
		require.NoError(t, err)
		require.NotEmpty(t, list)
		assert.Equal(t, "Sheet Sync", list[0].TemplateName)
	})

	t.Run("tool catalog", func(t *testing.T) {
		tool := &models.Tool{
			Name:       "QR Generator",
			Slug:       "qr-generator",
			Category:   "Generator",
			InputType:  "text",
			OutputType: "image",
			IsActive:   true,
		}
		require.NoError(t, store.CreateTool(ctx, tool))

		got, err := store.GetToolBySlug(ctx, "qr-generator")
		require.NoError(t, err)
		assert.Equal(t, "QR Generator", got.Name)

		require.NoError(t, store.IncrementToolUsage(ctx, "qr-generator"))
		got, err = store.GetToolBySlug(ctx, "qr-generator")
		require.NoError(t, err)
		assert.Equal(t, 1, got.UsageCount)

		tools, err := store.ListActiveTools(ctx)
		require.NoError(t, err)
		assert.Len(t, tools, 1)
	})
}
