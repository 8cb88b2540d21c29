// flowsaasctl is the operator CLI for the FlowSaaS control plane: schema
// migrations, catalog seeding and account administration.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"flowsaas/backend/internal/config"
	"flowsaas/backend/internal/logging"
	"flowsaas/backend/internal/repository"
	"flowsaas/backend/pkg/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "flowsaasctl",
		Short:        "Operator CLI for the FlowSaaS control plane",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newAddCreditsCmd())
	root.AddCommand(newSetAdminCmd())
	return root
}

// connect loads the configuration and opens a pgx pool.
func connect(ctx context.Context) (*repository.PostgresStore, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repository.NewPostgresStore(pool), pool.Close, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeFn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			cmd.Println("Schema is up to date")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the tool catalog and a demo template",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.NewLogger()
			store, closeFn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			// Tool catalog entries. Existing slugs are skipped so the
			// command stays re-runnable.
			tools := []*models.Tool{
				{
					Name:       "QR Code Generator",
					Slug:       "qr-generator",
					Category:   "Generator",
					InputType:  "text",
					OutputType: "image",
					IsActive:   true,
				},
				{
					Name:       "JSON Formatter",
					Slug:       "json-formatter",
					Category:   "Developer",
					InputType:  "text",
					OutputType: "text",
					IsActive:   true,
				},
				{
					Name:       "Word Counter",
					Slug:       "word-counter",
					Category:   "Text",
					InputType:  "text",
					OutputType: "text",
					IsActive:   true,
				},
			}
			for _, tool := range tools {
				if _, err := store.GetToolBySlug(ctx, tool.Slug); err == nil {
					logger.Info("Skipping existing tool", "slug", tool.Slug)
					continue
				}
				if err := store.CreateTool(ctx, tool); err != nil {
					logger.Error("Failed to seed tool", "slug", tool.Slug, "error", err)
					continue
				}
				logger.Info("Seeded tool", "slug", tool.Slug)
			}

			// A demo draft template; it still needs a test run and
			// activation before it appears in the marketplace.
			existing, err := store.ListTemplates(ctx)
			if err != nil {
				return err
			}
			for _, t := range existing {
				if t.Name == "Echo Demo" {
					logger.Info("Skipping existing template", "name", t.Name)
					return nil
				}
			}

			demo := &models.Template{
				Name:        "Echo Demo",
				Description: "Posts the provided message back. Useful for verifying the engine wiring.",
				Category:    "Demo",
				WorkflowDocument: `{
  "nodes": [
    {
      "id": "1",
      "name": "Echo",
      "type": "noOp",
      "typeVersion": 1,
      "position": [250, 300],
      "parameters": {"message": "{{MESSAGE}}"}
    }
  ],
  "connections": {}
}`,
				IsFree:      true,
				InputSchema: `[{"id":"msg00001","label":"Message","type":"text","placeholder":"{{MESSAGE}}"}]`,
			}
			if err := store.CreateTemplate(ctx, demo); err != nil {
				return fmt.Errorf("failed to seed template: %w", err)
			}
			logger.Info("Seeded template", "name", demo.Name, "id", demo.ID)
			logger.Info("Seeding complete!")
			return nil
		},
	}
}

func newAddCreditsCmd() *cobra.Command {
	var amount int
	var description string

	cmd := &cobra.Command{
		Use:   "add-credits <email>",
		Short: "Grant credits to an account through the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount <= 0 {
				return fmt.Errorf("amount must be positive, got %d", amount)
			}
			ctx := cmd.Context()
			store, closeFn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			user, err := store.GetUserByEmail(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}
			balance, err := store.RecordTransaction(ctx, user.ID, amount, description, "")
			if err != nil {
				return err
			}
			cmd.Printf("Granted %d credits to %s (balance: %d)\n", amount, user.Email, balance)
			return nil
		},
	}
	cmd.Flags().IntVar(&amount, "amount", 0, "number of credits to grant")
	cmd.Flags().StringVar(&description, "description", "Admin credit grant", "ledger entry description")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newSetAdminCmd() *cobra.Command {
	var revoke bool

	cmd := &cobra.Command{
		Use:   "set-admin <email>",
		Short: "Grant or revoke admin access for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeFn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.SetAdmin(ctx, args[0], !revoke); err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}
			if revoke {
				cmd.Printf("Revoked admin access for %s\n", args[0])
			} else {
				cmd.Printf("Granted admin access to %s\n", args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke admin access instead of granting it")
	return cmd
}
