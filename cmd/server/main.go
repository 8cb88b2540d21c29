package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"flowsaas/backend/internal/api"
	"flowsaas/backend/internal/auth"
	"flowsaas/backend/internal/config"
	"flowsaas/backend/internal/logging"
	"flowsaas/backend/internal/mcp"
	"flowsaas/backend/internal/repository"
	"flowsaas/backend/internal/services"
	"flowsaas/backend/internal/tls"
)

func main() {
	ctx := context.Background()

	// Initialize logging
	logger := logging.NewLogger()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		log.Fatalf("Configuration loading failed: %v", err)
	}
	logger.Info("Configuration loaded",
		"issuer", cfg.Auth.Issuer,
		"client_id", cfg.Auth.ClientID,
		"engine_url", cfg.Engine.BaseURL,
		"config_file", viper.ConfigFileUsed(),
	)

	logger.Info("Starting FlowSaaS control plane")

	// Initialize database connection
	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer dbPool.Close()

	logger.Info("Database connected")

	// Initialize repository layer. Migrations are idempotent, so applying
	// them on startup keeps fresh deployments working without flowsaasctl.
	store := repository.NewPostgresStore(dbPool)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("Failed to apply migrations", "error", err)
		log.Fatalf("Migration failed: %v", err)
	}

	// Initialize service layer
	engineClient := services.NewHTTPEngineClient(cfg.Engine.BaseURL, cfg.Engine.APIKey)
	aiClient := services.NewHTTPAIClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model)
	templateService := services.NewTemplateService(store, engineClient)
	runService := services.NewRunService(store, engineClient, logger,
		time.Duration(cfg.Engine.PollTimeoutSeconds)*time.Second)

	logger.Info("Service layer initialized")

	// Create Echo server
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("flowsaas"))

	// Initialize authentication
	authz, err := auth.New(ctx, cfg, store, logger)
	if err != nil {
		logger.Error("failed to initialize auth", "error", err)
		log.Fatalf("auth initialization failed: %v", err)
	}

	// Register auth handlers
	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	// Mount REST API handlers
	apiServer := api.NewServer(store, templateService, runService, aiClient, logger)
	e.GET("/health", apiServer.HandleHealth)

	publicGroup := e.Group("/api/v1")
	apiServer.RegisterPublicRoutes(publicGroup)

	userGroup := e.Group("/api/v1")
	userGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	apiServer.RegisterUserRoutes(userGroup)

	adminGroup := e.Group("/api/v1/admin")
	adminGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	adminGroup.Use(echo.WrapMiddleware(authz.RequireAdmin))
	apiServer.RegisterAdminRoutes(adminGroup)

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers. The mount sits behind the same auth
	// middleware as the user API: tool calls bill the resolved account.
	mcpServer := mcp.NewServer(store, runService)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(authz.RequireAuth(mcpHandlers)))

	logger.Info("MCP protocol handlers mounted")

	// expose OpenAPI spec (with runtime substitution) and Swagger UI
	swaggerClientID := cfg.Auth.SwaggerClientID
	if swaggerClientID == "" {
		swaggerClientID = cfg.Auth.ClientID
	}
	e.GET("/openapi.yaml", echo.WrapHandler(http.HandlerFunc(api.SpecHandler(cfg.Auth.Issuer))))
	e.GET("/docs", echo.WrapHandler(http.HandlerFunc(api.SwaggerHandler(cfg.Auth.Issuer, swaggerClientID))))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(http.HandlerFunc(api.OAuthRedirectHandler)))

	// Create HTTP server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
		if cfg.TLS.Enable {
			port = 8443
		}
	}
	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				logger.Error("TLS enabled but cert/key file not provided")
				serverErrors <- server.ListenAndServe()
				return
			}
			// generate if missing and hostnames provided
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) {
				if len(cfg.TLS.Hostnames) > 0 {
					if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
						logger.Error("failed to generate self-signed cert", "error", err)
					}
				}
			}
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig)

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
