// Package api contains the HTTP handlers for the FlowSaaS control plane.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"flowsaas/backend/internal/auth"
	"flowsaas/backend/internal/repository"
	"flowsaas/backend/internal/services"
	"flowsaas/backend/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Server holds the dependencies for the API server.
type Server struct {
	Store     repository.Store
	Templates *services.TemplateService
	Runs      *services.RunService
	AI        services.AIClient
	Logger    Logger
}

// NewServer creates a new Server.
func NewServer(store repository.Store, templates *services.TemplateService, runs *services.RunService, ai services.AIClient, logger Logger) *Server {
	return &Server{
		Store:     store,
		Templates: templates,
		Runs:      runs,
		AI:        ai,
		Logger:    logger,
	}
}

// HandleHealth returns basic health status (always returns 200 OK)
// (GET /health)
func (s *Server) HandleHealth(c echo.Context) error {
	status := models.HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "flowsaas",
		Version:   "1.0.0",
	}
	return c.JSON(http.StatusOK, status)
}

// problem writes an RFC 7807 Problem Details JSON error response.
func problem(c echo.Context, status int, title, detail string) error {
	p := models.ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	c.Response().WriteHeader(status)
	return json.NewEncoder(c.Response()).Encode(p)
}

// currentUser returns the account injected by the auth middleware.
func currentUser(c echo.Context) *models.User {
	return auth.UserFromContext(c.Request().Context())
}
