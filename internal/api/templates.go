package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"flowsaas/backend/internal/repository"
	"flowsaas/backend/pkg/models"
)

// ListTemplates returns the marketplace catalog. Draft and deactivated
// templates are never included.
// (GET /api/v1/templates)
func (s *Server) ListTemplates(c echo.Context) error {
	ctx := c.Request().Context()

	templates, err := s.Store.ListActiveTemplates(ctx)
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}

	out := make([]models.TemplatePublic, 0, len(templates))
	for _, t := range templates {
		out = append(out, t.Public())
	}
	return c.JSON(http.StatusOK, out)
}

// GetTemplate returns a single marketplace template. The raw workflow
// document is not part of the public shape.
// (GET /api/v1/templates/:id)
func (s *Server) GetTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	tmpl, err := s.Store.GetActiveTemplate(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return problem(c, http.StatusNotFound, "Not Found", "Template not found")
		}
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.JSON(http.StatusOK, tmpl.Public())
}

// RunTemplate submits a run of an active template for the calling user.
// (POST /api/v1/templates/:id/run)
func (s *Server) RunTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	user := currentUser(c)
	if user == nil {
		return problem(c, http.StatusUnauthorized, "Unauthorized", "No authenticated user")
	}

	var req models.RunRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "Invalid request body: "+err.Error())
	}

	resp, err := s.Runs.Run(ctx, c.Param("id"), user, req.Inputs)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientCredits):
			return problem(c, http.StatusPaymentRequired, "Payment Required", "Insufficient credits")
		case errors.Is(err, repository.ErrNotFound):
			return problem(c, http.StatusNotFound, "Not Found", "Template not found")
		case strings.Contains(err.Error(), "input schema"):
			return problem(c, http.StatusBadRequest, "Bad Request", err.Error())
		default:
			s.Logger.Error("run submission failed", "template_id", c.Param("id"), "error", err)
			return problem(c, http.StatusBadGateway, "Bad Gateway", err.Error())
		}
	}
	return c.JSON(http.StatusAccepted, resp)
}
