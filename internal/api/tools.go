package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"flowsaas/backend/internal/repository"
	"flowsaas/backend/pkg/models"
)

// ListTools returns the public tool catalog, most used first.
// (GET /api/v1/tools)
func (s *Server) ListTools(c echo.Context) error {
	ctx := c.Request().Context()

	tools, err := s.Store.ListActiveTools(ctx)
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	if tools == nil {
		tools = []*models.Tool{}
	}
	return c.JSON(http.StatusOK, tools)
}

// GetTool returns a single catalog entry and bumps its usage counter.
// (GET /api/v1/tools/:slug)
func (s *Server) GetTool(c echo.Context) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")

	tool, err := s.Store.GetToolBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return problem(c, http.StatusNotFound, "Not Found", "Tool not found")
		}
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}

	if err := s.Store.IncrementToolUsage(ctx, slug); err != nil {
		s.Logger.Error("failed to bump tool usage", "slug", slug, "error", err)
	}
	return c.JSON(http.StatusOK, tool)
}
