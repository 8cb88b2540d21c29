package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"flowsaas/backend/internal/repository"
	"flowsaas/backend/internal/services"
	"flowsaas/backend/pkg/models"
)

// UploadTemplate creates a draft template from an uploaded workflow document.
// (POST /api/v1/admin/templates)
func (s *Server) UploadTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	var upload models.TemplateUpload
	if err := c.Bind(&upload); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "Invalid request body: "+err.Error())
	}
	if upload.Name == "" {
		return problem(c, http.StatusBadRequest, "Bad Request", "Template name is required")
	}

	createdBy := ""
	if user := currentUser(c); user != nil {
		createdBy = user.ID
	}

	tmpl, err := s.Templates.CreateFromJSON(ctx, &upload, createdBy)
	if err != nil {
		if errors.Is(err, services.ErrInvalidDocument) || strings.Contains(err.Error(), "input schema") {
			return problem(c, http.StatusBadRequest, "Bad Request", err.Error())
		}
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.JSON(http.StatusCreated, tmpl)
}

// ListAllTemplates returns every template including drafts.
// (GET /api/v1/admin/templates)
func (s *Server) ListAllTemplates(c echo.Context) error {
	ctx := c.Request().Context()

	templates, err := s.Store.ListTemplates(ctx)
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	if templates == nil {
		templates = []*models.Template{}
	}
	return c.JSON(http.StatusOK, templates)
}

// GetTemplateAdmin returns the full template shape, document included.
// (GET /api/v1/admin/templates/:id)
func (s *Server) GetTemplateAdmin(c echo.Context) error {
	ctx := c.Request().Context()

	tmpl, err := s.Store.GetTemplate(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return problem(c, http.StatusNotFound, "Not Found", "Template not found")
		}
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.JSON(http.StatusOK, tmpl)
}

// UpdateTemplateConfig applies a partial update to metadata, pricing or the
// input schema.
// (PATCH /api/v1/admin/templates/:id)
func (s *Server) UpdateTemplateConfig(c echo.Context) error {
	ctx := c.Request().Context()

	var update models.TemplateUpdate
	if err := c.Bind(&update); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "Invalid request body: "+err.Error())
	}

	tmpl, err := s.Templates.UpdateConfig(ctx, c.Param("id"), &update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return problem(c, http.StatusNotFound, "Not Found", "Template not found")
		case strings.Contains(err.Error(), "input schema"):
			return problem(c, http.StatusBadRequest, "Bad Request", err.Error())
		default:
			return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
		}
	}
	return c.JSON(http.StatusOK, tmpl)
}

// TestTemplate runs a template against the engine with admin-provided
// inputs. A passed test records the engine workflow id needed to activate.
// (POST /api/v1/admin/templates/:id/test)
func (s *Server) TestTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.TestRunRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "Invalid request body: "+err.Error())
	}

	resp, err := s.Templates.TestRun(ctx, c.Param("id"), req.Inputs)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return problem(c, http.StatusNotFound, "Not Found", "Template not found")
		case strings.Contains(err.Error(), "input schema"):
			return problem(c, http.StatusBadRequest, "Bad Request", err.Error())
		default:
			return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// ActivateTemplate makes a tested template visible in the marketplace.
// (POST /api/v1/admin/templates/:id/activate)
func (s *Server) ActivateTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	tmpl, err := s.Templates.Activate(ctx, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return problem(c, http.StatusNotFound, "Not Found", "Template not found")
		case errors.Is(err, services.ErrNotTested), errors.Is(err, services.ErrNoInputSchema):
			return problem(c, http.StatusConflict, "Conflict", err.Error())
		case strings.Contains(err.Error(), "input schema"):
			return problem(c, http.StatusBadRequest, "Bad Request", err.Error())
		default:
			return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
		}
	}
	return c.JSON(http.StatusOK, tmpl)
}

// DeactivateTemplate hides a template from the marketplace.
// (POST /api/v1/admin/templates/:id/deactivate)
func (s *Server) DeactivateTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	tmpl, err := s.Templates.Deactivate(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return problem(c, http.StatusNotFound, "Not Found", "Template not found")
		}
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.JSON(http.StatusOK, tmpl)
}

// DeleteTemplate removes a template permanently.
// (DELETE /api/v1/admin/templates/:id)
func (s *Server) DeleteTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	if err := s.Templates.Delete(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return problem(c, http.StatusNotFound, "Not Found", "Template not found")
		}
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// GenerateWorkflow forwards a natural-language prompt to the generation
// sidecar and returns its draft document and schema.
// (POST /api/v1/admin/templates/generate)
func (s *Server) GenerateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Prompt   string `json:"prompt"`
		Provider string `json:"provider"`
	}
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.Prompt == "" {
		return problem(c, http.StatusBadRequest, "Bad Request", "Prompt is required")
	}

	generated, err := s.AI.Generate(ctx, req.Prompt, req.Provider)
	if err != nil {
		s.Logger.Error("generation failed", "error", err)
		return problem(c, http.StatusBadGateway, "Bad Gateway", err.Error())
	}
	return c.JSON(http.StatusOK, generated)
}

// AddCredits tops up a user's balance through the ledger.
// (POST /api/v1/admin/users/:email/credits)
func (s *Server) AddCredits(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Amount      int    `json:"amount"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.Amount <= 0 {
		return problem(c, http.StatusBadRequest, "Bad Request", "Amount must be positive")
	}
	if req.Description == "" {
		req.Description = "Admin credit grant"
	}

	user, err := s.Store.GetUserByEmail(ctx, c.Param("email"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return problem(c, http.StatusNotFound, "Not Found", "User not found")
		}
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}

	balance, err := s.Store.RecordTransaction(ctx, user.ID, req.Amount, req.Description, "")
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"email":   user.Email,
		"balance": balance,
	})
}
