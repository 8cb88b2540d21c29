package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"flowsaas/backend/internal/repository"
	"flowsaas/backend/pkg/models"
)

// ListExecutions returns the calling user's run history, newest first.
// (GET /api/v1/executions)
func (s *Server) ListExecutions(c echo.Context) error {
	ctx := c.Request().Context()
	user := currentUser(c)
	if user == nil {
		return problem(c, http.StatusUnauthorized, "Unauthorized", "No authenticated user")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	executions, err := s.Store.ListExecutionsByUser(ctx, user.ID, limit)
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	if executions == nil {
		executions = []*models.ExecutionSummary{}
	}
	return c.JSON(http.StatusOK, executions)
}

// GetExecution returns a single execution record owned by the caller.
// (GET /api/v1/executions/:id)
func (s *Server) GetExecution(c echo.Context) error {
	exec, ok := s.ownedExecution(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, exec)
}

// GetExecutionStatus refreshes a non-terminal execution from the engine and
// returns the current state.
// (GET /api/v1/executions/:id/status)
func (s *Server) GetExecutionStatus(c echo.Context) error {
	ctx := c.Request().Context()

	exec, ok := s.ownedExecution(c)
	if !ok {
		return nil
	}

	refreshed, err := s.Runs.SyncStatus(ctx, exec.ID)
	if err != nil {
		s.Logger.Error("status refresh failed", "execution_id", exec.ID, "error", err)
		return problem(c, http.StatusBadGateway, "Bad Gateway", err.Error())
	}
	return c.JSON(http.StatusOK, refreshed)
}

// GetCredits returns the caller's balance and recent ledger history.
// (GET /api/v1/credits)
func (s *Server) GetCredits(c echo.Context) error {
	ctx := c.Request().Context()
	user := currentUser(c)
	if user == nil {
		return problem(c, http.StatusUnauthorized, "Unauthorized", "No authenticated user")
	}

	// re-read: the context copy may be stale after a run
	account, err := s.Store.GetUser(ctx, user.ID)
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	history, err := s.Store.ListTransactions(ctx, user.ID, limit)
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	if history == nil {
		history = []*models.CreditTransaction{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"balance": account.CreditsBalance,
		"history": history,
	})
}

// ownedExecution resolves the :id path parameter to an execution owned by
// the caller. On failure the problem response has already been written and
// ok is false.
func (s *Server) ownedExecution(c echo.Context) (*models.Execution, bool) {
	ctx := c.Request().Context()
	user := currentUser(c)
	if user == nil {
		problem(c, http.StatusUnauthorized, "Unauthorized", "No authenticated user")
		return nil, false
	}

	exec, err := s.Store.GetExecution(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			problem(c, http.StatusNotFound, "Not Found", "Execution not found")
		} else {
			problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
		}
		return nil, false
	}
	// a foreign execution id is indistinguishable from a missing one
	if exec.UserID != user.ID && !user.IsAdmin {
		problem(c, http.StatusNotFound, "Not Found", "Execution not found")
		return nil, false
	}
	return exec, true
}
