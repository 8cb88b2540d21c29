package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterPublicRoutes mounts the unauthenticated marketplace surface.
func (s *Server) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/templates", s.ListTemplates)
	g.GET("/templates/:id", s.GetTemplate)
	g.GET("/tools", s.ListTools)
	g.GET("/tools/:slug", s.GetTool)
}

// RegisterUserRoutes mounts the authenticated user surface.
func (s *Server) RegisterUserRoutes(g *echo.Group) {
	g.POST("/templates/:id/run", s.RunTemplate)
	g.GET("/executions", s.ListExecutions)
	g.GET("/executions/:id", s.GetExecution)
	g.GET("/executions/:id/status", s.GetExecutionStatus)
	g.GET("/credits", s.GetCredits)
}

// RegisterAdminRoutes mounts the template management surface.
func (s *Server) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/templates", s.UploadTemplate)
	g.GET("/templates", s.ListAllTemplates)
	g.POST("/templates/generate", s.GenerateWorkflow)
	g.GET("/templates/:id", s.GetTemplateAdmin)
	g.PATCH("/templates/:id", s.UpdateTemplateConfig)
	g.POST("/templates/:id/test", s.TestTemplate)
	g.POST("/templates/:id/activate", s.ActivateTemplate)
	g.POST("/templates/:id/deactivate", s.DeactivateTemplate)
	g.DELETE("/templates/:id", s.DeleteTemplate)
	g.POST("/users/:email/credits", s.AddCredits)
}
