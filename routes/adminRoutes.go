package routes

import (
	"civicreport-be/controllers"
	"civicreport-be/middlewares"
	"civicreport-be/models"

	"github.com/gin-gonic/gin"
)

// AdminRoutes sets up the admin dashboard routes
func AdminRoutes(r *gin.Engine, h *controllers.Handler) {
	admin := r.Group("/api/admin",
		middlewares.AuthMiddleware(h.Config.JWTSecret),
		middlewares.RequireRole(string(models.RoleAdmin)),
	)
	{
		admin.GET("/overview", h.GetAdminOverview)
		admin.GET("/analytics", h.GetAnalytics)
		admin.PUT("/tab", h.SetAdminTab)

		admin.GET("/issues", h.GetAdminIssues)
		admin.GET("/issues/:id", h.GetAdminIssue)
		admin.PATCH("/issues/:id", h.UpdateIssue)
		admin.POST("/issues/:id/timeline/advance", h.AdvanceTimeline)
		admin.GET("/issues/:id/notes", h.GetNotes)
		admin.POST("/issues/:id/notes", h.AddNote)
	}
}
