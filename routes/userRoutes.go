package routes

import (
	"civicreport-be/controllers"
	"civicreport-be/middlewares"

	"github.com/gin-gonic/gin"
)

// UserRoutes sets up the profile and navigation shell routes
func UserRoutes(r *gin.Engine, h *controllers.Handler) {
	auth := middlewares.AuthMiddleware(h.Config.JWTSecret)

	profile := r.Group("/api/profile", auth)
	{
		profile.GET("", h.GetProfile)
		profile.POST("/edit", h.BeginProfileEdit)
		profile.PATCH("/edit", h.EditProfile)
		profile.POST("/edit/save", h.SaveProfile)
		profile.POST("/edit/cancel", h.CancelProfileEdit)
		profile.PUT("/notifications", h.UpdateNotifications)
	}

	nav := r.Group("/api/session", auth)
	{
		nav.GET("", h.GetSession)
		nav.PUT("/page", h.Navigate)
		nav.PUT("/admin-view", h.SetAdminView)
	}
}
