package routes

import (
	"civicreport-be/controllers"
	"civicreport-be/middlewares"

	"github.com/gin-gonic/gin"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(r *gin.Engine, h *controllers.Handler) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.LoginUser)
		auth.GET("/me", middlewares.AuthMiddleware(h.Config.JWTSecret), h.GetMe)
		auth.POST("/logout", middlewares.AuthMiddleware(h.Config.JWTSecret), h.LogoutUser)
	}
}
