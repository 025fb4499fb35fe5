package routes

import (
	"civicreport-be/controllers"
	"civicreport-be/middlewares"

	"github.com/gin-gonic/gin"
)

// Setup registers every API route on r. A nil limiter disables the
// submission rate limit.
func Setup(r *gin.Engine, h *controllers.Handler, limiter middlewares.Counter) {
	AuthRoutes(r, h)
	IssueRoutes(r, h, limiter)
	UserRoutes(r, h)
	AdminRoutes(r, h)
}
