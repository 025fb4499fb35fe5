package routes

import (
	"civicreport-be/controllers"
	"civicreport-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the citizen routes: dashboard, report form and the
// caller's own reports
func IssueRoutes(r *gin.Engine, h *controllers.Handler, limiter middlewares.Counter) {
	auth := middlewares.AuthMiddleware(h.Config.JWTSecret)

	r.GET("/api/dashboard", auth, h.GetDashboard)

	report := r.Group("/api/report", auth)
	{
		report.GET("/draft", h.GetDraft)
		report.PATCH("/draft", h.UpdateDraft)
		report.DELETE("/draft", h.DiscardDraft)
		report.POST("/draft/location", h.SetDraftLocation)
		report.POST("/draft/photo", h.UploadPhoto)
		report.POST("/draft/voice", h.RecordVoiceNote)
		report.POST("/submit",
			middlewares.IssueRateLimiter(limiter, h.Config.IssueLimitQueue, h.Config.IssueDailyLimit),
			h.SubmitReport,
		)
	}

	reports := r.Group("/api/reports", auth)
	{
		reports.GET("", h.GetMyReports)
		reports.GET("/:id", h.GetMyReport)
	}

	r.GET("/api/attachments/:id", auth, h.GetAttachment)
}
