package controllers

import (
	"errors"
	"net/http"

	"civicreport-be/models"
	"civicreport-be/session"
	"civicreport-be/store"

	"github.com/gin-gonic/gin"
)

func reportFilters() []filterOption {
	keys := models.MyReportsView.Keys()
	out := make([]filterOption, 0, len(keys))
	for _, k := range keys {
		label := "All"
		if k != models.FilterAll {
			statuses, _ := models.MyReportsView.Resolve(k)
			label = statusLabel(statuses[0], models.MyReportsView)
		}
		out = append(out, filterOption{Key: k, Label: label})
	}
	return out
}

// GetMyReports lists the caller's reports, filtered by status
func (h *Handler) GetMyReports(c *gin.Context) {
	status, statusSet := c.GetQuery("status")
	if statusSet {
		if _, valid := models.MyReportsView.Resolve(status); !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		if status == "" {
			status = models.FilterAll
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	state, ok = h.updateSession(c, ctx, state, func(s *session.State) {
		if statusSet {
			s.Filters.Reports = status
		}
	})
	if !ok {
		return
	}

	issues, total, err := h.Store.ListIssues(ctx, store.Query{
		ReporterID: state.UserID,
		View:       models.MyReportsView,
		Status:     state.Filters.Reports,
	})
	if err != nil {
		h.internalError(c, "Failed to retrieve reports", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filter":  state.Filters.Reports,
		"filters": reportFilters(),
		"reports": mapSlice(issues, toReportView),
		"count":   total,
	})
}

// GetMyReport returns one of the caller's reports with its timeline
func (h *Handler) GetMyReport(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}

	issue, err := h.Store.GetIssue(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}
		h.internalError(c, "Failed to retrieve report", err)
		return
	}
	// other citizens' reports are not visible here
	if issue.ReporterID != state.UserID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	if _, ok := h.updateSession(c, ctx, state, func(s *session.State) {
		s.Filters.SelectedReport = issue.ID
	}); !ok {
		return
	}
	c.JSON(http.StatusOK, toReportView(*issue))
}
