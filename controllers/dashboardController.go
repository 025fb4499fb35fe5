package controllers

import (
	"net/http"
	"strconv"

	"civicreport-be/models"
	"civicreport-be/session"
	"civicreport-be/store"

	"github.com/gin-gonic/gin"
)

type filterOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var dashboardFilters = []filterOption{
	{Key: models.FilterAll, Label: "All"},
	{Key: string(models.Streetlight), Label: "Streetlight"},
	{Key: string(models.Pothole), Label: "Pothole"},
	{Key: string(models.Garbage), Label: "Garbage"},
	{Key: string(models.Other), Label: "Other"},
}

// recentLimit is how many issues the dashboard's recent list shows
const recentLimit = 5

func validCategoryKey(key string) bool {
	if key == "" || key == models.FilterAll {
		return true
	}
	c, ok := models.ParseCategory(key)
	return ok && string(c) == key
}

// GetDashboard lists issues for the citizen dashboard, filtered by category.
// The filter and map toggle are remembered in the session.
func (h *Handler) GetDashboard(c *gin.Context) {
	filter, filterSet := c.GetQuery("filter")
	if filterSet {
		if !validCategoryKey(filter) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
			return
		}
		if filter == "" {
			filter = models.FilterAll
		}
	}
	var showMap *bool
	if raw, set := c.GetQuery("showMap"); set {
		on, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid showMap"})
			return
		}
		showMap = &on
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	state, ok = h.updateSession(c, ctx, state, func(s *session.State) {
		if filterSet {
			s.Filters.Dashboard = filter
		}
		if showMap != nil {
			s.Filters.ShowMap = *showMap
		}
	})
	if !ok {
		return
	}

	issues, total, err := h.Store.ListIssues(ctx, store.Query{
		Category: state.Filters.Dashboard,
		View:     models.DashboardView,
	})
	if err != nil {
		h.internalError(c, "Failed to retrieve issues", err)
		return
	}

	pins := []mapPin{}
	for _, i := range issues {
		if i.HasLocation() {
			pins = append(pins, mapPin{
				ID:       i.ID,
				Type:     i.Category,
				Status:   i.Status.In(models.DashboardView),
				Location: latLng{Lat: *i.Latitude, Lng: *i.Longitude},
			})
		}
	}

	views := mapSlice(issues, toDashboardIssue)
	recent := views
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}

	c.JSON(http.StatusOK, gin.H{
		"filter":  state.Filters.Dashboard,
		"filters": dashboardFilters,
		"showMap": state.Filters.ShowMap,
		"issues":  views,
		"count":   total,
		"pins":    pins,
		"recent":  recent,
	})
}
