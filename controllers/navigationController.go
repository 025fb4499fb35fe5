package controllers

import (
	"errors"
	"net/http"

	"civicreport-be/navigation"
	"civicreport-be/session"

	"github.com/gin-gonic/gin"
)

func shellResponse(state *session.State) gin.H {
	return gin.H{
		"page":      state.Shell.Page,
		"adminView": state.Shell.AdminView,
		"tabs":      state.Shell.Tabs(),
		"filters":   state.Filters,
	}
}

// GetSession returns the navigation shell of the current session
func (h *Handler) GetSession(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, shellResponse(state))
}

// Navigate switches the current page; unknown keys land on the dashboard
func (h *Handler) Navigate(c *gin.Context) {
	var input struct {
		Page string `json:"page" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	state, ok = h.updateSession(c, ctx, state, func(s *session.State) {
		s.Shell.Navigate(input.Page)
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, shellResponse(state))
}

// SetAdminView toggles between the citizen and admin views
func (h *Handler) SetAdminView(c *gin.Context) {
	var input struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(c, ctx)
	if !ok {
		return
	}
	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	if err := state.Shell.SetAdminView(*input.Enabled, user.IsAdmin()); err != nil {
		if errors.Is(err, navigation.ErrAdminOnly) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, "Error toggling admin view", err)
		return
	}
	state, ok = h.updateSession(c, ctx, state, func(s *session.State) {
		s.Shell.AdminView = *input.Enabled
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, shellResponse(state))
}
