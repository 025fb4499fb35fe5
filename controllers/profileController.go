package controllers

import (
	"errors"
	"net/http"

	"civicreport-be/models"
	"civicreport-be/profile"
	"civicreport-be/session"
	"civicreport-be/store"
	"civicreport-be/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func profileResponse(u *models.User, state *session.State) gin.H {
	return gin.H{
		"id":            u.ID,
		"role":          u.Role,
		"editing":       state.Profile.Editing,
		"profile":       state.Profile.View(u.Profile()),
		"notifications": u.Notifications,
	}
}

// profileError maps edit buffer errors to responses
func (h *Handler) profileError(c *gin.Context, err error) {
	var invalid validator.ValidationErrors
	switch {
	case errors.Is(err, profile.ErrNotEditing), errors.Is(err, profile.ErrAlreadyEditing):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
	default:
		h.internalError(c, "Error editing profile", err)
	}
}

// GetProfile shows the committed profile, or the buffer while editing
func (h *Handler) GetProfile(c *gin.Context) {
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
	c.JSON(http.StatusOK, profileResponse(user, state))
}

// BeginProfileEdit enters edit mode with a copy of the committed profile
func (h *Handler) BeginProfileEdit(c *gin.Context) {
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
	if err := state.Profile.Begin(user.Profile()); err != nil {
		h.profileError(c, err)
		return
	}
	if !h.saveSession(c, ctx, state) {
		return
	}
	c.JSON(http.StatusOK, profileResponse(user, state))
}

// EditProfile changes the edit buffer without committing it
func (h *Handler) EditProfile(c *gin.Context) {
	var patch profile.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, field := range []*string{patch.Name, patch.Email, patch.Phone} {
		if field != nil {
			*field = utils.CleanText(*field)
		}
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
	if err := state.Profile.Edit(patch); err != nil {
		h.profileError(c, err)
		return
	}
	if !h.saveSession(c, ctx, state) {
		return
	}
	c.JSON(http.StatusOK, profileResponse(user, state))
}

// SaveProfile commits the buffer and leaves edit mode
func (h *Handler) SaveProfile(c *gin.Context) {
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

	updated := *user
	editor := state.Profile
	if err := editor.Save(&updated); err != nil {
		h.profileError(c, err)
		return
	}
	updated.UpdatedAt = h.now()

	if err := h.Store.UpdateUser(ctx, &updated); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "User with this email already exists"})
			return
		}
		h.internalError(c, "Error updating profile", err)
		return
	}

	state.Profile = editor
	if !h.saveSession(c, ctx, state) {
		return
	}
	c.JSON(http.StatusOK, profileResponse(&updated, state))
}

// CancelProfileEdit discards the buffer and leaves edit mode
func (h *Handler) CancelProfileEdit(c *gin.Context) {
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
	if err := state.Profile.Cancel(user.Profile()); err != nil {
		h.profileError(c, err)
		return
	}
	if !h.saveSession(c, ctx, state) {
		return
	}
	c.JSON(http.StatusOK, profileResponse(user, state))
}

// UpdateNotifications sets individual notification switches
func (h *Handler) UpdateNotifications(c *gin.Context) {
	var input map[string]bool
	if err := c.ShouldBindJSON(&input); err != nil || len(input) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expected notification switches"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(c, ctx)
	if !ok {
		return
	}

	for key, on := range input {
		if !user.Notifications.Set(key, on) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown notification setting: " + key})
			return
		}
	}
	user.UpdatedAt = h.now()

	if err := h.Store.UpdateUser(ctx, user); err != nil {
		h.internalError(c, "Error updating notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": user.Notifications})
}
