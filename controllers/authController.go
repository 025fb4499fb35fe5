package controllers

import (
	"errors"
	"net/http"
	"strings"

	"civicreport-be/middlewares"
	"civicreport-be/models"
	"civicreport-be/store"
	"civicreport-be/utils"

	"github.com/gin-gonic/gin"
)

func userResponse(u *models.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"phone":     u.Phone,
		"role":      u.Role,
		"createdAt": u.CreatedAt,
	}
}

// RegisterUser handles citizen registration
func (h *Handler) RegisterUser(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required,max=50"`
		Email    string `json:"email" binding:"required,email"`
		Phone    string `json:"phone" binding:"omitempty,max=30"`
		Password string `json:"password" binding:"required,min=6"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user := models.User{
		Name:          utils.CleanText(input.Name),
		Email:         strings.ToLower(input.Email),
		Phone:         utils.CleanText(input.Phone),
		Password:      input.Password,
		Role:          models.RoleCitizen,
		Notifications: models.DefaultNotificationPrefs(),
	}

	if err := user.HashPassword(); err != nil {
		h.internalError(c, "Error hashing password", err)
		return
	}

	if err := h.Store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User with this email already exists"})
			return
		}
		h.internalError(c, "Error inserting user", err)
		return
	}

	c.JSON(http.StatusCreated, userResponse(&user))
}

// LoginUser checks credentials, opens a session and sets the auth cookie
func (h *Handler) LoginUser(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.Store.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.internalError(c, "Error loading user", err)
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !user.ComparePassword(input.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	state, err := h.Sessions.Create(ctx, user.ID)
	if err != nil {
		h.internalError(c, "Error creating session", err)
		return
	}

	token, err := utils.GenerateToken(h.Config.JWTSecret, user.ID, string(user.Role), state.ID)
	if err != nil {
		h.internalError(c, "Error generating token", err)
		return
	}
	h.setAuthCookie(c, token, int(utils.TokenTTL.Seconds()))

	c.JSON(http.StatusOK, gin.H{
		"user":  userResponse(user),
		"token": token,
		"shell": state.Shell,
	})
}

// setAuthCookie writes or clears the auth cookie
func (h *Handler) setAuthCookie(c *gin.Context, value string, maxAge int) {
	domain := h.Config.Domain
	secure := h.Config.IsProduction()

	// For production, don't set domain to allow cross-origin cookies
	if secure {
		domain = ""
	}

	sameSite := http.SameSiteLaxMode
	if secure {
		// Required for cross-origin cookies in production
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.AuthCookie,
		Value:    value,
		MaxAge:   maxAge,
		Path:     "/",
		Domain:   domain,
		Secure:   secure,
		HttpOnly: true,
		SameSite: sameSite,
	})
}

// GetMe retrieves the authenticated user's information
func (h *Handler) GetMe(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(c, ctx)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// LogoutUser discards the session state and clears the auth cookie
func (h *Handler) LogoutUser(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if id := c.GetString(middlewares.SessionIDKey); id != "" {
		if err := h.Sessions.Delete(ctx, id); err != nil {
			h.internalError(c, "Error deleting session", err)
			return
		}
	}

	h.setAuthCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}
