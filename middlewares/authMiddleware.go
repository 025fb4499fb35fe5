package middlewares

import (
	"net/http"
	"strings"

	"civicreport-be/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Context keys set by AuthMiddleware
const (
	UserIDKey    = "user_id"
	RoleKey      = "role"
	SessionIDKey = "session_id"
)

// AuthCookie is the cookie the login handler sets
const AuthCookie = "auth_token"

// AuthMiddleware accepts a bearer token or the auth cookie
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if authHeader := c.Request.Header.Get("Authorization"); authHeader != "" {
			// Extracting token from "Bearer <token>" format
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else if cookie, err := c.Cookie(AuthCookie); err == nil {
			tokenString = cookie
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			return
		}

		if secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "JWT secret not configured"})
			return
		}

		claims, err := utils.ParseToken(secret, tokenString)
		if err != nil {
			log.Debug().Err(err).Msg("Token validation failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Set(SessionIDKey, claims.SessionID)
		c.Next()
	}
}

// RequireRole rejects callers whose token does not carry role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You are not authorized to access this resource"})
			return
		}
		c.Next()
	}
}
