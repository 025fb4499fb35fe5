package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"civicreport-be/config"
	"civicreport-be/metrics"
	"civicreport-be/middlewares"
	"civicreport-be/models"
	"civicreport-be/notify"
	"civicreport-be/reportform"
	"civicreport-be/session"
	"civicreport-be/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// requestTimeout bounds every store round-trip a handler makes
const requestTimeout = 10 * time.Second

// saveAttempts bounds how often a change is reapplied after losing a race
// with another request
const saveAttempts = 3

// sessionSnapshotKey holds the session as loaded, so unchanged sessions are
// not written back
const sessionSnapshotKey = "sessionSnapshot"

// Handler serves the API. Notifier and Metrics are optional.
type Handler struct {
	Store       store.Store
	Sessions    session.Store
	Notifier    *notify.Dispatcher
	Transcriber reportform.Transcriber
	Metrics     *metrics.Metrics
	Config      config.Config
	Log         zerolog.Logger
	Now         func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// internalError logs err and answers with the generic 500 body
func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.Log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
}

// currentUser loads the authenticated user
func (h *Handler) currentUser(c *gin.Context, ctx context.Context) (*models.User, bool) {
	userID := c.GetString(middlewares.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}
	user, err := h.Store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		} else {
			h.internalError(c, "Error loading user", err)
		}
		return nil, false
	}
	return user, true
}

// loadSession fetches the caller's session state
func (h *Handler) loadSession(c *gin.Context, ctx context.Context) (*session.State, bool) {
	id := c.GetString(middlewares.SessionIDKey)
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		return nil, false
	}
	state, err := h.Sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		} else {
			h.internalError(c, "Error loading session", err)
		}
		return nil, false
	}
	if state.UserID != c.GetString(middlewares.UserIDKey) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		return nil, false
	}
	snapshotSession(c, state)
	return state, true
}

func snapshotSession(c *gin.Context, state *session.State) {
	if raw, err := json.Marshal(state); err == nil {
		c.Set(sessionSnapshotKey, raw)
	}
}

func sessionUnchanged(c *gin.Context, state *session.State) bool {
	prev, ok := c.Get(sessionSnapshotKey)
	if !ok {
		return false
	}
	raw, err := json.Marshal(state)
	return err == nil && bytes.Equal(prev.([]byte), raw)
}

// saveSession writes the session back when the request changed it. Losing a
// race with another request answers 409 so the client can retry.
func (h *Handler) saveSession(c *gin.Context, ctx context.Context, state *session.State) bool {
	if sessionUnchanged(c, state) {
		return true
	}
	if err := h.Sessions.Save(ctx, state); err != nil {
		h.sessionSaveError(c, err)
		return false
	}
	snapshotSession(c, state)
	return true
}

// updateSession applies a change that depends only on the request. When
// another request saved the session first, the session is reloaded and the
// change applied again.
func (h *Handler) updateSession(c *gin.Context, ctx context.Context, state *session.State, apply func(*session.State)) (*session.State, bool) {
	for attempt := 1; ; attempt++ {
		apply(state)
		if sessionUnchanged(c, state) {
			return state, true
		}
		err := h.Sessions.Save(ctx, state)
		if err == nil {
			snapshotSession(c, state)
			return state, true
		}
		if !errors.Is(err, session.ErrConflict) || attempt == saveAttempts {
			h.sessionSaveError(c, err)
			return nil, false
		}

		var ok bool
		if state, ok = h.loadSession(c, ctx); !ok {
			return nil, false
		}
	}
}

func (h *Handler) sessionSaveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Session was changed by another request"})
	case errors.Is(err, session.ErrNoSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
	default:
		h.internalError(c, "Error saving session", err)
	}
}
