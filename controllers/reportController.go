package controllers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"civicreport-be/reportform"
	"civicreport-be/session"
	"civicreport-be/store"
	"civicreport-be/utils"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

var reportCategories = []filterOption{
	{Key: "streetlight", Label: "Streetlight Issue"},
	{Key: "pothole", Label: "Pothole"},
	{Key: "garbage", Label: "Garbage/Waste"},
	{Key: "graffiti", Label: "Graffiti"},
	{Key: "sidewalk", Label: "Sidewalk Issue"},
	{Key: "traffic", Label: "Traffic Signal"},
	{Key: "other", Label: "Other"},
}

func draftResponse(d *reportform.Draft) gin.H {
	missing := d.Missing()
	if missing == nil {
		missing = []string{}
	}
	return gin.H{
		"draft":      d,
		"canSubmit":  d.CanSubmit(),
		"missing":    missing,
		"categories": reportCategories,
	}
}

// draftError maps draft state errors to responses
func (h *Handler) draftError(c *gin.Context, err error) {
	var incomplete *reportform.IncompleteError
	switch {
	case errors.As(err, &incomplete):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "missing": incomplete.Missing})
	case errors.Is(err, reportform.ErrInvalidCategory):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
	case errors.Is(err, reportform.ErrAlreadySubmitted),
		errors.Is(err, reportform.ErrAlreadyRecording),
		errors.Is(err, reportform.ErrNotRecording):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.internalError(c, "Error updating draft", err)
	}
}

// GetDraft returns the report form, starting a fresh draft when needed
func (h *Handler) GetDraft(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	state, ok = h.updateSession(c, ctx, state, func(s *session.State) {
		s.CurrentDraft()
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, draftResponse(state.Draft))
}

// UpdateDraft edits the draft's text fields
func (h *Handler) UpdateDraft(c *gin.Context) {
	var patch reportform.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, field := range []*string{patch.Title, patch.Description, patch.Location} {
		if field != nil {
			*field = utils.CleanText(*field)
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	draft := state.CurrentDraft()
	if err := draft.Apply(patch); err != nil {
		h.draftError(c, err)
		return
	}
	if !h.saveSession(c, ctx, state) {
		return
	}
	c.JSON(http.StatusOK, draftResponse(draft))
}

// SetDraftLocation stores the client's detected position
func (h *Handler) SetDraftLocation(c *gin.Context) {
	var input struct {
		Address   string   `json:"address" binding:"required,max=200"`
		Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
		Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
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
	draft := state.CurrentDraft()
	if err := draft.SetCurrentLocation(utils.CleanText(input.Address), *input.Latitude, *input.Longitude); err != nil {
		h.draftError(c, err)
		return
	}
	if !h.saveSession(c, ctx, state) {
		return
	}
	c.JSON(http.StatusOK, draftResponse(draft))
}

// readUpload reads a multipart file within the configured size limit and
// sniffs its content type
func (h *Handler) readUpload(c *gin.Context, field string) ([]byte, string, *mimetype.MIME, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Config.MaxUploadBytes+1<<20)

	header, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No " + field + " uploaded"})
		return nil, "", nil, false
	}
	if header.Size > h.Config.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, "", nil, false
	}

	f, err := header.Open()
	if err != nil {
		h.internalError(c, "Error opening upload", err)
		return nil, "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.Config.MaxUploadBytes+1))
	if err != nil {
		h.internalError(c, "Error reading upload", err)
		return nil, "", nil, false
	}
	if int64(len(data)) > h.Config.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, "", nil, false
	}
	return data, header.Filename, mimetype.Detect(data), true
}

func isAudio(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		s := m.String()
		if strings.HasPrefix(s, "audio/") || s == "video/webm" || s == "application/ogg" {
			return true
		}
	}
	return false
}

// UploadPhoto attaches an image to the draft
func (h *Handler) UploadPhoto(c *gin.Context) {
	data, filename, mt, ok := h.readUpload(c, "photo")
	if !ok {
		return
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Photo must be an image"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	draft := state.CurrentDraft()
	if draft.State == reportform.Submitted {
		h.draftError(c, reportform.ErrAlreadySubmitted)
		return
	}

	attachment := store.Attachment{OwnerID: state.UserID, Filename: filename, ContentType: mt.String()}
	if err := h.Store.PutAttachment(ctx, &attachment, bytes.NewReader(data)); err != nil {
		h.internalError(c, "Failed to store photo", err)
		return
	}
	if err := draft.AttachPhoto(attachment.ID, filename); err != nil {
		h.draftError(c, err)
		return
	}
	if !h.saveSession(c, ctx, state) {
		return
	}
	c.JSON(http.StatusOK, draftResponse(draft))
}

// RecordVoiceNote captures an audio upload into the draft's description.
// One capture per session runs at a time.
func (h *Handler) RecordVoiceNote(c *gin.Context) {
	data, filename, mt, ok := h.readUpload(c, "audio")
	if !ok {
		return
	}
	if !isAudio(mt) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Voice note must be audio"})
		return
	}
	label := c.PostForm("label")
	if label == "" {
		label = filename
	}
	label = utils.CleanText(label)

	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}

	unlock, err := h.Sessions.Lock(ctx, "voice:"+state.ID, h.Config.VoiceNoteTimeout+5*time.Second)
	if err != nil {
		if errors.Is(err, session.ErrLocked) {
			h.draftError(c, reportform.ErrAlreadyRecording)
			return
		}
		h.internalError(c, "Error locking voice capture", err)
		return
	}
	defer unlock()

	draft := state.CurrentDraft()
	// holding the lock means no capture is live; a raised flag is left over
	draft.CancelRecording()
	if err := draft.StartRecording(); err != nil {
		h.draftError(c, err)
		return
	}
	if !h.saveSession(c, ctx, state) {
		return
	}

	attachment := store.Attachment{OwnerID: state.UserID, Filename: filename, ContentType: mt.String()}
	if err := h.Store.PutAttachment(ctx, &attachment, bytes.NewReader(data)); err != nil {
		h.abortRecording(c, state.ID)
		h.internalError(c, "Failed to store voice note", err)
		return
	}

	text, err := reportform.Capture(c.Request.Context(), h.Transcriber, bytes.NewReader(data), label, h.Config.VoiceNoteTimeout)
	if err != nil {
		h.abortRecording(c, state.ID)
		h.Log.Warn().Err(err).Str("session_id", state.ID).Msg("voice note capture failed")
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Voice note could not be captured"})
		return
	}

	// the draft may have been edited while capturing
	state, ok = h.loadSession(c, ctx)
	if !ok {
		return
	}
	draft = state.CurrentDraft()
	if err := draft.FinishRecording(text, attachment.ID); err != nil {
		h.draftError(c, err)
		return
	}
	if !h.saveSession(c, ctx, state) {
		return
	}
	c.JSON(http.StatusOK, draftResponse(draft))
}

// recordingLive reports whether a voice capture holds the session's voice
// lock. A raised recording flag without the lock is left over from a capture
// that never finished.
func (h *Handler) recordingLive(ctx context.Context, sessionID string) (bool, error) {
	unlock, err := h.Sessions.Lock(ctx, "voice:"+sessionID, time.Second)
	if errors.Is(err, session.ErrLocked) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	unlock()
	return false, nil
}

func (h *Handler) abortRecording(c *gin.Context, sessionID string) {
	ctx, cancel := requestContext(c)
	defer cancel()

	state, err := h.Sessions.Get(ctx, sessionID)
	if err != nil {
		return
	}
	if state.Draft != nil {
		state.Draft.CancelRecording()
		if err := h.Sessions.Save(ctx, state); err != nil {
			h.Log.Warn().Err(err).Msg("reset recording flag")
		}
	}
}

// DiscardDraft throws the current draft away
func (h *Handler) DiscardDraft(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	state.Draft = reportform.New()
	if !h.saveSession(c, ctx, state) {
		return
	}
	c.JSON(http.StatusOK, draftResponse(state.Draft))
}

// SubmitReport files the draft as a new issue owned by the caller
func (h *Handler) SubmitReport(c *gin.Context) {
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

	draft := state.Draft
	if draft == nil {
		draft = reportform.New()
	}
	if draft.Recording {
		live, err := h.recordingLive(ctx, state.ID)
		if err != nil {
			h.internalError(c, "Error checking voice capture", err)
			return
		}
		if live {
			c.JSON(http.StatusConflict, gin.H{"error": "Voice note still recording"})
			return
		}
		draft.CancelRecording()
	}

	issue, err := draft.Submit(user, h.now())
	if err != nil {
		h.draftError(c, err)
		return
	}

	if err := h.Store.CreateIssue(ctx, issue); err != nil {
		h.internalError(c, "Failed to create issue", err)
		return
	}

	draft.MarkStored(issue.ID)
	// the issue exists now, so the submitted draft wins over concurrent edits
	if _, ok := h.updateSession(c, ctx, state, func(s *session.State) {
		s.Draft = draft
		s.Shell.Navigate(reportform.RedirectPage)
	}); !ok {
		return
	}

	if h.Metrics != nil {
		h.Metrics.ReportsSubmitted.WithLabelValues(string(issue.Category)).Inc()
	}
	h.Log.Info().Str("issue_id", issue.ID).Str("user_id", user.ID).Msg("report submitted")

	c.JSON(http.StatusCreated, gin.H{
		"report":          toReportView(*issue),
		"redirect":        reportform.RedirectPage,
		"redirectAfterMs": reportform.RedirectDelay.Milliseconds(),
	})
}

// GetAttachment streams a photo or voice note to its owner or an admin
func (h *Handler) GetAttachment(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(c, ctx)
	if !ok {
		return
	}

	meta, body, err := h.Store.OpenAttachment(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Attachment not found"})
			return
		}
		h.internalError(c, "Failed to open attachment", err)
		return
	}
	defer body.Close()

	if meta.OwnerID != user.ID && !user.IsAdmin() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Attachment not found"})
		return
	}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, meta.Size, contentType, body, map[string]string{
		"Content-Disposition": `inline; filename="` + strings.ReplaceAll(meta.Filename, `"`, "") + `"`,
	})
}
