package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"civicreport-be/analytics"
	"civicreport-be/models"
	"civicreport-be/session"
	"civicreport-be/store"
	"civicreport-be/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	overviewRecent  = 5
)

var adminCategoryFilters = []filterOption{
	{Key: models.FilterAll, Label: "All Categories"},
	{Key: string(models.Streetlight), Label: models.Streetlight.Label()},
	{Key: string(models.Pothole), Label: models.Pothole.Label()},
	{Key: string(models.Garbage), Label: models.Garbage.Label()},
	{Key: string(models.Other), Label: models.Other.Label()},
}

func adminStatusFilters() []filterOption {
	out := []filterOption{{Key: models.FilterAll, Label: "All Status"}}
	for _, s := range models.Statuses {
		out = append(out, filterOption{Key: s.In(models.AdminView), Label: s.Title()})
	}
	return out
}

// GetAdminOverview returns the overview tab: counters and the latest issues
func (h *Handler) GetAdminOverview(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	var (
		all    []models.Issue
		recent []models.Issue
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, _, err = h.Store.ListIssues(gctx, store.Query{View: models.AdminView})
		return err
	})
	g.Go(func() error {
		var err error
		recent, _, err = h.Store.ListIssues(gctx, store.Query{
			View:  models.AdminView,
			Sort:  store.SortNewest,
			Limit: overviewRecent,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		h.internalError(c, "Failed to retrieve issues", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":  analytics.Overview(all),
		"recent": mapSlice(recent, toAdminIssue),
	})
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetAdminIssues searches, filters, sorts and pages all issues. The search
// and filters are remembered in the session.
func (h *Handler) GetAdminIssues(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
		return
	}
	limit, ok := queryInt(c, "limit", defaultPageSize)
	if !ok || limit < 1 || limit > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	sort := c.DefaultQuery("sort", store.SortNone)
	switch sort {
	case store.SortNone, store.SortNewest, store.SortOldest, store.SortPriority:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sort"})
		return
	}

	search, searchSet := c.GetQuery("search")
	status, statusSet := c.GetQuery("status")
	if statusSet {
		if _, valid := models.AdminView.Resolve(status); !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		if status == "" {
			status = models.FilterAll
		}
	}
	category, categorySet := c.GetQuery("category")
	if categorySet {
		if !validCategoryKey(category) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
			return
		}
		if category == "" {
			category = models.FilterAll
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	state, ok = h.updateSession(c, ctx, state, func(s *session.State) {
		if searchSet {
			s.Filters.AdminSearch = utils.CleanText(search)
		}
		if statusSet {
			s.Filters.AdminStatus = status
		}
		if categorySet {
			s.Filters.AdminCategory = category
		}
		s.Filters.AdminTab = session.TabIssues
	})
	if !ok {
		return
	}

	issues, total, err := h.Store.ListIssues(ctx, store.Query{
		View:     models.AdminView,
		Search:   state.Filters.AdminSearch,
		Status:   state.Filters.AdminStatus,
		Category: state.Filters.AdminCategory,
		Sort:     sort,
		Offset:   (page - 1) * limit,
		Limit:    limit,
	})
	if err != nil {
		h.internalError(c, "Failed to retrieve issues", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issues":     mapSlice(issues, toAdminIssue),
		"total":      total,
		"page":       page,
		"limit":      limit,
		"totalPages": int(math.Ceil(float64(total) / float64(limit))),
		"search":     state.Filters.AdminSearch,
		"status":     state.Filters.AdminStatus,
		"category":   state.Filters.AdminCategory,
		"filters": gin.H{
			"status":   adminStatusFilters(),
			"category": adminCategoryFilters,
		},
	})
}

// loadIssue fetches the :id issue, answering 404 when it does not exist
func (h *Handler) loadIssue(c *gin.Context) (*models.Issue, bool) {
	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := h.Store.GetIssue(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			h.internalError(c, "Failed to retrieve issue", err)
		}
		return nil, false
	}
	return issue, true
}

// GetAdminIssue returns an issue with its notes and resolution context
func (h *Handler) GetAdminIssue(c *gin.Context) {
	issue, ok := h.loadIssue(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var (
		notes []models.Note
		avg   float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		notes, err = h.Store.ListNotes(gctx, issue.ID)
		return err
	})
	g.Go(func() error {
		all, _, err := h.Store.ListIssues(gctx, store.Query{View: models.AdminView, Category: string(issue.Category)})
		if err != nil {
			return err
		}
		avg = analytics.Compute(all, h.now()).AverageResolution(issue.Category)
		return nil
	})
	if err := g.Wait(); err != nil {
		h.internalError(c, "Failed to retrieve issue details", err)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}

	c.JSON(http.StatusOK, gin.H{
		"issue":             toAdminIssue(*issue),
		"timeline":          issue.Timeline.Render(),
		"notes":             notes,
		"daysSinceReported": issue.DaysSinceReported(h.now()),
		"avgResolutionDays": avg,
	})
}

// UpdateIssue changes status, priority, department or assignee. A status
// change completes the timeline up to that status and notifies the reporter;
// a status the timeline has already moved past answers 409.
func (h *Handler) UpdateIssue(c *gin.Context) {
	var input struct {
		Status     *string `json:"status"`
		Priority   *string `json:"priority"`
		Department *string `json:"department"`
		AssignedTo *string `json:"assignedTo" binding:"omitempty,max=100"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		status     models.IssueStatus
		priority   models.IssuePriority
		department models.Department
		valid      bool
	)
	if input.Status != nil {
		if status, valid = models.ParseStatus(*input.Status); !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
	}
	if input.Priority != nil {
		if priority, valid = models.ParsePriority(*input.Priority); !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
			return
		}
	}
	if input.Department != nil && *input.Department != "" {
		if department, valid = models.ParseDepartment(*input.Department); !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department"})
			return
		}
	}

	var previous models.IssueStatus
	issue, ok := h.writeIssue(c, func(issue *models.Issue, now time.Time) error {
		previous = issue.Status
		if input.Status != nil {
			if err := issue.SetStatus(status, now); err != nil {
				return err
			}
		}
		if input.Priority != nil {
			issue.Priority = priority
		}
		if input.Department != nil {
			issue.Department = department
		}
		if input.AssignedTo != nil {
			issue.AssignedTo = utils.CleanText(*input.AssignedTo)
		}
		issue.UpdatedAt = now
		return nil
	})
	if !ok {
		return
	}

	var notified []string
	if issue.Status != previous {
		if h.Metrics != nil {
			h.Metrics.StatusChanges.WithLabelValues(string(issue.Status)).Inc()
		}
		notified = h.notifyReporter(c, issue)
	}
	if notified == nil {
		notified = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"issue":    toAdminIssue(*issue),
		"timeline": issue.Timeline.Render(),
		"notified": notified,
	})
}

// notifyReporter tells the reporter about a status change. Delivery
// failures are logged, never surfaced.
func (h *Handler) notifyReporter(c *gin.Context, issue *models.Issue) []string {
	if h.Notifier == nil || issue.ReporterID == "" {
		return nil
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	reporter, err := h.Store.GetUserByID(ctx, issue.ReporterID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.Log.Warn().Err(err).Str("issue_id", issue.ID).Msg("load reporter for notification")
		}
		return nil
	}
	sent, err := h.Notifier.IssueStatusChanged(ctx, reporter, issue)
	if err != nil {
		h.Log.Warn().Err(err).Str("issue_id", issue.ID).Msg("status notification failed")
	}
	return sent
}

// writeIssue loads the :id issue, applies change and stores it. When another
// request updated the issue in between, it is reloaded and change applied
// again. Timeline rule violations answer 409.
func (h *Handler) writeIssue(c *gin.Context, change func(*models.Issue, time.Time) error) (*models.Issue, bool) {
	for attempt := 1; ; attempt++ {
		issue, ok := h.loadIssue(c)
		if !ok {
			return nil, false
		}
		if err := change(issue, h.now()); err != nil {
			switch {
			case errors.Is(err, models.ErrTimelineComplete),
				errors.Is(err, models.ErrStatusBehindTimeline),
				errors.Is(err, models.ErrStepNeedsStatus):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				h.internalError(c, "Failed to update issue", err)
			}
			return nil, false
		}

		ctx, cancel := requestContext(c)
		err := h.Store.UpdateIssue(ctx, issue)
		cancel()
		switch {
		case err == nil:
			return issue, true
		case errors.Is(err, store.ErrConflict) && attempt < saveAttempts:
			continue
		case errors.Is(err, store.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Issue was changed by another request"})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		default:
			h.internalError(c, "Failed to update issue", err)
		}
		return nil, false
	}
}

// AdvanceTimeline completes the issue's next timeline step
func (h *Handler) AdvanceTimeline(c *gin.Context) {
	issue, ok := h.writeIssue(c, func(issue *models.Issue, now time.Time) error {
		return issue.AdvanceTimeline(now)
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"issue":    toAdminIssue(*issue),
		"timeline": issue.Timeline.Render(),
	})
}

// AddNote attaches an admin note to an issue
func (h *Handler) AddNote(c *gin.Context) {
	var input struct {
		Text string `json:"text" binding:"required,max=1000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	text := utils.CleanText(input.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Note text is required"})
		return
	}

	issue, ok := h.loadIssue(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, ok := h.currentUser(c, ctx)
	if !ok {
		return
	}

	note := models.Note{
		IssueID:   issue.ID,
		Author:    user.Name,
		Text:      text,
		CreatedAt: h.now(),
	}
	if err := h.Store.AddNote(ctx, &note); err != nil {
		h.internalError(c, "Failed to add note", err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// GetNotes lists an issue's admin notes, oldest first
func (h *Handler) GetNotes(c *gin.Context) {
	issue, ok := h.loadIssue(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	notes, err := h.Store.ListNotes(ctx, issue.ID)
	if err != nil {
		h.internalError(c, "Failed to retrieve notes", err)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

// GetAnalytics returns the analytics tab. static=true serves the fixed
// sample figures instead of computing them.
func (h *Handler) GetAnalytics(c *gin.Context) {
	static := false
	if raw := c.Query("static"); raw != "" {
		var err error
		if static, err = strconv.ParseBool(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid static flag"})
			return
		}
	}

	if static {
		c.JSON(http.StatusOK, analytics.Static())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issues, _, err := h.Store.ListIssues(ctx, store.Query{View: models.AdminView})
	if err != nil {
		h.internalError(c, "Failed to retrieve issues", err)
		return
	}
	c.JSON(http.StatusOK, analytics.Compute(issues, h.now()))
}

// SetAdminTab remembers which admin tab is open
func (h *Handler) SetAdminTab(c *gin.Context) {
	var input struct {
		Tab string `json:"tab" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tab, valid := session.ParseAdminTab(input.Tab)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tab"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	state, ok := h.loadSession(c, ctx)
	if !ok {
		return
	}
	state, ok = h.updateSession(c, ctx, state, func(s *session.State) {
		s.Filters.AdminTab = tab
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, shellResponse(state))
}
