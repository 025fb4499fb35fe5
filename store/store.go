// Package store holds issue, user, note and attachment records. Memory is
// the seeded store the app boots with by default; Mongo is the production
// backend. Both honour the same ordering: issues come back in insertion
// order unless a sort is requested.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"civicreport-be/filters"
	"civicreport-be/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("user with this email already exists")
	// ErrConflict means the issue changed since it was read
	ErrConflict = errors.New("issue was modified concurrently")
)

// Sort orders
const (
	SortNone     = "none"
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortPriority = "priority"
)

// Query selects issues. Category and Status are filter keys; Status is read
// in the vocabulary of View. Limit 0 returns every match.
type Query struct {
	ReporterID string
	Category   string
	View       models.StatusView
	Status     string
	Search     string
	Sort       string
	Offset     int
	Limit      int
}

// Predicate is the in-process form of the query's filters.
func (q Query) Predicate() filters.Predicate {
	var reporter filters.Predicate
	if q.ReporterID != "" {
		reporter = filters.Reporter(q.ReporterID)
	}
	view := q.View
	if view == "" {
		view = models.AdminView
	}
	return filters.And(
		reporter,
		filters.Search(q.Search),
		filters.Status(view, q.Status),
		filters.Category(q.Category),
	)
}

// Statuses resolves the status key to canonical statuses; nil means any.
func (q Query) Statuses() []models.IssueStatus {
	view := q.View
	if view == "" {
		view = models.AdminView
	}
	statuses, ok := view.Resolve(q.Status)
	if !ok {
		// an unknown key matches nothing
		return []models.IssueStatus{}
	}
	return statuses
}

// CategoryKey is the normalised category filter, empty for all.
func (q Query) CategoryKey() string {
	k := strings.ToLower(strings.TrimSpace(q.Category))
	if k == models.FilterAll {
		return ""
	}
	return k
}

// SortIssues orders issues in place for the given sort key. Ties keep
// insertion order.
func SortIssues(issues []models.Issue, sort string) {
	switch sort {
	case SortNewest:
		slices.SortStableFunc(issues, func(a, b models.Issue) int {
			return compareTimeDesc(a, b)
		})
	case SortOldest:
		slices.SortStableFunc(issues, func(a, b models.Issue) int {
			return -compareTimeDesc(a, b)
		})
	case SortPriority:
		slices.SortStableFunc(issues, func(a, b models.Issue) int {
			return b.Priority.Rank() - a.Priority.Rank()
		})
	}
}

func compareTimeDesc(a, b models.Issue) int {
	if c := strings.Compare(b.Date, a.Date); c != 0 {
		return c
	}
	return b.CreatedAt.Compare(a.CreatedAt)
}

// Page cuts offset/limit out of a fully filtered slice.
func Page(issues []models.Issue, offset, limit int) []models.Issue {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(issues) {
		return []models.Issue{}
	}
	issues = issues[offset:]
	if limit > 0 && limit < len(issues) {
		issues = issues[:limit]
	}
	return issues
}

// IssueID formats the public identifier of the seq-th report.
func IssueID(year int, seq int64) string {
	return fmt.Sprintf("CR%d-%03d", year, seq)
}

// Attachment describes an uploaded photo or voice note.
type Attachment struct {
	ID          string    `bson:"_id" json:"id"`
	OwnerID     string    `bson:"owner" json:"ownerId"`
	Filename    string    `bson:"filename" json:"filename"`
	ContentType string    `bson:"contentType" json:"contentType"`
	Size        int64     `bson:"size" json:"size"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

type IssueStore interface {
	ListIssues(ctx context.Context, q Query) ([]models.Issue, int, error)
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	// UpdateIssue writes issue back if its Version still matches the stored
	// one, then bumps Version. A stale issue fails with ErrConflict.
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	AddNote(ctx context.Context, note *models.Note) error
	ListNotes(ctx context.Context, issueID string) ([]models.Note, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
}

type AttachmentStore interface {
	PutAttachment(ctx context.Context, a *Attachment, r io.Reader) error
	OpenAttachment(ctx context.Context, id string) (*Attachment, io.ReadCloser, error)
}

type Store interface {
	IssueStore
	UserStore
	AttachmentStore
	Close(ctx context.Context) error
}
