// Package session keeps per-login UI state: the navigation shell, filter
// selections, the report draft and the profile edit buffer. A session is
// created at login and deleted at logout.
package session

import (
	"context"
	"errors"
	"time"

	"civicreport-be/models"
	"civicreport-be/navigation"
	"civicreport-be/profile"
	"civicreport-be/reportform"
)

var (
	ErrNoSession = errors.New("session not found")
	ErrLocked    = errors.New("resource is locked")
	// ErrConflict means another request saved the session after it was read
	ErrConflict = errors.New("session was modified concurrently")
)

// DefaultTTL matches the auth token lifetime.
const DefaultTTL = 72 * time.Hour

// AdminTab names the admin dashboard's tabs.
type AdminTab string

const (
	TabOverview  AdminTab = "overview"
	TabIssues    AdminTab = "issues"
	TabAnalytics AdminTab = "analytics"
)

func ParseAdminTab(s string) (AdminTab, bool) {
	switch t := AdminTab(s); t {
	case TabOverview, TabIssues, TabAnalytics:
		return t, true
	}
	return "", false
}

// Filters are the filter selections each screen remembers.
type Filters struct {
	Dashboard      string   `json:"dashboard"`
	Reports        string   `json:"reports"`
	AdminSearch    string   `json:"adminSearch"`
	AdminStatus    string   `json:"adminStatus"`
	AdminCategory  string   `json:"adminCategory"`
	AdminTab       AdminTab `json:"adminTab"`
	ShowMap        bool     `json:"showMap"`
	SelectedReport string   `json:"selectedReport,omitempty"`
}

type State struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Shell     navigation.Shell  `json:"shell"`
	Filters   Filters           `json:"filters"`
	Draft     *reportform.Draft `json:"draft,omitempty"`
	Profile   profile.Editor    `json:"profile"`
	CreatedAt time.Time         `json:"createdAt"`
	// Version counts saves. Save only succeeds when it matches the stored
	// version.
	Version int64 `json:"version"`
}

func newState(id, userID string, now time.Time) *State {
	return &State{
		ID:     id,
		UserID: userID,
		Shell:  navigation.NewShell(),
		Filters: Filters{
			Dashboard:     models.FilterAll,
			Reports:       models.FilterAll,
			AdminStatus:   models.FilterAll,
			AdminCategory: models.FilterAll,
			AdminTab:      TabOverview,
			ShowMap:       true,
		},
		CreatedAt: now,
	}
}

// CurrentDraft returns the report draft, starting a new one when there is
// none or the last one was submitted.
func (s *State) CurrentDraft() *reportform.Draft {
	if s.Draft == nil || s.Draft.State == reportform.Submitted {
		s.Draft = reportform.New()
	}
	return s.Draft
}

type Store interface {
	Create(ctx context.Context, userID string) (*State, error)
	Get(ctx context.Context, id string) (*State, error)
	// Save writes s if nobody saved the session since s was read and bumps
	// s.Version. A stale state fails with ErrConflict, a deleted session with
	// ErrNoSession.
	Save(ctx context.Context, s *State) error
	Delete(ctx context.Context, id string) error
	// Lock takes a short exclusive lock on key. It fails with ErrLocked when
	// the key is already held.
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
