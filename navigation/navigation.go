// Package navigation is the app shell: which page is showing, whether the
// admin view is on, and the bottom tab bar.
package navigation

import (
	"errors"
	"strings"
)

type Page string

const (
	Dashboard Page = "dashboard"
	Report    Page = "report"
	Reports   Page = "reports"
	Profile   Page = "profile"
)

var ErrAdminOnly = errors.New("admin view requires an administrator")

// ParsePage maps a page key to a page; unknown keys land on the dashboard.
func ParsePage(key string) Page {
	switch p := Page(strings.ToLower(strings.TrimSpace(key))); p {
	case Dashboard, Report, Reports, Profile:
		return p
	}
	return Dashboard
}

type Tab struct {
	Key     Page   `json:"key"`
	Label   string `json:"label"`
	Special bool   `json:"special,omitempty"`
	Active  bool   `json:"active"`
}

var tabs = []Tab{
	{Key: Dashboard, Label: "Home"},
	{Key: Reports, Label: "Reports"},
	{Key: Report, Label: "Report", Special: true},
	{Key: Profile, Label: "Profile"},
}

// Shell holds the current page and the admin toggle of one session.
type Shell struct {
	Page      Page `json:"page"`
	AdminView bool `json:"adminView"`
}

func NewShell() Shell {
	return Shell{Page: Dashboard}
}

func (s *Shell) Navigate(key string) Page {
	s.Page = ParsePage(key)
	return s.Page
}

// SetAdminView switches between the citizen and admin views.
func (s *Shell) SetAdminView(on, isAdmin bool) error {
	if on && !isAdmin {
		return ErrAdminOnly
	}
	s.AdminView = on
	return nil
}

// Tabs returns the bottom navigation with the current page marked.
func (s Shell) Tabs() []Tab {
	out := make([]Tab, len(tabs))
	for i, t := range tabs {
		t.Active = t.Key == s.Page
		out[i] = t
	}
	return out
}
