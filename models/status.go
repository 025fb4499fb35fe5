package models

import "strings"

// IssueStatus is the canonical lifecycle stage of an issue. Each screen
// renders it through a StatusView.
type IssueStatus string

const (
	Pending    IssueStatus = "pending"
	Assigned   IssueStatus = "assigned"
	InProgress IssueStatus = "in_progress"
	Resolved   IssueStatus = "resolved"
)

// Statuses lists the canonical statuses in lifecycle order.
var Statuses = []IssueStatus{Pending, Assigned, InProgress, Resolved}

// IsOpen reports whether the issue still needs work.
func (s IssueStatus) IsOpen() bool {
	return s != Resolved
}

// MinimumSteps is the number of timeline steps that must be complete once an
// issue reaches s.
func (s IssueStatus) MinimumSteps() int {
	switch s {
	case Pending:
		return 1
	case Assigned, InProgress:
		return 3
	case Resolved:
		return len(TimelineSteps)
	}
	return 0
}

// MaximumSteps is the number of timeline steps an issue in status s may have
// completed. Work Scheduled needs the issue to be assigned and Issue
// Resolved needs it resolved.
func (s IssueStatus) MaximumSteps() int {
	switch s {
	case Pending:
		return 2
	case Assigned, InProgress:
		return 4
	case Resolved:
		return len(TimelineSteps)
	}
	return 0
}

// StatusView names a screen's status vocabulary.
type StatusView string

const (
	AdminView     StatusView = "admin"
	DashboardView StatusView = "dashboard"
	MyReportsView StatusView = "reports"
)

// FilterAll is the sentinel filter key that matches every record.
const FilterAll = "all"

var statusLabels = map[StatusView]map[IssueStatus]string{
	AdminView: {
		Pending:    "pending",
		Assigned:   "assigned",
		InProgress: "in-progress",
		Resolved:   "resolved",
	},
	DashboardView: {
		Pending:    "pending",
		Assigned:   "progress",
		InProgress: "progress",
		Resolved:   "resolved",
	},
	MyReportsView: {
		Pending:    "pending",
		Assigned:   "in-progress",
		InProgress: "in-progress",
		Resolved:   "resolved",
	},
}

// In renders s in the vocabulary of view v.
func (s IssueStatus) In(v StatusView) string {
	if labels, ok := statusLabels[v]; ok {
		if l, ok := labels[s]; ok {
			return l
		}
	}
	return string(s)
}

// Title is the human label shared by every screen.
func (s IssueStatus) Title() string {
	switch s {
	case Pending:
		return "Pending"
	case Assigned:
		return "Assigned"
	case InProgress:
		return "In Progress"
	case Resolved:
		return "Resolved"
	}
	return string(s)
}

// Keys returns the filter keys of view v, "all" first.
func (v StatusView) Keys() []string {
	keys := []string{FilterAll}
	seen := map[string]bool{}
	for _, s := range Statuses {
		k := s.In(v)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// Resolve maps a filter key of view v to the canonical statuses it covers.
// The "all" sentinel and the empty key resolve to nil with ok=true; unknown
// keys resolve to ok=false.
func (v StatusView) Resolve(key string) ([]IssueStatus, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || key == FilterAll {
		return nil, true
	}
	labels, ok := statusLabels[v]
	if !ok {
		return nil, false
	}
	var out []IssueStatus
	for _, s := range Statuses {
		if labels[s] == key {
			out = append(out, s)
		}
	}
	return out, len(out) > 0
}

// ParseStatus reads a status given in the admin vocabulary or in canonical
// form.
func ParseStatus(s string) (IssueStatus, bool) {
	statuses, ok := AdminView.Resolve(s)
	if ok && len(statuses) == 1 {
		return statuses[0], true
	}
	switch c := IssueStatus(strings.ToLower(strings.TrimSpace(s))); c {
	case Pending, Assigned, InProgress, Resolved:
		return c, true
	}
	return "", false
}
