// Package filters narrows issue sequences the way each screen does: a single
// equality key with an "all" sentinel, or the admin's AND of search, status
// and category. Every filter is lazy and keeps the input order.
package filters

import (
	"iter"
	"slices"
	"strings"

	"civicreport-be/models"
)

// Predicate decides whether an issue is kept.
type Predicate func(models.Issue) bool

// Where yields the elements of seq that satisfy p, in order.
func Where(seq iter.Seq[models.Issue], p Predicate) iter.Seq[models.Issue] {
	if p == nil {
		return seq
	}
	return func(yield func(models.Issue) bool) {
		for issue := range seq {
			if p(issue) && !yield(issue) {
				return
			}
		}
	}
}

// And keeps an issue only when every non-nil predicate does.
func And(ps ...Predicate) Predicate {
	var active []Predicate
	for _, p := range ps {
		if p != nil {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(issue models.Issue) bool {
		for _, p := range active {
			if !p(issue) {
				return false
			}
		}
		return true
	}
}

// Category matches a category key. The "all" sentinel and the empty key
// yield a nil predicate; an unknown key matches nothing.
func Category(key string) Predicate {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || key == models.FilterAll {
		return nil
	}
	return func(issue models.Issue) bool {
		return string(issue.Category) == key
	}
}

// Status matches a status key given in the vocabulary of view.
func Status(view models.StatusView, key string) Predicate {
	statuses, ok := view.Resolve(key)
	if ok && statuses == nil {
		return nil
	}
	return func(issue models.Issue) bool {
		return slices.Contains(statuses, issue.Status)
	}
}

// Reporter keeps the issues submitted by one user.
func Reporter(userID string) Predicate {
	return func(issue models.Issue) bool {
		return issue.ReporterID == userID
	}
}

// Search is a case-insensitive substring match on title, address or
// reporter name. An empty query matches everything.
func Search(q string) Predicate {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}
	return func(issue models.Issue) bool {
		return strings.Contains(strings.ToLower(issue.Title), q) ||
			strings.Contains(strings.ToLower(issue.Address), q) ||
			strings.Contains(strings.ToLower(issue.Reporter), q)
	}
}

// AdminQuery is the admin issues tab's filter bar.
type AdminQuery struct {
	Search   string
	Status   string
	Category string
}

// Predicate composes the three admin filters with logical AND.
func (q AdminQuery) Predicate() Predicate {
	return And(Search(q.Search), Status(models.AdminView, q.Status), Category(q.Category))
}

// Dashboard filters by category, as the citizen dashboard does.
func Dashboard(seq iter.Seq[models.Issue], category string) iter.Seq[models.Issue] {
	return Where(seq, Category(category))
}

// MyReports filters a citizen's own reports by status.
func MyReports(seq iter.Seq[models.Issue], userID, status string) iter.Seq[models.Issue] {
	return Where(seq, And(Reporter(userID), Status(models.MyReportsView, status)))
}

// Admin applies the admin filter bar.
func Admin(seq iter.Seq[models.Issue], q AdminQuery) iter.Seq[models.Issue] {
	return Where(seq, q.Predicate())
}
