package models

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrTimelineComplete = errors.New("timeline already complete")
	// ErrStatusBehindTimeline rejects a status whose stage the timeline has
	// already moved past, such as reopening a resolved issue as pending.
	ErrStatusBehindTimeline = errors.New("status is behind the completed timeline")
	// ErrStepNeedsStatus rejects advancing into a step that belongs to a
	// later status.
	ErrStepNeedsStatus = errors.New("next timeline step needs a later status")
)

// IssueCategory enum
type IssueCategory string

const (
	Streetlight IssueCategory = "streetlight"
	Pothole     IssueCategory = "pothole"
	Garbage     IssueCategory = "garbage"
	Other       IssueCategory = "other"
)

// Categories lists every category in display order.
var Categories = []IssueCategory{Streetlight, Pothole, Garbage, Other}

// ParseCategory accepts the report form's category keys. The form offers a
// few finer-grained keys (graffiti, sidewalk, traffic) which are filed as
// Other.
func ParseCategory(s string) (IssueCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "streetlight":
		return Streetlight, true
	case "pothole":
		return Pothole, true
	case "garbage":
		return Garbage, true
	case "other", "graffiti", "sidewalk", "traffic":
		return Other, true
	}
	return "", false
}

// Label is the plural heading used by the admin filters and analytics.
func (c IssueCategory) Label() string {
	switch c {
	case Streetlight:
		return "Streetlights"
	case Pothole:
		return "Potholes"
	case Garbage:
		return "Garbage"
	default:
		return "Other"
	}
}

// ServiceArea is the name citizens see on their own reports.
func (c IssueCategory) ServiceArea() string {
	switch c {
	case Streetlight:
		return "Streetlight"
	case Pothole:
		return "Road Maintenance"
	case Garbage:
		return "Waste Management"
	default:
		return "Other"
	}
}

// IssuePriority enum
type IssuePriority string

const (
	PriorityLow    IssuePriority = "low"
	PriorityMedium IssuePriority = "medium"
	PriorityHigh   IssuePriority = "high"
)

func ParsePriority(s string) (IssuePriority, bool) {
	switch p := IssuePriority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	}
	return "", false
}

// Rank orders priorities high to low for sorting.
func (p IssuePriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Department enum
type Department string

const (
	PublicWorks    Department = "public-works"
	Sanitation     Department = "sanitation"
	Transportation Department = "transportation"
	Utilities      Department = "utilities"
)

func ParseDepartment(s string) (Department, bool) {
	switch d := Department(strings.ToLower(strings.TrimSpace(s))); d {
	case PublicWorks, Sanitation, Transportation, Utilities:
		return d, true
	}
	return "", false
}

func (d Department) Label() string {
	switch d {
	case PublicWorks:
		return "Public Works"
	case Sanitation:
		return "Sanitation"
	case Transportation:
		return "Transportation"
	case Utilities:
		return "Utilities"
	}
	return ""
}

// DateLayout is the unformatted submission date used across the API.
const DateLayout = "2006-01-02"

// Issue represents a civic issue reported by a citizen
type Issue struct {
	ID          string        `bson:"_id" json:"id"`
	Seq         int64         `bson:"seq" json:"-"`
	Title       string        `bson:"title" json:"title"`
	Category    IssueCategory `bson:"category" json:"category"`
	Status      IssueStatus   `bson:"status" json:"status"`
	Priority    IssuePriority `bson:"priority" json:"priority"`
	Address     string        `bson:"address" json:"address"`
	Latitude    *float64      `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude   *float64      `bson:"longitude,omitempty" json:"longitude,omitempty"`
	ReporterID  string        `bson:"reporterId" json:"reporterId"`
	Reporter    string        `bson:"reporter" json:"reporter"`
	Department  Department    `bson:"department,omitempty" json:"department,omitempty"`
	AssignedTo  string        `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Description string        `bson:"description" json:"description"`
	Date        string        `bson:"date" json:"date"`
	PhotoID     string        `bson:"photoId,omitempty" json:"photoId,omitempty"`
	VoiceNoteID string        `bson:"voiceNoteId,omitempty" json:"voiceNoteId,omitempty"`
	Timeline    Timeline      `bson:"timeline" json:"timeline"`
	Version     int64         `bson:"version" json:"-"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// Progress is derived from the timeline, never stored.
func (i Issue) Progress() int {
	return i.Timeline.Progress()
}

// HasLocation reports whether the issue can be placed on the map.
func (i Issue) HasLocation() bool {
	return i.Latitude != nil && i.Longitude != nil
}

// DaysSinceReported counts whole days between the submission date and now.
func (i Issue) DaysSinceReported(now time.Time) int {
	d, err := time.ParseInLocation(DateLayout, i.Date, now.Location())
	if err != nil {
		return 0
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := int(today.Sub(d).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// SetStatus moves the issue to s and completes the timeline up to the
// status' minimum step. Steps are never un-completed, so a status whose
// stage the timeline has moved past is rejected.
func (i *Issue) SetStatus(s IssueStatus, now time.Time) error {
	if i.Timeline.CompletedCount() > s.MaximumSteps() {
		return ErrStatusBehindTimeline
	}
	i.Status = s
	i.Timeline.CompleteThrough(s.MinimumSteps(), now)
	i.UpdatedAt = now
	return nil
}

// AdvanceTimeline completes the next timeline step, as far as the current
// status allows.
func (i *Issue) AdvanceTimeline(now time.Time) error {
	n := i.Timeline.CompletedCount()
	if n >= len(i.Timeline) {
		return ErrTimelineComplete
	}
	if n+1 > i.Status.MaximumSteps() {
		return ErrStepNeedsStatus
	}
	i.Timeline.Advance(now)
	i.UpdatedAt = now
	return nil
}
