package models

import "time"

// TimelineSteps are the fixed processing steps every report walks through.
var TimelineSteps = []string{
	"Report Submitted",
	"Under Review",
	"Assigned to Department",
	"Work Scheduled",
	"Issue Resolved",
}

// TimelineStep is one entry of a report's processing checklist. Date stays
// empty until the step is completed.
type TimelineStep struct {
	Step      string `bson:"step" json:"step"`
	Date      string `bson:"date" json:"date"`
	Completed bool   `bson:"completed" json:"completed"`
}

// Timeline is the ordered checklist of a report. Completed steps always form
// a prefix.
type Timeline []TimelineStep

// NewTimeline returns a fresh timeline with the first step completed at now.
func NewTimeline(now time.Time) Timeline {
	t := make(Timeline, len(TimelineSteps))
	for i, name := range TimelineSteps {
		t[i] = TimelineStep{Step: name}
	}
	t.CompleteThrough(1, now)
	return t
}

// CompletedCount is the length of the completed prefix.
func (t Timeline) CompletedCount() int {
	n := 0
	for _, s := range t {
		if !s.Completed {
			break
		}
		n++
	}
	return n
}

// Progress is the completed share of the timeline as a percentage.
func (t Timeline) Progress() int {
	if len(t) == 0 {
		return 0
	}
	return t.CompletedCount() * 100 / len(t)
}

// CompleteThrough completes steps until at least n are done, stamping each
// newly completed step with now.
func (t Timeline) CompleteThrough(n int, now time.Time) {
	if n > len(t) {
		n = len(t)
	}
	date := now.Format(DateLayout)
	for i := 0; i < n; i++ {
		if !t[i].Completed {
			t[i].Completed = true
			t[i].Date = date
		}
	}
}

// Advance completes the next pending step. It reports false when the
// timeline is already complete.
func (t Timeline) Advance(now time.Time) bool {
	n := t.CompletedCount()
	if n >= len(t) {
		return false
	}
	t.CompleteThrough(n+1, now)
	return true
}

// CompletedAt returns the date of the named step, if completed.
func (t Timeline) CompletedAt(step string) (time.Time, bool) {
	for _, s := range t {
		if s.Step == step && s.Completed {
			d, err := time.Parse(DateLayout, s.Date)
			return d, err == nil
		}
	}
	return time.Time{}, false
}

// TimelineEntry is a step as rendered, with the connector leading to the
// next step. The connector is filled when this step is complete.
type TimelineEntry struct {
	TimelineStep
	Last            bool `json:"last"`
	ConnectorFilled bool `json:"connectorFilled"`
}

// Render walks the timeline and pairs each step with its outgoing connector.
func (t Timeline) Render() []TimelineEntry {
	out := make([]TimelineEntry, len(t))
	for i, s := range t {
		last := i == len(t)-1
		out[i] = TimelineEntry{
			TimelineStep:    s,
			Last:            last,
			ConnectorFilled: !last && s.Completed,
		}
	}
	return out
}
