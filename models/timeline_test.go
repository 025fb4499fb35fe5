package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)

func assertTimelineInvariants(t *testing.T, tl Timeline) {
	t.Helper()
	seenIncomplete := false
	for _, s := range tl {
		if !s.Completed {
			seenIncomplete = true
			assert.Empty(t, s.Date, "incomplete step %q has a date", s.Step)
			continue
		}
		assert.False(t, seenIncomplete, "completed step %q after an incomplete one", s.Step)
		assert.NotEmpty(t, s.Date)
	}
}

func TestNewTimeline(t *testing.T) {
	tl := NewTimeline(day)
	require.Len(t, tl, 5)
	assert.Equal(t, TimelineSteps[0], tl[0].Step)
	assert.True(t, tl[0].Completed)
	assert.Equal(t, "2024-01-15", tl[0].Date)
	assert.Equal(t, 1, tl.CompletedCount())
	assert.Equal(t, 20, tl.Progress())
	assertTimelineInvariants(t, tl)
}

func TestCompleteThroughNeverUncompletes(t *testing.T) {
	tl := NewTimeline(day)
	tl.CompleteThrough(3, day.AddDate(0, 0, 2))
	assert.Equal(t, 60, tl.Progress())
	assert.Equal(t, "2024-01-15", tl[0].Date)
	assert.Equal(t, "2024-01-17", tl[2].Date)

	tl.CompleteThrough(1, day.AddDate(0, 0, 5))
	assert.Equal(t, 3, tl.CompletedCount())
	assert.Equal(t, "2024-01-17", tl[2].Date)

	tl.CompleteThrough(10, day.AddDate(0, 0, 5))
	assert.Equal(t, 100, tl.Progress())
	assertTimelineInvariants(t, tl)
}

func TestAdvance(t *testing.T) {
	tl := NewTimeline(day)
	for i := 2; i <= 5; i++ {
		assert.True(t, tl.Advance(day))
		assert.Equal(t, i, tl.CompletedCount())
		assertTimelineInvariants(t, tl)
	}
	assert.False(t, tl.Advance(day))
}

func TestSetStatusCompletesMinimumSteps(t *testing.T) {
	issue := Issue{Status: Pending, Timeline: NewTimeline(day)}

	require.NoError(t, issue.SetStatus(Assigned, day))
	assert.Equal(t, 60, issue.Progress())

	require.NoError(t, issue.SetStatus(Resolved, day.AddDate(0, 0, 3)))
	assert.Equal(t, 100, issue.Progress())
	resolved, ok := issue.Timeline.CompletedAt("Issue Resolved")
	require.True(t, ok)
	assert.Equal(t, "2024-01-18", resolved.Format(DateLayout))
	assertTimelineInvariants(t, issue.Timeline)
}

func TestSetStatusRejectsMovingBehindTimeline(t *testing.T) {
	issue := Issue{Status: Pending, Timeline: NewTimeline(day)}
	require.NoError(t, issue.SetStatus(Resolved, day))

	for _, s := range []IssueStatus{Pending, Assigned, InProgress} {
		assert.ErrorIs(t, issue.SetStatus(s, day), ErrStatusBehindTimeline, s)
	}
	assert.Equal(t, Resolved, issue.Status)
	assert.Equal(t, 100, issue.Progress())

	// assigned and in progress share the same stage
	issue = Issue{Status: Pending, Timeline: NewTimeline(day)}
	require.NoError(t, issue.SetStatus(InProgress, day))
	require.NoError(t, issue.AdvanceTimeline(day))
	require.NoError(t, issue.SetStatus(Assigned, day))
	assert.Equal(t, 80, issue.Progress())
	assert.ErrorIs(t, issue.SetStatus(Pending, day), ErrStatusBehindTimeline)
}

func TestIssueAdvanceTimelineFollowsStatus(t *testing.T) {
	issue := Issue{Status: Pending, Timeline: NewTimeline(day)}

	require.NoError(t, issue.AdvanceTimeline(day))
	assert.Equal(t, 40, issue.Progress())
	assert.ErrorIs(t, issue.AdvanceTimeline(day), ErrStepNeedsStatus)

	require.NoError(t, issue.SetStatus(InProgress, day))
	require.NoError(t, issue.AdvanceTimeline(day))
	assert.ErrorIs(t, issue.AdvanceTimeline(day), ErrStepNeedsStatus)
	assert.Equal(t, 80, issue.Progress())

	require.NoError(t, issue.SetStatus(Resolved, day))
	assert.ErrorIs(t, issue.AdvanceTimeline(day), ErrTimelineComplete)
}

func TestRenderConnectors(t *testing.T) {
	tl := NewTimeline(day)
	tl.CompleteThrough(3, day)

	entries := tl.Render()
	require.Len(t, entries, 5)
	assert.True(t, entries[0].ConnectorFilled)
	assert.True(t, entries[2].ConnectorFilled)
	assert.False(t, entries[3].ConnectorFilled)
	assert.False(t, entries[4].ConnectorFilled)
	assert.True(t, entries[4].Last)
	assert.False(t, entries[3].Last)
}

func TestDaysSinceReported(t *testing.T) {
	issue := Issue{Date: "2024-01-10"}
	assert.Equal(t, 5, issue.DaysSinceReported(day))
	assert.Equal(t, 0, Issue{Date: "2024-02-01"}.DaysSinceReported(day))
	assert.Equal(t, 0, Issue{Date: "not a date"}.DaysSinceReported(day))
}
