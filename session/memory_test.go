package session

import (
	"context"
	"testing"
	"time"

	"civicreport-be/models"
	"civicreport-be/reportform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, err := m.Create(ctx, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, models.FilterAll, s.Filters.Dashboard)
	assert.Equal(t, TabOverview, s.Filters.AdminTab)
	assert.True(t, s.Filters.ShowMap)

	s.Shell.Navigate("reports")
	s.Filters.Reports = "resolved"
	require.NoError(t, m.Save(ctx, s))

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.EqualValues(t, "reports", got.Shell.Page)
	assert.Equal(t, "resolved", got.Filters.Reports)

	require.NoError(t, m.Delete(ctx, s.ID))
	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMemorySaveRejectsStaleState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, err := m.Create(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.Version)

	dashboard, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	report, err := m.Get(ctx, s.ID)
	require.NoError(t, err)

	report.CurrentDraft().Description = "deep hole"
	require.NoError(t, m.Save(ctx, report))
	assert.EqualValues(t, 2, report.Version)

	dashboard.Filters.Dashboard = "pothole"
	assert.ErrorIs(t, m.Save(ctx, dashboard), ErrConflict)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "deep hole", got.Draft.Description)
	assert.Equal(t, models.FilterAll, got.Filters.Dashboard)

	require.NoError(t, m.Delete(ctx, s.ID))
	assert.ErrorIs(t, m.Save(ctx, got), ErrNoSession)
}

func TestMemoryDoesNotShareState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, err := m.Create(ctx, "u1")
	require.NoError(t, err)
	s.CurrentDraft().Description = "unsaved"

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Draft)
}

func TestCurrentDraftReplacesSubmitted(t *testing.T) {
	s := newState("s1", "u1", time.Now())
	d := s.CurrentDraft()
	assert.Same(t, d, s.CurrentDraft())

	d.State = reportform.Submitted
	fresh := s.CurrentDraft()
	assert.NotSame(t, d, fresh)
	assert.Equal(t, reportform.Editing, fresh.State)
}

func TestMemoryLock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	unlock, err := m.Lock(ctx, "voice:s1", time.Minute)
	require.NoError(t, err)

	_, err = m.Lock(ctx, "voice:s1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := m.Lock(ctx, "voice:s2", time.Minute)
	require.NoError(t, err)
	other()

	unlock()
	again, err := m.Lock(ctx, "voice:s1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemoryLockExpires(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	_, err := m.Lock(context.Background(), "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	unlock, err := m.Lock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	unlock()
}

func TestParseAdminTab(t *testing.T) {
	tab, ok := ParseAdminTab("analytics")
	assert.True(t, ok)
	assert.Equal(t, TabAnalytics, tab)
	_, ok = ParseAdminTab("settings")
	assert.False(t, ok)
}
