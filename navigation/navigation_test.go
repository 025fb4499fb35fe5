package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePage(t *testing.T) {
	assert.Equal(t, Report, ParsePage("report"))
	assert.Equal(t, Reports, ParsePage(" Reports "))
	assert.Equal(t, Dashboard, ParsePage("settings"))
	assert.Equal(t, Dashboard, ParsePage(""))
}

func TestNavigateMarksActiveTab(t *testing.T) {
	s := NewShell()
	assert.Equal(t, Dashboard, s.Page)

	assert.Equal(t, Profile, s.Navigate("profile"))
	active := 0
	for _, tab := range s.Tabs() {
		if tab.Active {
			active++
			assert.Equal(t, Profile, tab.Key)
		}
	}
	assert.Equal(t, 1, active)

	tabs := s.Tabs()
	require.Len(t, tabs, 4)
	assert.True(t, tabs[2].Special)
	assert.Equal(t, Report, tabs[2].Key)
}

func TestAdminViewRequiresAdmin(t *testing.T) {
	s := NewShell()
	assert.ErrorIs(t, s.SetAdminView(true, false), ErrAdminOnly)
	assert.False(t, s.AdminView)

	require.NoError(t, s.SetAdminView(false, false))
	require.NoError(t, s.SetAdminView(true, true))
	assert.True(t, s.AdminView)
	assert.Equal(t, Dashboard, s.Page)
}
