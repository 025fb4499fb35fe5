package controllers

import (
	"fmt"

	"civicreport-be/models"
)

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// dashboardIssue is an issue as the citizen dashboard lists it
type dashboardIssue struct {
	ID          string               `json:"id"`
	Type        models.IssueCategory `json:"type"`
	Status      string               `json:"status"`
	StatusLabel string               `json:"statusLabel"`
	Location    *latLng              `json:"location,omitempty"`
	Address     string               `json:"address"`
	Description string               `json:"description"`
	Date        string               `json:"date"`
}

func toDashboardIssue(i models.Issue) dashboardIssue {
	v := dashboardIssue{
		ID:          i.ID,
		Type:        i.Category,
		Status:      i.Status.In(models.DashboardView),
		StatusLabel: statusLabel(i.Status, models.DashboardView),
		Address:     i.Address,
		Description: i.Description,
		Date:        i.Date,
	}
	if i.HasLocation() {
		v.Location = &latLng{Lat: *i.Latitude, Lng: *i.Longitude}
	}
	return v
}

// mapPin places an issue on the dashboard map
type mapPin struct {
	ID       string               `json:"id"`
	Type     models.IssueCategory `json:"type"`
	Status   string               `json:"status"`
	Location latLng               `json:"location"`
}

// reportView is a citizen's own report with its processing timeline
type reportView struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Category    string                 `json:"category"`
	Status      string                 `json:"status"`
	StatusLabel string                 `json:"statusLabel"`
	Address     string                 `json:"address"`
	Description string                 `json:"description"`
	Date        string                 `json:"date"`
	Progress    int                    `json:"progress"`
	PhotoID     string                 `json:"photoId,omitempty"`
	Timeline    []models.TimelineEntry `json:"timeline"`
}

func toReportView(i models.Issue) reportView {
	return reportView{
		ID:          i.ID,
		Title:       i.Title,
		Category:    i.Category.ServiceArea(),
		Status:      i.Status.In(models.MyReportsView),
		StatusLabel: statusLabel(i.Status, models.MyReportsView),
		Address:     i.Address,
		Description: i.Description,
		Date:        i.Date,
		Progress:    i.Progress(),
		PhotoID:     i.PhotoID,
		Timeline:    i.Timeline.Render(),
	}
}

// adminIssue is an issue as the admin dashboard lists it
type adminIssue struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Category    models.IssueCategory `json:"category"`
	Status      string               `json:"status"`
	Priority    models.IssuePriority `json:"priority"`
	Location    string               `json:"location,omitempty"`
	Address     string               `json:"address"`
	Reporter    string               `json:"reporter"`
	Date        string               `json:"date"`
	AssignedTo  string               `json:"assignedTo,omitempty"`
	Department  string               `json:"department,omitempty"`
	Description string               `json:"description"`
	Progress    int                  `json:"progress"`
	PhotoID     string               `json:"photoId,omitempty"`
	VoiceNoteID string               `json:"voiceNoteId,omitempty"`
}

func toAdminIssue(i models.Issue) adminIssue {
	v := adminIssue{
		ID:          i.ID,
		Title:       i.Title,
		Category:    i.Category,
		Status:      i.Status.In(models.AdminView),
		Priority:    i.Priority,
		Address:     i.Address,
		Reporter:    i.Reporter,
		Date:        i.Date,
		AssignedTo:  i.AssignedTo,
		Department:  i.Department.Label(),
		Description: i.Description,
		Progress:    i.Progress(),
		PhotoID:     i.PhotoID,
		VoiceNoteID: i.VoiceNoteID,
	}
	if i.HasLocation() {
		v.Location = fmt.Sprintf("%.4f,%.4f", *i.Latitude, *i.Longitude)
	}
	return v
}

// statusLabel is the human label; assigned reads as in progress outside the
// admin view
func statusLabel(s models.IssueStatus, v models.StatusView) string {
	if v != models.AdminView && s == models.Assigned {
		return models.InProgress.Title()
	}
	return s.Title()
}

func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
