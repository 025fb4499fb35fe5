// Package reportform is the report-an-issue form: a draft that is edited
// until category, description and location are present, then submitted
// once.
package reportform

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"civicreport-be/models"
)

type State string

const (
	Editing   State = "editing"
	Submitted State = "submitted"
)

// After a successful submit the client shows the confirmation and then
// moves to RedirectPage.
const (
	RedirectPage  = "dashboard"
	RedirectDelay = 2 * time.Second
)

var (
	ErrAlreadySubmitted = errors.New("report already submitted")
	ErrAlreadyRecording = errors.New("voice note already recording")
	ErrNotRecording     = errors.New("no voice note recording")
	ErrInvalidCategory  = errors.New("invalid category")
)

// IncompleteError lists the required fields that are still empty.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

type Draft struct {
	Category    string   `json:"category"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	PhotoID     string   `json:"photoId,omitempty"`
	PhotoName   string   `json:"photoName,omitempty"`
	VoiceNoteID string   `json:"voiceNoteId,omitempty"`
	Recording   bool     `json:"recording"`
	State       State    `json:"state"`
	IssueID     string   `json:"issueId,omitempty"`
}

func New() *Draft {
	return &Draft{State: Editing}
}

// Patch carries the fields a client edits; nil leaves a field unchanged.
type Patch struct {
	Category    *string `json:"category"`
	Title       *string `json:"title" binding:"omitempty,max=200"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Location    *string `json:"location" binding:"omitempty,max=200"`
}

func (d *Draft) Apply(p Patch) error {
	if d.State == Submitted {
		return ErrAlreadySubmitted
	}
	if p.Category != nil {
		if *p.Category != "" {
			if _, ok := models.ParseCategory(*p.Category); !ok {
				return ErrInvalidCategory
			}
		}
		d.Category = *p.Category
	}
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Location != nil {
		d.Location = *p.Location
		// a typed address no longer matches the detected coordinates
		d.Latitude, d.Longitude = nil, nil
	}
	return nil
}

// SetCurrentLocation records a detected position and its address.
func (d *Draft) SetCurrentLocation(address string, lat, lng float64) error {
	if d.State == Submitted {
		return ErrAlreadySubmitted
	}
	d.Location = address
	d.Latitude, d.Longitude = &lat, &lng
	return nil
}

func (d *Draft) AttachPhoto(id, name string) error {
	if d.State == Submitted {
		return ErrAlreadySubmitted
	}
	d.PhotoID, d.PhotoName = id, name
	return nil
}

// Missing names the required fields that are empty. Photo is optional.
func (d *Draft) Missing() []string {
	var missing []string
	if strings.TrimSpace(d.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(d.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(d.Location) == "" {
		missing = append(missing, "location")
	}
	return missing
}

func (d *Draft) CanSubmit() bool {
	return d.State == Editing && len(d.Missing()) == 0
}

// StartRecording raises the recording flag. Only one capture runs at a time.
func (d *Draft) StartRecording() error {
	if d.State == Submitted {
		return ErrAlreadySubmitted
	}
	if d.Recording {
		return ErrAlreadyRecording
	}
	d.Recording = true
	return nil
}

// FinishRecording appends the captured note to the description and lowers
// the flag.
func (d *Draft) FinishRecording(note, attachmentID string) error {
	if !d.Recording {
		return ErrNotRecording
	}
	d.Recording = false
	if note == "" {
		return nil
	}
	if d.Description != "" {
		d.Description += " "
	}
	d.Description += note
	if attachmentID != "" {
		d.VoiceNoteID = attachmentID
	}
	return nil
}

// CancelRecording lowers the flag without touching the description.
func (d *Draft) CancelRecording() {
	d.Recording = false
}

// Submit moves the draft to its terminal state. The returned issue is what
// gets stored for the reporter.
func (d *Draft) Submit(reporter *models.User, now time.Time) (*models.Issue, error) {
	if d.State == Submitted {
		return nil, ErrAlreadySubmitted
	}
	if missing := d.Missing(); len(missing) > 0 {
		return nil, &IncompleteError{Missing: missing}
	}
	category, ok := models.ParseCategory(d.Category)
	if !ok {
		return nil, ErrInvalidCategory
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = fmt.Sprintf("%s reported at %s", categoryTitle(d.Category), strings.TrimSpace(d.Location))
	}

	issue := &models.Issue{
		Title:       title,
		Category:    category,
		Status:      models.Pending,
		Priority:    models.PriorityMedium,
		Address:     strings.TrimSpace(d.Location),
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
		ReporterID:  reporter.ID,
		Reporter:    reporter.Name,
		Description: strings.TrimSpace(d.Description),
		Date:        now.Format(models.DateLayout),
		PhotoID:     d.PhotoID,
		VoiceNoteID: d.VoiceNoteID,
		Timeline:    models.NewTimeline(now),
		CreatedAt:   now,
	}

	d.State = Submitted
	d.Recording = false
	return issue, nil
}

// MarkStored records the identifier the store gave the submitted report.
func (d *Draft) MarkStored(id string) {
	d.IssueID = id
}

// categoryTitle names the form's category keys the way the form does.
func categoryTitle(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "streetlight":
		return "Streetlight issue"
	case "pothole":
		return "Pothole"
	case "garbage":
		return "Garbage/Waste"
	case "graffiti":
		return "Graffiti"
	case "sidewalk":
		return "Sidewalk issue"
	case "traffic":
		return "Traffic signal"
	default:
		return "Issue"
	}
}
