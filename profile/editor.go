// Package profile implements the profile edit buffer: edits go to a copy of
// the committed fields until they are saved or discarded.
package profile

import (
	"errors"
	"strings"

	"civicreport-be/models"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotEditing     = errors.New("profile is not being edited")
	ErrAlreadyEditing = errors.New("profile is already being edited")
)

var validate = validator.New()

// Fields is the buffer's shape with its validation rules.
type Fields struct {
	Name  string `json:"name" validate:"required,max=50"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,max=30"`
}

func fromModel(p models.ProfileFields) Fields {
	return Fields{Name: p.Name, Email: p.Email, Phone: p.Phone}
}

func (f Fields) toModel() models.ProfileFields {
	return models.ProfileFields{Name: f.Name, Email: f.Email, Phone: f.Phone}
}

// Patch edits individual buffer fields; nil leaves a field as it is.
type Patch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

type Editor struct {
	Editing bool   `json:"editing"`
	Buffer  Fields `json:"buffer"`
}

// Begin copies the committed profile into the buffer.
func (e *Editor) Begin(committed models.ProfileFields) error {
	if e.Editing {
		return ErrAlreadyEditing
	}
	e.Editing = true
	e.Buffer = fromModel(committed)
	return nil
}

// Edit changes the buffer only. Emails are stored lowercase, so the buffer
// holds the lowercased address.
func (e *Editor) Edit(p Patch) error {
	if !e.Editing {
		return ErrNotEditing
	}
	if p.Name != nil {
		e.Buffer.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		e.Buffer.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Phone != nil {
		e.Buffer.Phone = strings.TrimSpace(*p.Phone)
	}
	return nil
}

// Save commits exactly the buffer to u and leaves edit mode. An invalid
// buffer is kept so the user can fix it.
func (e *Editor) Save(u *models.User) error {
	if !e.Editing {
		return ErrNotEditing
	}
	if err := validate.Struct(e.Buffer); err != nil {
		return err
	}
	u.ApplyProfile(e.Buffer.toModel())
	e.Editing = false
	return nil
}

// Cancel discards the buffer and leaves edit mode; the buffer goes back to
// the committed values.
func (e *Editor) Cancel(committed models.ProfileFields) error {
	if !e.Editing {
		return ErrNotEditing
	}
	e.Buffer = fromModel(committed)
	e.Editing = false
	return nil
}

// View is what the profile screen shows: the buffer while editing, the
// committed values otherwise.
func (e *Editor) View(committed models.ProfileFields) Fields {
	if e.Editing {
		return e.Buffer
	}
	return fromModel(committed)
}
