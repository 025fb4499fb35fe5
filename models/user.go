package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
)

// NotificationPrefs are the independent notification switches of a profile.
type NotificationPrefs struct {
	Push     bool `bson:"push" json:"push"`
	Email    bool `bson:"email" json:"email"`
	SMS      bool `bson:"sms" json:"sms"`
	Updates  bool `bson:"updates" json:"updates"`
	Resolved bool `bson:"resolved" json:"resolved"`
}

// DefaultNotificationPrefs is what a new account starts with.
func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{Push: true, Email: true, SMS: false, Updates: true, Resolved: true}
}

// Set flips a single preference by key. Unknown keys report false.
func (p *NotificationPrefs) Set(key string, on bool) bool {
	switch key {
	case "push":
		p.Push = on
	case "email":
		p.Email = on
	case "sms":
		p.SMS = on
	case "updates":
		p.Updates = on
	case "resolved":
		p.Resolved = on
	default:
		return false
	}
	return true
}

// ProfileFields is the editable part of a user.
type ProfileFields struct {
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
	Phone string `bson:"phone" json:"phone"`
}

type User struct {
	ID            string            `bson:"_id" json:"id"`
	Name          string            `bson:"name" json:"name"`
	Email         string            `bson:"email" json:"email"`
	Phone         string            `bson:"phone" json:"phone"`
	Password      string            `bson:"password,omitempty" json:"-"`
	Role          Role              `bson:"role" json:"role"`
	Notifications NotificationPrefs `bson:"notifications" json:"notifications"`
	CreatedAt     time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time         `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) Profile() ProfileFields {
	return ProfileFields{Name: u.Name, Email: u.Email, Phone: u.Phone}
}

func (u *User) ApplyProfile(p ProfileFields) {
	u.Name = p.Name
	u.Email = p.Email
	u.Phone = p.Phone
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) ComparePassword(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate))
	return err == nil
}
