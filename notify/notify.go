// Package notify tells reporters when their issues move, on the channels
// their profile has switched on.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"civicreport-be/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Kind string

const (
	StatusChanged Kind = "status_changed"
	IssueResolved Kind = "issue_resolved"
)

type Message struct {
	Kind    Kind      `json:"kind"`
	UserID  string    `json:"userId"`
	IssueID string    `json:"issueId"`
	Title   string    `json:"title"`
	Status  string    `json:"status"`
	Text    string    `json:"text"`
	SentAt  time.Time `json:"sentAt"`
}

// Channel delivers a message over one medium.
type Channel interface {
	Send(ctx context.Context, user *models.User, msg Message) error
}

// Channel names match the profile's notification switches.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type Dispatcher struct {
	channels map[string]Channel
	now      func() time.Time
}

func NewDispatcher(channels map[string]Channel) *Dispatcher {
	return &Dispatcher{channels: channels, now: time.Now}
}

// Wants reports whether the user asked for this kind of message.
func Wants(prefs models.NotificationPrefs, kind Kind) bool {
	switch kind {
	case IssueResolved:
		return prefs.Resolved
	case StatusChanged:
		return prefs.Updates
	}
	return false
}

func enabled(prefs models.NotificationPrefs, channel string) bool {
	switch channel {
	case ChannelPush:
		return prefs.Push
	case ChannelEmail:
		return prefs.Email
	case ChannelSMS:
		return prefs.SMS
	}
	return false
}

// IssueStatusChanged notifies the reporter of a status move. It returns the
// channels used.
func (d *Dispatcher) IssueStatusChanged(ctx context.Context, user *models.User, issue *models.Issue) ([]string, error) {
	kind := StatusChanged
	if issue.Status == models.Resolved {
		kind = IssueResolved
	}
	if !Wants(user.Notifications, kind) {
		return nil, nil
	}

	msg := Message{
		Kind:    kind,
		UserID:  user.ID,
		IssueID: issue.ID,
		Title:   issue.Title,
		Status:  issue.Status.In(models.MyReportsView),
		Text:    fmt.Sprintf("Your report %s is now %s", issue.ID, issue.Status.Title()),
		SentAt:  d.now(),
	}

	var sent []string
	var errs []error
	for _, name := range []string{ChannelPush, ChannelEmail, ChannelSMS} {
		ch, ok := d.channels[name]
		if !ok || !enabled(user.Notifications, name) {
			continue
		}
		if err := ch.Send(ctx, user, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		sent = append(sent, name)
	}
	return sent, errors.Join(errs...)
}

// RedisChannel publishes to notifications:<userId> for connected clients.
type RedisChannel struct {
	Client *redis.Client
}

func (r RedisChannel) Send(ctx context.Context, user *models.User, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.Client.Publish(ctx, "notifications:"+user.ID, raw).Err()
}

// LogChannel records messages for media without a delivery provider.
type LogChannel struct {
	Logger zerolog.Logger
	Medium string
}

func (l LogChannel) Send(ctx context.Context, user *models.User, msg Message) error {
	l.Logger.Info().
		Str("medium", l.Medium).
		Str("user_id", user.ID).
		Str("issue_id", msg.IssueID).
		Str("kind", string(msg.Kind)).
		Msg(msg.Text)
	return nil
}
