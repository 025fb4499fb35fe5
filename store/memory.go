package store

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"civicreport-be/filters"
	"civicreport-be/models"

	"github.com/google/uuid"
)

// Memory keeps every record in process. Issues live in a slice so listing
// walks them in insertion order.
type Memory struct {
	mu          sync.RWMutex
	issues      []models.Issue
	users       map[string]models.User
	notes       []models.Note
	attachments map[string]memoryBlob
	seq         int64
	now         func() time.Time
}

type memoryBlob struct {
	meta Attachment
	data []byte
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]models.User),
		attachments: make(map[string]memoryBlob),
		now:         time.Now,
	}
}

// SetClock replaces the time source used to stamp new records.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) ListIssues(ctx context.Context, q Query) ([]models.Issue, int, error) {
	m.mu.RLock()
	out := slices.Collect(filters.Where(m.allIssues(), q.Predicate()))
	m.mu.RUnlock()

	SortIssues(out, q.Sort)
	return Page(out, q.Offset, q.Limit), len(out), nil
}

// allIssues yields deep copies so callers never alias stored timelines.
// Callers hold the read lock.
func (m *Memory) allIssues() func(func(models.Issue) bool) {
	return func(yield func(models.Issue) bool) {
		for _, issue := range m.issues {
			if !yield(cloneIssue(issue)) {
				return
			}
		}
	}
}

func (m *Memory) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, issue := range m.issues {
		if issue.ID == id {
			c := cloneIssue(issue)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) CreateIssue(ctx context.Context, issue *models.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.seq++
	issue.Seq = m.seq
	if issue.ID == "" {
		issue.ID = IssueID(now.Year(), m.seq)
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = issue.CreatedAt
	m.issues = append(m.issues, cloneIssue(*issue))
	return nil
}

func (m *Memory) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.issues {
		if m.issues[i].ID == issue.ID {
			if m.issues[i].Version != issue.Version {
				return ErrConflict
			}
			issue.Seq = m.issues[i].Seq
			issue.CreatedAt = m.issues[i].CreatedAt
			issue.Version++
			m.issues[i] = cloneIssue(*issue)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) AddNote(ctx context.Context, note *models.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.ContainsFunc(m.issues, func(i models.Issue) bool { return i.ID == note.IssueID }) {
		return ErrNotFound
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = m.now()
	}
	m.notes = append(m.notes, *note)
	return nil
}

func (m *Memory) ListNotes(ctx context.Context, issueID string) ([]models.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Note{}
	for _, n := range m.notes {
		if n.IssueID == issueID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *Memory) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := m.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range m.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}
	u.UpdatedAt = m.now()
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) PutAttachment(ctx context.Context, a *Attachment, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Size = int64(len(data))
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	m.attachments[a.ID] = memoryBlob{meta: *a, data: data}
	return nil
}

func (m *Memory) OpenAttachment(ctx context.Context, id string) (*Attachment, io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.attachments[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	meta := blob.meta
	return &meta, io.NopCloser(bytes.NewReader(blob.data)), nil
}

func cloneIssue(i models.Issue) models.Issue {
	i.Timeline = slices.Clone(i.Timeline)
	return i
}
