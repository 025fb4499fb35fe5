package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicreport-be/models"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "password123"

type seedUser struct {
	name, email, phone string
	role               models.Role
}

var seedUsers = []seedUser{
	{"John Doe", "john.doe@email.com", "+1 (555) 123-4567", models.RoleCitizen},
	{"Jane Smith", "jane.smith@email.com", "+1 (555) 234-5678", models.RoleCitizen},
	{"Bob Wilson", "bob.wilson@email.com", "+1 (555) 345-6789", models.RoleCitizen},
	{"City Admin", "admin@city.gov", "+1 (555) 000-0000", models.RoleAdmin},
}

type seedIssue struct {
	id, title   string
	category    models.IssueCategory
	status      models.IssueStatus
	priority    models.IssuePriority
	lat, lng    float64
	address     string
	reporter    string
	date        string
	assignedTo  string
	department  models.Department
	description string
	stepDates   []string
}

var seedIssues = []seedIssue{
	{
		id: "CR2024-001", title: "Broken streetlight on Main St",
		category: models.Streetlight, status: models.InProgress, priority: models.PriorityHigh,
		lat: 40.7128, lng: -74.0060, address: "123 Main Street", reporter: "John Doe",
		date: "2024-01-15", assignedTo: "Mike Johnson", department: models.PublicWorks,
		description: "Streetlight has been out for 3 days, creating safety concern for pedestrians.",
		stepDates:   []string{"2024-01-15", "2024-01-16", "2024-01-17"},
	},
	{
		id: "CR2024-002", title: "Large pothole on Oak Avenue",
		category: models.Pothole, status: models.Pending, priority: models.PriorityMedium,
		lat: 40.7120, lng: -74.0050, address: "456 Oak Avenue", reporter: "Jane Smith",
		date:        "2024-01-14",
		description: "Deep pothole causing damage to vehicles.",
		stepDates:   []string{"2024-01-14"},
	},
	{
		id: "CR2024-003", title: "Overflowing trash bin",
		category: models.Garbage, status: models.Resolved, priority: models.PriorityLow,
		lat: 40.7140, lng: -74.0070, address: "789 Pine Street", reporter: "Bob Wilson",
		date: "2024-01-10", assignedTo: "Sarah Davis", department: models.Sanitation,
		description: "Trash bin overflowing for several days.",
		stepDates:   []string{"2024-01-10", "2024-01-10", "2024-01-11", "2024-01-12", "2024-01-12"},
	},
}

// Seed loads the sample accounts and issues. It is a no-op when the seed
// accounts already exist.
func Seed(ctx context.Context, s Store) error {
	reporters := make(map[string]string, len(seedUsers))
	for _, su := range seedUsers {
		existing, err := s.GetUserByEmail(ctx, su.email)
		if err == nil {
			reporters[su.name] = existing.ID
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		u := models.User{
			Name:          su.name,
			Email:         su.email,
			Phone:         su.phone,
			Password:      SeedPassword,
			Role:          su.role,
			Notifications: models.DefaultNotificationPrefs(),
		}
		if err := u.HashPassword(); err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}
		if err := s.CreateUser(ctx, &u); err != nil {
			return fmt.Errorf("seed user %s: %w", su.email, err)
		}
		reporters[su.name] = u.ID
	}

	for _, si := range seedIssues {
		if _, err := s.GetIssue(ctx, si.id); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		created, err := time.Parse(models.DateLayout, si.date)
		if err != nil {
			return err
		}
		lat, lng := si.lat, si.lng
		timeline := make(models.Timeline, len(models.TimelineSteps))
		for i, name := range models.TimelineSteps {
			timeline[i] = models.TimelineStep{Step: name}
			if i < len(si.stepDates) {
				timeline[i].Date = si.stepDates[i]
				timeline[i].Completed = true
			}
		}

		issue := models.Issue{
			ID:          si.id,
			Title:       si.title,
			Category:    si.category,
			Status:      si.status,
			Priority:    si.priority,
			Address:     si.address,
			Latitude:    &lat,
			Longitude:   &lng,
			ReporterID:  reporters[si.reporter],
			Reporter:    si.reporter,
			Department:  si.department,
			AssignedTo:  si.assignedTo,
			Description: si.description,
			Date:        si.date,
			Timeline:    timeline,
			CreatedAt:   created,
		}
		if err := s.CreateIssue(ctx, &issue); err != nil {
			return fmt.Errorf("seed issue %s: %w", si.id, err)
		}
	}
	return nil
}
