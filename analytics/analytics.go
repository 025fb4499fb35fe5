// Package analytics derives the admin dashboard's figures from issues.
package analytics

import (
	"math"
	"time"

	"civicreport-be/models"
)

// Stats are the overview tab's counters.
type Stats struct {
	TotalIssues      int `json:"totalIssues"`
	PendingIssues    int `json:"pendingIssues"`
	AssignedIssues   int `json:"assignedIssues"`
	InProgressIssues int `json:"inProgressIssues"`
	ResolvedIssues   int `json:"resolvedIssues"`
}

func Overview(issues []models.Issue) Stats {
	s := Stats{TotalIssues: len(issues)}
	for _, i := range issues {
		switch i.Status {
		case models.Pending:
			s.PendingIssues++
		case models.Assigned:
			s.AssignedIssues++
		case models.InProgress:
			s.InProgressIssues++
		case models.Resolved:
			s.ResolvedIssues++
		}
	}
	return s
}

type MonthlyReports struct {
	Month    string `json:"month"`
	Reports  int    `json:"reports"`
	Resolved int    `json:"resolved"`
}

type CategorySlice struct {
	Category models.IssueCategory `json:"category"`
	Name     string               `json:"name"`
	Value    int                  `json:"value"`
	Color    string               `json:"color"`
}

type ResolutionTime struct {
	Category string  `json:"category"`
	AvgDays  float64 `json:"avgDays"`
}

type Analytics struct {
	MonthlyReports  []MonthlyReports `json:"monthlyReports"`
	CategoryData    []CategorySlice  `json:"categoryData"`
	ResolutionTimes []ResolutionTime `json:"resolutionTimes"`
}

var categoryColors = map[models.IssueCategory]string{
	models.Streetlight: "#2C6FF7",
	models.Pothole:     "#28A745",
	models.Garbage:     "#FFC107",
	models.Other:       "#DC3545",
}

var categoryNames = map[models.IssueCategory]string{
	models.Streetlight: "Streetlight",
	models.Pothole:     "Pothole",
	models.Garbage:     "Garbage",
	models.Other:       "Other",
}

// Months is how many calendar months the monthly series covers.
const Months = 6

// Compute builds the analytics tab from the issues. The monthly series ends
// with the month of now.
func Compute(issues []models.Issue, now time.Time) Analytics {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(Months - 1), 0)
	monthly := make([]MonthlyReports, Months)
	for m := range monthly {
		monthly[m].Month = first.AddDate(0, m, 0).Format("Jan")
	}
	monthIndex := func(t time.Time) int {
		idx := (t.Year()-first.Year())*12 + int(t.Month()) - int(first.Month())
		if idx < 0 || idx >= Months {
			return -1
		}
		return idx
	}

	counts := make(map[models.IssueCategory]int)
	resolvedDays := make(map[models.IssueCategory][]float64)

	for _, issue := range issues {
		counts[issue.Category]++

		reported, err := time.Parse(models.DateLayout, issue.Date)
		if err == nil {
			if idx := monthIndex(reported); idx >= 0 {
				monthly[idx].Reports++
			}
		}

		if issue.Status != models.Resolved {
			continue
		}
		resolved, ok := issue.Timeline.CompletedAt(models.TimelineSteps[len(models.TimelineSteps)-1])
		if !ok {
			continue
		}
		if idx := monthIndex(resolved); idx >= 0 {
			monthly[idx].Resolved++
		}
		if err == nil {
			resolvedDays[issue.Category] = append(resolvedDays[issue.Category], resolved.Sub(reported).Hours()/24)
		}
	}

	out := Analytics{MonthlyReports: monthly}
	for _, c := range models.Categories {
		out.CategoryData = append(out.CategoryData, CategorySlice{
			Category: c,
			Name:     c.Label(),
			Value:    counts[c],
			Color:    categoryColors[c],
		})
		out.ResolutionTimes = append(out.ResolutionTimes, ResolutionTime{
			Category: categoryNames[c],
			AvgDays:  average(resolvedDays[c]),
		})
	}
	return out
}

// AverageResolution returns the average resolution days of one category.
func (a Analytics) AverageResolution(c models.IssueCategory) float64 {
	for _, r := range a.ResolutionTimes {
		if r.Category == categoryNames[c] {
			return r.AvgDays
		}
	}
	return 0
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return math.Round(sum/float64(len(xs))*10) / 10
}

// Static is the fixed sample dataset the dashboard was designed against.
func Static() Analytics {
	return Analytics{
		MonthlyReports: []MonthlyReports{
			{Month: "Jan", Reports: 45, Resolved: 38},
			{Month: "Feb", Reports: 52, Resolved: 41},
			{Month: "Mar", Reports: 61, Resolved: 55},
			{Month: "Apr", Reports: 48, Resolved: 44},
			{Month: "May", Reports: 67, Resolved: 59},
			{Month: "Jun", Reports: 73, Resolved: 66},
		},
		CategoryData: []CategorySlice{
			{Category: models.Streetlight, Name: "Streetlights", Value: 35, Color: "#2C6FF7"},
			{Category: models.Pothole, Name: "Potholes", Value: 28, Color: "#28A745"},
			{Category: models.Garbage, Name: "Garbage", Value: 22, Color: "#FFC107"},
			{Category: models.Other, Name: "Other", Value: 15, Color: "#DC3545"},
		},
		ResolutionTimes: []ResolutionTime{
			{Category: "Streetlight", AvgDays: 3.2},
			{Category: "Pothole", AvgDays: 7.5},
			{Category: "Garbage", AvgDays: 1.8},
			{Category: "Other", AvgDays: 4.1},
		},
	}
}
