// Package transfer moves data in and out of the store: a JSON backup document
// that can be imported again, and a CSV report of time entries.
package transfer

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/worklog/internal/store"
)

// Document is the backup file. It is the only place entity fields get JSON
// names.
type Document struct {
	Activities      []ActivityDoc `json:"activities"`
	TimeEntries     []EntryDoc    `json:"timeEntries"`
	Categories      []CategoryDoc `json:"categories"`
	Goals           []GoalDoc     `json:"goals"`
	ExportDate      string        `json:"exportDate"`
	DatabaseVersion int           `json:"databaseVersion"`
}

type CategoryDoc struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type ActivityDoc struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Description    string  `json:"description,omitempty"`
	ExternalSystem *string `json:"externalSystem,omitempty"`
	Order          int     `json:"order"`
	CreatedAt      string  `json:"createdAt,omitempty"`
	UpdatedAt      string  `json:"updatedAt,omitempty"`
}

type EntryDoc struct {
	ID         string  `json:"id"`
	ActivityID string  `json:"activityId"`
	StartTime  string  `json:"startTime"`
	EndTime    *string `json:"endTime"`
	Duration   *int64  `json:"duration"`
	Notes      string  `json:"notes,omitempty"`
	CreatedAt  string  `json:"createdAt,omitempty"`
	UpdatedAt  string  `json:"updatedAt,omitempty"`
}

type GoalDoc struct {
	ID                    string   `json:"id"`
	ActivityID            string   `json:"activityId"`
	TargetHours           *float64 `json:"targetHours"`
	Period                string   `json:"period"`
	NotificationThreshold int      `json:"notificationThreshold"`
	CreatedAt             string   `json:"createdAt,omitempty"`
	UpdatedAt             string   `json:"updatedAt,omitempty"`
}

// Export reads every category, activity, time entry and goal from s.
func Export(s *store.Store) (*Document, error) {
	categories, err := s.ListCategories()
	if err != nil {
		return nil, fmt.Errorf("export categories: %w", err)
	}
	activities, err := s.ListActivities()
	if err != nil {
		return nil, fmt.Errorf("export activities: %w", err)
	}
	entries, err := s.ListTimeEntries(store.EntryFilter{})
	if err != nil {
		return nil, fmt.Errorf("export entries: %w", err)
	}
	goals, err := s.ListGoals()
	if err != nil {
		return nil, fmt.Errorf("export goals: %w", err)
	}

	doc := &Document{
		Activities:      make([]ActivityDoc, 0, len(activities)),
		TimeEntries:     make([]EntryDoc, 0, len(entries)),
		Categories:      make([]CategoryDoc, 0, len(categories)),
		Goals:           make([]GoalDoc, 0, len(goals)),
		ExportDate:      time.Now().UTC().Format(time.RFC3339),
		DatabaseVersion: store.SchemaVersion,
	}
	for _, c := range categories {
		doc.Categories = append(doc.Categories, CategoryDoc{
			ID: c.ID, Name: c.Name, Order: c.Order,
			CreatedAt: formatTime(c.CreatedAt), UpdatedAt: formatTime(c.UpdatedAt),
		})
	}
	for _, a := range activities {
		doc.Activities = append(doc.Activities, ActivityDoc{
			ID: a.ID, Name: a.Name, Category: a.Category, Description: a.Description,
			ExternalSystem: a.ExternalSystem, Order: a.Order,
			CreatedAt: formatTime(a.CreatedAt), UpdatedAt: formatTime(a.UpdatedAt),
		})
	}
	for _, e := range entries {
		var end *string
		if e.EndTime != nil {
			v := formatTime(*e.EndTime)
			end = &v
		}
		doc.TimeEntries = append(doc.TimeEntries, EntryDoc{
			ID: e.ID, ActivityID: e.ActivityID, StartTime: formatTime(e.StartTime),
			EndTime: end, Duration: e.Duration, Notes: e.Notes,
			CreatedAt: formatTime(e.CreatedAt), UpdatedAt: formatTime(e.UpdatedAt),
		})
	}
	for _, g := range goals {
		target := g.TargetHours
		doc.Goals = append(doc.Goals, GoalDoc{
			ID:                    g.ID,
			ActivityID:            g.ActivityID,
			TargetHours:           &target,
			Period:                string(g.Period),
			NotificationThreshold: g.NotificationThreshold,
			CreatedAt:             formatTime(g.CreatedAt),
			UpdatedAt:             formatTime(g.UpdatedAt),
		})
	}
	return doc, nil
}

func WriteJSON(doc *Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}

// ReadJSON parses a backup file. Structural checks happen in Import.
func ReadJSON(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json file: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("not a valid backup file: %v", err)}}
	}
	return &doc, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime returns the zero time for an empty string.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
