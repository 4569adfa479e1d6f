package transfer

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/worklog/internal/store"
)

// ToCSV writes one row per entry. Activities are looked up by id; entries of
// unknown activities are labelled "Unknown".
func ToCSV(entries []store.TimeEntry, activities map[string]*store.Activity, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	// Header
	if err := w.Write([]string{"ID", "Activity", "Category", "Start", "End", "Duration (s)", "Duration", "Notes"}); err != nil {
		return err
	}

	for _, e := range entries {
		activityName, category := "Unknown", ""
		if a, ok := activities[e.ActivityID]; ok {
			activityName = a.Name
			category = a.Category
		}
		endStr := ""
		if e.EndTime != nil {
			endStr = e.EndTime.Local().Format(time.RFC3339)
		}
		durSecs := ""
		if e.Duration != nil {
			durSecs = fmt.Sprintf("%d", *e.Duration)
		}

		row := []string{
			e.ID,
			activityName,
			category,
			e.StartTime.Local().Format(time.RFC3339),
			endStr,
			durSecs,
			formatDuration(e.Seconds()),
			e.Notes,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// ActivityIndex maps activities by id for ToCSV.
func ActivityIndex(activities []store.Activity) map[string]*store.Activity {
	m := make(map[string]*store.Activity, len(activities))
	for i := range activities {
		m[activities[i].ID] = &activities[i]
	}
	return m
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
