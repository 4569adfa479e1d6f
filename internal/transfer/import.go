package transfer

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sadopc/worklog/internal/store"
)

type Mode string

const (
	// ModeClear wipes all entities before importing.
	ModeClear Mode = "clear"
	// ModeMerge keeps existing data and skips records already present.
	ModeMerge Mode = "merge"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeClear:
		return ModeClear, nil
	case ModeMerge:
		return ModeMerge, nil
	}
	return "", fmt.Errorf("unknown import mode %q (want clear or merge)", s)
}

// ValidationError reports every structural problem found in a document.
// Nothing is written when it is returned.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid import file: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid import file: %d problems, first: %s", len(e.Problems), e.Problems[0])
}

type Counts struct {
	Imported int
	Skipped  int
}

type ImportResult struct {
	Categories  Counts
	Activities  Counts
	TimeEntries Counts
	Goals       Counts
}

func (r ImportResult) String() string {
	return fmt.Sprintf("categories %d/%d, activities %d/%d, entries %d/%d, goals %d/%d (imported/skipped)",
		r.Categories.Imported, r.Categories.Skipped,
		r.Activities.Imported, r.Activities.Skipped,
		r.TimeEntries.Imported, r.TimeEntries.Skipped,
		r.Goals.Imported, r.Goals.Skipped)
}

// Validate checks the required fields of every record.
func Validate(doc *Document) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for i, c := range doc.Categories {
		if strings.TrimSpace(c.Name) == "" {
			add("category %d: missing name", i)
		}
	}
	for i, a := range doc.Activities {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Category) == "" {
			add("activity %d: name and category are required", i)
		}
	}
	for i, e := range doc.TimeEntries {
		if e.ActivityID == "" || e.StartTime == "" {
			add("time entry %d: activityId and startTime are required", i)
			continue
		}
		start, err := time.Parse(time.RFC3339, e.StartTime)
		if err != nil {
			add("time entry %d: bad startTime %q", i, e.StartTime)
		}
		if e.EndTime != nil {
			end, endErr := time.Parse(time.RFC3339, *e.EndTime)
			switch {
			case endErr != nil:
				add("time entry %d: bad endTime %q", i, *e.EndTime)
			case err == nil && end.Before(start):
				add("time entry %d: endTime is before startTime", i)
			}
		}
		if e.Duration != nil && *e.Duration < 0 {
			add("time entry %d: negative duration %d", i, *e.Duration)
		}
	}
	for i, g := range doc.Goals {
		if g.ActivityID == "" || g.TargetHours == nil || g.Period == "" {
			add("goal %d: activityId, targetHours and period are required", i)
			continue
		}
		if !store.Period(g.Period).Valid() {
			add("goal %d: unknown period %q", i, g.Period)
		}
		if *g.TargetHours <= 0 {
			add("goal %d: targetHours must be positive", i)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Import validates doc and writes it into s in a single transaction, so a
// failed import leaves the database as it was. Every record gets a fresh id;
// references from entries and goals follow their activity. In merge mode
// records matching existing ones by natural key are skipped, and references to
// a skipped activity point at the existing row.
func Import(s *store.Store, doc *Document, mode Mode) (ImportResult, error) {
	if mode != ModeClear && mode != ModeMerge {
		return ImportResult{}, fmt.Errorf("import: unknown mode %q", mode)
	}
	if err := Validate(doc); err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	err := s.WithTx(func(tx *store.Store) error {
		var err error
		res, err = importDocument(tx, doc, mode)
		return err
	})
	if err != nil {
		return ImportResult{}, err
	}
	log.Info("import finished", "mode", mode, "result", res.String())
	return res, nil
}

func importDocument(s *store.Store, doc *Document, mode Mode) (ImportResult, error) {
	var res ImportResult
	if mode == ModeClear {
		if err := s.ClearAllData(); err != nil {
			return res, fmt.Errorf("import: %w", err)
		}
	}

	existingCategories := map[string]bool{}
	existingActivities := map[string]string{} // name+category -> id
	knownActivity := map[string]bool{}
	existingEntries := map[string]bool{} // activity id + start
	existingGoals := map[string]bool{}   // activity id + period

	merge := mode == ModeMerge
	if merge {
		cats, err := s.ListCategories()
		if err != nil {
			return res, fmt.Errorf("import: %w", err)
		}
		for _, c := range cats {
			existingCategories[c.Name] = true
		}
		acts, err := s.ListActivities()
		if err != nil {
			return res, fmt.Errorf("import: %w", err)
		}
		for _, a := range acts {
			existingActivities[activityKey(a.Name, a.Category)] = a.ID
			knownActivity[a.ID] = true
		}
		entries, err := s.ListTimeEntries(store.EntryFilter{})
		if err != nil {
			return res, fmt.Errorf("import: %w", err)
		}
		for _, e := range entries {
			existingEntries[entryKey(e.ActivityID, e.StartTime)] = true
		}
		goals, err := s.ListGoals()
		if err != nil {
			return res, fmt.Errorf("import: %w", err)
		}
		for _, g := range goals {
			existingGoals[goalKey(g.ActivityID, string(g.Period))] = true
		}
	}

	for _, c := range doc.Categories {
		if merge && existingCategories[c.Name] {
			res.Categories.Skipped++
			continue
		}
		created, _ := parseTime(c.CreatedAt)
		if _, err := s.AddCategory(store.Category{Name: c.Name, Order: c.Order, CreatedAt: created}); err != nil {
			return res, fmt.Errorf("import category %q: %w", c.Name, err)
		}
		existingCategories[c.Name] = true
		res.Categories.Imported++
	}

	idMap := make(map[string]string, len(doc.Activities))
	for _, a := range doc.Activities {
		k := activityKey(a.Name, a.Category)
		if id, ok := existingActivities[k]; merge && ok {
			idMap[a.ID] = id
			res.Activities.Skipped++
			continue
		}
		created, _ := parseTime(a.CreatedAt)
		na, err := s.AddActivity(store.Activity{
			Name:           a.Name,
			Category:       a.Category,
			Description:    a.Description,
			ExternalSystem: a.ExternalSystem,
			Order:          a.Order,
			CreatedAt:      created,
		})
		if err != nil {
			return res, fmt.Errorf("import activity %q: %w", a.Name, err)
		}
		idMap[a.ID] = na.ID
		existingActivities[k] = na.ID
		res.Activities.Imported++
	}

	resolve := func(oldID string) (string, bool) {
		if id, ok := idMap[oldID]; ok {
			return id, true
		}
		if knownActivity[oldID] {
			return oldID, true
		}
		return "", false
	}

	for _, e := range doc.TimeEntries {
		activityID, ok := resolve(e.ActivityID)
		if !ok {
			log.Warn("import: entry references unknown activity", "entry", e.ID, "activity", e.ActivityID)
			res.TimeEntries.Skipped++
			continue
		}
		start, _ := time.Parse(time.RFC3339, e.StartTime)
		k := entryKey(activityID, start)
		if merge && existingEntries[k] {
			res.TimeEntries.Skipped++
			continue
		}
		var end *time.Time
		if e.EndTime != nil {
			t, _ := time.Parse(time.RFC3339, *e.EndTime)
			end = &t
		}
		created, _ := parseTime(e.CreatedAt)
		_, err := s.AddTimeEntry(store.TimeEntry{
			ActivityID: activityID,
			StartTime:  start,
			EndTime:    end,
			Duration:   e.Duration,
			Notes:      e.Notes,
			CreatedAt:  created,
		})
		if err != nil {
			return res, fmt.Errorf("import entry: %w", err)
		}
		existingEntries[k] = true
		res.TimeEntries.Imported++
	}

	for _, g := range doc.Goals {
		activityID, ok := resolve(g.ActivityID)
		if !ok {
			log.Warn("import: goal references unknown activity", "goal", g.ID, "activity", g.ActivityID)
			res.Goals.Skipped++
			continue
		}
		k := goalKey(activityID, g.Period)
		if merge && existingGoals[k] {
			res.Goals.Skipped++
			continue
		}
		created, _ := parseTime(g.CreatedAt)
		_, err := s.AddGoal(store.Goal{
			ActivityID:            activityID,
			TargetHours:           *g.TargetHours,
			Period:                store.Period(g.Period),
			NotificationThreshold: g.NotificationThreshold,
			CreatedAt:             created,
		})
		if err != nil {
			return res, fmt.Errorf("import goal: %w", err)
		}
		existingGoals[k] = true
		res.Goals.Imported++
	}

	return res, nil
}

func activityKey(name, category string) string {
	return name + "\x00" + category
}

func entryKey(activityID string, start time.Time) string {
	return activityID + "\x00" + start.UTC().Format(time.RFC3339)
}

func goalKey(activityID, period string) string {
	return activityID + "\x00" + period
}
