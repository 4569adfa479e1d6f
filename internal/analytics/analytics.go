// Package analytics derives read-only views from stored entries: goal
// progress, per-activity totals and progress against the work schedule.
// Nothing computed here is persisted.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/sadopc/worklog/internal/store"
)

// Source is the read side of the store used here.
type Source interface {
	ListActivities() ([]store.Activity, error)
	ListGoals() ([]store.Goal, error)
	GetTotalDurationByActivity(activityID string) (int64, error)
	GetTotalDurationSince(activityID string, from time.Time) (int64, error)
}

// PeriodStart returns local midnight of the first day of the period that
// contains now. Weeks start on firstDay.
func PeriodStart(p store.Period, now time.Time, firstDay time.Weekday) time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	switch p {
	case store.PeriodWeekly:
		offset := (int(now.Weekday()) - int(firstDay) + 7) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case store.PeriodMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case store.PeriodYearly:
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc)
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// PeriodEnd returns the start of the period after the one containing now.
func PeriodEnd(p store.Period, now time.Time, firstDay time.Weekday) time.Time {
	start := PeriodStart(p, now, firstDay)
	switch p {
	case store.PeriodWeekly:
		return start.AddDate(0, 0, 7)
	case store.PeriodMonthly:
		return start.AddDate(0, 1, 0)
	case store.PeriodYearly:
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 0, 1)
}

type Progress struct {
	Goal             store.Goal
	PeriodStart      time.Time
	TrackedSeconds   int64
	Percent          float64
	ThresholdReached bool
}

// GoalProgress sums the goal activity's tracked time since the start of the
// goal's current period.
func GoalProgress(src Source, g store.Goal, now time.Time, firstDay time.Weekday) (Progress, error) {
	start := PeriodStart(g.Period, now, firstDay)
	secs, err := src.GetTotalDurationSince(g.ActivityID, start)
	if err != nil {
		return Progress{}, fmt.Errorf("goal progress: %w", err)
	}
	p := Progress{Goal: g, PeriodStart: start, TrackedSeconds: secs}
	if g.TargetHours > 0 {
		p.Percent = float64(secs) / (g.TargetHours * 3600) * 100
	}
	p.ThresholdReached = g.TargetHours > 0 && p.Percent >= float64(g.NotificationThreshold)
	return p, nil
}

// AllGoalProgress computes GoalProgress for every stored goal.
func AllGoalProgress(src Source, now time.Time, firstDay time.Weekday) ([]Progress, error) {
	goals, err := src.ListGoals()
	if err != nil {
		return nil, err
	}
	out := make([]Progress, 0, len(goals))
	for _, g := range goals {
		p, err := GoalProgress(src, g, now, firstDay)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ActivityTotal is an activity with its computed all-time duration.
type ActivityTotal struct {
	Activity     store.Activity
	TotalSeconds int64
}

// ActivityTotals returns every activity with its total, largest first.
func ActivityTotals(src Source) ([]ActivityTotal, error) {
	activities, err := src.ListActivities()
	if err != nil {
		return nil, err
	}
	out := make([]ActivityTotal, 0, len(activities))
	for _, a := range activities {
		secs, err := src.GetTotalDurationByActivity(a.ID)
		if err != nil {
			return nil, fmt.Errorf("activity totals: %w", err)
		}
		out = append(out, ActivityTotal{Activity: a, TotalSeconds: secs})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalSeconds > out[j].TotalSeconds
	})
	return out, nil
}

type ScheduleResult struct {
	ExpectedSeconds int64
	TrackedSeconds  int64
	WorkDays        int
	OffDays         int
	Percent         float64
}

// ScheduleProgress compares tracked time to the time the weekly schedule
// expects over the days in [from, to). Days covered by an off-time range
// expect nothing.
func ScheduleProgress(schedule []store.WorkSchedule, off []store.OffTime, trackedSecs int64, from, to time.Time) ScheduleResult {
	byDay := make(map[time.Weekday]store.WorkSchedule, len(schedule))
	for _, ws := range schedule {
		byDay[ws.Weekday] = ws
	}

	res := ScheduleResult{TrackedSeconds: trackedSecs}
	loc := from.Location()
	y, m, d := from.Date()
	for day := time.Date(y, m, d, 0, 0, 0, 0, loc); day.Before(to); day = day.AddDate(0, 0, 1) {
		ws, ok := byDay[day.Weekday()]
		if !ok || !ws.Enabled {
			continue
		}
		if isOff(day, off) {
			res.OffDays++
			continue
		}
		secs := windowSeconds(ws)
		if secs <= 0 {
			continue
		}
		res.WorkDays++
		res.ExpectedSeconds += secs
	}
	if res.ExpectedSeconds > 0 {
		res.Percent = float64(trackedSecs) / float64(res.ExpectedSeconds) * 100
	}
	return res
}

func isOff(day time.Time, off []store.OffTime) bool {
	key := day.Format("2006-01-02")
	for _, o := range off {
		if key >= o.From.Format("2006-01-02") && key <= o.To.Format("2006-01-02") {
			return true
		}
	}
	return false
}

func windowSeconds(ws store.WorkSchedule) int64 {
	start, err := time.Parse("15:04", ws.Start)
	if err != nil {
		return 0
	}
	end, err := time.Parse("15:04", ws.End)
	if err != nil {
		return 0
	}
	return int64(end.Sub(start) / time.Second)
}
