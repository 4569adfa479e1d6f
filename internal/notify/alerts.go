package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sadopc/worklog/internal/analytics"
	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
)

// SettingsSource supplies the current tracking settings.
type SettingsSource interface {
	GetSettings() (store.TrackingSettings, error)
}

// Source is everything the Alerter reads from the store.
type Source interface {
	analytics.Source
	SettingsSource
	GetActivity(id string) (*store.Activity, error)
}

// Alerter turns tracker events and goal progress into notifications. Each
// goal alerts at most once per period.
type Alerter struct {
	n   Notifier
	src Source

	mu    sync.Mutex
	fired map[string]bool
}

func NewAlerter(n Notifier, src Source) *Alerter {
	return &Alerter{n: n, src: src, fired: make(map[string]bool)}
}

func (a *Alerter) enabled() bool {
	ts, err := a.src.GetSettings()
	if err != nil {
		return false
	}
	return ts.NotificationsEnabled
}

// TrackerEvent notifies about a warning or a max-duration stop. entry is the
// closed entry for tracker.EventMaxReached.
func (a *Alerter) TrackerEvent(ctx context.Context, ev tracker.Event, remaining time.Duration, entry *store.TimeEntry) error {
	if ev == tracker.EventNone || !a.enabled() {
		return nil
	}
	switch ev {
	case tracker.EventWarning:
		return a.n.Notify(ctx, "Tracking limit approaching",
			fmt.Sprintf("%s left before the timer stops.", remaining.Round(time.Minute)))
	case tracker.EventMaxReached:
		body := "The timer was stopped at the maximum tracking duration."
		if entry != nil {
			body = fmt.Sprintf("%s %s was recorded for %s.", body,
				time.Duration(entry.Seconds())*time.Second, a.activityName(entry.ActivityID))
		}
		return a.n.Notify(ctx, "Tracking stopped", body)
	}
	return nil
}

// CheckGoals notifies for every goal that reached its threshold in the
// current period and has not been reported yet. It returns the number sent.
func (a *Alerter) CheckGoals(ctx context.Context, now time.Time) (int, error) {
	ts, err := a.src.GetSettings()
	if err != nil {
		return 0, fmt.Errorf("check goals: %w", err)
	}
	if !ts.NotificationsEnabled {
		return 0, nil
	}
	all, err := analytics.AllGoalProgress(a.src, now, ts.FirstDayOfWeek)
	if err != nil {
		return 0, fmt.Errorf("check goals: %w", err)
	}

	sent := 0
	for _, p := range all {
		if !p.ThresholdReached {
			continue
		}
		key := p.Goal.ID + "@" + p.PeriodStart.Format(time.RFC3339)
		a.mu.Lock()
		done := a.fired[key]
		a.fired[key] = true
		a.mu.Unlock()
		if done {
			continue
		}
		body := fmt.Sprintf("%s: %.0f%% of %g h %s goal.", a.activityName(p.Goal.ActivityID),
			p.Percent, p.Goal.TargetHours, p.Goal.Period)
		if err := a.n.Notify(ctx, "Goal progress", body); err != nil {
			// Retried on the next check.
			a.mu.Lock()
			delete(a.fired, key)
			a.mu.Unlock()
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (a *Alerter) activityName(id string) string {
	act, err := a.src.GetActivity(id)
	if err != nil || act == nil {
		return "unknown activity"
	}
	return act.Name
}
