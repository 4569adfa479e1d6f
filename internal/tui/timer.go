package tui

import (
	"time"

	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
)

// timerModel adapts the tracker for display. All state lives in the tracker,
// so copies of the model stay consistent.
type timerModel struct {
	store   *store.Store
	tracker *tracker.Tracker

	activityName string
}

func newTimerModel(s *store.Store, tr *tracker.Tracker) timerModel {
	t := timerModel{store: s, tracker: tr}
	if sess, ok := tr.Current(); ok {
		t.activityName = t.nameOf(sess.ActivityID)
	}
	return t
}

func (t timerModel) nameOf(activityID string) string {
	a, err := t.store.GetActivity(activityID)
	if err != nil {
		return "?"
	}
	return a.Name
}

func (t *timerModel) start(a store.Activity) error {
	if _, err := t.tracker.Start(a.ID); err != nil {
		return err
	}
	if sess, ok := t.tracker.Current(); ok && sess.ActivityID != a.ID {
		t.activityName = t.nameOf(sess.ActivityID)
		return nil
	}
	t.activityName = a.Name
	return nil
}

// stop ends the session with the manual rounding rule. It returns nil when
// nothing was running.
func (t *timerModel) stop() (*store.TimeEntry, error) {
	return t.tracker.Stop(tracker.ReasonManual)
}

// tick lets the tracker apply the warning and max-duration limits.
func (t *timerModel) tick(now time.Time) (tracker.Event, *store.TimeEntry, error) {
	return t.tracker.Tick(now)
}

func (t timerModel) running() bool {
	return t.tracker.State() == tracker.Tracking
}

// warning reports whether the session is inside the warning window.
func (t timerModel) warning() bool {
	if !t.running() {
		return false
	}
	l := t.tracker.Limits()
	return l.Max > 0 && t.tracker.Remaining() <= l.Warning
}

func (t timerModel) currentElapsed() time.Duration {
	return t.tracker.Elapsed()
}

func (t timerModel) remaining() time.Duration {
	return t.tracker.Remaining()
}
