// Package tracker holds the single in-progress timer and persists it as an
// open time entry.
package tracker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sadopc/worklog/internal/store"
)

// Quantum is the unit every stored duration is rounded to.
const Quantum = 900

// ErrNoOpenEntry is returned by Stop when the session's entry was already
// closed or deleted elsewhere. The tracker is idle afterwards.
var ErrNoOpenEntry = errors.New("no open entry for activity")

type State int

const (
	Idle State = iota
	Tracking
)

func (s State) String() string {
	if s == Tracking {
		return "tracking"
	}
	return "idle"
}

// Reason says why a session ended. It selects the rounding rule.
type Reason int

const (
	ReasonManual Reason = iota
	ReasonMaxDuration
	ReasonAutoStop
)

func (r Reason) String() string {
	switch r {
	case ReasonMaxDuration:
		return "max-duration"
	case ReasonAutoStop:
		return "auto-stop"
	}
	return "manual"
}

// Event is reported by Tick when a threshold is crossed.
type Event int

const (
	EventNone Event = iota
	EventWarning
	EventMaxReached
)

// EntryStore is the subset of the store the tracker writes through.
type EntryStore interface {
	AddTimeEntry(e store.TimeEntry) (*store.TimeEntry, error)
	LatestOpenEntry(activityID string) (*store.TimeEntry, error)
	CloseTimeEntry(id string, end time.Time, durationSecs int64) error
	GetOpenTimeEntries() ([]store.TimeEntry, error)
}

// Limits bounds a session.
type Limits struct {
	Max     time.Duration
	Warning time.Duration
}

// LimitsFrom extracts the session limits from the tracking settings.
func LimitsFrom(ts store.TrackingSettings) Limits {
	return Limits{Max: ts.MaxTrackingDuration, Warning: ts.WarningThreshold}
}

// Session describes the running timer.
type Session struct {
	ActivityID string
	EntryID    string
	StartTime  time.Time
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker is safe for concurrent use. The 1-second tick, an explicit stop and
// the auto-stop watcher all go through the same mutex, so an entry is closed
// at most once by this process.
type Tracker struct {
	mu      sync.Mutex
	store   EntryStore
	limits  Limits
	now     func() time.Time
	state   State
	session Session
	warned  bool
}

func New(s EntryStore, limits Limits, opts ...Option) *Tracker {
	t := &Tracker{
		store:  s,
		limits: limits,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetLimits applies new limits to the running and future sessions.
func (t *Tracker) SetLimits(l Limits) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits = l
}

func (t *Tracker) Limits() Limits {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limits
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Current returns the running session, if any.
func (t *Tracker) Current() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session, t.state == Tracking
}

// Elapsed returns the unrounded running time, or zero when idle.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed(t.now())
}

func (t *Tracker) elapsed(now time.Time) time.Duration {
	if t.state != Tracking {
		return 0
	}
	d := now.Sub(t.session.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// Start begins tracking activityID. Calling Start while already tracking
// changes nothing and returns the running session.
func (t *Tracker) Start(activityID string) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Tracking {
		return t.session, nil
	}
	now := t.now()
	entry, err := t.store.AddTimeEntry(store.TimeEntry{ActivityID: activityID, StartTime: now})
	if err != nil {
		return Session{}, fmt.Errorf("start tracking: %w", err)
	}
	t.state = Tracking
	t.session = Session{ActivityID: activityID, EntryID: entry.ID, StartTime: now}
	t.warned = false
	log.Debug("tracking started", "activity", activityID, "entry", entry.ID)
	return t.session, nil
}

// Stop ends the running session. It returns nil, nil when idle. The
// duration is quantized by Quantize(reason, ...). When the activity has no
// open entry left the tracker still goes idle and ErrNoOpenEntry is returned.
func (t *Tracker) Stop(reason Reason) (*store.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop(reason, t.now())
}

func (t *Tracker) stop(reason Reason, now time.Time) (*store.TimeEntry, error) {
	if t.state != Tracking {
		return nil, nil
	}
	session := t.session
	secs := Quantize(reason, int64(t.elapsed(now)/time.Second))

	t.state = Idle
	t.session = Session{}
	t.warned = false

	entry, err := t.store.LatestOpenEntry(session.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("stop tracking: %w", err)
	}
	if entry == nil {
		log.Warn("stop found no open entry", "activity", session.ActivityID, "reason", reason)
		return nil, ErrNoOpenEntry
	}
	if err := t.store.CloseTimeEntry(entry.ID, now, secs); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoOpenEntry
		}
		return nil, fmt.Errorf("stop tracking: %w", err)
	}
	end := now
	entry.EndTime = &end
	entry.Duration = &secs
	log.Debug("tracking stopped", "activity", session.ActivityID, "entry", entry.ID, "reason", reason, "seconds", secs)
	return entry, nil
}

// Tick re-evaluates the running session at now. EventWarning is reported once
// per session when the remaining time falls within the warning window.
// EventMaxReached is reported after the session was stopped at the cutoff.
func (t *Tracker) Tick(now time.Time) (Event, *store.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Tracking || t.limits.Max <= 0 {
		return EventNone, nil, nil
	}
	elapsed := t.elapsed(now)
	if elapsed >= t.limits.Max {
		entry, err := t.stop(ReasonMaxDuration, now)
		return EventMaxReached, entry, err
	}
	if !t.warned && t.limits.Max-elapsed <= t.limits.Warning {
		t.warned = true
		return EventWarning, nil, nil
	}
	return EventNone, nil, nil
}

// Remaining returns the time left before the max-duration cutoff.
func (t *Tracker) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Tracking {
		return 0
	}
	return t.limits.Max - t.elapsed(t.now())
}

// Resume adopts the newest open entry in the store as the running session.
// It is meant for startup and returns nil when nothing is open.
func (t *Tracker) Resume() (*store.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Tracking {
		return nil, nil
	}
	open, err := t.store.GetOpenTimeEntries()
	if err != nil {
		return nil, fmt.Errorf("resume tracking: %w", err)
	}
	if len(open) == 0 {
		return nil, nil
	}
	e := open[0]
	t.state = Tracking
	t.session = Session{ActivityID: e.ActivityID, EntryID: e.ID, StartTime: e.StartTime}
	t.warned = false
	log.Info("resumed open entry", "activity", e.ActivityID, "entry", e.ID, "started", e.StartTime)
	return &e, nil
}

// Quantize applies the rounding rule of reason to secs.
func Quantize(reason Reason, secs int64) int64 {
	if reason == ReasonAutoStop {
		return Ceil900(secs)
	}
	return Round900(secs)
}

// Round900 rounds secs to the nearest multiple of 900; halves round up.
func Round900(secs int64) int64 {
	if secs <= 0 {
		return 0
	}
	return (secs + Quantum/2) / Quantum * Quantum
}

// Ceil900 rounds secs up to the next multiple of 900.
func Ceil900(secs int64) int64 {
	if secs <= 0 {
		return 0
	}
	return (secs + Quantum - 1) / Quantum * Quantum
}
