package store

import "time"

type Category struct {
	ID        string
	Name      string
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Activity struct {
	ID             string
	Name           string
	Category       string // category name, not id
	Description    string
	ExternalSystem *string
	Order          int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TimeEntry is one tracked interval. EndTime and Duration stay nil while the
// entry is open.
type TimeEntry struct {
	ID         string
	ActivityID string
	StartTime  time.Time
	EndTime    *time.Time
	Duration   *int64 // seconds
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Open reports whether tracking is still in progress for the entry.
func (e TimeEntry) Open() bool { return e.EndTime == nil }

// Seconds returns the stored duration, treating an open entry as zero.
func (e TimeEntry) Seconds() int64 {
	if e.Duration == nil {
		return 0
	}
	return *e.Duration
}

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// Valid reports whether p is one of the known goal periods.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

type Goal struct {
	ID                    string
	ActivityID            string
	TargetHours           float64
	Period                Period
	NotificationThreshold int // percent
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type TrackingSettings struct {
	MaxTrackingDuration              time.Duration
	WarningThreshold                 time.Duration
	FirstDayOfWeek                   time.Weekday // time.Monday or time.Sunday
	DefaultGoalNotificationThreshold int
	NotificationsEnabled             bool
	DarkMode                         bool
	StopOnClose                      bool
	StopOnTabSwitch                  bool
}

// DefaultSettings returns the values a fresh database starts with.
func DefaultSettings() TrackingSettings {
	return TrackingSettings{
		MaxTrackingDuration:              8 * time.Hour,
		WarningThreshold:                 15 * time.Minute,
		FirstDayOfWeek:                   time.Monday,
		DefaultGoalNotificationThreshold: 80,
		NotificationsEnabled:             true,
		DarkMode:                         false,
		StopOnClose:                      true,
		StopOnTabSwitch:                  false,
	}
}

type Setting struct {
	Key   string
	Value string
}

// WorkSchedule is the work window for one weekday. Start and End use "15:04".
type WorkSchedule struct {
	Weekday time.Weekday
	Start   string
	End     string
	Enabled bool
}

type OffTime struct {
	ID        string
	From      time.Time // date, local midnight
	To        time.Time // inclusive
	Kind      string    // vacation, sick, holiday, other
	Note      string
	CreatedAt time.Time
}

// EntryFilter is used to filter time entries in queries.
type EntryFilter struct {
	ActivityID *string
	From       *time.Time
	To         *time.Time
	OnlyClosed bool
	Limit      int
}

// DailySummary represents aggregated time per activity per day.
type DailySummary struct {
	Date         string
	ActivityID   string
	ActivityName string
	Category     string
	TotalSeconds int64
	EntryCount   int
}
