package tui

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewActivities
	viewReports
	viewGoals
	viewSettings
)

var viewNames = []string{"Dashboard", "Activities", "Reports", "Goals", "Settings"}

// --- Messages ---

type timerStartedMsg struct {
	activity string
}

type timerStoppedMsg struct {
	entry *store.TimeEntry
}

// trackerEventMsg carries a threshold crossing reported by the tracker.
type trackerEventMsg struct {
	event     tracker.Event
	entry     *store.TimeEntry
	remaining time.Duration
}

// autoStoppedMsg reports entries closed by the watcher.
type autoStoppedMsg struct {
	count int
}

type settingsSavedMsg struct {
	settings store.TrackingSettings
}

type dataChangedMsg struct{}

type statusMsg struct {
	text    string
	isError bool
}

type clearStatusMsg struct {
	seq int
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

func errorStatus(format string, args ...any) statusMsg {
	return statusMsg{text: fmt.Sprintf(format, args...), isError: true}
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatSeconds(secs int64) string {
	return formatDuration(time.Duration(secs) * time.Second)
}

func formatHours(secs int64) string {
	h := float64(secs) / 3600
	return fmt.Sprintf("%.1fh", h)
}

var categoryPalette = []string{"#6C63FF", "#2EC4B6", "#FF6B6B", "#F39C12", "#2ECC71", "#E74C3C", "#9B59B6", "#3498DB"}

// categoryColor picks a stable palette color for a category name.
func categoryColor(name string) lipgloss.Color {
	h := fnv.New32a()
	h.Write([]byte(name))
	return lipgloss.Color(categoryPalette[h.Sum32()%uint32(len(categoryPalette))])
}

func categoryDot(name string) string {
	return lipgloss.NewStyle().Foreground(categoryColor(name)).Render("●")
}
