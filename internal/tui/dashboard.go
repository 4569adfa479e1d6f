package tui

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
)

type dashboardModel struct {
	store  *store.Store
	timer  timerModel
	width  int
	height int

	todayTotal    int64
	todaySummary  []store.DailySummary
	recentEntries []store.TimeEntry
	activities    []store.Activity
	names         map[string]string // activity id -> name

	// Activity picker state
	picking      bool
	pickerCursor int
}

func newDashboardModel(s *store.Store, tr *tracker.Tracker) dashboardModel {
	return dashboardModel{
		store: s,
		timer: newTimerModel(s, tr),
		names: map[string]string{},
	}
}

func (d dashboardModel) Init() tea.Cmd {
	return d.loadData()
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) isRunning() bool { return d.timer.running() }
func (d dashboardModel) elapsed() time.Duration {
	return d.timer.currentElapsed()
}

type dashboardDataMsg struct {
	todayTotal    int64
	todaySummary  []store.DailySummary
	recentEntries []store.TimeEntry
	activities    []store.Activity
}

func (d dashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		now := time.Now()
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		dayEnd := dayStart.AddDate(0, 0, 1)

		total, err := d.store.GetTotalBetween(dayStart, dayEnd)
		if err != nil {
			return errorStatus("Load today: %v", err)
		}
		summary, err := d.store.GetDailySummary(dayStart, dayEnd)
		if err != nil {
			return errorStatus("Load summary: %v", err)
		}
		entries, err := d.store.ListTimeEntries(store.EntryFilter{Limit: 5})
		if err != nil {
			return errorStatus("Load entries: %v", err)
		}
		activities, err := d.store.ListActivities()
		if err != nil {
			return errorStatus("Load activities: %v", err)
		}

		return dashboardDataMsg{
			todayTotal:    total,
			todaySummary:  mergeByActivity(summary),
			recentEntries: entries,
			activities:    activities,
		}
	}
}

// mergeByActivity folds rows of one local day that the store split across
// two UTC dates.
func mergeByActivity(rows []store.DailySummary) []store.DailySummary {
	idx := map[string]int{}
	var out []store.DailySummary
	for _, r := range rows {
		if i, ok := idx[r.ActivityID]; ok {
			out[i].TotalSeconds += r.TotalSeconds
			out[i].EntryCount += r.EntryCount
			continue
		}
		idx[r.ActivityID] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalSeconds > out[j].TotalSeconds })
	return out
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.todayTotal = msg.todayTotal
		d.todaySummary = msg.todaySummary
		d.recentEntries = msg.recentEntries
		d.activities = msg.activities
		d.names = make(map[string]string, len(msg.activities))
		for _, a := range msg.activities {
			d.names[a.ID] = a.Name
		}
		if d.pickerCursor >= len(d.activities) {
			d.pickerCursor = 0
		}
		return d, nil

	case tickMsg:
		ev, entry, err := d.timer.tick(time.Time(msg))
		if err != nil {
			return d, func() tea.Msg { return errorStatus("Tracking error: %v", err) }
		}
		if ev == tracker.EventNone {
			return d, nil
		}
		remaining := d.timer.remaining()
		return d, func() tea.Msg {
			return trackerEventMsg{event: ev, entry: entry, remaining: remaining}
		}

	case tea.KeyMsg:
		if d.picking {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			if d.timer.running() {
				return d, nil
			}
			if len(d.activities) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No activities yet. Press 2 to go to Activities and create one.", isError: true}
				}
			}
			if len(d.activities) == 1 {
				return d.startTimer(d.activities[0])
			}
			d.picking = true
			return d, nil

		case key.Matches(msg, keys.Stop):
			return d.stopTimer()
		}
	}
	return d, nil
}

func (d dashboardModel) updatePicker(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if d.pickerCursor > 0 {
			d.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if d.pickerCursor < len(d.activities)-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		d.picking = false
		if d.pickerCursor < len(d.activities) {
			return d.startTimer(d.activities[d.pickerCursor])
		}
	case key.Matches(msg, keys.Back):
		d.picking = false
	}
	return d, nil
}

func (d dashboardModel) startTimer(a store.Activity) (dashboardModel, tea.Cmd) {
	if err := d.timer.start(a); err != nil {
		return d, func() tea.Msg { return errorStatus("Error: %v", err) }
	}
	name := d.timer.activityName
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return timerStartedMsg{activity: name} },
	)
}

func (d dashboardModel) stopTimer() (dashboardModel, tea.Cmd) {
	entry, err := d.timer.stop()
	if errors.Is(err, tracker.ErrNoOpenEntry) {
		return d, tea.Batch(
			d.loadData(),
			func() tea.Msg { return statusMsg{text: "Entry was already closed elsewhere"} },
		)
	}
	if err != nil {
		return d, func() tea.Msg { return errorStatus("Error: %v", err) }
	}
	if entry == nil {
		return d, nil
	}
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return timerStoppedMsg{entry: entry} },
	)
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	timerPanel := d.renderTimerPanel(contentWidth)
	summaryPanel := d.renderSummaryPanel(contentWidth)

	var bottomPanel string
	if d.picking {
		bottomPanel = d.renderActivityPicker(contentWidth)
	} else {
		bottomPanel = d.renderRecentPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, timerPanel, summaryPanel, bottomPanel)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	if d.timer.running() {
		timeStr := formatDuration(d.timer.currentElapsed())

		var timeDisplay, indicator string
		if d.timer.warning() {
			timeDisplay = timerWarningStyle.Width(w - 6).Render(timeStr)
			indicator = warningStyle.Render(fmt.Sprintf("●  STOPS IN %s", formatDuration(d.timer.remaining())))
		} else {
			timeDisplay = timerRunningStyle.Width(w - 6).Render(timeStr)
			indicator = successStyle.Render("●  RUNNING")
		}

		content := lipgloss.JoinVertical(lipgloss.Center,
			timeDisplay,
			indicator,
			highlightStyle.Render(d.timer.activityName),
		)
		return activePanelStyle.Width(w).Render(content)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		timerStyle.Width(w-6).Render("00:00:00"),
		mutedStyle.Render("■  STOPPED"),
		mutedStyle.Render("Press s to start tracking"),
	)
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderSummaryPanel(w int) string {
	title := titleStyle.Render("Today")
	total := highlightStyle.Render(formatSeconds(d.todayTotal))
	header := fmt.Sprintf("%s  %s", title, total)

	if len(d.todaySummary) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			header,
			mutedStyle.Render("No entries today"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, header)
	for _, s := range d.todaySummary {
		row := fmt.Sprintf("  %s %-20s %s  (%d entries)",
			categoryDot(s.Category),
			s.ActivityName,
			formatSeconds(s.TotalSeconds),
			s.EntryCount,
		)
		rows = append(rows, row)
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Entries")
	if len(d.recentEntries) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No entries yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	for _, e := range d.recentEntries {
		name, ok := d.names[e.ActivityID]
		if !ok {
			name = "?"
		}
		dur := formatSeconds(e.Seconds())
		status := "✓"
		if e.Open() {
			status = "●"
			dur = "running"
		}
		row := fmt.Sprintf("  %s %s  %-16s %s", status, e.StartTime.Local().Format("Jan 02 15:04"), name, dur)
		rows = append(rows, row)
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderActivityPicker(w int) string {
	title := titleStyle.Render("Select Activity")

	var rows []string
	rows = append(rows, title)
	for i, a := range d.activities {
		cursor := "  "
		style := normalItemStyle
		if i == d.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor)+categoryDot(a.Category)+" "+
			style.Render(a.Name)+mutedStyle.Render("  "+a.Category))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: select  esc: cancel"))

	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
