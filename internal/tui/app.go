package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/sadopc/worklog/internal/autostop"
	"github.com/sadopc/worklog/internal/notify"
	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
	"github.com/sadopc/worklog/internal/transfer"
)

// goalCheckEvery is the number of ticks between goal threshold checks.
const goalCheckEvery = 60

// App is the root Bubble Tea model.
type App struct {
	store   *store.Store
	tracker *tracker.Tracker
	watcher *autostop.Watcher
	alerter *notify.Alerter
	width   int
	height  int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int
	ticks         int

	dashboard  dashboardModel
	activities activitiesModel
	reports    reportsModel
	goals      goalsModel
	settings   settingsModel

	help        help.Model
	status      string
	statusError bool
	statusSeq   int
}

func NewApp(s *store.Store, tr *tracker.Tracker, w *autostop.Watcher, al *notify.Alerter) App {
	h := help.New()
	h.ShowAll = false

	if ts, err := s.GetSettings(); err == nil {
		applyTheme(ts.DarkMode)
	}

	return App{
		store:      s,
		tracker:    tr,
		watcher:    w,
		alerter:    al,
		activeView: viewDashboard,
		dashboard:  newDashboardModel(s, tr),
		activities: newActivitiesModel(s),
		reports:    newReportsModel(s),
		goals:      newGoalsModel(s),
		settings:   newSettingsModel(s),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.dashboard.Init(),
		a.settings.refresh(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.dashboard.setSize(a.width, contentHeight)
		a.activities.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.goals.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.BlurMsg:
		return a, a.onBlur()

	case tea.FocusMsg:
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			a.onClose()
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewDashboard
			return a, a.dashboard.loadData()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewActivities
			return a, a.activities.refresh()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewReports
			return a, a.reports.refresh()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewGoals
			return a, a.goals.refresh()
		case key.Matches(msg, keys.Tab5):
			a.activeView = viewSettings
			return a, a.settings.refresh()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		cmds = append(cmds, tickCmd())
		// Ticks always reach the dashboard timer so limits apply in every view.
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		a.ticks++
		if a.ticks%goalCheckEvery == 0 {
			cmds = append(cmds, a.checkGoals())
		}
		return a, tea.Batch(cmds...)

	case trackerEventMsg:
		switch msg.event {
		case tracker.EventWarning:
			a = a.setStatus(fmt.Sprintf("Tracking stops in %s", msg.remaining.Round(time.Minute)), false)
		case tracker.EventMaxReached:
			a = a.setStatus("Maximum tracking duration reached, timer stopped", true)
			cmds = append(cmds, a.dashboard.loadData(), a.checkGoals())
		}
		cmds = append(cmds, a.notifyEvent(msg), a.clearStatusLater())
		return a, tea.Batch(cmds...)

	case autoStoppedMsg:
		if msg.count == 0 {
			return a, nil
		}
		a = a.setStatus("Tracking stopped: terminal lost focus", false)
		return a, tea.Batch(a.dashboard.loadData(), a.clearStatusLater())

	case settingsSavedMsg:
		a.tracker.SetLimits(tracker.LimitsFrom(msg.settings))
		applyTheme(msg.settings.DarkMode)
		a = a.setStatus("Settings saved", false)
		return a, a.clearStatusLater()

	case dataChangedMsg:
		return a, a.dashboard.loadData()

	case statusMsg:
		a = a.setStatus(msg.text, msg.isError)
		return a, a.clearStatusLater()

	case clearStatusMsg:
		if msg.seq == a.statusSeq {
			a.status = ""
			a.statusError = false
		}
		return a, nil

	case timerStoppedMsg:
		a = a.setStatus(fmt.Sprintf("Timer stopped, %s recorded", formatSeconds(msg.entry.Seconds())), false)
		return a, tea.Batch(a.checkGoals(), a.clearStatusLater())

	case timerStartedMsg:
		a = a.setStatus("Tracking "+msg.activity, false)
		return a, a.clearStatusLater()

	case exportDoneMsg:
		a = a.setStatus("Exported to "+msg.path, false)
		a.exportPicking = false
		return a, a.clearStatusLater()
	}

	return a.updateActiveView(msg)
}

func (a App) setStatus(text string, isError bool) App {
	a.status = text
	a.statusError = isError
	a.statusSeq++
	return a
}

// clearStatusLater hides the current status after a few seconds unless a
// newer one replaced it.
func (a App) clearStatusLater() tea.Cmd {
	seq := a.statusSeq
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

func (a App) onBlur() tea.Cmd {
	if a.watcher == nil {
		return nil
	}
	w := a.watcher
	return func() tea.Msg {
		n, err := w.OnBlur()
		if err != nil {
			return errorStatus("Auto-stop: %v", err)
		}
		return autoStoppedMsg{count: n}
	}
}

// onClose runs synchronously so the entry is closed before the program exits.
func (a App) onClose() {
	if a.watcher == nil {
		return
	}
	if _, err := a.watcher.OnClose(); err != nil {
		log.Error("auto-stop on quit", "err", err)
	}
}

func (a App) notifyEvent(msg trackerEventMsg) tea.Cmd {
	if a.alerter == nil {
		return nil
	}
	al := a.alerter
	return func() tea.Msg {
		if err := al.TrackerEvent(context.Background(), msg.event, msg.remaining, msg.entry); err != nil {
			return errorStatus("Notification failed: %v", err)
		}
		return nil
	}
}

func (a App) checkGoals() tea.Cmd {
	if a.alerter == nil {
		return nil
	}
	al := a.alerter
	return func() tea.Msg {
		n, err := al.CheckGoals(context.Background(), time.Now())
		if err != nil {
			return errorStatus("Goal check: %v", err)
		}
		if n > 0 {
			return statusMsg{text: fmt.Sprintf("%d goal(s) reached their threshold", n)}
		}
		return nil
	}
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewActivities:
		a.activities, cmd = a.activities.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewGoals:
		a.goals, cmd = a.goals.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewActivities:
		return a.activities.formActive
	case viewGoals:
		return a.goals.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.loadData()
	case viewActivities:
		return a.activities.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewGoals:
		return a.goals.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view()
	case viewActivities:
		content = a.activities.view()
	case viewReports:
		content = a.reports.view()
	case viewGoals:
		content = a.goals.view()
	case viewSettings:
		content = a.settings.view()
	}

	contentHeight := max(1, a.height-lipgloss.Height(header)-lipgloss.Height(footer))

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("worklog")
	gap := max(1, a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := statusBarStyle
		if a.statusError {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	timerInfo := ""
	if a.dashboard.isRunning() {
		elapsed := formatDuration(a.dashboard.elapsed())
		timerInfo = successStyle.Render(" ● " + elapsed)
		if a.dashboard.timer.warning() {
			timerInfo = warningStyle.Render(" ● " + elapsed)
		}
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := max(1, a.width-lipgloss.Width(left)-lipgloss.Width(right)-2)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var exportFormats = []string{"CSV report", "JSON backup"}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export"), ""}
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: export  esc: cancel"))

	return activePanelStyle.Width(a.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		home, _ := os.UserHomeDir()
		return a, a.doExport(a.exportCursor, home)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int, dir string) tea.Cmd {
	s := a.store
	return func() tea.Msg {
		dateStr := time.Now().Format("2006-01-02")

		if format == 0 {
			entries, err := s.ListTimeEntries(store.EntryFilter{})
			if err != nil {
				return errorStatus("Export error: %v", err)
			}
			activities, err := s.ListActivities()
			if err != nil {
				return errorStatus("Export error: %v", err)
			}
			path := filepath.Join(dir, fmt.Sprintf("worklog-export-%s.csv", dateStr))
			if err := transfer.ToCSV(entries, transfer.ActivityIndex(activities), path); err != nil {
				return errorStatus("CSV error: %v", err)
			}
			return exportDoneMsg{path: path}
		}

		doc, err := transfer.Export(s)
		if err != nil {
			return errorStatus("Export error: %v", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("worklog-export-%s.json", dateStr))
		if err := transfer.WriteJSON(doc, path); err != nil {
			return errorStatus("JSON error: %v", err)
		}
		return exportDoneMsg{path: path}
	}
}
