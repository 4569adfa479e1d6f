package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/worklog/internal/store"
)

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	settings   store.TrackingSettings
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	maxHours       *string
	warningMinutes *string
	weekStart      *string
	threshold      *string
	notifications  *bool
	darkMode       *bool
	stopOnClose    *bool
	stopOnBlur     *bool
}

func newSettingsModel(s *store.Store) settingsModel {
	mh, wm, ws, th := "", "", "", ""
	var n, dm, sc, sb bool
	return settingsModel{
		store:          s,
		settings:       store.DefaultSettings(),
		maxHours:       &mh,
		warningMinutes: &wm,
		weekStart:      &ws,
		threshold:      &th,
		notifications:  &n,
		darkMode:       &dm,
		stopOnClose:    &sc,
		stopOnBlur:     &sb,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings store.TrackingSettings
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		ts, err := s.store.GetSettings()
		if err != nil {
			return errorStatus("Load settings: %v", err)
		}
		return settingsDataMsg{settings: ts}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Edit):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	ts := s.settings
	*s.maxHours = strconv.FormatFloat(ts.MaxTrackingDuration.Hours(), 'f', -1, 64)
	*s.warningMinutes = strconv.Itoa(int(ts.WarningThreshold.Minutes()))
	*s.weekStart = strings.ToLower(ts.FirstDayOfWeek.String())
	*s.threshold = strconv.Itoa(ts.DefaultGoalNotificationThreshold)
	*s.notifications = ts.NotificationsEnabled
	*s.darkMode = ts.DarkMode
	*s.stopOnClose = ts.StopOnClose
	*s.stopOnBlur = ts.StopOnTabSwitch

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Maximum tracking duration (hours)").Value(s.maxHours).Validate(positiveFloat),
			huh.NewInput().Title("Warn before the limit (minutes)").Value(s.warningMinutes).Validate(nonNegativeInt),
			huh.NewConfirm().Title("Stop tracking when worklog exits").Value(s.stopOnClose),
			huh.NewConfirm().Title("Stop tracking when the terminal loses focus").Value(s.stopOnBlur),
		).Title("Tracking"),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Week starts on").
				Options(
					huh.NewOption("Monday", "monday"),
					huh.NewOption("Sunday", "sunday"),
				).Value(s.weekStart),
			huh.NewInput().Title("Default goal notification (%)").Value(s.threshold).Validate(percent),
			huh.NewConfirm().Title("Notifications").Value(s.notifications),
			huh.NewConfirm().Title("Dark mode").Value(s.darkMode),
		).Title("General"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func nonNegativeInt(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number of minutes")
	}
	return nil
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		ts := s.formSettings()
		if err := s.store.SaveSettings(ts); err != nil {
			return s, func() tea.Msg { return errorStatus("Save settings: %v", err) }
		}
		s.settings = ts
		return s, func() tea.Msg { return settingsSavedMsg{settings: ts} }
	}

	return s, cmd
}

// formSettings converts the form fields, keeping the current value for any
// field that does not parse.
func (s settingsModel) formSettings() store.TrackingSettings {
	ts := s.settings
	if h, err := strconv.ParseFloat(strings.TrimSpace(*s.maxHours), 64); err == nil && h > 0 {
		ts.MaxTrackingDuration = time.Duration(h * float64(time.Hour))
	}
	if m, err := strconv.Atoi(strings.TrimSpace(*s.warningMinutes)); err == nil && m >= 0 {
		ts.WarningThreshold = time.Duration(m) * time.Minute
	}
	ts.FirstDayOfWeek = time.Monday
	if *s.weekStart == "sunday" {
		ts.FirstDayOfWeek = time.Sunday
	}
	if p, err := strconv.Atoi(strings.TrimSpace(*s.threshold)); err == nil {
		ts.DefaultGoalNotificationThreshold = p
	}
	ts.NotificationsEnabled = *s.notifications
	ts.DarkMode = *s.darkMode
	ts.StopOnClose = *s.stopOnClose
	ts.StopOnTabSwitch = *s.stopOnBlur
	return ts
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	ts := s.settings
	rows := []string{title, ""}
	for _, kv := range [][2]string{
		{"Max tracking duration", ts.MaxTrackingDuration.String()},
		{"Warning threshold", ts.WarningThreshold.String()},
		{"Week starts on", ts.FirstDayOfWeek.String()},
		{"Goal notification", fmt.Sprintf("%d%%", ts.DefaultGoalNotificationThreshold)},
		{"Notifications", onOff(ts.NotificationsEnabled)},
		{"Dark mode", onOff(ts.DarkMode)},
		{"Stop on exit", onOff(ts.StopOnClose)},
		{"Stop on focus loss", onOff(ts.StopOnTabSwitch)},
	} {
		label := lipgloss.NewStyle().Width(24).Render(kv[0])
		rows = append(rows, fmt.Sprintf("  %s %s", label, highlightStyle.Render(kv[1])))
	}
	rows = append(rows, "", mutedStyle.Render("Press enter to edit settings"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
