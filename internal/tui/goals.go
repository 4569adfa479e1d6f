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

	"github.com/sadopc/worklog/internal/analytics"
	"github.com/sadopc/worklog/internal/store"
)

var goalPeriods = []store.Period{store.PeriodDaily, store.PeriodWeekly, store.PeriodMonthly, store.PeriodYearly}

type goalsModel struct {
	store  *store.Store
	width  int
	height int

	progress   []analytics.Progress
	activities []store.Activity
	names      map[string]string
	cursor     int

	formActive bool
	form       *huh.Form

	formActivity  *string
	formHours     *string
	formPeriod    *string
	formThreshold *string
}

func newGoalsModel(s *store.Store) goalsModel {
	act, hours, period, threshold := "", "", string(store.PeriodWeekly), ""
	return goalsModel{
		store:         s,
		names:         map[string]string{},
		formActivity:  &act,
		formHours:     &hours,
		formPeriod:    &period,
		formThreshold: &threshold,
	}
}

func (g *goalsModel) setSize(w, h int) {
	g.width = w
	g.height = h
}

type goalsDataMsg struct {
	progress   []analytics.Progress
	activities []store.Activity
}

func (g goalsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		ts, err := g.store.GetSettings()
		if err != nil {
			return errorStatus("Load settings: %v", err)
		}
		progress, err := analytics.AllGoalProgress(g.store, time.Now(), ts.FirstDayOfWeek)
		if err != nil {
			return errorStatus("Load goals: %v", err)
		}
		activities, err := g.store.ListActivities()
		if err != nil {
			return errorStatus("Load activities: %v", err)
		}
		return goalsDataMsg{progress: progress, activities: activities}
	}
}

func (g goalsModel) update(msg tea.Msg) (goalsModel, tea.Cmd) {
	if g.formActive && g.form != nil {
		return g.updateForm(msg)
	}

	switch msg := msg.(type) {
	case goalsDataMsg:
		g.progress = msg.progress
		g.activities = msg.activities
		g.names = make(map[string]string, len(msg.activities))
		for _, a := range msg.activities {
			g.names[a.ID] = a.Name
		}
		if g.cursor >= len(g.progress) {
			g.cursor = max(0, len(g.progress)-1)
		}
		return g, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if g.cursor > 0 {
				g.cursor--
			}
		case key.Matches(msg, keys.Down):
			if g.cursor < len(g.progress)-1 {
				g.cursor++
			}
		case key.Matches(msg, keys.New):
			if len(g.activities) == 0 {
				return g, func() tea.Msg {
					return statusMsg{text: "Create an activity before adding goals.", isError: true}
				}
			}
			return g.showForm()
		case key.Matches(msg, keys.Delete):
			if len(g.progress) > 0 {
				id := g.progress[g.cursor].Goal.ID
				if err := g.store.DeleteGoal(id); err != nil {
					return g, func() tea.Msg { return errorStatus("Delete goal: %v", err) }
				}
				return g, g.refresh()
			}
		}
	}
	return g, nil
}

func (g goalsModel) showForm() (goalsModel, tea.Cmd) {
	ts, err := g.store.GetSettings()
	if err != nil {
		ts = store.DefaultSettings()
	}
	*g.formActivity = g.activities[0].ID
	*g.formHours = ""
	*g.formPeriod = string(store.PeriodWeekly)
	*g.formThreshold = strconv.Itoa(ts.DefaultGoalNotificationThreshold)

	actOptions := make([]huh.Option[string], len(g.activities))
	for i, a := range g.activities {
		actOptions[i] = huh.NewOption(a.Category+" / "+a.Name, a.ID)
	}
	periodOptions := make([]huh.Option[string], len(goalPeriods))
	for i, p := range goalPeriods {
		periodOptions[i] = huh.NewOption(string(p), string(p))
	}

	g.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Activity").Options(actOptions...).Value(g.formActivity),
			huh.NewInput().Title("Target (hours)").Value(g.formHours).Validate(positiveFloat),
			huh.NewSelect[string]().Title("Period").Options(periodOptions...).Value(g.formPeriod),
			huh.NewInput().Title("Notify at (%)").Value(g.formThreshold).Validate(percent),
		),
	).WithShowHelp(true).WithShowErrors(true)

	g.formActive = true
	return g, g.form.Init()
}

func positiveFloat(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func percent(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 || v > 100 {
		return fmt.Errorf("enter a whole number from 1 to 100")
	}
	return nil
}

func (g goalsModel) updateForm(msg tea.Msg) (goalsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			g.formActive = false
			g.form = nil
			return g, nil
		}
	}

	form, cmd := g.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		g.form = f
	}

	if g.form.State == huh.StateCompleted {
		g.formActive = false
		if err := g.save(); err != nil {
			return g, func() tea.Msg { return errorStatus("Save goal: %v", err) }
		}
		return g, g.refresh()
	}
	return g, cmd
}

func (g goalsModel) save() error {
	hours, err := strconv.ParseFloat(strings.TrimSpace(*g.formHours), 64)
	if err != nil {
		return err
	}
	threshold, err := strconv.Atoi(strings.TrimSpace(*g.formThreshold))
	if err != nil {
		return err
	}
	_, err = g.store.AddGoal(store.Goal{
		ActivityID:            *g.formActivity,
		TargetHours:           hours,
		Period:                store.Period(*g.formPeriod),
		NotificationThreshold: threshold,
	})
	return err
}

func (g goalsModel) view() string {
	w := g.width - 4

	if g.formActive && g.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("New Goal"), "", g.form.View()),
		)
	}

	title := titleStyle.Render("Goals")
	if len(g.progress) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No goals yet. Press n to add one."),
		))
	}

	barWidth := max(10, min(40, w-60))
	rows := []string{title, ""}
	for i, p := range g.progress {
		cursor := "  "
		style := normalItemStyle
		if i == g.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		name := g.names[p.Goal.ActivityID]
		label := style.Render(fmt.Sprintf("%s%-18s %-8s", cursor, name, p.Goal.Period))
		stats := fmt.Sprintf(" %5.1f / %-5g h %3.0f%%",
			float64(p.TrackedSeconds)/3600, p.Goal.TargetHours, p.Percent)
		rows = append(rows, label+" "+renderBar(p.Percent, barWidth, p.ThresholdReached)+stats)
	}
	rows = append(rows, "", mutedStyle.Render("  n: new goal  d: delete"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

// renderBar draws a filled bar for pct, capped at 100.
func renderBar(pct float64, width int, reached bool) string {
	filled := int(pct / 100 * float64(width))
	filled = max(0, min(width, filled))
	style := highlightStyle
	if reached {
		style = successStyle
	}
	return style.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", width-filled))
}
