package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/worklog/internal/analytics"
	"github.com/sadopc/worklog/internal/store"
)

type reportMode int

const (
	reportDaily reportMode = iota
	reportWeekly
)

type reportsModel struct {
	store  *store.Store
	width  int
	height int

	mode      reportMode
	summaries []store.DailySummary
	totals    []analytics.ActivityTotal
	firstDay  time.Weekday
	offset    int // weeks or 7-day blocks back from today (0 = current)

	chart barchart.Model
}

func newReportsModel(s *store.Store) reportsModel {
	return reportsModel{
		store:    s,
		firstDay: time.Monday,
		chart:    barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	summaries []store.DailySummary
	totals    []analytics.ActivityTotal
	firstDay  time.Weekday
}

func (r reportsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		ts, err := r.store.GetSettings()
		if err != nil {
			return errorStatus("Load settings: %v", err)
		}
		r.firstDay = ts.FirstDayOfWeek
		from, to := r.dateRange()
		summaries, err := r.store.GetDailySummary(from, to)
		if err != nil {
			return errorStatus("Load report: %v", err)
		}
		totals, err := analytics.ActivityTotals(r.store)
		if err != nil {
			return errorStatus("Load totals: %v", err)
		}
		return reportsDataMsg{summaries: summaries, totals: totals, firstDay: ts.FirstDayOfWeek}
	}
}

// dateRange works in UTC days, matching how the store buckets summaries.
func (r reportsModel) dateRange() (time.Time, time.Time) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch r.mode {
	case reportWeekly:
		start := analytics.PeriodStart(store.PeriodWeekly, today, r.firstDay)
		start = start.AddDate(0, 0, -7*r.offset)
		return start, start.AddDate(0, 0, 7)
	default:
		end := today.AddDate(0, 0, 1-7*r.offset)
		return end.AddDate(0, 0, -7), end
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.summaries = msg.summaries
		r.totals = msg.totals
		r.firstDay = msg.firstDay
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		case key.Matches(msg, keys.Enter):
			if r.mode == reportDaily {
				r.mode = reportWeekly
			} else {
				r.mode = reportDaily
			}
			r.offset = 0
			return r, r.refresh()
		}
	}
	return r, nil
}

func (r *reportsModel) buildChart() {
	chartWidth := r.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	from, to := r.dateRange()

	var bars []barchart.BarData
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format("2006-01-02")

		var values []barchart.BarValue
		for _, s := range r.summaries {
			if s.Date != dateStr {
				continue
			}
			values = append(values, barchart.BarValue{
				Name:  s.ActivityName,
				Value: float64(s.TotalSeconds) / 3600.0,
				Style: lipgloss.NewStyle().Foreground(categoryColor(s.Category)),
			})
		}
		if len(values) == 0 {
			values = []barchart.BarValue{{Name: "", Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
		}

		bars = append(bars, barchart.BarData{
			Label:  d.Format("Mon 02"),
			Values: values,
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	dailyTab := inactiveTabStyle.Render("Daily")
	weeklyTab := inactiveTabStyle.Render("Weekly")
	if r.mode == reportDaily {
		dailyTab = activeTabStyle.Render("Daily")
	} else {
		weeklyTab = activeTabStyle.Render("Weekly")
	}
	modeTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, dailyTab, weeklyTab)

	from, to := r.dateRange()
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s to %s", from.Format("Jan 02"), to.AddDate(0, 0, -1).Format("Jan 02, 2006")))

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", modeTabs, "  ", dateLabel,
	)

	nav := mutedStyle.Render("  ←/→: navigate  enter: switch mode")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), "", r.renderLegend(), "",
			r.renderSummaryTable(w), "", r.renderTotals(), "", nav,
		),
	)
}

func (r reportsModel) renderSummaryTable(w int) string {
	if len(r.summaries) == 0 {
		return mutedStyle.Render("  No data for this period")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-12s %-20s %10s %8s", "Date", "Activity", "Duration", "Entries")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 54))))

	for _, s := range r.summaries {
		rows = append(rows, fmt.Sprintf("  %-12s %s %-18s %10s %8d",
			s.Date, categoryDot(s.Category), s.ActivityName, formatSeconds(s.TotalSeconds), s.EntryCount,
		))
	}

	return strings.Join(rows, "\n")
}

// renderTotals lists all-time totals for the activities that have any.
func (r reportsModel) renderTotals() string {
	var rows []string
	for _, t := range r.totals {
		if t.TotalSeconds == 0 {
			continue
		}
		rows = append(rows, fmt.Sprintf("  %s %-20s %8s", categoryDot(t.Activity.Category), t.Activity.Name, formatHours(t.TotalSeconds)))
	}
	if len(rows) == 0 {
		return ""
	}
	return strings.Join(append([]string{titleStyle.Render("All time")}, rows...), "\n")
}

func (r reportsModel) renderLegend() string {
	seen := make(map[string]bool)
	var items []string
	for _, s := range r.summaries {
		if seen[s.ActivityID] {
			continue
		}
		seen[s.ActivityID] = true
		items = append(items, fmt.Sprintf("%s %s", categoryDot(s.Category), s.ActivityName))
	}
	if len(items) == 0 {
		return ""
	}
	return "  " + strings.Join(items, "  ")
}
