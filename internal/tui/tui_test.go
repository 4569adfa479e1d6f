package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/worklog/internal/autostop"
	"github.com/sadopc/worklog/internal/notify"
	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestTracker(s *store.Store, opts ...tracker.Option) *tracker.Tracker {
	return tracker.New(s, tracker.LimitsFrom(store.DefaultSettings()), opts...)
}

func newTestApp(t *testing.T, s *store.Store) App {
	t.Helper()
	tr := newTestTracker(s)
	return NewApp(s, tr, autostop.New(tr, s), notify.NewAlerter(notify.LogNotifier{}, s))
}

func addActivity(t *testing.T, s *store.Store, name string) *store.Activity {
	t.Helper()
	a, err := s.AddActivity(store.Activity{Name: name, Category: "Work"})
	if err != nil {
		t.Fatalf("add activity: %v", err)
	}
	return a
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// ============================================================
// Timer model
// ============================================================

func TestTimerStartStop(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")

	tm := newTimerModel(s, newTestTracker(s))
	if tm.running() {
		t.Fatal("timer should start stopped")
	}

	if err := tm.start(*a); err != nil {
		t.Fatal(err)
	}
	if !tm.running() {
		t.Fatal("timer should be running after start")
	}
	if tm.activityName != "Dev" {
		t.Fatalf("activity name = %q, want Dev", tm.activityName)
	}

	entry, err := tm.stop()
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil || entry.EndTime == nil {
		t.Fatal("stop should return the closed entry")
	}
	if tm.running() {
		t.Fatal("timer should be stopped")
	}
}

func TestTimerStopWhenStopped(t *testing.T) {
	s := newTestStore(t)
	tm := newTimerModel(s, newTestTracker(s))

	entry, err := tm.stop()
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Fatal("stop on stopped timer should return nil")
	}
}

func TestTimerStartWhileRunningKeepsSession(t *testing.T) {
	s := newTestStore(t)
	dev := addActivity(t, s, "Dev")
	ops := addActivity(t, s, "Ops")

	tm := newTimerModel(s, newTestTracker(s))
	tm.start(*dev)
	tm.start(*ops)

	if tm.activityName != "Dev" {
		t.Fatalf("second start should keep the running session, got %q", tm.activityName)
	}
	open, _ := s.GetOpenTimeEntries()
	if len(open) != 1 {
		t.Fatalf("expected 1 open entry, got %d", len(open))
	}
}

func TestTimerResumesOpenEntry(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")
	s.AddTimeEntry(store.TimeEntry{ActivityID: a.ID, StartTime: time.Now().Add(-time.Hour)})

	tr := newTestTracker(s)
	if _, err := tr.Resume(); err != nil {
		t.Fatal(err)
	}
	tm := newTimerModel(s, tr)
	if !tm.running() {
		t.Fatal("timer should pick up the open entry")
	}
	if tm.activityName != "Dev" {
		t.Fatalf("activity name = %q, want Dev", tm.activityName)
	}
	if tm.currentElapsed() < time.Hour {
		t.Fatalf("elapsed = %v, want at least 1h", tm.currentElapsed())
	}
}

func TestTimerWarningWindow(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")

	start := time.Date(2026, 3, 5, 9, 0, 0, 0, time.Local)
	now := start
	tr := newTestTracker(s, tracker.WithClock(func() time.Time { return now }))
	tm := newTimerModel(s, tr)
	tm.start(*a)

	if tm.warning() {
		t.Fatal("no warning right after start")
	}
	now = start.Add(7*time.Hour + 50*time.Minute)
	if !tm.warning() {
		t.Fatal("expected warning 10 minutes before the limit")
	}
	if tm.remaining() != 10*time.Minute {
		t.Fatalf("remaining = %v, want 10m", tm.remaining())
	}
}

func TestTimerTickMaxReached(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")

	start := time.Date(2026, 3, 5, 9, 0, 0, 0, time.Local)
	tr := newTestTracker(s, tracker.WithClock(func() time.Time { return start }))
	tm := newTimerModel(s, tr)
	tm.start(*a)

	ev, entry, err := tm.tick(start.Add(8*time.Hour + 3*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if ev != tracker.EventMaxReached {
		t.Fatalf("event = %v, want max reached", ev)
	}
	if entry == nil || *entry.Duration != 8*3600 {
		t.Fatalf("entry duration should round to 8h, got %+v", entry)
	}
	if tm.running() {
		t.Fatal("timer should stop at the limit")
	}
}

// ============================================================
// Helpers
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{time.Second, "00:00:01"},
		{time.Minute, "00:01:00"},
		{time.Hour, "01:00:00"},
		{2*time.Hour + 30*time.Minute + 15*time.Second, "02:30:15"},
		{-time.Minute, "00:00:00"},
	}
	for _, tt := range tests {
		got := formatDuration(tt.d)
		if got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(900); got != "00:15:00" {
		t.Fatalf("formatSeconds(900) = %q", got)
	}
}

func TestFormatHours(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "0.0h"},
		{1800, "0.5h"},
		{3600, "1.0h"},
		{5400, "1.5h"},
	}
	for _, tt := range tests {
		got := formatHours(tt.secs)
		if got != tt.want {
			t.Errorf("formatHours(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestCategoryColorStable(t *testing.T) {
	if categoryColor("Work") != categoryColor("Work") {
		t.Fatal("color should be stable for a name")
	}
	if categoryDot("Work") == "" {
		t.Fatal("dot should render")
	}
}

func TestViewNames(t *testing.T) {
	if len(viewNames) != 5 {
		t.Fatalf("expected 5 view names, got %d", len(viewNames))
	}
	expected := []string{"Dashboard", "Activities", "Reports", "Goals", "Settings"}
	for i, name := range expected {
		if viewNames[i] != name {
			t.Errorf("viewNames[%d] = %q, want %q", i, viewNames[i], name)
		}
	}
}

func TestViewStateConstants(t *testing.T) {
	if viewDashboard != 0 || viewActivities != 1 || viewReports != 2 || viewGoals != 3 || viewSettings != 4 {
		t.Fatal("view state constants out of order")
	}
}

// ============================================================
// Dashboard model
// ============================================================

func TestDashboardStartStop(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")
	d := newDashboardModel(s, newTestTracker(s))
	d.activities = []store.Activity{*a}

	d, cmd := d.update(runeKey('s'))
	if cmd == nil {
		t.Fatal("start should return a command")
	}
	if !d.isRunning() {
		t.Fatal("single activity should start right away")
	}

	d, cmd = d.update(runeKey('x'))
	if cmd == nil {
		t.Fatal("stop should return a command")
	}
	if d.isRunning() {
		t.Fatal("timer should be stopped")
	}
}

func TestDashboardStartWithoutActivities(t *testing.T) {
	s := newTestStore(t)
	d := newDashboardModel(s, newTestTracker(s))

	_, cmd := d.update(runeKey('s'))
	msg, ok := cmd().(statusMsg)
	if !ok || !msg.isError {
		t.Fatal("expected an error status")
	}
}

func TestDashboardPicker(t *testing.T) {
	s := newTestStore(t)
	dev := addActivity(t, s, "Dev")
	ops := addActivity(t, s, "Ops")
	d := newDashboardModel(s, newTestTracker(s))
	d.activities = []store.Activity{*dev, *ops}

	d, _ = d.update(runeKey('s'))
	if !d.picking {
		t.Fatal("several activities should open the picker")
	}
	d, _ = d.update(tea.KeyMsg{Type: tea.KeyDown})
	d, _ = d.update(tea.KeyMsg{Type: tea.KeyEnter})
	if d.picking {
		t.Fatal("picker should close after enter")
	}
	if d.timer.activityName != "Ops" {
		t.Fatalf("expected Ops to be tracked, got %q", d.timer.activityName)
	}
}

func TestDashboardLoadData(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")
	start := time.Now()
	end := start
	secs := int64(900)
	s.AddTimeEntry(store.TimeEntry{ActivityID: a.ID, StartTime: start, EndTime: &end, Duration: &secs})

	d := newDashboardModel(s, newTestTracker(s))
	d, _ = d.update(d.loadData()())

	if len(d.activities) != 1 || d.names[a.ID] != "Dev" {
		t.Fatal("activities not loaded")
	}
	if len(d.recentEntries) != 1 {
		t.Fatalf("expected 1 recent entry, got %d", len(d.recentEntries))
	}
	if d.todayTotal != 900 {
		t.Fatalf("today total = %d, want 900", d.todayTotal)
	}
}

func TestDashboardLoadDataSurfacesStoreErrors(t *testing.T) {
	s := newTestStore(t)
	d := newDashboardModel(s, newTestTracker(s))
	s.Close()

	msg, ok := d.loadData()().(statusMsg)
	if !ok || !msg.isError {
		t.Fatalf("expected an error status, got %#v", msg)
	}
	if !strings.HasPrefix(msg.text, "Load today:") {
		t.Fatalf("unexpected status %q", msg.text)
	}
}

func TestDashboardTickReportsMaxReached(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")
	start := time.Date(2026, 3, 5, 9, 0, 0, 0, time.Local)
	d := newDashboardModel(s, newTestTracker(s, tracker.WithClock(func() time.Time { return start })))
	d.timer.start(*a)

	d, cmd := d.update(tickMsg(start.Add(9 * time.Hour)))
	if cmd == nil {
		t.Fatal("expected an event command")
	}
	msg, ok := cmd().(trackerEventMsg)
	if !ok || msg.event != tracker.EventMaxReached {
		t.Fatalf("expected max reached event, got %#v", msg)
	}
	if d.isRunning() {
		t.Fatal("timer should be stopped")
	}
}

func TestDashboardStopAlreadyClosed(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")
	d := newDashboardModel(s, newTestTracker(s))
	d.timer.start(*a)

	open, _ := s.GetOpenTimeEntries()
	s.CloseTimeEntry(open[0].ID, time.Now(), 900)

	d, cmd := d.stopTimer()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if d.isRunning() {
		t.Fatal("timer should go idle")
	}
}

func TestMergeByActivity(t *testing.T) {
	rows := []store.DailySummary{
		{ActivityID: "a", TotalSeconds: 900, EntryCount: 1},
		{ActivityID: "b", TotalSeconds: 1800, EntryCount: 1},
		{ActivityID: "a", TotalSeconds: 1800, EntryCount: 2},
	}
	got := mergeByActivity(rows)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].ActivityID != "a" || got[0].TotalSeconds != 2700 || got[0].EntryCount != 3 {
		t.Fatalf("unexpected first row %+v", got[0])
	}
}

// ============================================================
// Activities model
// ============================================================

func TestActivitiesSaveCategoryAndActivity(t *testing.T) {
	s := newTestStore(t)
	p := newActivitiesModel(s)

	p.formType = formNewCategory
	*p.formName = "  Work  "
	if err := p.save(); err != nil {
		t.Fatal(err)
	}
	p, _ = p.update(p.refresh()())
	if len(p.categories) != 1 || p.categories[0].Name != "Work" {
		t.Fatalf("category not saved: %+v", p.categories)
	}

	p.formType = formNewActivity
	*p.formName = "Dev"
	*p.formDesc = "coding"
	*p.formExternal = ""
	if err := p.save(); err != nil {
		t.Fatal(err)
	}
	acts, _ := s.GetActivitiesByCategory("Work")
	if len(acts) != 1 || acts[0].Description != "coding" || acts[0].ExternalSystem != nil {
		t.Fatalf("activity not saved as expected: %+v", acts)
	}
}

func TestActivitiesEditActivity(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")
	p := newActivitiesModel(s)

	p.formType = formEditActivity
	p.editingID = a.ID
	*p.formName = "Development"
	*p.formExternal = "JIRA-1"
	if err := p.save(); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetActivity(a.ID)
	if got.Name != "Development" || got.ExternalSystem == nil || *got.ExternalSystem != "JIRA-1" {
		t.Fatalf("activity not updated: %+v", got)
	}
}

func TestActivitiesDeleteCategoryNeedsConfirm(t *testing.T) {
	s := newTestStore(t)
	c, _ := s.AddCategory(store.Category{Name: "Work"})
	addActivity(t, s, "Dev")
	p := newActivitiesModel(s)

	p.formType = formDeleteCategory
	p.editingID = c.ID
	*p.formConfirm = false
	p.save()
	if cats, _ := s.ListCategories(); len(cats) != 1 {
		t.Fatal("category should survive without confirmation")
	}

	*p.formConfirm = true
	if err := p.save(); err != nil {
		t.Fatal(err)
	}
	if cats, _ := s.ListCategories(); len(cats) != 0 {
		t.Fatal("category should be deleted")
	}
	if acts, _ := s.ListActivities(); len(acts) != 0 {
		t.Fatal("activities of the category should be deleted")
	}
}

func TestRequiredValidator(t *testing.T) {
	if required("name")("  ") == nil {
		t.Fatal("blank value should fail")
	}
	if required("name")("Dev") != nil {
		t.Fatal("value should pass")
	}
}

func TestOptional(t *testing.T) {
	if optional(" ") != nil {
		t.Fatal("blank should be nil")
	}
	if v := optional(" x "); v == nil || *v != "x" {
		t.Fatal("value should be trimmed")
	}
}

// ============================================================
// Goals model
// ============================================================

func TestGoalsSaveAndRefresh(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")
	g := newGoalsModel(s)

	*g.formActivity = a.ID
	*g.formHours = "2.5"
	*g.formPeriod = string(store.PeriodDaily)
	*g.formThreshold = "80"
	if err := g.save(); err != nil {
		t.Fatal(err)
	}

	g, _ = g.update(g.refresh()())
	if len(g.progress) != 1 {
		t.Fatalf("expected 1 goal, got %d", len(g.progress))
	}
	if g.progress[0].Goal.TargetHours != 2.5 || g.names[a.ID] != "Dev" {
		t.Fatalf("unexpected goal %+v", g.progress[0].Goal)
	}

	g, cmd := g.update(runeKey('d'))
	if cmd == nil {
		t.Fatal("delete should refresh")
	}
	g, _ = g.update(cmd())
	if len(g.progress) != 0 {
		t.Fatal("goal should be deleted")
	}
}

func TestGoalsNewWithoutActivities(t *testing.T) {
	s := newTestStore(t)
	g := newGoalsModel(s)

	g, cmd := g.update(runeKey('n'))
	if g.formActive {
		t.Fatal("form should not open without activities")
	}
	if msg, ok := cmd().(statusMsg); !ok || !msg.isError {
		t.Fatal("expected an error status")
	}
}

func TestGoalValidators(t *testing.T) {
	if positiveFloat("0") == nil || positiveFloat("abc") == nil {
		t.Fatal("positiveFloat should reject zero and text")
	}
	if positiveFloat("1.5") != nil {
		t.Fatal("positiveFloat should accept 1.5")
	}
	if percent("0") == nil || percent("101") == nil {
		t.Fatal("percent should reject out of range")
	}
	if percent("80") != nil {
		t.Fatal("percent should accept 80")
	}
}

func TestRenderBar(t *testing.T) {
	full := renderBar(150, 10, true)
	if strings.Count(full, "█") != 10 {
		t.Fatal("bar should cap at its width")
	}
	half := renderBar(50, 10, false)
	if strings.Count(half, "█") != 5 || strings.Count(half, "░") != 5 {
		t.Fatalf("unexpected half bar %q", half)
	}
}

// ============================================================
// Settings model
// ============================================================

func TestSettingsFormSettings(t *testing.T) {
	s := newTestStore(t)
	m := newSettingsModel(s)

	*m.maxHours = "4"
	*m.warningMinutes = "5"
	*m.weekStart = "sunday"
	*m.threshold = "90"
	*m.stopOnBlur = true
	*m.darkMode = true

	ts := m.formSettings()
	if ts.MaxTrackingDuration != 4*time.Hour || ts.WarningThreshold != 5*time.Minute {
		t.Fatalf("limits not parsed: %+v", ts)
	}
	if ts.FirstDayOfWeek != time.Sunday || ts.DefaultGoalNotificationThreshold != 90 {
		t.Fatalf("general settings not parsed: %+v", ts)
	}
	if !ts.StopOnTabSwitch || !ts.DarkMode {
		t.Fatal("toggles not applied")
	}
}

func TestSettingsFormKeepsUnparsable(t *testing.T) {
	s := newTestStore(t)
	m := newSettingsModel(s)
	*m.maxHours = "lots"
	*m.weekStart = "monday"

	ts := m.formSettings()
	if ts.MaxTrackingDuration != 8*time.Hour {
		t.Fatalf("max duration = %v, want the default", ts.MaxTrackingDuration)
	}
}

func TestNonNegativeInt(t *testing.T) {
	if nonNegativeInt("-1") == nil || nonNegativeInt("x") == nil {
		t.Fatal("expected rejection")
	}
	if nonNegativeInt("0") != nil {
		t.Fatal("zero should pass")
	}
}

// ============================================================
// App model
// ============================================================

func TestNewApp(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)

	if app.activeView != viewDashboard {
		t.Fatal("default view should be dashboard")
	}
	if app.showHelp {
		t.Fatal("help should be hidden by default")
	}
	if app.exportPicking {
		t.Fatal("export picker should be hidden by default")
	}
}

func TestAppIsFormActiveDefault(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)

	if app.isFormActive() {
		t.Fatal("no forms should be active initially")
	}
}

func TestAppViewStates(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)
	app.width = 120
	app.height = 40

	views := []viewState{viewDashboard, viewActivities, viewReports, viewGoals, viewSettings}
	for _, v := range views {
		app.activeView = v
		output := app.View()
		if output == "" {
			t.Fatalf("view %d rendered empty", v)
		}
	}
}

func TestAppTabSwitching(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)

	m, _ := app.Update(runeKey('4'))
	app = m.(App)
	if app.activeView != viewGoals {
		t.Fatalf("expected goals view, got %d", app.activeView)
	}
	m, _ = app.Update(tea.KeyMsg{Type: tea.KeyTab})
	app = m.(App)
	if app.activeView != viewSettings {
		t.Fatalf("expected settings view, got %d", app.activeView)
	}
	m, _ = app.Update(tea.KeyMsg{Type: tea.KeyTab})
	app = m.(App)
	if app.activeView != viewDashboard {
		t.Fatal("tab should wrap around")
	}
}

func TestAppRenderHeaderContainsAllTabs(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)
	app.width = 120
	app.height = 40

	header := app.renderHeader()
	for _, name := range viewNames {
		if !containsString(header, name) {
			t.Fatalf("header missing tab %q", name)
		}
	}
}

func TestAppRenderFooter(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)
	app.width = 120
	app.height = 40

	footer := app.renderFooter()
	if footer == "" {
		t.Fatal("footer should not be empty")
	}
}

func TestAppLoadingState(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)
	output := app.View()
	if output != "Loading..." {
		t.Fatalf("expected 'Loading...', got %q", output)
	}
}

func TestAppStatusMessage(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)
	app.width = 120
	app.height = 40

	m, cmd := app.Update(statusMsg{text: "test status"})
	app = m.(App)
	if cmd == nil {
		t.Fatal("status should schedule its own removal")
	}
	if !containsString(app.renderFooter(), "test status") {
		t.Fatal("footer should contain status message")
	}

	m, _ = app.Update(clearStatusMsg{seq: app.statusSeq - 1})
	app = m.(App)
	if app.status == "" {
		t.Fatal("stale clear should not remove a newer status")
	}
	m, _ = app.Update(clearStatusMsg{seq: app.statusSeq})
	app = m.(App)
	if app.status != "" {
		t.Fatal("status should be cleared")
	}
}

func TestAppBlurStopsTracking(t *testing.T) {
	s := newTestStore(t)
	ts := store.DefaultSettings()
	ts.StopOnTabSwitch = true
	if err := s.SaveSettings(ts); err != nil {
		t.Fatal(err)
	}
	a := addActivity(t, s, "Dev")
	app := newTestApp(t, s)
	app.tracker.Start(a.ID)

	_, cmd := app.Update(tea.BlurMsg{})
	if cmd == nil {
		t.Fatal("blur should return a command")
	}
	msg, ok := cmd().(autoStoppedMsg)
	if !ok || msg.count != 1 {
		t.Fatalf("expected one auto-stopped entry, got %#v", msg)
	}
	if app.tracker.State() != tracker.Idle {
		t.Fatal("tracker should be idle")
	}
	if open, _ := s.GetOpenTimeEntries(); len(open) != 0 {
		t.Fatal("entry should be closed")
	}
}

func TestAppBlurIgnoredByDefault(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")
	app := newTestApp(t, s)
	app.tracker.Start(a.ID)

	_, cmd := app.Update(tea.BlurMsg{})
	msg, _ := cmd().(autoStoppedMsg)
	if msg.count != 0 {
		t.Fatal("nothing should stop with the setting off")
	}
	if app.tracker.State() != tracker.Tracking {
		t.Fatal("tracker should keep running")
	}
}

func TestAppQuitStopsTracking(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")
	app := newTestApp(t, s)
	app.tracker.Start(a.ID)

	_, cmd := app.Update(runeKey('q'))
	if cmd == nil {
		t.Fatal("quit should return a command")
	}
	if open, _ := s.GetOpenTimeEntries(); len(open) != 0 {
		t.Fatal("quit should close the open entry")
	}
}

func TestAppSettingsSavedUpdatesLimits(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)

	ts := store.DefaultSettings()
	ts.MaxTrackingDuration = 2 * time.Hour
	ts.WarningThreshold = 5 * time.Minute
	m, _ := app.Update(settingsSavedMsg{settings: ts})
	app = m.(App)

	l := app.tracker.Limits()
	if l.Max != 2*time.Hour || l.Warning != 5*time.Minute {
		t.Fatalf("limits not applied: %+v", l)
	}
	if app.status != "Settings saved" {
		t.Fatalf("unexpected status %q", app.status)
	}
}

func TestAppTrackerWarningStatus(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)

	m, cmd := app.Update(trackerEventMsg{event: tracker.EventWarning, remaining: 15 * time.Minute})
	app = m.(App)
	if cmd == nil {
		t.Fatal("event should trigger a notification")
	}
	if !strings.Contains(app.status, "15m0s") {
		t.Fatalf("unexpected status %q", app.status)
	}
}

func TestAppExportPicker(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)
	app.width = 120
	app.height = 40

	m, _ := app.Update(runeKey('E'))
	app = m.(App)
	if !app.exportPicking {
		t.Fatal("E should open the export picker")
	}
	if !containsString(app.View(), "JSON backup") {
		t.Fatal("picker should list formats")
	}
	m, _ = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app = m.(App)
	if app.exportPicking {
		t.Fatal("esc should close the picker")
	}
}

func TestAppDoExport(t *testing.T) {
	s := newTestStore(t)
	a := addActivity(t, s, "Dev")
	end := time.Now()
	secs := int64(900)
	s.AddTimeEntry(store.TimeEntry{ActivityID: a.ID, StartTime: end.Add(-15 * time.Minute), EndTime: &end, Duration: &secs})
	app := newTestApp(t, s)
	dir := t.TempDir()

	for format, ext := range []string{".csv", ".json"} {
		msg := app.doExport(format, dir)()
		done, ok := msg.(exportDoneMsg)
		if !ok {
			t.Fatalf("export %s failed: %#v", ext, msg)
		}
		if !strings.HasPrefix(done.path, dir) || !strings.HasSuffix(done.path, ext) {
			t.Fatalf("unexpected path %q", done.path)
		}
	}
}

func TestAppStatusError(t *testing.T) {
	s := newTestStore(t)
	app := newTestApp(t, s)
	m, _ := app.Update(errorStatus("boom: %v", errors.New("x")))
	app = m.(App)
	if !app.statusError || app.status != "boom: x" {
		t.Fatalf("unexpected status %q (error=%v)", app.status, app.statusError)
	}
}

// containsString checks if s contains substr, ignoring ANSI escape codes.
func containsString(s, substr string) bool {
	// Simple check: ANSI codes don't affect the raw string contains
	return len(s) > 0 && len(substr) > 0 && stringContains(s, substr)
}

func stringContains(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// ============================================================
// Key bindings
// ============================================================

func TestKeyMapShortHelp(t *testing.T) {
	bindings := keys.ShortHelp()
	if len(bindings) == 0 {
		t.Fatal("short help should have bindings")
	}
}

func TestKeyMapFullHelp(t *testing.T) {
	groups := keys.FullHelp()
	if len(groups) == 0 {
		t.Fatal("full help should have groups")
	}
	for i, g := range groups {
		if len(g) == 0 {
			t.Fatalf("full help group %d is empty", i)
		}
	}
}

// ============================================================
// Styles (smoke test: just verify they don't panic)
// ============================================================

func TestStylesRender(t *testing.T) {
	styles := []struct {
		name string
		fn   func() string
	}{
		{"activeTab", func() string { return activeTabStyle.Render("test") }},
		{"inactiveTab", func() string { return inactiveTabStyle.Render("test") }},
		{"panel", func() string { return panelStyle.Render("test") }},
		{"activePanel", func() string { return activePanelStyle.Render("test") }},
		{"timer", func() string { return timerStyle.Render("test") }},
		{"timerRunning", func() string { return timerRunningStyle.Render("test") }},
		{"timerWarning", func() string { return timerWarningStyle.Render("test") }},
		{"title", func() string { return titleStyle.Render("test") }},
		{"subtitle", func() string { return subtitleStyle.Render("test") }},
		{"accent", func() string { return accentStyle.Render("test") }},
		{"success", func() string { return successStyle.Render("test") }},
		{"warning", func() string { return warningStyle.Render("test") }},
		{"error", func() string { return errorStyle.Render("test") }},
		{"muted", func() string { return mutedStyle.Render("test") }},
		{"highlight", func() string { return highlightStyle.Render("test") }},
		{"header", func() string { return headerStyle.Render("test") }},
		{"footer", func() string { return footerStyle.Render("test") }},
		{"statusBar", func() string { return statusBarStyle.Render("test") }},
		{"selectedItem", func() string { return selectedItemStyle.Render("test") }},
		{"normalItem", func() string { return normalItemStyle.Render("test") }},
	}

	for _, s := range styles {
		result := s.fn()
		if result == "" {
			t.Fatalf("style %q rendered empty", s.name)
		}
	}
}
