package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/worklog/internal/store"
)

func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("WORKLOG_LOG_LEVEL", "error")
	t.Setenv("WORKLOG_LOG_FILE", "")
	t.Setenv("WORKLOG_LEGACY_SETTINGS", "")
	t.Setenv("WORKLOG_TELEGRAM_TOKEN", "")
	t.Setenv("WORKLOG_TELEGRAM_CHAT_ID", "")
	t.Setenv("WORKLOG_CACHE_VERSION", "")
	return filepath.Join(dir, "test.db")
}

func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func seed(t *testing.T, db string, fn func(s *store.Store)) {
	t.Helper()
	s, err := store.New(db)
	require.NoError(t, err)
	fn(s)
	require.NoError(t, s.Close())
}

// ============================================================
// Tracking
// ============================================================

func TestStopIdle(t *testing.T) {
	db := testEnv(t)
	out, err := run(t, db, "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing is being tracked.")
}

func TestStopRoundsToQuarterHour(t *testing.T) {
	db := testEnv(t)
	seed(t, db, func(s *store.Store) {
		a, err := s.AddActivity(store.Activity{Name: "Dev", Category: "Work"})
		require.NoError(t, err)
		_, err = s.AddTimeEntry(store.TimeEntry{ActivityID: a.ID, StartTime: time.Now().Add(-20 * time.Minute)})
		require.NoError(t, err)
	})

	out, err := run(t, db, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Tracking Dev")

	out, err = run(t, db, "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped Dev: 15m0s recorded.")

	seed(t, db, func(s *store.Store) {
		open, err := s.GetOpenTimeEntries()
		require.NoError(t, err)
		assert.Empty(t, open)
	})
}

// ============================================================
// Export / import / reset
// ============================================================

func TestExportImportRoundTrip(t *testing.T) {
	db := testEnv(t)
	seed(t, db, func(s *store.Store) {
		a, _ := s.AddActivity(store.Activity{Name: "Dev", Category: "Work"})
		start := time.Now().Add(-2 * time.Hour)
		end := start.Add(time.Hour)
		secs := int64(3600)
		s.AddTimeEntry(store.TimeEntry{ActivityID: a.ID, StartTime: start, EndTime: &end, Duration: &secs})
	})

	out, err := run(t, db, "export", "-o", "backup.json")
	require.NoError(t, err)
	assert.Contains(t, out, "backup.json")

	_, err = run(t, db, "export", "--format", "csv", "-o", "report.csv")
	require.NoError(t, err)

	out, err = run(t, db, "import", "backup.json")
	require.NoError(t, err)
	assert.Contains(t, out, "entries 0/1")

	other := filepath.Join(filepath.Dir(db), "other.db")
	out, err = run(t, other, "import", "--mode", "clear", "backup.json")
	require.NoError(t, err)
	assert.Contains(t, out, "activities 1/0")
}

func TestExportUnknownFormat(t *testing.T) {
	db := testEnv(t)
	_, err := run(t, db, "export", "--format", "xml")
	assert.Error(t, err)
}

func TestResetNeedsConfirmation(t *testing.T) {
	db := testEnv(t)
	seed(t, db, func(s *store.Store) {
		s.AddActivity(store.Activity{Name: "Dev", Category: "Work"})
	})

	_, err := run(t, db, "reset")
	require.Error(t, err)

	_, err = run(t, db, "reset", "--yes")
	require.NoError(t, err)
	seed(t, db, func(s *store.Store) {
		acts, err := s.ListActivities()
		require.NoError(t, err)
		assert.Empty(t, acts)
	})
}

// ============================================================
// Schedule and off time
// ============================================================

func TestScheduleSetAndList(t *testing.T) {
	db := testEnv(t)
	_, err := run(t, db, "schedule", "set", "monday", "09:00", "17:00")
	require.NoError(t, err)
	_, err = run(t, db, "schedule", "set", "fri", "09:00", "13:00", "--disabled")
	require.NoError(t, err)

	out, err := run(t, db, "schedule", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Monday")
	assert.Contains(t, out, "09:00-17:00")
	assert.Contains(t, out, "off")
	assert.Contains(t, out, "This week:")
}

func TestScheduleBadInput(t *testing.T) {
	db := testEnv(t)
	_, err := run(t, db, "schedule", "set", "someday", "09:00", "17:00")
	assert.Error(t, err)
	_, err = run(t, db, "schedule", "set", "mon", "9am", "17:00")
	assert.Error(t, err)
}

func TestOffTimeLifecycle(t *testing.T) {
	db := testEnv(t)
	out, err := run(t, db, "offtime", "add", "--from", "2026-08-03", "--to", "2026-08-14", "--note", "summer")
	require.NoError(t, err)
	assert.Contains(t, out, "vacation 2026-08-03..2026-08-14")
	id := strings.TrimSuffix(out[strings.LastIndex(out, "(")+1:], ")\n")

	out, err = run(t, db, "offtime", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "summer")

	_, err = run(t, db, "offtime", "rm", id)
	require.NoError(t, err)
	out, err = run(t, db, "offtime", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No off time.")
}

func TestOffTimeValidation(t *testing.T) {
	db := testEnv(t)
	_, err := run(t, db, "offtime", "add", "--from", "2026-08-03", "--kind", "party")
	assert.Error(t, err)
	_, err = run(t, db, "offtime", "add", "--from", "2026-08-03", "--to", "2026-08-01")
	assert.Error(t, err)
	_, err = run(t, db, "offtime", "add")
	assert.Error(t, err)
}

func TestParseWeekday(t *testing.T) {
	d, err := parseWeekday("Sunday")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)
	_, err = parseWeekday("x")
	assert.Error(t, err)
}
