package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const entryColumns = `id, activity_id, start_time, end_time, duration, notes, created_at, updated_at`

func scanEntry(sc rowScanner) (*TimeEntry, error) {
	e := &TimeEntry{}
	var startTime, createdAt, updatedAt string
	var endTime sql.NullString
	var duration sql.NullInt64
	if err := sc.Scan(&e.ID, &e.ActivityID, &startTime, &endTime, &duration, &e.Notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.StartTime = parseTime(startTime)
	e.EndTime = nullTime(endTime)
	if duration.Valid {
		e.Duration = &duration.Int64
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func (s *Store) AddTimeEntry(e TimeEntry) (*TimeEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = newID()
	}
	if e.StartTime.IsZero() {
		e.StartTime = now
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	_, err := s.q.Exec(
		`INSERT INTO time_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ActivityID, formatTime(e.StartTime), timeArg(e.EndTime), int64Arg(e.Duration), e.Notes,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	return s.GetTimeEntry(e.ID)
}

func (s *Store) GetTimeEntry(id string) (*TimeEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	e, err := scanEntry(s.q.QueryRow(
		`SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}
	return e, nil
}

// UpdateTimeEntry rewrites every mutable field of e.
func (s *Store) UpdateTimeEntry(e TimeEntry) error {
	if err := s.ready(); err != nil {
		return err
	}
	if e.ID == "" {
		return fmt.Errorf("update entry: %w", ErrMissingID)
	}
	res, err := s.q.Exec(
		`UPDATE time_entries SET activity_id = ?, start_time = ?, end_time = ?, duration = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		e.ActivityID, formatTime(e.StartTime), timeArg(e.EndTime), int64Arg(e.Duration), e.Notes,
		formatTime(time.Now()), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return checkAffected(res, "update entry", e.ID)
}

// CloseTimeEntry sets the end time and duration of an open entry. It reports
// ErrNotFound when the entry does not exist or was already closed, so that two
// concurrent stop paths cannot both write.
func (s *Store) CloseTimeEntry(id string, end time.Time, durationSecs int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("close entry: %w", ErrMissingID)
	}
	res, err := s.q.Exec(
		`UPDATE time_entries SET end_time = ?, duration = ?, updated_at = ? WHERE id = ? AND end_time IS NULL`,
		formatTime(end), durationSecs, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("close entry: %w", err)
	}
	return checkAffected(res, "close entry", id)
}

func (s *Store) UpdateEntryNotes(id, notes string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.q.Exec(
		`UPDATE time_entries SET notes = ?, updated_at = ? WHERE id = ?`, notes, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update entry notes: %w", err)
	}
	return checkAffected(res, "update entry notes", id)
}

func (s *Store) DeleteTimeEntry(id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.q.Exec(`DELETE FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return checkAffected(res, "delete entry", id)
}

// GetOpenTimeEntries returns every entry without an end time, newest start
// first.
func (s *Store) GetOpenTimeEntries() ([]TimeEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryEntries(
		`SELECT ` + entryColumns + ` FROM time_entries WHERE end_time IS NULL ORDER BY start_time DESC, created_at DESC`,
	)
}

// LatestOpenEntry returns the most recent open entry for the activity, or
// nil when there is none.
func (s *Store) LatestOpenEntry(activityID string) (*TimeEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	e, err := scanEntry(s.q.QueryRow(
		`SELECT `+entryColumns+` FROM time_entries
		 WHERE activity_id = ? AND end_time IS NULL
		 ORDER BY start_time DESC, created_at DESC LIMIT 1`, activityID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest open entry: %w", err)
	}
	return e, nil
}

func (s *Store) GetTimeEntriesByActivity(activityID string) ([]TimeEntry, error) {
	return s.ListTimeEntries(EntryFilter{ActivityID: &activityID})
}

func (s *Store) ListTimeEntries(f EntryFilter) ([]TimeEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE 1=1`
	var args []any

	if f.ActivityID != nil {
		query += ` AND activity_id = ?`
		args = append(args, *f.ActivityID)
	}
	if f.From != nil {
		query += ` AND start_time >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += ` AND start_time < ?`
		args = append(args, formatTime(*f.To))
	}
	if f.OnlyClosed {
		query += ` AND end_time IS NOT NULL`
	}
	query += ` ORDER BY start_time DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	return s.queryEntries(query, args...)
}

func (s *Store) queryEntries(query string, args ...any) ([]TimeEntry, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// GetTotalDurationByActivity sums the durations of all entries for the
// activity. Open entries count as zero.
func (s *Store) GetTotalDurationByActivity(activityID string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var total int64
	err := s.q.QueryRow(
		`SELECT COALESCE(SUM(COALESCE(duration, 0)), 0) FROM time_entries WHERE activity_id = ?`, activityID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total duration: %w", err)
	}
	return total, nil
}

// GetTotalDurationSince sums durations of the activity's entries that started
// at or after from.
func (s *Store) GetTotalDurationSince(activityID string, from time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var total int64
	err := s.q.QueryRow(
		`SELECT COALESCE(SUM(COALESCE(duration, 0)), 0) FROM time_entries
		 WHERE activity_id = ? AND start_time >= ?`, activityID, formatTime(from),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total duration since: %w", err)
	}
	return total, nil
}

// GetDailySummary aggregates closed entries per day and activity. Days are
// bucketed by the UTC date of the entry start.
func (s *Store) GetDailySummary(from, to time.Time) ([]DailySummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`
		SELECT date(e.start_time) AS day, e.activity_id, a.name, a.category,
		       COALESCE(SUM(e.duration), 0), COUNT(*)
		FROM time_entries e
		JOIN activities a ON a.id = e.activity_id
		WHERE e.end_time IS NOT NULL
		  AND e.start_time >= ? AND e.start_time < ?
		GROUP BY day, e.activity_id
		ORDER BY day, a.name`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("daily summary: %w", err)
	}
	defer rows.Close()

	var summaries []DailySummary
	for rows.Next() {
		var ds DailySummary
		if err := rows.Scan(&ds.Date, &ds.ActivityID, &ds.ActivityName, &ds.Category, &ds.TotalSeconds, &ds.EntryCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, ds)
	}
	return summaries, rows.Err()
}

// GetTotalBetween sums closed durations across all activities for entries
// starting in [from, to).
func (s *Store) GetTotalBetween(from, to time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var total int64
	err := s.q.QueryRow(`
		SELECT COALESCE(SUM(duration), 0)
		FROM time_entries
		WHERE start_time >= ? AND start_time < ? AND end_time IS NOT NULL`,
		formatTime(from), formatTime(to),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total between: %w", err)
	}
	return total, nil
}
