package store

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// SetWorkSchedule inserts or replaces the work window for ws.Weekday.
func (s *Store) SetWorkSchedule(ws WorkSchedule) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := time.Parse("15:04", ws.Start); err != nil {
		return fmt.Errorf("set work schedule: invalid start %q", ws.Start)
	}
	if _, err := time.Parse("15:04", ws.End); err != nil {
		return fmt.Errorf("set work schedule: invalid end %q", ws.End)
	}
	enabled := 0
	if ws.Enabled {
		enabled = 1
	}
	_, err := s.q.Exec(
		`INSERT INTO work_schedule (weekday, start_time, end_time, enabled) VALUES (?, ?, ?, ?)
		 ON CONFLICT(weekday) DO UPDATE SET start_time = excluded.start_time, end_time = excluded.end_time, enabled = excluded.enabled`,
		int(ws.Weekday), ws.Start, ws.End, enabled,
	)
	if err != nil {
		return fmt.Errorf("set work schedule: %w", err)
	}
	return nil
}

func (s *Store) ListWorkSchedule() ([]WorkSchedule, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`SELECT weekday, start_time, end_time, enabled FROM work_schedule ORDER BY weekday`)
	if err != nil {
		return nil, fmt.Errorf("list work schedule: %w", err)
	}
	defer rows.Close()

	var schedule []WorkSchedule
	for rows.Next() {
		var ws WorkSchedule
		var day, enabled int
		if err := rows.Scan(&day, &ws.Start, &ws.End, &enabled); err != nil {
			return nil, err
		}
		ws.Weekday = time.Weekday(day)
		ws.Enabled = enabled == 1
		schedule = append(schedule, ws)
	}
	return schedule, rows.Err()
}

func (s *Store) AddOffTime(o OffTime) (*OffTime, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if o.To.Before(o.From) {
		return nil, fmt.Errorf("insert off time: end %s before start %s",
			o.To.Format(dateLayout), o.From.Format(dateLayout))
	}
	if o.ID == "" {
		o.ID = newID()
	}
	if o.Kind == "" {
		o.Kind = "vacation"
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.Exec(
		`INSERT INTO off_time (id, from_date, to_date, kind, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.From.Format(dateLayout), o.To.Format(dateLayout), o.Kind, o.Note, formatTime(o.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert off time: %w", err)
	}
	return &o, nil
}

// ListOffTime returns all off-time ranges ordered by start date.
func (s *Store) ListOffTime() ([]OffTime, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`SELECT id, from_date, to_date, kind, note, created_at FROM off_time ORDER BY from_date`)
	if err != nil {
		return nil, fmt.Errorf("list off time: %w", err)
	}
	defer rows.Close()

	var list []OffTime
	for rows.Next() {
		var o OffTime
		var from, to, createdAt string
		if err := rows.Scan(&o.ID, &from, &to, &o.Kind, &o.Note, &createdAt); err != nil {
			return nil, err
		}
		o.From, _ = time.ParseInLocation(dateLayout, from, time.Local)
		o.To, _ = time.ParseInLocation(dateLayout, to, time.Local)
		o.CreatedAt = parseTime(createdAt)
		list = append(list, o)
	}
	return list, rows.Err()
}

func (s *Store) DeleteOffTime(id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.q.Exec(`DELETE FROM off_time WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete off time: %w", err)
	}
	return checkAffected(res, "delete off time", id)
}
