package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const activityColumns = `id, name, category, description, external_system, sort_order, created_at, updated_at`

func scanActivity(sc rowScanner) (*Activity, error) {
	a := &Activity{}
	var createdAt, updatedAt string
	var external sql.NullString
	if err := sc.Scan(&a.ID, &a.Name, &a.Category, &a.Description, &external, &a.Order, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if external.Valid {
		a.ExternalSystem = &external.String
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

func (s *Store) AddActivity(a Activity) (*Activity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	_, err := s.q.Exec(
		`INSERT INTO activities (`+activityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Category, a.Description, a.ExternalSystem, a.Order,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	return s.GetActivity(a.ID)
}

func (s *Store) GetActivity(id string) (*Activity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	a, err := scanActivity(s.q.QueryRow(
		`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get activity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get activity %s: %w", id, err)
	}
	return a, nil
}

func (s *Store) ListActivities() ([]Activity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryActivities(`SELECT ` + activityColumns + ` FROM activities ORDER BY sort_order, name`)
}

func (s *Store) GetActivitiesByCategory(category string) ([]Activity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryActivities(
		`SELECT `+activityColumns+` FROM activities WHERE category = ? ORDER BY sort_order, name`, category,
	)
}

func (s *Store) queryActivities(query string, args ...any) ([]Activity, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func (s *Store) UpdateActivity(a Activity) error {
	if err := s.ready(); err != nil {
		return err
	}
	if a.ID == "" {
		return fmt.Errorf("update activity: %w", ErrMissingID)
	}
	res, err := s.q.Exec(
		`UPDATE activities SET name = ?, category = ?, description = ?, external_system = ?, sort_order = ?, updated_at = ?
		 WHERE id = ?`,
		a.Name, a.Category, a.Description, a.ExternalSystem, a.Order, formatTime(time.Now()), a.ID,
	)
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return checkAffected(res, "update activity", a.ID)
}
