package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const goalColumns = `id, activity_id, target_hours, period, notification_threshold, created_at, updated_at`

func scanGoal(sc rowScanner) (*Goal, error) {
	g := &Goal{}
	var createdAt, updatedAt, period string
	if err := sc.Scan(&g.ID, &g.ActivityID, &g.TargetHours, &period, &g.NotificationThreshold, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	g.Period = Period(period)
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	return g, nil
}

func (s *Store) AddGoal(g Goal) (*Goal, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !g.Period.Valid() {
		return nil, fmt.Errorf("insert goal: invalid period %q", g.Period)
	}
	now := time.Now().UTC()
	if g.ID == "" {
		g.ID = newID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = now
	}
	_, err := s.q.Exec(
		`INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.ActivityID, g.TargetHours, string(g.Period), g.NotificationThreshold,
		formatTime(g.CreatedAt), formatTime(g.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	return s.GetGoal(g.ID)
}

func (s *Store) GetGoal(id string) (*Goal, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	g, err := scanGoal(s.q.QueryRow(`SELECT `+goalColumns+` FROM goals WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get goal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get goal %s: %w", id, err)
	}
	return g, nil
}

func (s *Store) ListGoals() ([]Goal, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryGoals(`SELECT ` + goalColumns + ` FROM goals ORDER BY created_at`)
}

func (s *Store) GetGoalsByActivity(activityID string) ([]Goal, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryGoals(`SELECT `+goalColumns+` FROM goals WHERE activity_id = ? ORDER BY created_at`, activityID)
}

func (s *Store) queryGoals(query string, args ...any) ([]Goal, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func (s *Store) UpdateGoal(g Goal) error {
	if err := s.ready(); err != nil {
		return err
	}
	if g.ID == "" {
		return fmt.Errorf("update goal: %w", ErrMissingID)
	}
	if !g.Period.Valid() {
		return fmt.Errorf("update goal: invalid period %q", g.Period)
	}
	res, err := s.q.Exec(
		`UPDATE goals SET activity_id = ?, target_hours = ?, period = ?, notification_threshold = ?, updated_at = ?
		 WHERE id = ?`,
		g.ActivityID, g.TargetHours, string(g.Period), g.NotificationThreshold, formatTime(time.Now()), g.ID,
	)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return checkAffected(res, "update goal", g.ID)
}

func (s *Store) DeleteGoal(id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.q.Exec(`DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return checkAffected(res, "delete goal", id)
}
