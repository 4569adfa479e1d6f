package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	keyMaxDuration      = "max_tracking_duration"
	keyWarningThreshold = "warning_threshold"
	keyFirstDayOfWeek   = "first_day_of_week"
	keyGoalThreshold    = "goal_notification_threshold"
	keyNotifications    = "notifications_enabled"
	keyDarkMode         = "dark_mode"
	keyStopOnClose      = "stop_on_close"
	keyStopOnTabSwitch  = "stop_on_tab_switch"
	keyLegacyMigrated   = "settings_migrated"
)

func (s *Store) GetSetting(key string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	var value string
	err := s.q.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get setting %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(key, value string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.q.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func (s *Store) GetAllSettings() ([]Setting, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// GetSettings assembles the tracking settings singleton. Keys that are
// missing or unparsable fall back to DefaultSettings.
func (s *Store) GetSettings() (TrackingSettings, error) {
	ts := DefaultSettings()
	all, err := s.GetAllSettings()
	if err != nil {
		return ts, err
	}
	for _, kv := range all {
		switch kv.Key {
		case keyMaxDuration:
			if secs, err := strconv.Atoi(kv.Value); err == nil && secs > 0 {
				ts.MaxTrackingDuration = time.Duration(secs) * time.Second
			}
		case keyWarningThreshold:
			if secs, err := strconv.Atoi(kv.Value); err == nil && secs >= 0 {
				ts.WarningThreshold = time.Duration(secs) * time.Second
			}
		case keyFirstDayOfWeek:
			if kv.Value == "sunday" {
				ts.FirstDayOfWeek = time.Sunday
			} else {
				ts.FirstDayOfWeek = time.Monday
			}
		case keyGoalThreshold:
			if pct, err := strconv.Atoi(kv.Value); err == nil {
				ts.DefaultGoalNotificationThreshold = pct
			}
		case keyNotifications:
			ts.NotificationsEnabled = parseBool(kv.Value, ts.NotificationsEnabled)
		case keyDarkMode:
			ts.DarkMode = parseBool(kv.Value, ts.DarkMode)
		case keyStopOnClose:
			ts.StopOnClose = parseBool(kv.Value, ts.StopOnClose)
		case keyStopOnTabSwitch:
			ts.StopOnTabSwitch = parseBool(kv.Value, ts.StopOnTabSwitch)
		}
	}
	return ts, nil
}

// SaveSettings writes every field of ts in one transaction.
func (s *Store) SaveSettings(ts TrackingSettings) error {
	if err := s.ready(); err != nil {
		return err
	}
	tx, err := s.begin()
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	defer tx.Rollback()

	for _, kv := range settingsPairs(ts) {
		if _, err := tx.Exec(
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			kv.Key, kv.Value,
		); err != nil {
			return fmt.Errorf("save setting %q: %w", kv.Key, err)
		}
	}
	return tx.Commit()
}

func settingsPairs(ts TrackingSettings) []Setting {
	firstDay := "monday"
	if ts.FirstDayOfWeek == time.Sunday {
		firstDay = "sunday"
	}
	return []Setting{
		{keyMaxDuration, strconv.Itoa(int(ts.MaxTrackingDuration / time.Second))},
		{keyWarningThreshold, strconv.Itoa(int(ts.WarningThreshold / time.Second))},
		{keyFirstDayOfWeek, firstDay},
		{keyGoalThreshold, strconv.Itoa(ts.DefaultGoalNotificationThreshold)},
		{keyNotifications, strconv.FormatBool(ts.NotificationsEnabled)},
		{keyDarkMode, strconv.FormatBool(ts.DarkMode)},
		{keyStopOnClose, strconv.FormatBool(ts.StopOnClose)},
		{keyStopOnTabSwitch, strconv.FormatBool(ts.StopOnTabSwitch)},
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// legacySettings is the JSON shape the old key-value settings copy used.
// Durations were stored in hours and minutes.
type legacySettings struct {
	MaxDurationHours     *float64 `json:"maxDuration"`
	WarningMinutes       *float64 `json:"warningThreshold"`
	FirstDayOfWeek       *string  `json:"firstDayOfWeek"`
	GoalThreshold        *int     `json:"defaultGoalNotificationThreshold"`
	NotificationsEnabled *bool    `json:"notificationsEnabled"`
	DarkMode             *bool    `json:"darkMode"`
	StopOnClose          *bool    `json:"stopOnClose"`
	StopOnTabSwitch      *bool    `json:"stopOnTabSwitch"`
}

// ImportLegacySettings applies a legacy JSON settings file once. After the
// first successful import (or when the file is absent) the table is the only
// source of truth. It reports whether anything was applied.
func (s *Store) ImportLegacySettings(path string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if path == "" {
		return false, nil
	}
	if done, err := s.GetSetting(keyLegacyMigrated); err == nil && done == "true" {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read legacy settings: %w", err)
	}

	var legacy legacySettings
	if err := json.Unmarshal(data, &legacy); err != nil {
		return false, fmt.Errorf("parse legacy settings: %w", err)
	}

	ts, err := s.GetSettings()
	if err != nil {
		return false, err
	}
	if legacy.MaxDurationHours != nil && *legacy.MaxDurationHours > 0 {
		ts.MaxTrackingDuration = time.Duration(*legacy.MaxDurationHours * float64(time.Hour))
	}
	if legacy.WarningMinutes != nil && *legacy.WarningMinutes >= 0 {
		ts.WarningThreshold = time.Duration(*legacy.WarningMinutes * float64(time.Minute))
	}
	if legacy.FirstDayOfWeek != nil {
		if *legacy.FirstDayOfWeek == "sunday" {
			ts.FirstDayOfWeek = time.Sunday
		} else {
			ts.FirstDayOfWeek = time.Monday
		}
	}
	if legacy.GoalThreshold != nil {
		ts.DefaultGoalNotificationThreshold = *legacy.GoalThreshold
	}
	if legacy.NotificationsEnabled != nil {
		ts.NotificationsEnabled = *legacy.NotificationsEnabled
	}
	if legacy.DarkMode != nil {
		ts.DarkMode = *legacy.DarkMode
	}
	if legacy.StopOnClose != nil {
		ts.StopOnClose = *legacy.StopOnClose
	}
	if legacy.StopOnTabSwitch != nil {
		ts.StopOnTabSwitch = *legacy.StopOnTabSwitch
	}

	if err := s.SaveSettings(ts); err != nil {
		return false, err
	}
	if err := s.SetSetting(keyLegacyMigrated, "true"); err != nil {
		return false, fmt.Errorf("mark legacy settings: %w", err)
	}
	return true, nil
}
