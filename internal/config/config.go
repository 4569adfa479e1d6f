// Package config reads runtime settings from a .env file and the
// environment. Environment variables win over .env, which wins over the
// defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sadopc/worklog/internal/store"
)

type Config struct {
	DBPath         string // sqlite file
	LogLevel       string // debug, info, warn or error
	LogFile        string // log destination while the TUI owns the terminal
	LegacySettings string // old JSON settings file imported once on startup
	ProxyAddr      string // listen address of the offline proxy
	Upstream       string // web frontend the proxy fronts
	CacheVersion   int    // offline cache generation
	TelegramToken  string
	TelegramChatID int64
}

// Load reads .env from the working directory if present. A missing file is
// not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPath, err := store.DefaultDBPath()
	if err != nil {
		dbPath = "worklog.db"
	}

	c := &Config{
		DBPath:         get("WORKLOG_DB", dbPath),
		LogLevel:       strings.ToLower(get("WORKLOG_LOG_LEVEL", "info")),
		LogFile:        get("WORKLOG_LOG_FILE", ""),
		LegacySettings: get("WORKLOG_LEGACY_SETTINGS", ""),
		ProxyAddr:      get("WORKLOG_PROXY_ADDR", "127.0.0.1:8787"),
		Upstream:       get("WORKLOG_UPSTREAM", "http://127.0.0.1:3000"),
		TelegramToken:  strings.TrimSpace(get("WORKLOG_TELEGRAM_TOKEN", "")),
	}

	c.CacheVersion, err = strconv.Atoi(get("WORKLOG_CACHE_VERSION", "1"))
	if err != nil || c.CacheVersion < 1 {
		return c, fmt.Errorf("WORKLOG_CACHE_VERSION must be a positive integer")
	}

	if raw := get("WORKLOG_TELEGRAM_CHAT_ID", ""); raw != "" {
		c.TelegramChatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c, fmt.Errorf("WORKLOG_TELEGRAM_CHAT_ID: %w", err)
		}
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return c, fmt.Errorf("WORKLOG_TELEGRAM_CHAT_ID is required when a telegram token is set")
	}
	return c, nil
}

// Telegram reports whether telegram notifications are configured.
func (c *Config) Telegram() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
