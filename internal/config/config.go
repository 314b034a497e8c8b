package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BotToken    string
	DatabaseURL string
	AdminIDs    []int64
	Location    *time.Location
	HTTPAddr    string
	LogLevel    string
	Env         string // dev|prod
	SentryDSN   string

	PeriodType          string // week|month|quarter
	SessionTTL          time.Duration
	MaxReportsPerPeriod int // 0 — без ограничения
	RedisURL            string
	SeedFile            string
}

func Load() (*Config, error) {
	tz := getenv("TZ", "Europe/Moscow")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	adminIDs, err := parseIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}

	ttl, err := time.ParseDuration(getenv("SESSION_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}

	maxReports, err := strconv.Atoi(getenv("MAX_REPORTS_PER_PERIOD", "0"))
	if err != nil || maxReports < 0 {
		return nil, fmt.Errorf("MAX_REPORTS_PER_PERIOD: bad value %q", os.Getenv("MAX_REPORTS_PER_PERIOD"))
	}

	cfg := &Config{
		BotToken:    mustEnv("BOT_TOKEN"),
		DatabaseURL: mustEnv("DATABASE_URL"),
		AdminIDs:    adminIDs,
		Location:    loc,
		HTTPAddr:    httpAddr(),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Env:         getenv("ENV", "dev"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),

		PeriodType:          strings.ToLower(getenv("PERIOD_TYPE", "quarter")),
		SessionTTL:          ttl,
		MaxReportsPerPeriod: maxReports,
		RedisURL:            os.Getenv("REDIS_URL"),
		SeedFile:            os.Getenv("SEED_FILE"),
	}
	return cfg, nil
}

// IsAdmin — входит ли chatID в ADMIN_IDS.
func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// httpAddr: PORT (как в PaaS) важнее HTTP_ADDR.
func httpAddr() string {
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		return ":" + p
	}
	return getenv("HTTP_ADDR", ":8080")
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' || r == '\n' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
