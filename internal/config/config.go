// Package config reads server settings from the environment
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every server setting
type Config struct {
	Host string
	Port int

	// Session and user limits
	GameDuration    time.Duration
	UserInactive    time.Duration
	ClearGamesEvery time.Duration
	ClearUsersEvery time.Duration
	UsersPerIP      int
	ConnPerIP       int
	EventsPerSecond float64

	// RedisURL enables the snapshot mirror when set
	RedisURL string

	LogLevel slog.Level
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8484,
		GameDuration:    60 * time.Minute,
		UserInactive:    300 * time.Minute,
		ClearGamesEvery: 10 * time.Minute,
		ClearUsersEvery: 10 * time.Minute,
		UsersPerIP:      3,
		ConnPerIP:       2,
		EventsPerSecond: 10,
		LogLevel:        slog.LevelInfo,
	}
}

// LoadDotEnv loads variables from the given files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv builds a configuration from the process environment
func FromEnv() (Config, error) {
	return Parse(os.LookupEnv)
}

// Parse builds a configuration from lookup, starting from the defaults
func Parse(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	p := parser{lookup: lookup}

	p.str("HOST", &cfg.Host)
	p.integer("PORT", &cfg.Port)
	p.minutes("LIMIT_GAME_DURATION_MIN", &cfg.GameDuration)
	p.minutes("LIMIT_USER_INACTIVE_MIN", &cfg.UserInactive)
	p.minutes("CLEAR_GAMES_EACH_X_MIN", &cfg.ClearGamesEvery)
	p.minutes("CLEAR_USERS_EACH_X_MIN", &cfg.ClearUsersEvery)
	p.integer("LIMIT_USERS_PER_IP", &cfg.UsersPerIP)
	p.integer("LIMIT_CONN_PER_IP", &cfg.ConnPerIP)
	p.float("EVENTS_PER_SECOND", &cfg.EventsPerSecond)
	p.str("REDIS_URL", &cfg.RedisURL)
	if v, ok := p.value("LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			p.fail("LOG_LEVEL", err)
		}
	}

	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, nil
}

// parser collects the first bad variable
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) value(key string) (string, bool) {
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.value(key); ok {
		*dst = v
	}
}

func (p *parser) integer(key string, dst *int) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err == nil && n <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		p.fail(key, err)
		return
	}
	*dst = n
}

func (p *parser) float(key string, dst *float64) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err == nil && f <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		p.fail(key, err)
		return
	}
	*dst = f
}

func (p *parser) minutes(key string, dst *time.Duration) {
	var n int
	p.integer(key, &n)
	if n > 0 {
		*dst = time.Duration(n) * time.Minute
	}
}
