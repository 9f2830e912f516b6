package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env holds the environment overrides. They win over the config file.
type Env struct {
	BotToken string `env:"BOT_TOKEN"`
	// CacheTTL is DEMO_CSV_TTL in whole seconds; 0 disables cache hits. It is
	// kept raw so a bad value only loses the override instead of failing startup.
	CacheTTL string `env:"DEMO_CSV_TTL"`
}

// ParseEnv loads Env from the process environment.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// CacheTTLSeconds parses DEMO_CSV_TTL. ok is false when it is unset; err is
// set when it is present but not a non-negative integer.
func (e Env) CacheTTLSeconds() (secs int, ok bool, err error) {
	raw := strings.TrimSpace(e.CacheTTL)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("DEMO_CSV_TTL: want whole seconds >= 0, got %q", e.CacheTTL)
	}
	return n, true, nil
}

// ApplyEnv overlays environment overrides onto cfg in place. An invalid
// DEMO_CSV_TTL is ignored; callers report it via Env.CacheTTLSeconds.
func ApplyEnv(cfg *Config, e Env) {
	if cfg == nil {
		return
	}
	if t := strings.TrimSpace(e.BotToken); t != "" {
		cfg.Telegram.Token = t
	}
	if secs, ok, _ := e.CacheTTLSeconds(); ok {
		cfg.Cache.TTL = (time.Duration(secs) * time.Second).String()
	}
}
