package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tablebot/internal/commands"
	"tablebot/internal/config"
	"tablebot/internal/storage"
	"tablebot/internal/task/scheduler"
	telegram "tablebot/internal/transport/telegram/adapter"
	"tablebot/internal/transport/telegram/router"
	logx "tablebot/pkg/logx"
)

func mapAdapterConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	out := telegram.Config{Token: cfg.Telegram.Token, PollTimeout: poll}
	if wh := cfg.Telegram.Webhook; wh != nil && strings.TrimSpace(wh.Listen) != "" {
		out.Webhook = &telegram.WebhookConfig{Listen: wh.Listen, PublicURL: wh.PublicURL}
	}
	return out, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	var chatID int64
	if s := strings.TrimSpace(cfg.Telegram.GroupLog); s != "" {
		chatID, _ = strconv.ParseInt(s, 10, 64)
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     chatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	c := cfg.Cache
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	path := strings.TrimSpace(c.Path)
	switch driver {
	case "", "file", "none":
		return storage.Config{Driver: driver, Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("cache.path is required when cache.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("cache.busy_timeout", c.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown cache.driver: %s", c.Driver)
	}
}

func mapLoaderConfig(cfg *config.Config) (commands.LoaderConfig, error) {
	ttl, err := config.ParseTTL("cache.ttl", cfg.Cache.TTL, commands.DefaultTTL)
	if err != nil {
		return commands.LoaderConfig{}, err
	}
	src := strings.TrimSpace(cfg.Commands.SourceConfig)
	if src == "" {
		src = commands.DefaultSourceConfig
	}
	override := strings.TrimSpace(cfg.Commands.LocalOverride)
	if override == "" {
		override = commands.DefaultLocalOverride
	}
	return commands.LoaderConfig{SourceConfig: src, LocalOverride: override, TTL: ttl}, nil
}

func mapFetchTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseTTL("commands.fetch_timeout", cfg.Commands.FetchTimeout, 30*time.Second)
}

func mapDispatchConfig(cfg *config.Config) (router.Config, error) {
	if cfg.Dispatch.Workers < 0 {
		return router.Config{}, fmt.Errorf("dispatch.workers must be >= 0")
	}
	if cfg.Dispatch.QueueSize < 0 {
		return router.Config{}, fmt.Errorf("dispatch.queue_size must be >= 0")
	}
	timeout, err := config.ParseDurationField("dispatch.timeout", cfg.Dispatch.Timeout)
	if err != nil {
		return router.Config{}, err
	}
	cooldown, err := config.ParseDurationOrDefault("commands.reload_cooldown", cfg.Commands.ReloadCooldown, 5*time.Second)
	if err != nil {
		return router.Config{}, err
	}
	return router.Config{
		Workers:        cfg.Dispatch.Workers,
		QueueSize:      cfg.Dispatch.QueueSize,
		Timeout:        timeout,
		ReloadCooldown: cooldown,
	}, nil
}

// validateConfig rejects a hot-reloaded config the running app could not map.
func validateConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := mapAdapterConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapLoaderConfig(cfg); err != nil {
		return err
	}
	if _, err := mapFetchTimeout(cfg); err != nil {
		return err
	}
	if _, err := mapDispatchConfig(cfg); err != nil {
		return err
	}
	if r := strings.TrimSpace(cfg.Commands.Refresh); r != "" {
		if _, err := scheduler.ParseSchedule(r); err != nil {
			return fmt.Errorf("commands.refresh: %w", err)
		}
	}
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			return fmt.Errorf("telegram.group_log: invalid chat id %q", g)
		}
	}
	return nil
}

// restartOnlyChanges names sections that differ between two configs but are
// only read at startup.
func restartOnlyChanges(prev, next *config.Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	var out []string
	if prev.Telegram.Token != next.Telegram.Token || prev.Telegram.PollTimeout != next.Telegram.PollTimeout ||
		!webhookEqual(prev.Telegram.Webhook, next.Telegram.Webhook) {
		out = append(out, "telegram")
	}
	if prev.Cache != next.Cache {
		out = append(out, "cache")
	}
	if prev.Commands != next.Commands {
		out = append(out, "commands")
	}
	if prev.Dispatch != next.Dispatch {
		out = append(out, "dispatch")
	}
	return out
}

func webhookEqual(a, b *config.WebhookConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
