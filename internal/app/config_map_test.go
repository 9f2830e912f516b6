package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tablebot/internal/commands"
	"tablebot/internal/config"
)

func TestMapLoaderConfigDefaults(t *testing.T) {
	lc, err := mapLoaderConfig(&config.Config{})
	require.NoError(t, err)
	require.Equal(t, commands.DefaultSourceConfig, lc.SourceConfig)
	require.Equal(t, commands.DefaultLocalOverride, lc.LocalOverride)
	require.Equal(t, commands.DefaultTTL, lc.TTL)

	var cfg config.Config
	cfg.Cache.TTL = "0s"
	lc, err = mapLoaderConfig(&cfg)
	require.NoError(t, err)
	require.Zero(t, lc.TTL)
}

func TestMapStorageConfig(t *testing.T) {
	tests := []struct {
		name    string
		cache   config.CacheConfig
		want    string
		wantErr bool
	}{
		{name: "default", want: ""},
		{name: "none", cache: config.CacheConfig{Driver: "None"}, want: "none"},
		{name: "sqlite", cache: config.CacheConfig{Driver: "sqlite", Path: "c.db"}, want: "sqlite"},
		{name: "sqlite without path", cache: config.CacheConfig{Driver: "sqlite"}, wantErr: true},
		{name: "unknown", cache: config.CacheConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := mapStorageConfig(&config.Config{Cache: tt.cache})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, sc.Driver)
		})
	}

	sc, err := mapStorageConfig(&config.Config{Cache: config.CacheConfig{Driver: "sqlite", Path: "c.db"}})
	require.NoError(t, err)
	require.Equal(t, time.Second, sc.BusyTimeout)
}

func TestMapDispatchConfig(t *testing.T) {
	dc, err := mapDispatchConfig(&config.Config{})
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, dc.ReloadCooldown)
	require.Zero(t, dc.Timeout)

	var cfg config.Config
	cfg.Dispatch.Workers = -1
	_, err = mapDispatchConfig(&cfg)
	require.Error(t, err)
}

func TestMapLogConfigGroupLog(t *testing.T) {
	var cfg config.Config
	cfg.Telegram.GroupLog = "-100123"
	cfg.Logging.Telegram.Enabled = true
	lc := mapLogConfig(&cfg)
	require.Equal(t, int64(-100123), lc.Telegram.ChatID)
	require.True(t, lc.Telegram.Enabled)
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(&config.Config{}))

	bad := []func(*config.Config){
		func(c *config.Config) { c.Telegram.PollTimeout = "soon" },
		func(c *config.Config) { c.Telegram.GroupLog = "logs" },
		func(c *config.Config) { c.Cache.TTL = "-1s" },
		func(c *config.Config) { c.Commands.Refresh = "whenever" },
		func(c *config.Config) { c.Commands.FetchTimeout = "x" },
		func(c *config.Config) { c.Dispatch.Timeout = "1 minute" },
	}
	for i, mut := range bad {
		var cfg config.Config
		mut(&cfg)
		require.Error(t, validateConfig(&cfg), "case %d", i)
	}

	var ok config.Config
	ok.Commands.Refresh = "every:10m"
	require.NoError(t, validateConfig(&ok))
}

func TestRestartOnlyChanges(t *testing.T) {
	prev := &config.Config{}
	next := &config.Config{}
	next.Logging.Level = "debug"
	require.Empty(t, restartOnlyChanges(prev, next))

	next.Cache.TTL = "1m"
	next.Telegram.Webhook = &config.WebhookConfig{Listen: ":8443"}
	require.Equal(t, []string{"telegram", "cache"}, restartOnlyChanges(prev, next))
}
