package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Commands CommandsConfig `json:"commands"`
	Cache    CacheConfig    `json:"cache"`
	Dispatch DispatchConfig `json:"dispatch"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via BOT_TOKEN.
	Token    string `json:"token"`
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// Webhook switches from long polling to an HTTP listener when Listen is set.
	Webhook *WebhookConfig `json:"webhook,omitempty"`
}

type WebhookConfig struct {
	Listen    string `json:"listen"`     // e.g. ":8443"
	PublicURL string `json:"public_url"` // URL Telegram posts updates to
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// CommandsConfig locates the command table and controls how it is refreshed.
//
// Defaults:
//   - source_config:   "DemoFromTableBot/bot.json" (JSON with a csv_url field)
//   - local_override:  "DemoFromTableBot/commands-with-start.csv"
//   - fetch_timeout:   "30s" ("0s" disables)
//   - refresh:         "" (disabled); a cron expression or interval, e.g. "@every 10m", "15m"
//   - reload_cooldown: "5s"
type CommandsConfig struct {
	SourceConfig   string `json:"source_config,omitempty"`
	LocalOverride  string `json:"local_override,omitempty"`
	FetchTimeout   string `json:"fetch_timeout,omitempty"`
	Refresh        string `json:"refresh,omitempty"`
	WatchLocal     bool   `json:"watch_local,omitempty"`
	ReloadCooldown string `json:"reload_cooldown,omitempty"`
}

// CacheConfig controls the parsed command table cache.
//
// Driver values:
//   - "file" (default): JSON file at path, freshness from its mtime
//   - "sqlite": single-row table in a SQLite database at path
//   - "none": no cache, every load fetches
//
// TTL is a Go duration string; the DEMO_CSV_TTL environment variable
// (integer seconds) takes precedence. Default 600s.
type CacheConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	TTL         string `json:"ttl,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// DispatchConfig sizes the inbound update worker pool.
// One worker (the default) processes updates strictly in arrival order.
type DispatchConfig struct {
	Workers   int    `json:"workers,omitempty"`
	QueueSize int    `json:"queue_size,omitempty"`
	Timeout   string `json:"timeout,omitempty"` // per-update handler timeout
}
