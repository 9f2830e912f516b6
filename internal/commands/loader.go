package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"tablebot/internal/storage"
	logx "tablebot/pkg/logx"
)

const (
	DefaultSourceConfig  = "DemoFromTableBot/bot.json"
	DefaultLocalOverride = "DemoFromTableBot/commands-with-start.csv"
	DefaultTTL           = 600 * time.Second
)

// LoaderConfig locates the table and sets the cache freshness window.
type LoaderConfig struct {
	SourceConfig  string
	LocalOverride string
	// TTL is the cache freshness window. Zero or negative disables cache hits.
	TTL time.Duration
}

// Loader resolves the source, serves fresh cache snapshots and otherwise
// fetches and parses the table, refreshing the cache.
type Loader struct {
	cfg     LoaderConfig
	fetcher Fetcher
	cache   storage.Store
	log     logx.Logger
	now     func() time.Time

	sf singleflight.Group
}

type LoaderOption func(*Loader)

// WithClock overrides time.Now for freshness checks.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) { l.now = now }
}

func NewLoader(cfg LoaderConfig, fetcher Fetcher, cache storage.Store, log logx.Logger, opts ...LoaderOption) *Loader {
	if cfg.SourceConfig == "" {
		cfg.SourceConfig = DefaultSourceConfig
	}
	if fetcher == nil {
		fetcher = &HTTPFetcher{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Loader{
		cfg:     cfg,
		fetcher: fetcher,
		cache:   cache,
		log:     log.With(logx.String("comp", "commands.loader")),
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load returns the command records. "No source configured" yields an empty
// slice and nil error; fetch failures are returned. Concurrent calls share
// one underlying load.
func (l *Loader) Load(ctx context.Context) ([]Record, error) {
	v, err, shared := l.sf.Do("load", func() (any, error) {
		return l.load(ctx)
	})
	if shared {
		l.log.Debug("load coalesced")
	}
	if err != nil {
		return nil, err
	}
	return v.([]Record), nil
}

// Invalidate removes the cache artifact so the next Load fetches.
func (l *Loader) Invalidate(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	if err := l.cache.Delete(ctx); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	return nil
}

func (l *Loader) load(ctx context.Context) ([]Record, error) {
	src, err := ResolveSource(l.cfg.SourceConfig, l.cfg.LocalOverride)
	if err != nil {
		l.log.Warn("source config unreadable; no commands", logx.String("path", l.cfg.SourceConfig), logx.Err(err))
		return []Record{}, nil
	}
	if src.Kind == SourceNone {
		l.log.Info("no command source configured", logx.String("path", l.cfg.SourceConfig))
		return []Record{}, nil
	}

	if recs, ok := l.fromCache(ctx); ok {
		l.log.Debug("command table served from cache", logx.Int("records", len(recs)))
		return recs, nil
	}

	started := l.now()
	raw, err := l.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	tbl, err := ReadTable(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if tbl.Skipped > 0 {
		l.log.Warn("malformed rows skipped", logx.String("source", src.String()), logx.Int("skipped", tbl.Skipped))
	}
	if !tbl.HasColumn("command") && len(tbl.Rows) > 0 {
		l.log.Warn("table has no command column", logx.Strings("columns", tbl.Columns))
	}
	recs := RecordsFromTable(tbl)
	l.log.Info("command table fetched",
		logx.String("source", src.String()),
		logx.Int("records", len(recs)),
		logx.Duration("took", l.now().Sub(started)),
	)

	l.toCache(ctx, recs)
	return recs, nil
}

// RecordsFromTable maps table rows to records, skipping rows without a command.
func RecordsFromTable(t *Sheet) []Record {
	recs := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		name := NormalizeName(row.Get("command"))
		if name == "" {
			continue
		}
		recs = append(recs, Record{
			Name:     name,
			Answer:   row.Get("answer"),
			Keyboard: row.Get("keyboard"),
			Aliases:  splitAliases(row.Get("aliases")),
		})
	}
	return recs
}

func (l *Loader) fromCache(ctx context.Context) ([]Record, bool) {
	if l.cache == nil || l.cfg.TTL <= 0 {
		return nil, false
	}
	snap, err := l.cache.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		l.log.Warn("cache read failed", logx.Err(err))
		return nil, false
	}
	age := l.now().Sub(snap.SavedAt)
	if age >= l.cfg.TTL {
		l.log.Debug("cache stale", logx.Duration("age", age), logx.Duration("ttl", l.cfg.TTL))
		return nil, false
	}
	var recs []Record
	if err := json.Unmarshal(snap.Data, &recs); err != nil {
		l.log.Warn("cache decode failed", logx.Err(err))
		return nil, false
	}
	if len(recs) == 0 {
		return nil, false
	}
	return recs, true
}

func (l *Loader) toCache(ctx context.Context, recs []Record) {
	if l.cache == nil {
		return
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		l.log.Warn("cache encode failed", logx.Err(err))
		return
	}
	if err := l.cache.Save(ctx, b); err != nil {
		l.log.Warn("cache write failed", logx.Err(err))
	}
}
