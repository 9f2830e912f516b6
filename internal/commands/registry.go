package commands

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tablebot/internal/eventbus"
	logx "tablebot/pkg/logx"
)

// Entry is what a lookup key resolves to.
type Entry struct {
	Record *Record
	// Layout is the memoized Parse(Record.Keyboard); nil when there is no keyboard.
	Layout *Layout
	// Alias is true when the key came from Record.Aliases rather than Record.Name.
	Alias bool
}

// Conflict records a key that was bound more than once while building a table.
// The later binding wins.
type Conflict struct {
	Key      string
	Previous string
	Current  string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%q: %s replaced by %s", c.Key, c.Previous, c.Current)
}

// Table is an immutable lookup table built from one load.
type Table struct {
	records   []*Record
	entries   map[string]Entry
	conflicts []Conflict
	warnings  map[string][]Warning
	builtAt   time.Time
}

// BuildTable binds every record name and alias. Every key of one record
// points at the same *Record. Records with an empty name are ignored.
func BuildTable(recs []Record) *Table {
	t := &Table{
		records:  make([]*Record, 0, len(recs)),
		entries:  make(map[string]Entry, len(recs)),
		warnings: map[string][]Warning{},
		builtAt:  time.Now(),
	}
	bind := func(key string, e Entry) {
		if key == "" {
			return
		}
		if prev, ok := t.entries[key]; ok {
			t.conflicts = append(t.conflicts, Conflict{
				Key:      key,
				Previous: describe(prev),
				Current:  describe(e),
			})
		}
		t.entries[key] = e
	}

	own := make([]Record, len(recs))
	copy(own, recs)
	for i := range own {
		rec := &own[i]
		rec.Name = NormalizeName(rec.Name)
		if rec.Name == "" {
			continue
		}
		t.records = append(t.records, rec)
		layout := Parse(rec.Keyboard)
		if rec.Keyboard != "" {
			if ws := Validate(rec.Keyboard, rec.Name); len(ws) > 0 {
				t.warnings[rec.Name] = ws
			}
		}

		bind(rec.Name, Entry{Record: rec, Layout: layout})
		for _, a := range rec.Aliases {
			bind(NormalizeName(a), Entry{Record: rec, Layout: layout, Alias: true})
		}
	}
	return t
}

func describe(e Entry) string {
	if e.Alias {
		return "alias of /" + e.Record.Name
	}
	return "/" + e.Record.Name
}

// Lookup resolves a name or alias. The command marker is optional.
func (t *Table) Lookup(name string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	e, ok := t.entries[NormalizeName(name)]
	return e, ok
}

// Records returns the records in table order.
func (t *Table) Records() []*Record {
	if t == nil {
		return nil
	}
	return t.records
}

// First returns the first record, or nil for an empty table.
func (t *Table) First() *Record {
	if t == nil || len(t.records) == 0 {
		return nil
	}
	return t.records[0]
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

func (t *Table) Keys() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

func (t *Table) Conflicts() []Conflict {
	if t == nil {
		return nil
	}
	return t.conflicts
}

// Warnings returns keyboard validation warnings keyed by record name.
func (t *Table) Warnings() map[string][]Warning {
	if t == nil {
		return nil
	}
	return t.warnings
}

// ReloadInfo summarizes a successful reload.
type ReloadInfo struct {
	Records   int
	Keys      int
	Conflicts int
	Forced    bool
	Took      time.Duration
}

// ReloadEvent is published after every reload attempt. Err is set on
// failure, in which case Info is zero and the previous table stays live.
type ReloadEvent struct {
	At   time.Time
	Info ReloadInfo
	Err  error
}

// ReloadBus carries reload events to subscribers such as the menu sync.
type ReloadBus = eventbus.Bus[ReloadEvent]

// NewReloadBus returns an empty reload event bus.
func NewReloadBus() *ReloadBus { return eventbus.New[ReloadEvent]() }

// RecordSource produces records; *Loader implements it.
type RecordSource interface {
	Load(ctx context.Context) ([]Record, error)
	Invalidate(ctx context.Context) error
}

// Registry owns the live Table. Reload builds a complete new table before
// swapping it in, so readers see either the old or the new table.
type Registry struct {
	src RecordSource
	bus *ReloadBus
	log logx.Logger

	cur atomic.Pointer[Table]
	mu  sync.Mutex // serializes reloads
}

func NewRegistry(src RecordSource, bus *ReloadBus, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Registry{src: src, bus: bus, log: log.With(logx.String("comp", "commands.registry"))}
	r.cur.Store(BuildTable(nil))
	return r
}

// Current returns the installed table. It is never nil.
func (r *Registry) Current() *Table { return r.cur.Load() }

// Reload loads records and installs a new table. With force the cache is
// invalidated first. On error the previous table stays installed.
func (r *Registry) Reload(ctx context.Context, force bool) (*Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()
	if force {
		if err := r.src.Invalidate(ctx); err != nil {
			r.log.Warn("cache invalidate failed", logx.Err(err))
		}
	}
	recs, err := r.src.Load(ctx)
	if err != nil {
		r.log.Error("command reload failed", logx.Bool("forced", force), logx.Err(err))
		r.publish(ReloadEvent{Err: err})
		return nil, err
	}

	t := BuildTable(recs)
	for name, ws := range t.Warnings() {
		for _, w := range ws {
			r.log.Warn("keyboard: "+w.Message, logx.String("command", name), logx.String("rule", w.Rule))
		}
	}
	for _, c := range t.Conflicts() {
		r.log.Warn("command key conflict; last definition wins",
			logx.String("key", c.Key), logx.String("previous", c.Previous), logx.String("current", c.Current))
	}
	r.cur.Store(t)

	info := ReloadInfo{
		Records:   t.Len(),
		Keys:      t.Keys(),
		Conflicts: len(t.Conflicts()),
		Forced:    force,
		Took:      time.Since(started),
	}
	r.log.Info("commands installed",
		logx.Int("records", info.Records),
		logx.Int("keys", info.Keys),
		logx.Int("conflicts", info.Conflicts),
		logx.Duration("took", info.Took),
	)
	r.publish(ReloadEvent{Info: info})
	return t, nil
}

func (r *Registry) publish(ev ReloadEvent) {
	if r.bus == nil {
		return
	}
	ev.At = time.Now()
	r.bus.Publish(ev)
}
