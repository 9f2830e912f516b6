package storage

import (
	"context"
	"errors"
	"strings"

	logx "tablebot/pkg/logx"
)

// DefaultFilePath is where the file driver keeps the cache when no path is configured.
const DefaultFilePath = ".cache/demo_commands.json"

// Open initializes the configured store. An empty driver selects "file".
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driverName(driver)))

	switch driver {
	case "", "file":
		if strings.TrimSpace(cfg.Path) == "" {
			cfg.Path = DefaultFilePath
		}
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "none":
		return noneStore{}, nil
	default:
		return nil, errors.New("unknown cache driver: " + driver)
	}
}

func driverName(d string) string {
	if d == "" {
		return "file"
	}
	return d
}

type noneStore struct{}

func (noneStore) Load(context.Context) (Snapshot, error) { return Snapshot{}, ErrNotFound }
func (noneStore) Save(context.Context, []byte) error      { return nil }
func (noneStore) Delete(context.Context) error            { return nil }
func (noneStore) Close() error                            { return nil }
