// Package store implements the import pipeline's persistence on PostgreSQL
// and SQLite.
package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/coach/internal/config"
	"github.com/JonMunkholm/coach/internal/core"
)

// Store is what the binaries need from a database: the pipeline's write and
// read paths plus meet management and lifecycle.
type Store interface {
	core.Store
	core.HistoryReader

	SaveMeet(ctx context.Context, m core.Meet) error
	CreateSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// Open connects to the database selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres, "":
		s, err := OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
