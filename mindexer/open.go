package mindexer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mindexer/mindexer/mindexer/collection"
	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
	"github.com/mindexer/mindexer/mindexer/storage"
	"github.com/mindexer/mindexer/mindexer/storage/memory"
	"github.com/mindexer/mindexer/mindexer/storage/postgres"
	"github.com/mindexer/mindexer/mindexer/storage/sqlite"
)

// Config selects a backend and the collection to open in it
type Config struct {
	Backend storage.Backend

	SQLitePath   string
	SQLiteDriver string

	PostgresDSN    string
	PostgresSchema string

	// MemoryLoad is a JSON-lines file loaded into a memory collection
	MemoryLoad string

	Collection string
	Options    Options
}

// DefaultPostgresSchema holds collections when no schema is configured
const DefaultPostgresSchema = "mindexer"

// Open opens the configured collection
func Open(ctx context.Context, cfg Config) (collection.Collection, error) {
	if cfg.Collection == "" {
		return nil, mxerrors.InvalidArgument("collection", "collection name must not be empty")
	}
	switch storage.Backend(strings.ToLower(string(cfg.Backend))) {
	case storage.BackendSQLite, "":
		if cfg.SQLitePath == "" {
			return nil, mxerrors.InvalidArgument("sqlite-path", "sqlite path must not be empty")
		}
		driver := cfg.SQLiteDriver
		if driver == "" {
			driver = sqlite.DefaultDriver
		}
		return openSQL(ctx, sqlite.NewWithDriver(cfg.SQLitePath, driver), cfg)

	case storage.BackendPostgres, "pg":
		if cfg.PostgresDSN == "" {
			return nil, mxerrors.InvalidArgument("pg-dsn", "postgres DSN must not be empty")
		}
		schema := cfg.PostgresSchema
		if schema == "" {
			schema = DefaultPostgresSchema
		}
		return openSQL(ctx, postgres.New(cfg.PostgresDSN, schema), cfg)

	case storage.BackendMemory:
		mopts := memory.DefaultOptions()
		mopts.Logger = cfg.Options.Logger
		if cfg.Options.Now != nil {
			mopts.Now = cfg.Options.Now
		}
		c := memory.New(cfg.Collection, mopts)
		if cfg.MemoryLoad != "" {
			f, err := os.Open(cfg.MemoryLoad)
			if err != nil {
				return nil, mxerrors.Wrap(mxerrors.ErrIO, "open "+cfg.MemoryLoad, err)
			}
			defer f.Close()
			if _, err := c.LoadJSONL(ctx, f); err != nil {
				return nil, err
			}
		}
		return c, nil
	}
	return nil, mxerrors.New(mxerrors.ErrBackend, fmt.Sprintf("unknown backend %q (sqlite|postgres|memory)", cfg.Backend))
}

// openSQL keeps a failed open from returning a typed nil collection
func openSQL(ctx context.Context, adapter storage.Adapter, cfg Config) (collection.Collection, error) {
	c, err := OpenSQL(ctx, adapter, cfg.Collection, cfg.Options)
	if err != nil {
		return nil, err
	}
	return c, nil
}
