package cliopt

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mindexer/mindexer/mindexer"
	"github.com/mindexer/mindexer/mindexer/storage"
)

// GlobalOptions are parsed once at the CLI root and passed to subcommands.
// They mirror mindexer.Config plus logging and output flags.
//
// NOTE: This is a separate package to avoid import cycles between the root
// command router and per-command code.
type GlobalOptions struct {
	Backend      string
	SQLitePath   string
	SQLiteDriver string
	PostgresDSN  string
	PgSchema     string
	MemoryLoad   string
	Collection   string

	LogLevel string
	Format   string
}

// DefaultGlobalOptions starts from MINDEXER_* environment variables
func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		Backend:      env("MINDEXER_BACKEND", string(storage.BackendSQLite)),
		SQLitePath:   env("MINDEXER_SQLITE_PATH", "mindexer.db"),
		SQLiteDriver: env("MINDEXER_SQLITE_DRIVER", "sqlite"),
		PostgresDSN:  env("MINDEXER_PG_DSN", ""),
		PgSchema:     env("MINDEXER_PG_SCHEMA", mindexer.DefaultPostgresSchema),
		Collection:   env("MINDEXER_COLLECTION", ""),
		LogLevel:     env("MINDEXER_LOG_LEVEL", "info"),
		Format:       "pretty",
	}
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func BindGlobalFlags(fs *flag.FlagSet, g *GlobalOptions) {
	fs.StringVar(&g.Backend, "backend", g.Backend, "backend: sqlite|postgres|memory")

	fs.StringVar(&g.SQLitePath, "sqlite-path", g.SQLitePath, "sqlite database file")
	fs.StringVar(&g.SQLiteDriver, "sqlite-driver", g.SQLiteDriver, "database/sql driver: sqlite (pure Go) or sqlite3 (cgo)")

	fs.StringVar(&g.PostgresDSN, "pg-dsn", g.PostgresDSN, "postgres DSN")
	fs.StringVar(&g.PgSchema, "pg-schema", g.PgSchema, "postgres schema holding collections")

	fs.StringVar(&g.MemoryLoad, "memory-load", g.MemoryLoad, "JSON-lines file loaded into the memory backend")

	fs.StringVar(&g.Collection, "collection", g.Collection, "collection name")
	fs.StringVar(&g.Collection, "c", g.Collection, "collection name (shorthand)")

	fs.StringVar(&g.LogLevel, "log-level", g.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&g.Format, "format", g.Format, "output format: pretty|json")
}

// Logger writes human readable logs to w at the configured level
func (g GlobalOptions) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(g.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(level).
		With().Timestamp().Logger()
}

// Config turns the flags into a collection configuration
func (g GlobalOptions) Config(logger zerolog.Logger) mindexer.Config {
	opts := mindexer.DefaultOptions()
	opts.Logger = logger
	return mindexer.Config{
		Backend:        storage.Backend(g.Backend),
		SQLitePath:     g.SQLitePath,
		SQLiteDriver:   g.SQLiteDriver,
		PostgresDSN:    g.PostgresDSN,
		PostgresSchema: g.PgSchema,
		MemoryLoad:     g.MemoryLoad,
		Collection:     g.Collection,
		Options:        opts,
	}
}
