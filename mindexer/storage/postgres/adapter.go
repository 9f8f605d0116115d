package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/mindexer/mindexer/mindexer/storage"
	"github.com/mindexer/mindexer/mindexer/storage/sqlbuilder"
)

type Adapter struct {
	DSN    string
	Schema string // collections live here; sample locations are sibling schemas
}

func New(dsn, schema string) *Adapter {
	return &Adapter{DSN: dsn, Schema: schema}
}

func (a *Adapter) Backend() storage.Backend { return storage.BackendPostgres }

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle { return sqlbuilder.PlaceholderDollar }

func (a *Adapter) DatabaseID() string { return "postgres:" + a.Schema }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) SQL() storage.SQL { return SQLTemplates }

var schemaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (a *Adapter) EnsureLocation(ctx context.Context, db *sql.DB, location string) error {
	if location == "" {
		location = a.Schema
	}
	if !schemaNameRe.MatchString(location) {
		return fmt.Errorf("invalid postgres schema name %q (must match %s)", location, schemaNameRe.String())
	}
	_, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(location))
	return err
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	// 1) Connect without search_path to ensure schema exists
	cfg0, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return nil, err
	}
	db0 := stdlib.OpenDB(*cfg0)
	if err := db0.PingContext(ctx); err != nil {
		_ = db0.Close()
		return nil, err
	}
	if err := a.EnsureLocation(ctx, db0, a.Schema); err != nil {
		_ = db0.Close()
		return nil, err
	}
	_ = db0.Close()

	// 2) Connect with search_path pinned to the schema
	cfg, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = make(map[string]string)
	}
	cfg.RuntimeParams["search_path"] = fmt.Sprintf("%s,public", quoteIdent(a.Schema))

	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *Adapter) Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, ddlRegistry)
	return err
}

func (a *Adapter) Table(location, collection string) string {
	if location == "" {
		location = a.Schema
	}
	return quoteIdent(location) + "." + quoteIdent(collection)
}

func (a *Adapter) CreateTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id BIGSERIAL PRIMARY KEY, data JSONB NOT NULL)", table)
}

func (a *Adapter) InsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s(data) VALUES($1::jsonb)", table)
}

func (a *Adapter) IndexName(collection, name string) string {
	return collection + "__" + name
}

func (a *Adapter) CreateIndexSQL(table, physical string, fields []string) string {
	exprs := make([]string, len(fields))
	for i, f := range fields {
		exprs[i] = "(" + a.FieldExpr(f) + ")"
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quoteIdent(physical), table, strings.Join(exprs, ", "))
}

func (a *Adapter) DropIndexSQL(physical string) string {
	return "DROP INDEX IF EXISTS " + quoteIdent(a.Schema) + "." + quoteIdent(physical)
}

func (a *Adapter) ExplainSQL(stmt string) string {
	return "EXPLAIN " + stmt
}

func (a *Adapter) FieldExpr(path string) string {
	return fmt.Sprintf("(data #> %s)", textArray(path))
}

func (a *Adapter) SortExpr(path string) string {
	return a.FieldExpr(path) + " NULLS FIRST"
}

func (a *Adapter) MissingExpr(path string) string {
	return a.FieldExpr(path) + " IS NULL"
}

func (a *Adapter) NullExpr(path string) string {
	f := a.FieldExpr(path)
	return fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", f, f)
}

func (a *Adapter) TypeGuard(path string, k storage.ValueKind) string {
	t := fmt.Sprintf("jsonb_typeof(%s)", a.FieldExpr(path))
	switch k {
	case storage.KindNumber:
		return t + " = 'number'"
	case storage.KindString:
		return t + " = 'string'"
	case storage.KindBool:
		return t + " = 'boolean'"
	case storage.KindObject:
		return t + " = 'object'"
	case storage.KindArray:
		return t + " = 'array'"
	default:
		return t + " = 'null'"
	}
}

// Value binds v as JSON text cast to jsonb; jsonb compares numbers by
// value, so 5 and 5.0 are equal
func (a *Adapter) Value(b storage.Builder, v any) (string, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return b.Arg(string(js)) + "::jsonb", nil
}

// textArray renders a dotted field as a quoted text[] literal:
// a.b -> '{"a","b"}'
func textArray(path string) string {
	parts := strings.Split(path, ".")
	for i, p := range parts {
		p = strings.ReplaceAll(p, `\`, `\\`)
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `\"`) + `"`
	}
	lit := "{" + strings.Join(parts, ",") + "}"
	return "'" + strings.ReplaceAll(lit, "'", "''") + "'"
}
