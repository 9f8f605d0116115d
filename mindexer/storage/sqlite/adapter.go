package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mindexer/mindexer/mindexer/query"
	"github.com/mindexer/mindexer/mindexer/storage"
	"github.com/mindexer/mindexer/mindexer/storage/sqlbuilder"
)

// DefaultDriver is the pure Go driver registered by modernc.org/sqlite.
// "sqlite3" selects github.com/mattn/go-sqlite3 when it is linked in.
const DefaultDriver = "sqlite"

type Adapter struct {
	Path       string
	DriverName string
}

func New(path string) *Adapter {
	return &Adapter{Path: path, DriverName: DefaultDriver}
}

func NewWithDriver(path, driver string) *Adapter {
	if driver == "" {
		driver = DefaultDriver
	}
	return &Adapter{Path: path, DriverName: driver}
}

func (a *Adapter) Backend() storage.Backend {
	return storage.BackendSQLite
}

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle {
	return sqlbuilder.PlaceholderQuestion
}

func (a *Adapter) DatabaseID() string {
	return a.Path
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	dsn := a.Path
	if !strings.Contains(dsn, "?") {
		dsn = dsn + "?_busy_timeout=5000"
	} else {
		dsn = dsn + "&_busy_timeout=5000"
	}
	db, err := sql.Open(a.DriverName, dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases alive across statements
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *Adapter) Close() error {
	return nil
}

func (a *Adapter) SQL() storage.SQL {
	return SQLTemplates
}

func (a *Adapter) Init(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ddlRegistry); err != nil {
		return err
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode=WAL;")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")
	return nil
}

// EnsureLocation is a no-op: locations are table name prefixes
func (a *Adapter) EnsureLocation(ctx context.Context, db *sql.DB, location string) error {
	return nil
}

func (a *Adapter) Table(location, collection string) string {
	if location == "" {
		return quoteIdent(collection)
	}
	return quoteIdent(location + "__" + collection)
}

func (a *Adapter) CreateTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, data TEXT NOT NULL)", table)
}

func (a *Adapter) InsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s(data) VALUES(json(?1))", table)
}

func (a *Adapter) IndexName(collection, name string) string {
	return collection + "__" + name
}

func (a *Adapter) CreateIndexSQL(table, physical string, fields []string) string {
	exprs := make([]string, len(fields))
	for i, f := range fields {
		exprs[i] = a.FieldExpr(f)
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quoteIdent(physical), table, strings.Join(exprs, ", "))
}

func (a *Adapter) DropIndexSQL(physical string) string {
	return "DROP INDEX IF EXISTS " + quoteIdent(physical)
}

func (a *Adapter) ExplainSQL(stmt string) string {
	return "EXPLAIN QUERY PLAN " + stmt
}

func (a *Adapter) FieldExpr(path string) string {
	return fmt.Sprintf("json_extract(data, %s)", jsonPath(path))
}

func (a *Adapter) SortExpr(path string) string {
	// NULLs sort first, like missing fields
	return a.FieldExpr(path)
}

func (a *Adapter) MissingExpr(path string) string {
	return fmt.Sprintf("json_type(data, %s) IS NULL", jsonPath(path))
}

func (a *Adapter) NullExpr(path string) string {
	return a.FieldExpr(path) + " IS NULL"
}

func (a *Adapter) TypeGuard(path string, k storage.ValueKind) string {
	jt := fmt.Sprintf("json_type(data, %s)", jsonPath(path))
	switch k {
	case storage.KindNumber:
		return jt + " IN ('integer', 'real')"
	case storage.KindString:
		return jt + " = 'text'"
	case storage.KindBool:
		return jt + " IN ('true', 'false')"
	case storage.KindObject:
		return jt + " = 'object'"
	case storage.KindArray:
		return jt + " = 'array'"
	default:
		return jt + " = 'null'"
	}
}

// Value binds v. json_extract yields 1/0 for booleans and minified JSON
// text for objects and arrays, so those are bound in the same form.
func (a *Adapter) Value(b storage.Builder, v any) (string, error) {
	switch t := v.(type) {
	case int64, float64, string:
		return b.Arg(t), nil
	case int:
		return b.Arg(int64(t)), nil
	case bool:
		if t {
			return b.Arg(1), nil
		}
		return b.Arg(0), nil
	case query.Doc, []any, map[string]any:
		js, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return "json(" + b.Arg(string(js)) + ")", nil
	}
	return "", fmt.Errorf("can't bind %T", v)
}

// jsonPath renders a dotted field as a quoted SQL literal of an SQLite
// JSON path: a.b -> '$."a"."b"'
func jsonPath(path string) string {
	parts := strings.Split(path, ".")
	var sb strings.Builder
	sb.WriteString("$")
	for _, p := range parts {
		sb.WriteString(`."`)
		sb.WriteString(strings.ReplaceAll(p, `"`, `\"`))
		sb.WriteString(`"`)
	}
	return "'" + strings.ReplaceAll(sb.String(), "'", "''") + "'"
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
