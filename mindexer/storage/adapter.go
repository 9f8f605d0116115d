package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mindexer/mindexer/mindexer/query"
	"github.com/mindexer/mindexer/mindexer/storage/sqlbuilder"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// Adapter abstracts the SQL dialect a collection is stored in. Documents
// live as JSON in a (id, data) table per collection; filters are compiled
// over JSON path expressions so compound indexes are expression indexes.
type Adapter interface {
	Backend() Backend
	PlaceholderStyle() sqlbuilder.PlaceholderStyle
	DatabaseID() string

	Connect(ctx context.Context) (*sql.DB, error)
	Close() error

	// Init creates the index registry
	Init(ctx context.Context, db *sql.DB) error
	EnsureLocation(ctx context.Context, db *sql.DB, location string) error

	// Table returns the quoted table holding collection in location; the
	// empty location is the database's own
	Table(location, collection string) string
	CreateTableSQL(table string) string
	// InsertSQL takes one argument, the document's JSON text
	InsertSQL(table string) string

	// IndexName is the physical name of a registered index, as it shows
	// up in query plans
	IndexName(collection, name string) string
	CreateIndexSQL(table, physical string, fields []string) string
	DropIndexSQL(physical string) string
	ExplainSQL(stmt string) string

	FieldExpr(path string) string
	SortExpr(path string) string
	// MissingExpr holds when the document has no value at path
	MissingExpr(path string) string
	// NullExpr holds when the value at path is missing or JSON null
	NullExpr(path string) string
	// TypeGuard holds when the value at path is of kind k
	TypeGuard(path string, k ValueKind) string
	// Value binds v for comparison against FieldExpr
	Value(b Builder, v any) (string, error)

	SQL() SQL
}

// SQL holds the static statements of the index registry
type SQL struct {
	InsertIndex string // collection, name, fields JSON
	DeleteIndex string // collection, name
	ListIndexes string // collection -> name, fields JSON in creation order
}

// Builder interface for placeholder management
type Builder interface {
	Arg(v any) string
	Args() []any
	Len() int
}

// ValueKind is the JSON type bracket of a value. Range operators only
// compare values of the same bracket.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindNumber
	KindString
	KindBool
	KindObject
	KindArray
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "?"
}

// KindOf classifies a normalized filter value
func KindOf(v any) (ValueKind, error) {
	switch v.(type) {
	case nil:
		return KindNull, nil
	case int64, float64, int, int32, float32:
		return KindNumber, nil
	case string:
		return KindString, nil
	case bool:
		return KindBool, nil
	case query.Doc, map[string]any:
		return KindObject, nil
	case []any:
		return KindArray, nil
	}
	return 0, fmt.Errorf("unsupported value type %T", v)
}
