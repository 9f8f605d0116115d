package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mindexer/mindexer/mindexer/collection"
	"github.com/mindexer/mindexer/mindexer/pipeline"
	"github.com/mindexer/mindexer/mindexer/planner"
	"github.com/mindexer/mindexer/mindexer/query"
	"github.com/mindexer/mindexer/mindexer/storage"
	"github.com/mindexer/mindexer/mindexer/storage/sqlbuilder"
)

// FindResult is a find plus what it took to answer
type FindResult struct {
	Docs []collection.Document
	SQL  string
	Args []any
}

// Find runs q against table and applies its projection
func Find(ctx context.Context, db *sql.DB, adapter storage.Adapter, table string, q *query.Query) (*FindResult, error) {
	builder := sqlbuilder.New(adapter.PlaceholderStyle())
	stmt, err := planner.BuildFindSQL(adapter, builder, table, q)
	if err != nil {
		return nil, fmt.Errorf("compile find: %w", err)
	}
	rows, err := db.QueryContext(ctx, stmt, builder.Args()...)
	if err != nil {
		return nil, fmt.Errorf("run find: %w", err)
	}
	all, err := pipeline.All(ctx, NewRowsCursor(rows, ""))
	if err != nil {
		return nil, fmt.Errorf("read find: %w", err)
	}
	docs := make([]collection.Document, len(all))
	for i, r := range all {
		docs[i] = collection.Project(r, q.Projection())
	}
	return &FindResult{Docs: docs, SQL: stmt, Args: builder.Args()}, nil
}

// Count counts the documents matching q; a nil q counts the whole table
func Count(ctx context.Context, db *sql.DB, adapter storage.Adapter, table string, q *query.Query) (int64, error) {
	if q == nil {
		q = query.New()
	}
	builder := sqlbuilder.New(adapter.PlaceholderStyle())
	stmt, err := planner.BuildCountSQL(adapter, builder, table, q)
	if err != nil {
		return 0, fmt.Errorf("compile count: %w", err)
	}
	var n int64
	if err := db.QueryRowContext(ctx, stmt, builder.Args()...).Scan(&n); err != nil {
		return 0, fmt.Errorf("run count: %w", err)
	}
	return n, nil
}
