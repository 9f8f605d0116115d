package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mindexer/mindexer/mindexer/pipeline"
	"github.com/mindexer/mindexer/mindexer/planner"
	"github.com/mindexer/mindexer/mindexer/storage"
	"github.com/mindexer/mindexer/mindexer/storage/sqlbuilder"
)

// Aggregate runs stages over table. A pipeline ending in $out replaces
// the target namespace inside one transaction and yields no rows.
func Aggregate(ctx context.Context, db *sql.DB, adapter storage.Adapter, table string, stages []pipeline.Stage) (pipeline.Cursor, error) {
	builder := sqlbuilder.New(adapter.PlaceholderStyle())
	compiled, err := planner.Compile(adapter, builder, table, stages)
	if err != nil {
		return nil, fmt.Errorf("compile pipeline: %w", err)
	}

	if compiled.Out != nil {
		if err := writeOut(ctx, db, adapter, compiled, builder.Args()); err != nil {
			return nil, err
		}
		return pipeline.NewSliceCursor(nil), nil
	}

	rows, err := db.QueryContext(ctx, planner.BuildPipelineSQL(compiled), builder.Args()...)
	if err != nil {
		return nil, fmt.Errorf("run pipeline: %w", err)
	}
	return NewRowsCursor(rows, compiled.CountField), nil
}

func writeOut(ctx context.Context, db *sql.DB, adapter storage.Adapter, compiled *planner.CompileOutput, args []any) error {
	ns := *compiled.Out
	if err := adapter.EnsureLocation(ctx, db, ns.Location); err != nil {
		return fmt.Errorf("ensure location %s: %w", ns.Location, err)
	}
	target := adapter.Table(ns.Location, ns.Collection)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+target); err != nil {
		return fmt.Errorf("drop %s: %w", target, err)
	}
	if _, err := tx.ExecContext(ctx, adapter.CreateTableSQL(target)); err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := tx.ExecContext(ctx, planner.BuildOutSQL(compiled, target), args...); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return tx.Commit()
}

// DropNamespace drops the table behind a namespace if it exists
func DropNamespace(ctx context.Context, db *sql.DB, adapter storage.Adapter, table string) error {
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	return nil
}
