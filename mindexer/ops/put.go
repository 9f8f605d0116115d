package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mindexer/mindexer/mindexer/collection"
	"github.com/mindexer/mindexer/mindexer/storage"
)

// EnsureTable creates the collection's table if needed
func EnsureTable(ctx context.Context, db *sql.DB, adapter storage.Adapter, table string) error {
	if _, err := db.ExecContext(ctx, adapter.CreateTableSQL(table)); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

// InsertDocuments stores docs in one transaction and returns how many
// were written
func InsertDocuments(ctx context.Context, db *sql.DB, adapter storage.Adapter, table string, docs []collection.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, adapter.InsertSQL(table))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		b, err := json.Marshal(doc)
		if err != nil {
			return i, fmt.Errorf("encode document %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, string(b)); err != nil {
			return i, fmt.Errorf("insert document %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(docs), nil
}
