package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mindexer/mindexer/mindexer/collection"
	"github.com/mindexer/mindexer/mindexer/index"
	"github.com/mindexer/mindexer/mindexer/storage"
)

// CreateIndex builds the expression index and records it in the registry
func CreateIndex(ctx context.Context, db *sql.DB, adapter storage.Adapter, coll, table string, ix index.Index) (string, error) {
	name := ix.Name()
	fieldsJSON, err := json.Marshal([]string(ix))
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, adapter.CreateIndexSQL(table, adapter.IndexName(coll, name), ix)); err != nil {
		return "", fmt.Errorf("create index %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, adapter.SQL().InsertIndex, coll, name, string(fieldsJSON)); err != nil {
		return "", fmt.Errorf("register index %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return name, nil
}

// DropIndex drops a registered index; it reports false when coll has no
// index of that name
func DropIndex(ctx context.Context, db *sql.DB, adapter storage.Adapter, coll, name string) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, adapter.SQL().DeleteIndex, coll, name)
	if err != nil {
		return false, fmt.Errorf("unregister index %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, adapter.DropIndexSQL(adapter.IndexName(coll, name))); err != nil {
		return false, fmt.Errorf("drop index %s: %w", name, err)
	}
	return true, tx.Commit()
}

// ListIndexes returns coll's registered indexes in creation order
func ListIndexes(ctx context.Context, db *sql.DB, adapter storage.Adapter, coll string) ([]collection.IndexInfo, error) {
	rows, err := db.QueryContext(ctx, adapter.SQL().ListIndexes, coll)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	defer rows.Close()

	var out []collection.IndexInfo
	for rows.Next() {
		var name, fieldsJSON string
		if err := rows.Scan(&name, &fieldsJSON); err != nil {
			return nil, err
		}
		var fields []string
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return nil, fmt.Errorf("index %s: bad field list: %w", name, err)
		}
		out = append(out, collection.IndexInfo{Name: name, Fields: index.Index(fields)})
	}
	return out, rows.Err()
}
