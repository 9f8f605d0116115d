package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mindexer/mindexer/mindexer/storage"
)

// ExplainPlan returns the backend's plan for stmt, one step per line. The
// step text is the last column of each plan row, which is the detail
// column of SQLite's EXPLAIN QUERY PLAN and the only column of
// PostgreSQL's EXPLAIN.
func ExplainPlan(ctx context.Context, db *sql.DB, adapter storage.Adapter, stmt string, args []any) ([]string, error) {
	rows, err := db.QueryContext(ctx, adapter.ExplainSQL(stmt), args...)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var steps []string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		step := strings.TrimSpace(toText(vals[len(vals)-1]))
		if step != "" {
			steps = append(steps, step)
		}
	}
	return steps, rows.Err()
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// PlanUsesIndex reports whether any plan step names the physical index as
// a whole identifier, so a_b does not match inside a_b_c
func PlanUsesIndex(plan []string, physical string) bool {
	for _, step := range plan {
		for from := 0; ; {
			i := strings.Index(step[from:], physical)
			if i < 0 {
				break
			}
			start, end := from+i, from+i+len(physical)
			if !identByte(step, start-1) && !identByte(step, end) {
				return true
			}
			from = start + 1
		}
	}
	return false
}

func identByte(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
