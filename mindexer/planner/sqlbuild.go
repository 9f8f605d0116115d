package planner

import (
	"fmt"
	"strings"

	"github.com/mindexer/mindexer/mindexer/query"
	"github.com/mindexer/mindexer/mindexer/storage"
)

func withClause(ctes []CTE) string {
	if len(ctes) == 0 {
		return ""
	}
	parts := make([]string, len(ctes))
	for i, cte := range ctes {
		parts[i] = fmt.Sprintf("%s AS (%s)", cte.Name, cte.SQL)
	}
	return "WITH " + strings.Join(parts, ", ") + " "
}

// BuildPipelineSQL selects the result of a compiled pipeline: the count
// column, or (id, data) rows in id order
func BuildPipelineSQL(compiled *CompileOutput) string {
	if compiled.CountField != "" {
		return fmt.Sprintf("%sSELECT %s FROM %s", withClause(compiled.CTEs), quoteIdent(compiled.CountField), compiled.ResultCTE)
	}
	return fmt.Sprintf("%sSELECT id, data FROM %s ORDER BY id", withClause(compiled.CTEs), compiled.ResultCTE)
}

// BuildOutSQL copies the documents of a compiled pipeline into target
func BuildOutSQL(compiled *CompileOutput, target string) string {
	return fmt.Sprintf("%sINSERT INTO %s(data) SELECT data FROM %s ORDER BY id", withClause(compiled.CTEs), target, compiled.ResultCTE)
}

// BuildFindSQL selects the documents matching q from table, sorted and
// limited as q asks. Missing sort fields order first.
func BuildFindSQL(adapter storage.Adapter, builder storage.Builder, table string, q *query.Query) (string, error) {
	where, err := CompileFilter(adapter, builder, q)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT id, data FROM %s WHERE %s", table, where)
	if q.HasSort() {
		keys := make([]string, 0, len(q.Sort())+1)
		for _, f := range q.Sort() {
			keys = append(keys, adapter.SortExpr(f))
		}
		keys = append(keys, "id")
		fmt.Fprintf(&sb, " ORDER BY %s", strings.Join(keys, ", "))
	} else {
		sb.WriteString(" ORDER BY id")
	}
	if q.Limit() > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit())
	}
	return sb.String(), nil
}

// BuildCountSQL counts the documents matching q in table
func BuildCountSQL(adapter storage.Adapter, builder storage.Builder, table string, q *query.Query) (string, error) {
	where, err := CompileFilter(adapter, builder, q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where), nil
}
