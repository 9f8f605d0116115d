package planner

import (
	"fmt"
	"strings"

	"github.com/mindexer/mindexer/mindexer/pipeline"
	"github.com/mindexer/mindexer/mindexer/query"
	"github.com/mindexer/mindexer/mindexer/storage"
)

// CompileOutput is a pipeline compiled into a CTE chain
type CompileOutput struct {
	CTEs         []CTE
	ResultCTE    string
	ExplainSteps []string
	// CountField is set when the pipeline ends in a count; the result is
	// then a single (CountField) column
	CountField string
	// Out is set when the pipeline ends by writing into a namespace
	Out *pipeline.Namespace
}

// CTE represents a Common Table Expression
type CTE struct {
	Name string
	SQL  string
}

// Compiler compiles pipelines into CTEs named cte_0, cte_1, ...
type Compiler struct {
	adapter      storage.Adapter
	builder      storage.Builder
	ctes         []CTE
	explainSteps []string
	cteCounter   int
}

func (c *Compiler) nextCTEName() string {
	name := fmt.Sprintf("cte_%d", c.cteCounter)
	c.cteCounter++
	return name
}

func (c *Compiler) add(sql, step string) string {
	name := c.nextCTEName()
	c.ctes = append(c.ctes, CTE{Name: name, SQL: sql})
	c.explainSteps = append(c.explainSteps, step)
	return name
}

// Compile turns stages run over table into a CTE chain. Count and Out
// may only appear last.
func Compile(adapter storage.Adapter, builder storage.Builder, table string, stages []pipeline.Stage) (*CompileOutput, error) {
	c := &Compiler{adapter: adapter, builder: builder}
	out := &CompileOutput{}

	prev := c.add(fmt.Sprintf("SELECT id, data FROM %s", table), "SCAN "+table)
	for i, st := range stages {
		last := i == len(stages)-1
		switch s := st.(type) {
		case pipeline.Limit:
			if s.N <= 0 {
				return nil, fmt.Errorf("$limit must be positive, got %d", s.N)
			}
			prev = c.add(fmt.Sprintf("SELECT id, data FROM %s ORDER BY id LIMIT %d", prev, s.N),
				fmt.Sprintf("LIMIT %d", s.N))

		case pipeline.Sample:
			if s.Size <= 0 {
				return nil, fmt.Errorf("$sample size must be positive, got %d", s.Size)
			}
			prev = c.add(fmt.Sprintf("SELECT id, data FROM %s ORDER BY random() LIMIT %d", prev, s.Size),
				fmt.Sprintf("SAMPLE %d", s.Size))

		case pipeline.Match:
			q := s.Query
			if q == nil {
				q = query.New()
			}
			where, err := CompileFilter(c.adapter, c.builder, q)
			if err != nil {
				return nil, err
			}
			prev = c.add(fmt.Sprintf("SELECT id, data FROM %s WHERE %s", prev, where),
				"MATCH "+q.ToWire().String())

		case pipeline.Count:
			if !last {
				return nil, fmt.Errorf("$count must be the last stage")
			}
			if s.Field == "" || strings.HasPrefix(s.Field, "$") || strings.Contains(s.Field, ".") {
				return nil, fmt.Errorf("invalid $count field %q", s.Field)
			}
			prev = c.add(fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s", quoteIdent(s.Field), prev),
				"COUNT AS "+s.Field)
			out.CountField = s.Field

		case pipeline.Out:
			if !last {
				return nil, fmt.Errorf("$out must be the last stage")
			}
			if s.To.Collection == "" {
				return nil, fmt.Errorf("$out needs a collection")
			}
			ns := s.To
			out.Out = &ns
			c.explainSteps = append(c.explainSteps, "OUT "+ns.String())

		default:
			return nil, fmt.Errorf("unsupported stage %T", st)
		}
	}

	out.CTEs = c.ctes
	out.ResultCTE = prev
	out.ExplainSteps = c.explainSteps
	return out, nil
}

// CompileFilter renders q's filter as a boolean SQL expression
func CompileFilter(adapter storage.Adapter, builder storage.Builder, q *query.Query) (string, error) {
	f := q.Filter()
	parts := make([]string, 0, f.Len())
	for _, field := range f.Fields() {
		cond, _ := f.Get(field)
		sql, err := compileCondition(adapter, builder, field, cond)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	if len(parts) == 0 {
		return "1=1", nil
	}
	return strings.Join(parts, " AND "), nil
}

func compileCondition(a storage.Adapter, b storage.Builder, field string, cond query.Condition) (string, error) {
	if v, ok := cond.Equality(); ok {
		x, present := v.Get()
		if !present {
			return a.MissingExpr(field), nil
		}
		return compileEq(a, b, field, x)
	}

	terms := cond.Terms()
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		sql, err := compileTerm(a, b, field, t)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func compileTerm(a storage.Adapter, b storage.Builder, field string, t query.Term) (string, error) {
	switch t.Op {
	case query.OpEq:
		return compileEq(a, b, field, t.Value)
	case query.OpNe:
		eq, err := compileEq(a, b, field, t.Value)
		if err != nil {
			return "", err
		}
		return negate(eq), nil
	case query.OpIn:
		return compileIn(a, b, field, t.Values)
	case query.OpNin:
		in, err := compileIn(a, b, field, t.Values)
		if err != nil {
			return "", err
		}
		return negate(in), nil
	case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		return compileRange(a, b, field, t.Op, t.Value)
	}
	return "", fmt.Errorf("unsupported operator %s", t.Op)
}

var sqlOps = map[query.Op]string{
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

func compileRange(a storage.Adapter, b storage.Builder, field string, op query.Op, v any) (string, error) {
	kind, err := storage.KindOf(v)
	if err != nil {
		return "", err
	}
	if kind == storage.KindNull {
		// nothing orders against null
		return "1=0", nil
	}
	ph, err := a.Value(b, v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s AND %s %s %s)", a.TypeGuard(field, kind), a.FieldExpr(field), sqlOps[op], ph), nil
}

func compileEq(a storage.Adapter, b storage.Builder, field string, v any) (string, error) {
	kind, err := storage.KindOf(v)
	if err != nil {
		return "", err
	}
	if kind == storage.KindNull {
		return a.NullExpr(field), nil
	}
	ph, err := a.Value(b, v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s AND %s = %s)", a.TypeGuard(field, kind), a.FieldExpr(field), ph), nil
}

// compileIn groups values by type bracket so each group is one IN list
func compileIn(a storage.Adapter, b storage.Builder, field string, values []any) (string, error) {
	var order []storage.ValueKind
	groups := make(map[storage.ValueKind][]any)
	for _, v := range values {
		k, err := storage.KindOf(v)
		if err != nil {
			return "", err
		}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], v)
	}

	parts := make([]string, 0, len(order))
	for _, k := range order {
		if k == storage.KindNull {
			parts = append(parts, a.NullExpr(field))
			continue
		}
		phs := make([]string, len(groups[k]))
		for i, v := range groups[k] {
			ph, err := a.Value(b, v)
			if err != nil {
				return "", err
			}
			phs[i] = ph
		}
		parts = append(parts, fmt.Sprintf("(%s AND %s IN (%s))", a.TypeGuard(field, k), a.FieldExpr(field), strings.Join(phs, ", ")))
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

// negate treats an unknown (NULL) comparison as false before negating,
// so negations select documents where the field is missing
func negate(cond string) string {
	return fmt.Sprintf("NOT COALESCE(%s, FALSE)", cond)
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
