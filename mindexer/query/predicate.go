package query

import (
	"fmt"

	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
)

// Predicate is a single (field, operator, values) constraint. OpIn and
// OpNin take one or more values, every other operator exactly one.
type Predicate struct {
	Field  string
	Op     Op
	Values []Value
}

// Eq is field == v
func Eq(field string, v any) Predicate {
	return Predicate{Field: field, Op: OpEq, Values: []Value{Present(v)}}
}

// IsMissing is an equality against the missing value
func IsMissing(field string) Predicate {
	return Predicate{Field: field, Op: OpEq, Values: []Value{Absent()}}
}

// Cmp is a single-valued comparison such as Cmp("age", OpGt, 21)
func Cmp(field string, op Op, v any) Predicate {
	return Predicate{Field: field, Op: op, Values: []Value{Present(v)}}
}

// In is field ∈ vs
func In(field string, vs ...any) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: presentAll(vs)}
}

// Nin is field ∉ vs
func Nin(field string, vs ...any) Predicate {
	return Predicate{Field: field, Op: OpNin, Values: presentAll(vs)}
}

func presentAll(vs []any) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = Present(v)
	}
	return out
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %v", p.Field, p.Op, p.Values)
}

// condition converts p into the condition it adds to a filter holding
// existing on the same field
func (p Predicate) condition(existing *Condition) (Condition, error) {
	if p.Field == "" {
		return Condition{}, mxerrors.InvalidArgument(p.Field, "field path must not be empty")
	}
	if !p.Op.valid() {
		return Condition{}, mxerrors.UnsupportedQuery(fmt.Sprintf("unsupported operator %d", p.Op))
	}

	if p.Op.Multi() {
		if len(p.Values) == 0 {
			return Condition{}, mxerrors.UnsupportedQuery(fmt.Sprintf("%s operator requires at least 1 value (field %s)", p.Op, p.Field))
		}
		vals := make([]any, len(p.Values))
		for i, v := range p.Values {
			x, ok := v.Get()
			if !ok {
				return Condition{}, mxerrors.UnsupportedQuery(fmt.Sprintf("%s can't list the missing value (field %s)", p.Op, p.Field))
			}
			vals[i] = x
		}
		return Ops(Term{Op: p.Op, Values: vals}), nil
	}

	if len(p.Values) != 1 {
		return Condition{}, mxerrors.UnsupportedQuery(fmt.Sprintf("%s operator takes exactly 1 value (field %s)", p.Op, p.Field))
	}
	v, present := p.Values[0].Get()
	switch {
	case !present && p.Op != OpEq:
		return Condition{}, mxerrors.UnsupportedQuery(fmt.Sprintf("only eq can test for a missing value (field %s)", p.Field))
	case !present:
		return Missing(), nil
	case p.Op == OpEq && (existing == nil || existing.IsEquality()):
		return Equal(v), nil
	}
	return Ops(Term{Op: p.Op, Value: v}), nil
}

// Add merges a predicate into the filter. Mixing an equality with other
// operators on one field keeps both as a compound condition whatever order
// they arrive in: the equality becomes an $eq term.
func (q *Query) Add(p Predicate) error {
	var existing *Condition
	if c, ok := q.filter.Get(p.Field); ok {
		existing = &c
	}
	c, err := p.condition(existing)
	if err != nil {
		return err
	}
	if existing != nil && existing.IsEquality() && !c.IsEquality() {
		if v, present := existing.eq.Get(); present {
			q.filter.set(p.Field, Ops(Term{Op: OpEq, Value: v}))
		}
	}
	return q.AddPredicate(p.Field, c)
}

// AddAll adds predicates in order, stopping at the first error
func (q *Query) AddAll(preds ...Predicate) error {
	for _, p := range preds {
		if err := q.Add(p); err != nil {
			return err
		}
	}
	return nil
}
