package query

import (
	"fmt"
	"reflect"
)

// Value is a predicate operand that is either present or absent. An
// absent value stands for "the field is missing" and is only valid in an
// equality.
type Value struct {
	v       any
	present bool
}

// Present wraps a concrete value
func Present(v any) Value {
	return Value{v: normalizeValue(v), present: true}
}

// Absent returns the missing-value marker
func Absent() Value {
	return Value{}
}

func (v Value) IsAbsent() bool { return !v.present }

// Get returns the wrapped value and whether it is present
func (v Value) Get() (any, bool) { return v.v, v.present }

func (v Value) String() string {
	if !v.present {
		return "<absent>"
	}
	return fmt.Sprint(v.v)
}

// Term is a single operator constraint on a field
type Term struct {
	Op     Op
	Value  any   // single-valued operators
	Values []any // OpIn, OpNin
}

func (t Term) wire() any {
	if t.Op.Multi() {
		out := make([]any, len(t.Values))
		copy(out, t.Values)
		return out
	}
	return t.Value
}

// Condition is everything a filter says about one field: either a bare
// equality (possibly against the missing value) or an ordered set of
// operator terms.
//
// Conditions are never modified after construction. Merging builds new
// term slices, so one Condition can be held by several queries.
type Condition struct {
	eq    Value
	terms []Term
	ops   bool
}

// Equal is the condition {field: v}
func Equal(v any) Condition {
	return Condition{eq: Present(v)}
}

// Missing is the condition {field: {$exists: false}}
func Missing() Condition {
	return Condition{eq: Absent()}
}

// Ops builds an operator condition. A repeated operator keeps the position
// of its first occurrence and the value of its last.
func Ops(terms ...Term) Condition {
	c := Condition{ops: true}
	for _, t := range terms {
		c.terms = withTerm(c.terms, normalizeTerm(t))
	}
	return c
}

func normalizeTerm(t Term) Term {
	if t.Op.Multi() {
		vals := make([]any, len(t.Values))
		for i, v := range t.Values {
			vals[i] = normalizeValue(v)
		}
		return Term{Op: t.Op, Values: vals}
	}
	return Term{Op: t.Op, Value: normalizeValue(t.Value)}
}

// withTerm returns a copy of terms with t set
func withTerm(terms []Term, t Term) []Term {
	out := make([]Term, len(terms), len(terms)+1)
	copy(out, terms)
	for i := range out {
		if out[i].Op == t.Op {
			out[i] = t
			return out
		}
	}
	return append(out, t)
}

// IsEquality reports whether c is a bare equality (including Missing)
func (c Condition) IsEquality() bool { return !c.ops }

// Equality returns the compared value of a bare equality
func (c Condition) Equality() (Value, bool) {
	if c.ops {
		return Value{}, false
	}
	return c.eq, true
}

// Terms returns a copy of the operator terms, nil for a bare equality
func (c Condition) Terms() []Term {
	if !c.ops {
		return nil
	}
	out := make([]Term, len(c.terms))
	copy(out, c.terms)
	return out
}

// Term returns the term for op, if c has one
func (c Condition) Term(op Op) (Term, bool) {
	for _, t := range c.terms {
		if t.Op == op {
			return t, true
		}
	}
	return Term{}, false
}

// EqualityOnly reports whether c pins the field without a range or
// membership operator. Only such fields may precede a sort window in a
// compound index.
func (c Condition) EqualityOnly() bool {
	if !c.ops {
		return true
	}
	for _, t := range c.terms {
		if t.Op.IsRange() || t.Op.IsMembership() {
			return false
		}
	}
	return true
}

// Wire renders c as a filter value: the scalar itself, {$exists: false},
// or the operator document
func (c Condition) Wire() any {
	if !c.ops {
		v, ok := c.eq.Get()
		if !ok {
			return Doc{{Key: keyExists, Value: false}}
		}
		return v
	}
	d := make(Doc, len(c.terms))
	for i, t := range c.terms {
		d[i] = Elem{Key: t.Op.Wire(), Value: t.wire()}
	}
	return d
}

// Same reports whether two conditions render the same wire value. Bare
// numeric equalities compare by value, so 5 and 5.0 are the same.
func (c Condition) Same(o Condition) bool {
	if c.ops != o.ops || (!c.ops && c.eq.present != o.eq.present) {
		return false
	}
	if !c.ops {
		a, _ := c.eq.Get()
		b, _ := o.eq.Get()
		fa, okA := toFloat(a)
		fb, okB := toFloat(b)
		if okA && okB {
			return fa == fb
		}
	}
	return reflect.DeepEqual(c.Wire(), o.Wire())
}

func (c Condition) String() string {
	switch w := c.Wire().(type) {
	case Doc:
		return w.String()
	default:
		return fmt.Sprint(w)
	}
}

// merge folds next into c. Only two operator conditions can be merged;
// an identical equality is accepted as a no-op.
func merge(field string, c, next Condition) (Condition, error) {
	if c.ops && next.ops {
		merged := Condition{ops: true, terms: c.terms}
		for _, t := range next.terms {
			merged.terms = withTerm(merged.terms, t)
		}
		return merged, nil
	}
	if c.Same(next) {
		return c, nil
	}
	return Condition{}, conflict(field)
}
