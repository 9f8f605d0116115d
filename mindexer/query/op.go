package query

import (
	"reflect"
	"strings"
)

// Op is a filter operator
type Op uint8

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNin
)

// ops lists every operator, in wire vocabulary order
var ops = [...]Op{OpGt, OpGte, OpLt, OpLte, OpEq, OpNe, OpIn, OpNin}

func (op Op) String() string {
	switch op {
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpGt:
		return "gt"
	case OpGte:
		return "gte"
	case OpLt:
		return "lt"
	case OpLte:
		return "lte"
	case OpIn:
		return "in"
	case OpNin:
		return "nin"
	default:
		return "?"
	}
}

// Wire returns the operator marker used in filter documents, e.g. "$gte"
func (op Op) Wire() string {
	return "$" + op.String()
}

// ParseOp maps a wire marker ("$gt") or a bare name ("gt") to an operator
func ParseOp(s string) (Op, bool) {
	name := strings.TrimPrefix(s, "$")
	for _, op := range ops {
		if op.String() == name {
			return op, true
		}
	}
	return 0, false
}

func (op Op) valid() bool {
	return op <= OpNin
}

// IsRange reports whether op bounds a field from one side
func (op Op) IsRange() bool {
	switch op {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// IsMembership reports whether op tests against a value list
func (op Op) IsMembership() bool {
	return op == OpIn || op == OpNin
}

// Multi reports whether op carries a list of values instead of exactly one
func (op Op) Multi() bool {
	return op.IsMembership()
}

// Eval applies op to a present document value. For OpIn and OpNin the
// operand must be a []any. Values of incomparable types never satisfy a
// comparison; the negative operators treat them as unequal.
func (op Op) Eval(actual, operand any) bool {
	switch op {
	case OpEq:
		return equalValues(actual, operand)
	case OpNe:
		return !equalValues(actual, operand)
	case OpGt:
		c, ok := compareValues(actual, operand)
		return ok && c > 0
	case OpGte:
		c, ok := compareValues(actual, operand)
		return ok && c >= 0
	case OpLt:
		c, ok := compareValues(actual, operand)
		return ok && c < 0
	case OpLte:
		c, ok := compareValues(actual, operand)
		return ok && c <= 0
	case OpIn:
		for _, v := range asList(operand) {
			if equalValues(actual, v) {
				return true
			}
		}
		return false
	case OpNin:
		for _, v := range asList(operand) {
			if equalValues(actual, v) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func asList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{v}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// compareValues orders two values of the same type bracket. ok is false
// when the values cannot be compared.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(plain(a), plain(b))
}

// plain converts Docs into maps so embedded documents compare regardless
// of their representation
func plain(v any) any {
	switch t := v.(type) {
	case Doc:
		return plain(t.Map())
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = plain(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plain(x)
		}
		return out
	case int64, int, int32, float32:
		f, _ := toFloat(t)
		return f
	}
	return v
}
