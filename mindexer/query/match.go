package query

import "strings"

// Matches evaluates the filter against a decoded document. Dotted fields
// walk into embedded documents; an array value matches when the whole
// array or any of its elements does.
func (q *Query) Matches(doc map[string]any) bool {
	for _, field := range q.filter.fields {
		v, found := lookup(doc, field)
		if !q.filter.conds[field].matches(v, found) {
			return false
		}
	}
	return true
}

func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case Doc:
			v, ok := m.Get(part)
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

func (c Condition) matches(v any, found bool) bool {
	if !c.ops {
		want, present := c.eq.Get()
		if !present {
			return !found
		}
		if !found {
			// {field: null} also selects documents without the field
			return want == nil
		}
		return evalTerm(OpEq, v, want)
	}
	for _, t := range c.terms {
		if !found {
			if t.Op == OpNe || t.Op == OpNin {
				continue
			}
			return false
		}
		operand := t.Value
		if t.Op.Multi() {
			operand = t.Values
		}
		if !evalTerm(t.Op, v, operand) {
			return false
		}
	}
	return true
}

func evalTerm(op Op, v, operand any) bool {
	arr, isArr := v.([]any)
	if !isArr {
		return op.Eval(v, operand)
	}
	switch op {
	case OpNe, OpNin:
		// negations must hold for the array and every element
		if !op.Eval(v, operand) {
			return false
		}
		for _, el := range arr {
			if !op.Eval(el, operand) {
				return false
			}
		}
		return true
	}
	if op.Eval(v, operand) {
		return true
	}
	for _, el := range arr {
		if op.Eval(el, operand) {
			return true
		}
	}
	return false
}
