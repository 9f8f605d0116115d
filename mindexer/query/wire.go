package query

import (
	"fmt"
	"strings"

	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
)

// Structural keys of the wire syntax
const (
	keyAnd     = "$and"
	keyOr      = "$or"
	keyNor     = "$nor"
	keyText    = "$text"
	keyComment = "$comment"
	keyExists  = "$exists"
)

// FromWire builds a query from a filter document.
//
// A top-level $and is flattened: its conjuncts are merged in order as if
// added one by one. $and anywhere below the top level, $or, $nor and
// $text are rejected. $comment keys are dropped. Numbers are normalized
// to int64 or float64.
func FromWire(doc Doc) (*Query, error) {
	doc, _ = normalizeValue(doc).(Doc)
	if err := validate(doc, 0); err != nil {
		return nil, err
	}

	q := New()
	for _, e := range doc {
		switch e.Key {
		case keyComment:
			continue
		case keyAnd:
			for _, c := range e.Value.([]any) {
				for _, ce := range c.(Doc) {
					if ce.Key == keyComment {
						continue
					}
					if err := q.addWire(ce.Key, ce.Value); err != nil {
						return nil, err
					}
				}
			}
		default:
			if err := q.addWire(e.Key, e.Value); err != nil {
				return nil, err
			}
		}
	}
	return q, nil
}

// ParseQuery decodes a JSON filter and builds a query from it
func ParseQuery(b []byte) (*Query, error) {
	doc, err := ParseJSON(b)
	if err != nil {
		return nil, mxerrors.Wrap(mxerrors.ErrInvalidArgument, "parse filter JSON", err)
	}
	return FromWire(doc)
}

// AddPredicates merges each key of doc into the filter. Structural keys
// are rejected: conjunctions are only flattened when a query is built.
func (q *Query) AddPredicates(doc Doc) error {
	doc, _ = normalizeValue(doc).(Doc)
	for _, e := range doc {
		if strings.HasPrefix(e.Key, "$") {
			return mxerrors.UnsupportedQuery(fmt.Sprintf("unsupported operator '%s' outside query construction", e.Key))
		}
		if err := validate(e.Value, 1); err != nil {
			return err
		}
		if err := q.addWire(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func (q *Query) addWire(field string, value any) error {
	if strings.HasPrefix(field, "$") {
		return mxerrors.UnsupportedQuery(fmt.Sprintf("unsupported operator '%s'", field))
	}
	if field == "" {
		return mxerrors.InvalidArgument(field, "field path must not be empty")
	}
	c, err := conditionFromWire(field, value)
	if err != nil {
		return err
	}
	return q.AddPredicate(field, c)
}

// validate walks v looking for constructs the predicate model can't hold
func validate(v any, depth int) error {
	switch t := v.(type) {
	case Doc:
		for _, e := range t {
			switch e.Key {
			case keyOr, keyNor:
				return mxerrors.UnsupportedQuery(fmt.Sprintf("disjunction (%s) is not supported", e.Key))
			case keyText:
				return mxerrors.UnsupportedQuery("full-text search ($text) is not supported")
			case keyAnd:
				if depth > 0 {
					return mxerrors.UnsupportedQuery("conjunction only supported at top level")
				}
				conjuncts, ok := e.Value.([]any)
				if !ok || len(conjuncts) == 0 {
					return mxerrors.UnsupportedQuery("$and requires a non-empty array of documents")
				}
				for _, c := range conjuncts {
					if _, ok := c.(Doc); !ok {
						return mxerrors.UnsupportedQuery("$and requires a non-empty array of documents")
					}
					if err := validate(c, depth+1); err != nil {
						return err
					}
				}
				continue
			}
			if err := validate(e.Value, depth+1); err != nil {
				return err
			}
		}
	case []any:
		for _, x := range t {
			if err := validate(x, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func conditionFromWire(field string, v any) (Condition, error) {
	d, ok := v.(Doc)
	if !ok {
		return Equal(v), nil
	}

	var nops int
	for _, e := range d {
		if strings.HasPrefix(e.Key, "$") {
			nops++
		}
	}
	switch {
	case nops == 0:
		// embedded document equality
		return Equal(d), nil
	case nops != len(d):
		return Condition{}, mxerrors.UnsupportedQuery(fmt.Sprintf("field %s mixes operators and document keys", field))
	}

	if exists, ok := d.Get(keyExists); ok {
		if len(d) > 1 {
			return Condition{}, mxerrors.UnsupportedQuery(fmt.Sprintf("$exists can't be combined with other operators (field %s)", field))
		}
		if b, isBool := exists.(bool); !isBool || b {
			return Condition{}, mxerrors.UnsupportedQuery(fmt.Sprintf("only {$exists: false} is supported (field %s)", field))
		}
		return Missing(), nil
	}

	terms := make([]Term, 0, len(d))
	for _, e := range d {
		op, ok := ParseOp(e.Key)
		if !ok {
			return Condition{}, mxerrors.UnsupportedQuery(fmt.Sprintf("unsupported operator '%s' (field %s)", e.Key, field))
		}
		if op.Multi() {
			vals, ok := e.Value.([]any)
			if !ok || len(vals) == 0 {
				return Condition{}, mxerrors.UnsupportedQuery(fmt.Sprintf("%s requires a non-empty array (field %s)", e.Key, field))
			}
			terms = append(terms, Term{Op: op, Values: vals})
			continue
		}
		terms = append(terms, Term{Op: op, Value: e.Value})
	}
	return Ops(terms...), nil
}
