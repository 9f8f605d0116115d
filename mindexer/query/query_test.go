package query

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
)

func mustParse(t *testing.T, src string) *Query {
	t.Helper()
	q, err := ParseQuery([]byte(src))
	if err != nil {
		t.Fatalf("parse %s: %v", src, err)
	}
	return q
}

func assertWire(t *testing.T, q *Query, want string) {
	t.Helper()
	if got := q.ToWire().String(); got != want {
		t.Fatalf("wire mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestNewQueryIsEmpty(t *testing.T) {
	q := New()
	if q.Len() != 0 {
		t.Fatalf("expected empty filter, got %d fields", q.Len())
	}
	assertWire(t, q, "{}")
	if q.Sort() != nil || q.Projection() != nil || q.Limit() != 0 {
		t.Fatalf("expected no sort, projection or limit: %s", q)
	}
	if got := q.Fields(); len(got) != 0 {
		t.Fatalf("expected no fields, got %v", got)
	}
}

func TestFromWireOperator(t *testing.T) {
	q := mustParse(t, `{"foo": {"$gt": 16}}`)
	assertWire(t, q, `{"foo":{"$gt":16}}`)
	if q.HasSort() || q.HasProjection() || q.Limit() != 0 {
		t.Fatalf("unexpected options: %s", q)
	}
}

func TestSetLimit(t *testing.T) {
	q := New()
	if err := q.SetLimit(12); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Limit() != 12 {
		t.Errorf("expected limit 12, got %d", q.Limit())
	}
	for _, bad := range []int{0, -3} {
		err := q.SetLimit(bad)
		if !mxerrors.IsKind(err, mxerrors.ErrInvalidArgument) {
			t.Errorf("limit %d: expected invalid_argument, got %v", bad, err)
		}
	}
	if q.Limit() != 12 {
		t.Errorf("failed SetLimit changed the limit to %d", q.Limit())
	}
	q.ClearLimit()
	if q.Limit() != 0 {
		t.Errorf("expected cleared limit, got %d", q.Limit())
	}
}

func TestProjectionAndSort(t *testing.T) {
	q := New()
	if err := q.SetProjection("foo", "bar", "foo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := q.Projection(); !reflect.DeepEqual(got, []string{"foo", "bar"}) {
		t.Errorf("expected [foo bar], got %v", got)
	}
	if err := q.SetSort("foo", "bar"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := q.Sort(); !reflect.DeepEqual(got, []string{"foo", "bar"}) {
		t.Errorf("expected [foo bar], got %v", got)
	}
	if err := q.SetSort("a", ""); !mxerrors.IsKind(err, mxerrors.ErrInvalidArgument) {
		t.Errorf("expected invalid_argument for empty sort field, got %v", err)
	}
	if err := q.SetSort(); err != nil || q.HasSort() {
		t.Errorf("expected sort cleared, err=%v sort=%v", err, q.Sort())
	}
}

func TestFieldsUnion(t *testing.T) {
	q := mustParse(t, `{"foo": {"$gt": 16}, "bar": {"$in": [1, 2, 3]}}`)
	_ = q.SetSort("a", "foo")
	_ = q.SetProjection("foo", "new")

	want := []string{"a", "bar", "foo", "new"}
	if got := q.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFieldsWithSpaces(t *testing.T) {
	q := mustParse(t, `{"Unladen Weight": 2000, "Make": {"$in": ["INFIN", "HYUND"]}}`)
	_ = q.SetProjection("City")
	_ = q.SetSort("State", "County")

	want := []string{"City", "County", "Make", "State", "Unladen Weight"}
	if got := q.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestAddPredicatesNewField(t *testing.T) {
	q := mustParse(t, `{"foo": {"$gt": 16}, "bar": {"$in": [1, 2, 3]}}`)
	if err := q.AddPredicates(D("woo", "hoo")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, ok := q.Filter().Get("woo")
	if !ok {
		t.Fatalf("woo not in filter")
	}
	v, ok := c.Equality()
	if !ok {
		t.Fatalf("expected bare equality, got %s", c)
	}
	if got, _ := v.Get(); got != "hoo" {
		t.Errorf("expected hoo, got %v", got)
	}
	assertWire(t, q, `{"foo":{"$gt":16},"bar":{"$in":[1,2,3]},"woo":"hoo"}`)
}

func TestAddPredicatesMergesOperators(t *testing.T) {
	q := mustParse(t, `{"foo": {"$gt": 16}, "bar": {"$in": [1, 2, 3]}}`)
	if err := q.AddPredicates(D("foo", D("$lt", 20))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertWire(t, q, `{"foo":{"$gt":16,"$lt":20},"bar":{"$in":[1,2,3]}}`)

	// last write wins per operator, position of the first kept
	if err := q.AddPredicates(D("foo", D("$gt", 18))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertWire(t, q, `{"foo":{"$gt":18,"$lt":20},"bar":{"$in":[1,2,3]}}`)
}

func TestAddPredicatesMultiple(t *testing.T) {
	q := mustParse(t, `{"foo": {"$gt": 5}}`)
	if err := q.AddPredicates(D("foo", D("$lt", 10), "bar", true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertWire(t, q, `{"foo":{"$gt":5,"$lt":10},"bar":true}`)
}

func TestAddPredicateConflict(t *testing.T) {
	q := mustParse(t, `{"foo": 16, "bar": {"$in": [1, 2, 3]}}`)
	err := q.AddPredicates(D("foo", D("$lt", 20)))
	if err == nil {
		t.Fatalf("expected conflict")
	}
	if !mxerrors.IsKind(err, mxerrors.ErrPredicateConflict) {
		t.Errorf("expected predicate_conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "can't update foo") {
		t.Errorf("unexpected message: %v", err)
	}

	// operator map refined by a scalar conflicts too
	err = q.AddPredicates(D("bar", 2))
	if !mxerrors.IsKind(err, mxerrors.ErrPredicateConflict) {
		t.Errorf("expected predicate_conflict, got %v", err)
	}
	assertWire(t, q, `{"foo":16,"bar":{"$in":[1,2,3]}}`)
}

func TestAddPredicateIdenticalEquality(t *testing.T) {
	q := mustParse(t, `{"foo": 16}`)
	if err := q.AddPredicate("foo", Equal(16)); err != nil {
		t.Fatalf("identical equality should merge, got %v", err)
	}
	if err := q.AddPredicate("foo", Equal(17)); !mxerrors.IsKind(err, mxerrors.ErrPredicateConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := q.AddPredicate("foo", Missing()); !mxerrors.IsKind(err, mxerrors.ErrPredicateConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	assertWire(t, q, `{"foo":16}`)
}

func TestConditionsAreShared(t *testing.T) {
	q1 := mustParse(t, `{"a": {"$gt": 1}}`)
	c, _ := q1.Filter().Get("a")

	q2 := New()
	if err := q2.AddPredicate("a", c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q2.AddPredicate("a", Ops(Term{Op: OpLt, Value: 5})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertWire(t, q2, `{"a":{"$gt":1,"$lt":5}}`)
	assertWire(t, q1, `{"a":{"$gt":1}}`)
}

func TestCloneIsIndependent(t *testing.T) {
	q := mustParse(t, `{"a": {"$gt": 1}}`)
	_ = q.SetSort("a")
	c := q.Clone()
	_ = c.AddPredicates(D("b", 2))
	_ = c.SetSort("b")

	assertWire(t, q, `{"a":{"$gt":1}}`)
	if got := q.Sort(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("clone changed sort of original: %v", got)
	}
}

func TestOpsRepeatedOperator(t *testing.T) {
	c := Ops(
		Term{Op: OpGt, Value: 1},
		Term{Op: OpLt, Value: 5},
		Term{Op: OpGt, Value: 3},
	)
	q := New()
	_ = q.AddPredicate("x", c)
	assertWire(t, q, `{"x":{"$gt":3,"$lt":5}}`)
}

func TestEqualityOnly(t *testing.T) {
	tests := []struct {
		cond Condition
		want bool
	}{
		{Equal(3), true},
		{Missing(), true},
		{Ops(Term{Op: OpEq, Value: 3}), true},
		{Ops(Term{Op: OpNe, Value: 3}), true},
		{Ops(Term{Op: OpGte, Value: 3}), false},
		{Ops(Term{Op: OpIn, Values: []any{1, 2}}), false},
		{Ops(Term{Op: OpEq, Value: 3}, Term{Op: OpLt, Value: 9}), false},
	}
	for _, tt := range tests {
		if got := tt.cond.EqualityOnly(); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.cond, tt.want, got)
		}
	}
}

func TestAddTriples(t *testing.T) {
	q := New()
	err := q.AddAll(
		Eq("make", "HYUND"),
		Cmp("weight", OpGt, 1000),
		Eq("weight", 1500),
		In("state", "NY", "CA"),
		IsMissing("county"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertWire(t, q, `{"make":"HYUND","weight":{"$gt":1000,"$eq":1500},"state":{"$in":["NY","CA"]},"county":{"$exists":false}}`)
}

func TestAddTriplesEqualityAndRangeEitherOrder(t *testing.T) {
	rangeFirst := New()
	if err := rangeFirst.AddAll(Cmp("w", OpGt, 1000), Eq("w", 1500)); err != nil {
		t.Fatalf("range then eq: %v", err)
	}
	assertWire(t, rangeFirst, `{"w":{"$gt":1000,"$eq":1500}}`)

	eqFirst := New()
	if err := eqFirst.AddAll(Eq("w", 1500), Cmp("w", OpGt, 1000)); err != nil {
		t.Fatalf("eq then range: %v", err)
	}
	assertWire(t, eqFirst, `{"w":{"$eq":1500,"$gt":1000}}`)

	for _, q := range []*Query{rangeFirst, eqFirst} {
		if !q.Matches(map[string]any{"w": int64(1500)}) {
			t.Errorf("%s should match w=1500", q)
		}
		if q.Matches(map[string]any{"w": int64(1200)}) {
			t.Errorf("%s should not match w=1200", q)
		}
	}

	// a second scalar equality still conflicts, and so does wire refinement
	strict := New()
	if err := strict.AddAll(Eq("w", 1500)); err != nil {
		t.Fatal(err)
	}
	if err := strict.Add(Eq("w", 1600)); !mxerrors.IsKind(err, mxerrors.ErrPredicateConflict) {
		t.Fatalf("expected conflict for a second equality, got %v", err)
	}
	if err := strict.AddPredicates(D("w", D("$gt", 1000))); !mxerrors.IsKind(err, mxerrors.ErrPredicateConflict) {
		t.Fatalf("expected wire refinement of a scalar to conflict, got %v", err)
	}
	assertWire(t, strict, `{"w":1500}`)
}

func TestAddTripleMissingThenRangeConflicts(t *testing.T) {
	q := New()
	if err := q.Add(IsMissing("w")); err != nil {
		t.Fatal(err)
	}
	if err := q.Add(Cmp("w", OpGt, 1)); !mxerrors.IsKind(err, mxerrors.ErrPredicateConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSameEqualityAcrossNumberTypes(t *testing.T) {
	q := mustParse(t, `{"a": 5}`)
	if err := q.Add(Eq("a", 5.0)); err != nil {
		t.Fatalf("5.0 onto 5 should be a no-op, got %v", err)
	}
	if err := q.Add(Eq("a", 5.5)); !mxerrors.IsKind(err, mxerrors.ErrPredicateConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	assertWire(t, q, `{"a":5}`)

	built, err := FromWire(D("a", 5))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := built.ToWire().Get("a"); got != int64(5) {
		t.Fatalf("expected int64(5), got %T(%v)", got, got)
	}
}

func TestAddTripleValidation(t *testing.T) {
	tests := []struct {
		name string
		pred Predicate
	}{
		{"in without values", In("a")},
		{"nin without values", Nin("a")},
		{"gt with two values", Predicate{Field: "a", Op: OpGt, Values: []Value{Present(1), Present(2)}}},
		{"gt without value", Predicate{Field: "a", Op: OpGt}},
		{"absent with gt", Predicate{Field: "a", Op: OpGt, Values: []Value{Absent()}}},
		{"absent in list", Predicate{Field: "a", Op: OpIn, Values: []Value{Present(1), Absent()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Add(tt.pred)
			if !mxerrors.IsKind(err, mxerrors.ErrUnsupportedQuery) {
				t.Fatalf("expected unsupported_query, got %v", err)
			}
		})
	}
	if err := New().Add(Eq("", 1)); !mxerrors.IsKind(err, mxerrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid_argument for empty field, got %v", err)
	}
}

func TestQueryString(t *testing.T) {
	q := mustParse(t, `{"a": 1}`)
	_ = q.SetSort("b", "c")
	_ = q.SetLimit(3)
	want := `Query(filter={"a":1}, sort=(b, c), limit=3)`
	if got := q.String(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestQueryJSON(t *testing.T) {
	q := mustParse(t, `{"b": {"$lte": 2.5}, "a": "x"}`)
	_ = q.SetSort("a")
	_ = q.SetLimit(7)

	b, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"filter":{"b":{"$lte":2.5},"a":"x"},"sort":["a"],"limit":7}`
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}

	var back Query
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.String() != q.String() {
		t.Errorf("expected %s, got %s", q, &back)
	}

	if err := json.Unmarshal([]byte(`{"filter":{"$or":[{"a":1}]}}`), &back); !mxerrors.IsKind(err, mxerrors.ErrUnsupportedQuery) {
		t.Errorf("expected unsupported_query, got %v", err)
	}
}
