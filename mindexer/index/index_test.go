package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
	"github.com/mindexer/mindexer/mindexer/query"
)

func parse(t *testing.T, src string) *query.Query {
	t.Helper()
	q, err := query.ParseQuery([]byte(src))
	require.NoError(t, err)
	return q
}

const vehicles = `{"Unladen Weight": 2000, "Make": {"$in": ["INFIN", "HYUND"]}}`

func TestIsCoveredWithoutProjection(t *testing.T) {
	assert.False(t, IsCovered(query.New(), Index{"Make", "Unladen Weight"}))
}

func TestIsCoveredProjectionOnly(t *testing.T) {
	q := query.New()
	require.NoError(t, q.SetProjection("Make"))

	assert.False(t, IsCovered(q, Index{"City", "State"}))
	assert.True(t, IsCovered(q, Index{"City", "Make"}))
	assert.True(t, IsCovered(q, Index{"Make"}))
}

func TestIsCoveredWithPredicates(t *testing.T) {
	q := parse(t, vehicles)
	require.NoError(t, q.SetProjection("City"))

	assert.False(t, IsCovered(q, Index{"City", "State", "Make"}))
	assert.True(t, IsCovered(q, Index{"City", "Make", "Unladen Weight"}))
	assert.True(t, IsCovered(q, Index{"Make", "State", "City", "Unladen Weight"}))
}

func TestIsSubset(t *testing.T) {
	q := parse(t, vehicles)

	assert.False(t, IsSubset(q, Index{"City", "State", "Make"}))
	assert.True(t, IsSubset(q, Index{"Make", "Unladen Weight"}))
	assert.True(t, IsSubset(q, Index{"Make", "State", "City", "Unladen Weight"}))
	assert.True(t, IsSubset(query.New(), Index{"Make"}))
}

func TestCanUseSort(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		sort   []string
		ix     Index
		want   bool
	}{
		{"no sort", `{}`, nil, Index{"a"}, true},
		{"equal", `{}`, []string{"foo", "bar"}, Index{"foo", "bar"}, true},
		{"prefix", `{}`, []string{"foo", "bar"}, Index{"foo", "bar", "baz"}, true},
		{"no prefix", `{}`, []string{"foo", "bar"}, Index{"foo", "other", "blah"}, false},
		{"longer than index", `{}`, []string{"a", "b"}, Index{"a"}, false},
		{"preceded by equality", vehicles, []string{"Make", "City"}, Index{"Unladen Weight", "Make", "City", "State"}, true},
		{"preceded by range", `{"Unladen Weight": {"$gt": 2000}, "Make": {"$in": ["INFIN", "HYUND"]}}`, []string{"Make", "City"}, Index{"Unladen Weight", "Make", "City", "State"}, false},
		{"preceded by unfiltered field", `{}`, []string{"b"}, Index{"a", "b"}, false},
		{"preceded by membership", `{"a": {"$in": [1, 2]}}`, []string{"b"}, Index{"a", "b"}, false},
		{"preceded by ne", `{"a": {"$ne": 1}}`, []string{"b"}, Index{"a", "b"}, true},
		{"preceded by missing", `{"a": {"$exists": false}}`, []string{"b"}, Index{"a", "b"}, true},
		{"last offset", `{"a": 1, "b": 2}`, []string{"c"}, Index{"a", "b", "c"}, true},
		{"second window", `{"a": 1, "b": 2}`, []string{"b", "c"}, Index{"a", "b", "c"}, true},
		{"out of order", `{"a": 1}`, []string{"c", "b"}, Index{"a", "b", "c"}, false},
		{"range inside sort window", `{"a": 5, "b": {"$gt": 6}}`, []string{"b", "c"}, Index{"a", "b", "c", "d"}, true},
		{"range before sort window", `{"a": {"$gt": 5}, "b": {"$gt": 6}}`, []string{"b", "c"}, Index{"a", "b", "c", "d"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := parse(t, tt.filter)
			require.NoError(t, q.SetSort(tt.sort...))
			assert.Equal(t, tt.want, CanUseSort(q, tt.ix))
		})
	}
}

func TestIntersectPrefix(t *testing.T) {
	q := parse(t, `{"Unladen Weight": {"$lte": 3700}, "Make": "HYUND"}`)

	got := Intersect(q, Index{"Unladen Weight", "Foo Field"})
	assert.Equal(t, []string{"Unladen Weight"}, got.Fields())
	assert.Equal(t, `{"Unladen Weight":{"$lte":3700}}`, got.ToWire().String())
}

func TestIntersectEmpty(t *testing.T) {
	q := parse(t, `{"Unladen Weight": {"$lte": 3700}, "Make": "HYUND"}`)

	got := Intersect(q, Index{"Foo Field", "Unladen Weight"})
	assert.Equal(t, []string{}, got.Fields())
	assert.Equal(t, 0, got.Len())
}

func TestIntersectMulti(t *testing.T) {
	q := parse(t, `{"Unladen Weight": {"$lte": 3700}, "Make": "HYUND", "State": "NY"}`)
	require.NoError(t, q.SetSort("Make"))
	require.NoError(t, q.SetLimit(10))

	got := Intersect(q, Index{"State", "Unladen Weight", "Foo Field", "Make"})
	assert.Equal(t, []string{"State", "Unladen Weight"}, got.Fields())
	// index order, not filter order
	assert.Equal(t, `{"State":"NY","Unladen Weight":{"$lte":3700}}`, got.ToWire().String())
	assert.False(t, got.HasSort())
	assert.Equal(t, 0, got.Limit())
}

func TestIntersectDoesNotAliasSource(t *testing.T) {
	q := parse(t, `{"a": {"$gt": 1}}`)
	got := Intersect(q, Index{"a"})
	require.NoError(t, got.AddPredicates(query.D("a", query.D("$lt", 4))))

	assert.Equal(t, `{"a":{"$gt":1}}`, q.ToWire().String())
	assert.Equal(t, `{"a":{"$gt":1,"$lt":4}}`, got.ToWire().String())
}

func TestParseAndName(t *testing.T) {
	ix, err := Parse("Make, Unladen Weight")
	require.NoError(t, err)
	assert.Equal(t, Index{"Make", "Unladen Weight"}, ix)
	assert.Equal(t, "Make_Unladen_Weight", ix.Name())
	assert.Equal(t, "(Make, Unladen Weight)", ix.String())

	_, err = Parse("a,,b")
	assert.True(t, mxerrors.IsKind(err, mxerrors.ErrInvalidArgument))
	_, err = Parse("a,b,a")
	assert.True(t, mxerrors.IsKind(err, mxerrors.ErrInvalidArgument))
	assert.Error(t, Index{}.Validate())
}

func TestChoose(t *testing.T) {
	q := parse(t, `{"a": 1, "b": {"$gt": 2}}`)
	candidates := map[string]Index{
		"a_1":   {"a"},
		"b_1":   {"b"},
		"a_b":   {"a", "b"},
		"c_a_b": {"c", "a", "b"},
	}
	name, ix, ok := Choose(q, candidates)
	require.True(t, ok)
	assert.Equal(t, "a_b", name)
	assert.Equal(t, Index{"a", "b"}, ix)

	_, _, ok = Choose(parse(t, `{"z": 1}`), candidates)
	assert.False(t, ok)
}

func TestChoosePrefersCovered(t *testing.T) {
	q := parse(t, `{"a": 1}`)
	require.NoError(t, q.SetProjection("x"))
	name, _, ok := Choose(q, map[string]Index{
		"a_b": {"a", "b"},
		"a_x": {"a", "x"},
	})
	require.True(t, ok)
	assert.Equal(t, "a_x", name)

	// equal width, neither covered: smaller name wins
	name, _, _ = Choose(parse(t, `{"a": 1}`), map[string]Index{"a_z": {"a", "z"}, "a_b": {"a", "b"}})
	assert.Equal(t, "a_b", name)
}
