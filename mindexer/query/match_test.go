package query

import "testing"

func TestMatches(t *testing.T) {
	doc := map[string]any{
		"a":    int64(5),
		"name": "kings",
		"addr": map[string]any{"city": "NYC", "zip": int64(10001)},
		"tags": []any{"x", "y"},
		"gone": nil,
	}

	tests := []struct {
		filter string
		want   bool
	}{
		{`{}`, true},
		{`{"a": 5}`, true},
		{`{"a": 5.0}`, true},
		{`{"a": 6}`, false},
		{`{"a": {"$gt": 3, "$lte": 5}}`, true},
		{`{"a": {"$gt": 5}}`, false},
		{`{"a": {"$gt": "3"}}`, false},
		{`{"a": {"$ne": "5"}}`, true},
		{`{"a": {"$in": [1, 5]}}`, true},
		{`{"a": {"$nin": [1, 5]}}`, false},
		{`{"name": {"$gte": "k", "$lt": "l"}}`, true},
		{`{"addr.city": "NYC"}`, true},
		{`{"addr.zip": {"$lt": 20000}}`, true},
		{`{"addr.city.x": "NYC"}`, false},
		{`{"addr": {"city": "NYC", "zip": 10001}}`, true},
		{`{"addr": {"zip": 10001, "city": "NYC"}}`, true},
		{`{"tags": "y"}`, true},
		{`{"tags": ["x", "y"]}`, true},
		{`{"tags": {"$in": ["z", "x"]}}`, true},
		{`{"tags": {"$nin": ["z"]}}`, true},
		{`{"tags": {"$ne": "x"}}`, false},
		{`{"missing": {"$ne": 1}}`, true},
		{`{"missing": {"$nin": [1]}}`, true},
		{`{"missing": {"$gt": 1}}`, false},
		{`{"missing": {"$exists": false}}`, true},
		{`{"a": {"$exists": false}}`, false},
		{`{"missing": null}`, true},
		{`{"gone": null}`, true},
		{`{"a": null}`, false},
		{`{"a": 5, "name": "queens"}`, false},
	}
	for _, tt := range tests {
		q := mustParse(t, tt.filter)
		if got := q.Matches(doc); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.filter, tt.want, got)
		}
	}
}
