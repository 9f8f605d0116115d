package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
)

// Query is a conjunctive filter plus the find options that matter for
// index selection: an ascending sort, a projection and a limit.
type Query struct {
	filter     Filter
	sort       []string
	projection []string
	limit      int
}

// New returns an empty query
func New() *Query {
	return &Query{}
}

// Filter exposes the query's filter for reading
func (q *Query) Filter() *Filter {
	return &q.filter
}

// AddPredicate merges a condition on field into the filter.
//
// A new field is appended. Two operator conditions merge, the later value
// winning per operator. A bare equality can't be refined: anything but an
// identical equality fails with a predicate conflict.
func (q *Query) AddPredicate(field string, c Condition) error {
	if field == "" {
		return mxerrors.InvalidArgument(field, "field path must not be empty")
	}
	existing, ok := q.filter.Get(field)
	if !ok {
		q.filter.set(field, c)
		return nil
	}
	merged, err := merge(field, existing, c)
	if err != nil {
		return err
	}
	q.filter.set(field, merged)
	return nil
}

// ToWire returns the filter in wire syntax. The internal form is wire
// compatible, so this is a rendering, not a translation.
func (q *Query) ToWire() Doc {
	return q.filter.Wire()
}

// Sort returns the sort fields, nil when the query has no sort
func (q *Query) Sort() []string {
	return cloneStrings(q.sort)
}

func (q *Query) HasSort() bool { return len(q.sort) > 0 }

// SetSort sets the ascending sort order; no fields clears it
func (q *Query) SetSort(fields ...string) error {
	if err := checkFields("sort", fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		q.sort = nil
		return nil
	}
	q.sort = cloneStrings(fields)
	return nil
}

// Projection returns the projected fields, nil when there is no projection
func (q *Query) Projection() []string {
	return cloneStrings(q.projection)
}

func (q *Query) HasProjection() bool { return len(q.projection) > 0 }

// SetProjection sets the projected fields; duplicates are dropped and no
// fields clears the projection
func (q *Query) SetProjection(fields ...string) error {
	if err := checkFields("projection", fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		q.projection = nil
		return nil
	}
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	q.projection = out
	return nil
}

// Limit returns the limit, 0 when unlimited
func (q *Query) Limit() int { return q.limit }

// SetLimit sets a positive limit
func (q *Query) SetLimit(n int) error {
	if n <= 0 {
		return mxerrors.InvalidArgument("limit", fmt.Sprintf("limit must be a positive integer, got %d", n))
	}
	q.limit = n
	return nil
}

func (q *Query) ClearLimit() { q.limit = 0 }

// Fields returns every field the query references (filter, sort and
// projection), sorted and deduplicated
func (q *Query) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(fs []string) {
		for _, f := range fs {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	add(q.filter.fields)
	add(q.sort)
	add(q.projection)
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}

// Len returns the number of filtered fields
func (q *Query) Len() int {
	return q.filter.Len()
}

// Clone returns an independent copy of q
func (q *Query) Clone() *Query {
	return &Query{
		filter:     q.filter.clone(),
		sort:       cloneStrings(q.sort),
		projection: cloneStrings(q.projection),
		limit:      q.limit,
	}
}

func (q *Query) String() string {
	parts := []string{"filter=" + q.ToWire().String()}
	if len(q.sort) > 0 {
		parts = append(parts, fmt.Sprintf("sort=(%s)", strings.Join(q.sort, ", ")))
	}
	if q.limit > 0 {
		parts = append(parts, fmt.Sprintf("limit=%d", q.limit))
	}
	if len(q.projection) > 0 {
		parts = append(parts, fmt.Sprintf("projection=(%s)", strings.Join(q.projection, ", ")))
	}
	return fmt.Sprintf("Query(%s)", strings.Join(parts, ", "))
}

type queryJSON struct {
	Filter     Doc      `json:"filter"`
	Sort       []string `json:"sort,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	Projection []string `json:"projection,omitempty"`
}

func (q *Query) MarshalJSON() ([]byte, error) {
	return json.Marshal(queryJSON{
		Filter:     q.ToWire(),
		Sort:       q.sort,
		Limit:      q.limit,
		Projection: q.projection,
	})
}

func (q *Query) UnmarshalJSON(b []byte) error {
	var raw queryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := FromWire(raw.Filter)
	if err != nil {
		return err
	}
	if err := parsed.SetSort(raw.Sort...); err != nil {
		return err
	}
	if err := parsed.SetProjection(raw.Projection...); err != nil {
		return err
	}
	if raw.Limit != 0 {
		if err := parsed.SetLimit(raw.Limit); err != nil {
			return err
		}
	}
	*q = *parsed
	return nil
}

func checkFields(what string, fields []string) error {
	for _, f := range fields {
		if f == "" {
			return mxerrors.InvalidArgument(what, "field path must not be empty")
		}
	}
	return nil
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func conflict(field string) error {
	return mxerrors.PredicateConflict(field)
}
