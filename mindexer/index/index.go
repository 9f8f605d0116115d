// Package index decides how a compound index serves a query: which
// prefix of the filter it can use, whether it covers the query and
// whether it yields the requested sort order.
package index

import (
	"sort"
	"strings"

	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
	"github.com/mindexer/mindexer/mindexer/query"
)

// Index is an ordered list of field paths
type Index []string

// Parse reads a comma separated field list, e.g. "Make,Unladen Weight".
// Surrounding whitespace of each field is trimmed.
func Parse(s string) (Index, error) {
	parts := strings.Split(s, ",")
	ix := make(Index, 0, len(parts))
	for _, p := range parts {
		ix = append(ix, strings.TrimSpace(p))
	}
	if err := ix.Validate(); err != nil {
		return nil, err
	}
	return ix, nil
}

// Validate checks that ix is non-empty and has no empty or repeated field
func (ix Index) Validate() error {
	if len(ix) == 0 {
		return mxerrors.InvalidArgument("index", "index needs at least one field")
	}
	seen := make(map[string]bool, len(ix))
	for _, f := range ix {
		if f == "" {
			return mxerrors.InvalidArgument("index", "index field must not be empty")
		}
		if seen[f] {
			return mxerrors.InvalidArgument(f, "field appears twice in index")
		}
		seen[f] = true
	}
	return nil
}

// Name is the conventional index name: fields joined by "_", with spaces
// replaced by "_" too
func (ix Index) Name() string {
	return strings.ReplaceAll(strings.Join(ix, "_"), " ", "_")
}

func (ix Index) String() string {
	return "(" + strings.Join(ix, ", ") + ")"
}

// Contains reports whether field is one of the index fields
func (ix Index) Contains(field string) bool {
	for _, f := range ix {
		if f == field {
			return true
		}
	}
	return false
}

func (ix Index) position(field string) int {
	for i, f := range ix {
		if f == field {
			return i
		}
	}
	return -1
}

// Intersect returns the part of q's filter that a scan of ix can use:
// the conditions on the longest index prefix that the filter constrains.
// Sort, limit and projection are not carried over.
func Intersect(q *query.Query, ix Index) *query.Query {
	out := query.New()
	f := q.Filter()
	for _, field := range ix {
		c, ok := f.Get(field)
		if !ok {
			break
		}
		// conditions are immutable and field is new to out
		_ = out.AddPredicate(field, c)
	}
	return out
}

// IsSubset reports whether every filtered field of q is in ix
func IsSubset(q *query.Query, ix Index) bool {
	for _, field := range q.Filter().Fields() {
		if !ix.Contains(field) {
			return false
		}
	}
	return true
}

// IsCovered reports whether ix alone can answer q: the query projects and
// every filtered and projected field is in the index
func IsCovered(q *query.Query, ix Index) bool {
	if !q.HasProjection() {
		return false
	}
	if !IsSubset(q, ix) {
		return false
	}
	for _, field := range q.Projection() {
		if !ix.Contains(field) {
			return false
		}
	}
	return true
}

// CanUseSort reports whether walking ix returns documents already in q's
// sort order. A query without a sort is always satisfied.
//
// The sort must appear contiguously in the index. At offset 0 that is
// enough; at a later offset every index field before it must be pinned by
// an equality-only condition.
func CanUseSort(q *query.Query, ix Index) bool {
	s := q.Sort()
	if len(s) == 0 {
		return true
	}
	if len(s) > len(ix) {
		return false
	}
	f := q.Filter()
	for i := 0; i <= len(ix)-len(s); i++ {
		if !window(ix[i:i+len(s)], s) {
			continue
		}
		if pinned(f, ix[:i]) {
			return true
		}
	}
	return false
}

func window(a, b []string) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pinned(f *query.Filter, fields []string) bool {
	for _, field := range fields {
		c, ok := f.Get(field)
		if !ok || !c.EqualityOnly() {
			return false
		}
	}
	return true
}

// Choose picks the candidate index a scan for q would use: the one with
// the widest prefix intersection. Ties go to a covering index, then to the
// smaller name. ok is false when no candidate constrains q at all.
func Choose(q *query.Query, candidates map[string]Index) (name string, ix Index, ok bool) {
	names := make([]string, 0, len(candidates))
	for n := range candidates {
		names = append(names, n)
	}
	sort.Strings(names)

	best, bestCovered := 0, false
	for _, n := range names {
		cand := candidates[n]
		width := Intersect(q, cand).Len()
		if width == 0 {
			continue
		}
		covered := IsCovered(q, cand)
		if width > best || (width == best && covered && !bestCovered) {
			name, ix, ok = n, cand, true
			best, bestCovered = width, covered
		}
	}
	return name, ix, ok
}
