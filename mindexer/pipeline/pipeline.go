// Package pipeline holds the aggregation stages the estimator issues and
// the cursor collections return rows through.
package pipeline

import (
	"context"
	"strings"

	"github.com/mindexer/mindexer/mindexer/query"
)

// Stage is one step of an aggregation pipeline. The set is closed:
// Limit, Sample, Match, Count and Out.
type Stage interface {
	Wire() query.Doc
	stage()
}

// Limit keeps the first N documents in natural order
type Limit struct{ N int64 }

// Sample draws Size documents uniformly at random
type Sample struct{ Size int64 }

// Match keeps the documents the query's filter selects
type Match struct{ Query *query.Query }

// Count replaces the stream with one row {Field: n}
type Count struct{ Field string }

// Out writes the stream into another namespace, replacing its contents
type Out struct{ To Namespace }

func (Limit) stage()  {}
func (Sample) stage() {}
func (Match) stage()  {}
func (Count) stage()  {}
func (Out) stage()    {}

func (s Limit) Wire() query.Doc { return query.D("$limit", s.N) }

func (s Sample) Wire() query.Doc { return query.D("$sample", query.D("size", s.Size)) }

func (s Match) Wire() query.Doc {
	if s.Query == nil {
		return query.D("$match", query.Doc{})
	}
	return query.D("$match", s.Query.ToWire())
}

func (s Count) Wire() query.Doc { return query.D("$count", s.Field) }

func (s Out) Wire() query.Doc {
	return query.D("$out", query.D("db", s.To.Location, "coll", s.To.Collection))
}

// Namespace addresses a collection. An empty Location is the database the
// collection was opened on.
type Namespace struct {
	Location   string
	Collection string
}

func (ns Namespace) String() string {
	if ns.Location == "" {
		return ns.Collection
	}
	return ns.Location + "." + ns.Collection
}

// Row is one decoded result document
type Row = map[string]any

// Cursor streams rows lazily. Next advances and reports whether a row is
// available; Err is checked once Next returns false.
type Cursor interface {
	Next(ctx context.Context) bool
	Row() Row
	Err() error
	Close() error
}

// All drains c and closes it
func All(ctx context.Context, c Cursor) ([]Row, error) {
	defer c.Close()
	var rows []Row
	for c.Next(ctx) {
		rows = append(rows, c.Row())
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Wire renders a whole pipeline as a list of stage documents
func Wire(stages []Stage) []query.Doc {
	out := make([]query.Doc, len(stages))
	for i, s := range stages {
		out[i] = s.Wire()
	}
	return out
}

// String renders stages compactly for logs
func String(stages []Stage) string {
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = s.Wire().String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// SliceCursor serves rows from memory
type SliceCursor struct {
	rows []Row
	pos  int
	err  error
}

func NewSliceCursor(rows []Row) *SliceCursor {
	return &SliceCursor{rows: rows, pos: -1}
}

func (c *SliceCursor) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos+1 >= len(c.rows) {
		c.pos = len(c.rows)
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor) Row() Row {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil
	}
	return c.rows[c.pos]
}

func (c *SliceCursor) Err() error   { return c.err }
func (c *SliceCursor) Close() error { return nil }
