// Package collection defines what the analyzer and the estimator need from
// a document store: counting, finding with execution statistics,
// aggregation and index management.
package collection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mindexer/mindexer/mindexer/index"
	"github.com/mindexer/mindexer/mindexer/pipeline"
	"github.com/mindexer/mindexer/mindexer/query"
)

// Document is a decoded stored document
type Document = map[string]any

// ExecutionStats describes one executed find
type ExecutionStats struct {
	ElapsedMillis int64    `json:"elapsed_ms"`
	KeysExamined  int64    `json:"keys_examined"`
	DocsExamined  int64    `json:"docs_examined"`
	Returned      int64    `json:"returned"`
	Plan          []string `json:"plan"`
	Index         string   `json:"index,omitempty"`
}

// PlanString renders the winning plan as "A -> B -> C"
func (s ExecutionStats) PlanString() string {
	return strings.Join(s.Plan, " -> ")
}

// IndexInfo names a secondary index and its fields
type IndexInfo struct {
	Name   string      `json:"name"`
	Fields index.Index `json:"fields"`
}

// Collection is one document collection in some backend
type Collection interface {
	Name() string

	Count(ctx context.Context) (int64, error)
	Insert(ctx context.Context, docs ...Document) error

	RunFind(ctx context.Context, q *query.Query) ([]Document, error)
	Explain(ctx context.Context, q *query.Query) (ExecutionStats, error)

	// Aggregate runs stages against ns; the zero Namespace is the
	// collection itself.
	Aggregate(ctx context.Context, ns pipeline.Namespace, stages ...pipeline.Stage) (pipeline.Cursor, error)
	DropNamespace(ctx context.Context, ns pipeline.Namespace) error

	CreateIndex(ctx context.Context, ix index.Index) (string, error)
	DropIndex(ctx context.Context, name string) error
	DropIndexes(ctx context.Context) error
	ListIndexes(ctx context.Context) ([]IndexInfo, error)

	Close() error
}

// DecodeDocument parses a JSON object. Integral numbers are kept as int64
// so counts and keys survive a round trip.
func DecodeDocument(b []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	return normalize(doc).(Document), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, x := range t {
			t[k] = normalize(x)
		}
		return t
	case []any:
		for i, x := range t {
			t[i] = normalize(x)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}

// Project keeps the projected fields of doc, walking dotted paths into
// embedded documents. No fields returns doc unchanged.
func Project(doc Document, fields []string) Document {
	if len(fields) == 0 {
		return doc
	}
	out := make(Document, len(fields))
	for _, f := range fields {
		v, ok := Lookup(doc, f)
		if !ok {
			continue
		}
		setPath(out, strings.Split(f, "."), v)
	}
	return out
}

// Lookup returns the value at a dotted path
func Lookup(doc Document, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(m map[string]any, parts []string, v any) {
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}
