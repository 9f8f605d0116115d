// Package memory keeps a collection in process. Filters are evaluated
// with query.Query.Matches and explain output is emulated from the
// registered indexes, so the analyzer and the estimator can run without
// a database.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mindexer/mindexer/mindexer/collection"
	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
	"github.com/mindexer/mindexer/mindexer/index"
	"github.com/mindexer/mindexer/mindexer/pipeline"
	"github.com/mindexer/mindexer/mindexer/query"
	"github.com/mindexer/mindexer/mindexer/storage"
)

// Options configures a memory collection
type Options struct {
	Logger zerolog.Logger
	// Rand drives $sample; nil seeds from the runtime
	Rand *rand.Rand
	Now  func() time.Time
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		Logger: zerolog.Nop(),
		Now:    time.Now,
	}
}

// Collection is an in-process collection.Collection
type Collection struct {
	mu         sync.RWMutex
	name       string
	docs       []collection.Document
	indexes    []collection.IndexInfo
	namespaces map[string][]collection.Document

	rng *rand.Rand
	now func() time.Time
	log zerolog.Logger
}

var _ collection.Collection = (*Collection)(nil)

// New creates an empty collection
func New(name string, opts Options) *Collection {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Collection{
		name:       name,
		namespaces: make(map[string][]collection.Document),
		rng:        rng,
		now:        now,
		log:        opts.Logger.With().Str("backend", string(storage.BackendMemory)).Str("collection", name).Logger(),
	}
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Close() error { return nil }

func (c *Collection) Count(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.docs)), nil
}

func (c *Collection) Insert(ctx context.Context, docs ...collection.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		if d == nil {
			return mxerrors.InvalidArgument("document", "document must not be nil")
		}
		c.docs = append(c.docs, copyDoc(d))
	}
	return nil
}

// LoadJSONL inserts one JSON document per non-blank line of r
func (c *Collection) LoadJSONL(ctx context.Context, r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var docs []collection.Document
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		doc, err := collection.DecodeDocument([]byte(text))
		if err != nil {
			return 0, mxerrors.Wrap(mxerrors.ErrInvalidArgument, fmt.Sprintf("line %d", line), err)
		}
		docs = append(docs, doc)
	}
	if err := sc.Err(); err != nil {
		return 0, mxerrors.Wrap(mxerrors.ErrIO, "read documents", err)
	}
	if err := c.Insert(ctx, docs...); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (c *Collection) RunFind(ctx context.Context, q *query.Query) ([]collection.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.find(q), nil
}

func (c *Collection) find(q *query.Query) []collection.Document {
	var out []collection.Document
	for _, d := range c.docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	if q.HasSort() {
		fields := q.Sort()
		sort.SliceStable(out, func(i, j int) bool {
			for _, f := range fields {
				if c := compareAt(out[i], out[j], f); c != 0 {
					return c < 0
				}
			}
			return false
		})
	}
	if q.Limit() > 0 && len(out) > q.Limit() {
		out = out[:q.Limit()]
	}
	res := make([]collection.Document, len(out))
	for i, d := range out {
		res[i] = collection.Project(copyDoc(d), q.Projection())
	}
	return res
}

func (c *Collection) countMatching(q *query.Query) int64 {
	var n int64
	for _, d := range c.docs {
		if q.Matches(d) {
			n++
		}
	}
	return n
}

// Explain emulates a plan from the registered indexes: the index sharing
// the widest prefix with the query is scanned, documents are fetched unless
// the index covers the query, and a sort stage is added when the index
// order can't serve the sort.
func (c *Collection) Explain(ctx context.Context, q *query.Query) (collection.ExecutionStats, error) {
	if err := ctx.Err(); err != nil {
		return collection.ExecutionStats{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := c.now()
	docs := c.find(q)
	stats := collection.ExecutionStats{
		ElapsedMillis: c.now().Sub(start).Milliseconds(),
		Returned:      int64(len(docs)),
	}

	candidates := make(map[string]index.Index, len(c.indexes))
	for _, info := range c.indexes {
		candidates[info.Name] = info.Fields
	}
	name, ix, ok := index.Choose(q, candidates)
	if !ok {
		stats.Plan = []string{"COLLSCAN"}
		stats.DocsExamined = int64(len(c.docs))
		if q.HasSort() {
			stats.Plan = append(stats.Plan, "SORT")
		}
		return stats, nil
	}

	stats.Index = name
	stats.KeysExamined = c.countMatching(index.Intersect(q, ix))
	if index.IsCovered(q, ix) {
		stats.Plan = []string{"IXSCAN", "PROJECTION_COVERED"}
	} else {
		stats.Plan = []string{"IXSCAN", "FETCH"}
		stats.DocsExamined = stats.KeysExamined
	}
	if !index.CanUseSort(q, ix) {
		stats.Plan = append(stats.Plan, "SORT")
	}
	c.log.Debug().Str("plan", stats.PlanString()).Str("index", name).Msg("explain")
	return stats, nil
}

func (c *Collection) self(ns pipeline.Namespace) bool {
	return ns.Location == "" && (ns.Collection == "" || ns.Collection == c.name)
}

func (c *Collection) source(ns pipeline.Namespace) []collection.Document {
	if c.self(ns) {
		return c.docs
	}
	return c.namespaces[ns.String()]
}

// Aggregate runs stages over a snapshot of ns. An unknown namespace is
// empty.
func (c *Collection) Aggregate(ctx context.Context, ns pipeline.Namespace, stages ...pipeline.Stage) (pipeline.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := append([]collection.Document(nil), c.source(ns)...)
	for i, st := range stages {
		last := i == len(stages)-1
		switch s := st.(type) {
		case pipeline.Limit:
			if s.N <= 0 {
				return nil, mxerrors.InvalidArgument("$limit", fmt.Sprintf("must be positive, got %d", s.N))
			}
			if int64(len(rows)) > s.N {
				rows = rows[:s.N]
			}

		case pipeline.Sample:
			if s.Size <= 0 {
				return nil, mxerrors.InvalidArgument("$sample", fmt.Sprintf("size must be positive, got %d", s.Size))
			}
			c.rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
			if int64(len(rows)) > s.Size {
				rows = rows[:s.Size]
			}

		case pipeline.Match:
			if s.Query == nil {
				continue
			}
			kept := rows[:0:0]
			for _, r := range rows {
				if s.Query.Matches(r) {
					kept = append(kept, r)
				}
			}
			rows = kept

		case pipeline.Count:
			if !last {
				return nil, mxerrors.InvalidArgument("$count", "must be the last stage")
			}
			if s.Field == "" || strings.HasPrefix(s.Field, "$") || strings.Contains(s.Field, ".") {
				return nil, mxerrors.InvalidArgument("$count", fmt.Sprintf("invalid field %q", s.Field))
			}
			return pipeline.NewSliceCursor([]pipeline.Row{{s.Field: int64(len(rows))}}), nil

		case pipeline.Out:
			if !last {
				return nil, mxerrors.InvalidArgument("$out", "must be the last stage")
			}
			if s.To.Collection == "" || c.self(s.To) {
				return nil, mxerrors.InvalidArgument("$out", "invalid target "+s.To.String())
			}
			out := make([]collection.Document, len(rows))
			for i, r := range rows {
				out[i] = copyDoc(r)
			}
			c.namespaces[s.To.String()] = out
			c.log.Debug().Str("namespace", s.To.String()).Int("documents", len(out)).Msg("namespace written")
			return pipeline.NewSliceCursor(nil), nil

		default:
			return nil, mxerrors.UnsupportedQuery(fmt.Sprintf("unsupported stage %T", st))
		}
	}

	out := make([]pipeline.Row, len(rows))
	for i, r := range rows {
		out[i] = copyDoc(r)
	}
	return pipeline.NewSliceCursor(out), nil
}

func (c *Collection) DropNamespace(ctx context.Context, ns pipeline.Namespace) error {
	if c.self(ns) {
		return mxerrors.InvalidArgument("namespace", "refusing to drop the collection itself")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.namespaces, ns.String())
	return nil
}

// CreateIndex registers ix. Creating an index that exists returns its name.
func (c *Collection) CreateIndex(ctx context.Context, ix index.Index) (string, error) {
	if err := ix.Validate(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	name := ix.Name()
	for _, info := range c.indexes {
		if info.Name == name {
			return name, nil
		}
	}
	c.indexes = append(c.indexes, collection.IndexInfo{Name: name, Fields: append(index.Index(nil), ix...)})
	c.log.Info().Str("index", name).Msg("index created")
	return name, nil
}

func (c *Collection) DropIndex(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, info := range c.indexes {
		if info.Name == name {
			c.indexes = append(c.indexes[:i], c.indexes[i+1:]...)
			c.log.Info().Str("index", name).Msg("index dropped")
			return nil
		}
	}
	return mxerrors.NotFound("index " + name)
}

func (c *Collection) DropIndexes(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes = nil
	return nil
}

func (c *Collection) ListIndexes(ctx context.Context) ([]collection.IndexInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]collection.IndexInfo(nil), c.indexes...), nil
}

// copyDoc deep copies through a JSON round trip so stored documents never
// alias caller maps. Values that don't encode are kept by reference.
func copyDoc(d collection.Document) collection.Document {
	b, err := json.Marshal(d)
	if err != nil {
		out := make(collection.Document, len(d))
		for k, v := range d {
			out[k] = v
		}
		return out
	}
	out, err := collection.DecodeDocument(b)
	if err != nil {
		return d
	}
	return out
}
