// Package sampling estimates how many documents of a collection match a
// query, exactly or from a random sample scaled back to the collection.
package sampling

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
	"github.com/mindexer/mindexer/mindexer/pipeline"
	"github.com/mindexer/mindexer/mindexer/query"
)

const (
	// DefaultSampleLocation is where persisted samples are written
	DefaultSampleLocation = "samples"

	totalField = "total"
)

// Aggregator is the part of a collection the estimator runs pipelines on
type Aggregator interface {
	Name() string
	Count(ctx context.Context) (int64, error)
	Aggregate(ctx context.Context, ns pipeline.Namespace, stages ...pipeline.Stage) (pipeline.Cursor, error)
	DropNamespace(ctx context.Context, ns pipeline.Namespace) error
}

// Options configures an Estimator. SampleRatio and SampleSize are
// mutually exclusive; with neither set every estimate is an exact count.
type Options struct {
	// RowCap limits the collection to its first RowCap documents when it
	// is smaller than the collection. Zero means no cap.
	RowCap int64

	SampleRatio *float64
	SampleSize  *int64

	// Persist materializes the sample once and reads it on every call
	Persist        bool
	SampleLocation string

	Logger zerolog.Logger
	// Rand shuffles Sample results; nil seeds one from the clock
	Rand *rand.Rand
}

func DefaultOptions() Options {
	return Options{
		SampleLocation: DefaultSampleLocation,
		Logger:         zerolog.Nop(),
	}
}

// Ratio and Size return option pointers for literals
func Ratio(r float64) *float64 { return &r }
func Size(n int64) *int64      { return &n }

// Estimator answers cardinality questions against one collection
type Estimator struct {
	src  Aggregator
	log  zerolog.Logger
	rand *rand.Rand

	count      int64
	limit      int64 // 0 when uncapped
	sampleSize int64 // 0 when not sampling
	persist    bool
	location   string
}

// New validates opts against the collection's size and, when persisting,
// materializes the sample.
func New(ctx context.Context, src Aggregator, opts Options) (*Estimator, error) {
	if opts.RowCap < 0 {
		return nil, mxerrors.InvalidConfiguration(fmt.Sprintf("row cap must not be negative, got %d", opts.RowCap))
	}
	if opts.SampleRatio != nil && opts.SampleSize != nil {
		return nil, mxerrors.InvalidConfiguration("please provide only one: sample_size or sample_ratio")
	}

	count, err := src.Count(ctx)
	if err != nil {
		return nil, mxerrors.Wrap(mxerrors.ErrIO, "count source collection", err)
	}

	e := &Estimator{
		src:      src,
		log:      opts.Logger.With().Str("collection", src.Name()).Logger(),
		rand:     opts.Rand,
		count:    count,
		persist:  opts.Persist,
		location: opts.SampleLocation,
	}
	if e.location == "" {
		e.location = DefaultSampleLocation
	}
	if e.rand == nil {
		seed := uint64(time.Now().UnixNano())
		e.rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if opts.RowCap > 0 && opts.RowCap < count {
		e.limit = opts.RowCap
	}
	effective := e.Cardinality()

	switch {
	case opts.SampleRatio != nil:
		r := *opts.SampleRatio
		if !(r > 0 && r <= 1) {
			return nil, mxerrors.InvalidConfiguration(fmt.Sprintf("sample_ratio must be between 0 and 1, got %g", r))
		}
		e.sampleSize = int64(math.RoundToEven(r * float64(effective)))
		if e.sampleSize <= 0 {
			return nil, mxerrors.InvalidConfiguration(fmt.Sprintf("sample_ratio %g of %d documents rounds to an empty sample", r, effective))
		}
	case opts.SampleSize != nil:
		n := *opts.SampleSize
		if n <= 0 || n > effective {
			return nil, mxerrors.InvalidConfiguration(fmt.Sprintf("sample size must be between 0 and the size of the collection (%d), got %d", effective, n))
		}
		e.sampleSize = n
	}

	if e.sampleSize == effective {
		e.sampleSize = 0
		e.persist = false
	}
	if e.sampleSize == 0 {
		// nothing smaller than the source to materialize
		e.persist = false
	}

	e.log.Debug().
		Int64("count", count).
		Int64("limit", e.limit).
		Int64("sample_size", e.sampleSize).
		Bool("persist", e.persist).
		Msg("estimator configured")

	if e.persist {
		if err := e.materialize(ctx); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Estimator) sampleNamespace() pipeline.Namespace {
	return pipeline.Namespace{Location: e.location, Collection: e.src.Name()}
}

func (e *Estimator) materialize(ctx context.Context) error {
	var stages []pipeline.Stage
	if e.limit > 0 {
		stages = append(stages, pipeline.Limit{N: e.limit})
	}
	stages = append(stages,
		pipeline.Sample{Size: e.sampleSize},
		pipeline.Out{To: e.sampleNamespace()},
	)
	cur, err := e.src.Aggregate(ctx, pipeline.Namespace{}, stages...)
	if err != nil {
		return mxerrors.Wrap(mxerrors.ErrIO, "persist sample", err)
	}
	if _, err := pipeline.All(ctx, cur); err != nil {
		return mxerrors.Wrap(mxerrors.ErrIO, "persist sample", err)
	}
	e.log.Info().Str("namespace", e.sampleNamespace().String()).Int64("size", e.sampleSize).Msg("sample persisted")
	return nil
}

// Cardinality is the effective collection size: the row cap when it
// applies, else the collection's count
func (e *Estimator) Cardinality() int64 {
	if e.limit > 0 {
		return e.limit
	}
	return e.count
}

// SampleSize returns the resolved sample size, 0 when not sampling
func (e *Estimator) SampleSize() int64 { return e.sampleSize }

func (e *Estimator) Sampling() bool  { return e.sampleSize > 0 }
func (e *Estimator) Persisted() bool { return e.persist }

// MakePipeline builds the counting pipeline for q. Cap and sample stages
// are left out when reading a persisted sample, which already has both
// applied.
func (e *Estimator) MakePipeline(q *query.Query) []pipeline.Stage {
	var stages []pipeline.Stage
	if e.limit > 0 && !e.persist {
		stages = append(stages, pipeline.Limit{N: e.limit})
	}
	if e.sampleSize > 0 && !e.persist {
		stages = append(stages, pipeline.Sample{Size: e.sampleSize})
	}
	return append(stages,
		pipeline.Match{Query: q},
		pipeline.Count{Field: totalField},
	)
}

func (e *Estimator) target() pipeline.Namespace {
	if e.persist {
		return e.sampleNamespace()
	}
	return pipeline.Namespace{}
}

// Estimate returns the projected number of documents matching q.
//
// Estimation is best effort: when the pipeline fails the failure is logged
// and 0 is returned, so a broken backend reads as "no matches".
func (e *Estimator) Estimate(ctx context.Context, q *query.Query) int64 {
	stages := e.MakePipeline(q)
	actual, err := e.run(ctx, stages)
	if err != nil {
		e.log.Warn().Err(err).Str("pipeline", pipeline.String(stages)).Msg("estimate failed, assuming 0")
		return 0
	}
	if e.sampleSize > 0 {
		scale := float64(e.Cardinality()) / float64(e.sampleSize)
		actual = int64(math.RoundToEven(float64(actual) * scale))
	}
	return actual
}

// EstimateAll estimates every query, running up to parallel estimates at
// once; the source must then be safe for concurrent use. Results are in
// query order. The only error is the context's.
func (e *Estimator) EstimateAll(ctx context.Context, queries []*query.Query, parallel int) ([]int64, error) {
	out := make([]int64, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	if parallel < 1 {
		parallel = 1
	}
	g.SetLimit(parallel)
	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.Estimate(gctx, q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Estimator) run(ctx context.Context, stages []pipeline.Stage) (int64, error) {
	cur, err := e.src.Aggregate(ctx, e.target(), stages...)
	if err != nil {
		return 0, err
	}
	rows, err := pipeline.All(ctx, cur)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt64(rows[0][totalField])
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("count field %q has unexpected type %T", totalField, v)
}

// Sample draws n rows matching q. Fewer matches are repeated cyclically
// up to n, so rows are not independent draws in that case. Rows come back
// shuffled, with embedded documents flattened to dotted keys.
func (e *Estimator) Sample(ctx context.Context, q *query.Query, n int64) ([]pipeline.Row, error) {
	if n <= 0 {
		return nil, mxerrors.InvalidArgument("n", fmt.Sprintf("sample size must be positive, got %d", n))
	}
	stages := []pipeline.Stage{
		pipeline.Match{Query: q},
		pipeline.Sample{Size: n},
	}
	cur, err := e.src.Aggregate(ctx, e.target(), stages...)
	if err != nil {
		return nil, mxerrors.Wrap(mxerrors.ErrIO, "sample", err)
	}
	rows, err := pipeline.All(ctx, cur)
	if err != nil {
		return nil, mxerrors.Wrap(mxerrors.ErrIO, "sample", err)
	}
	if len(rows) == 0 {
		return nil, mxerrors.EmptyQueryRegion()
	}

	out := make([]pipeline.Row, n)
	for i := range out {
		out[i] = Flatten(rows[i%len(rows)])
	}
	e.rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })

	if int64(len(rows)) < n {
		e.log.Debug().Int("matched", len(rows)).Int64("requested", n).Msg("sample padded by repetition")
	}
	return out, nil
}

// DropSample removes the persisted sample. Dropping a sample that does not
// exist is not an error.
func (e *Estimator) DropSample(ctx context.Context) error {
	if err := e.src.DropNamespace(ctx, e.sampleNamespace()); err != nil {
		return mxerrors.Wrap(mxerrors.ErrIO, "drop sample", err)
	}
	return nil
}

// Flatten copies row, replacing embedded documents by dotted keys:
// {"a": {"b": 1}} becomes {"a.b": 1}. Arrays are kept as values.
func Flatten(row pipeline.Row) pipeline.Row {
	out := make(pipeline.Row, len(row))
	flattenInto(out, "", row)
	return out
}

func flattenInto(out pipeline.Row, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			if len(t) == 0 {
				out[key] = map[string]any{}
				continue
			}
			flattenInto(out, key, t)
		case query.Doc:
			flattenInto(out, key, t.Map())
		default:
			out[key] = v
		}
	}
}
