package sampling

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
	"github.com/mindexer/mindexer/mindexer/pipeline"
	"github.com/mindexer/mindexer/mindexer/query"
)

type aggregateCall struct {
	ns     pipeline.Namespace
	stages []pipeline.Stage
}

type fakeSource struct {
	count   int64
	rows    []pipeline.Row
	aggErr  error
	calls   []aggregateCall
	dropped []pipeline.Namespace
}

func (f *fakeSource) Name() string { return "vehicles" }

func (f *fakeSource) Count(ctx context.Context) (int64, error) { return f.count, nil }

func (f *fakeSource) Aggregate(ctx context.Context, ns pipeline.Namespace, stages ...pipeline.Stage) (pipeline.Cursor, error) {
	f.calls = append(f.calls, aggregateCall{ns: ns, stages: stages})
	if f.aggErr != nil {
		return nil, f.aggErr
	}
	return pipeline.NewSliceCursor(f.rows), nil
}

func (f *fakeSource) DropNamespace(ctx context.Context, ns pipeline.Namespace) error {
	f.dropped = append(f.dropped, ns)
	return nil
}

func kings(t *testing.T) *query.Query {
	t.Helper()
	q, err := query.ParseQuery([]byte(`{"County": "KINGS", "Model Year": {"$gt": 2010}}`))
	require.NoError(t, err)
	return q
}

const kingsMatch = `{"$match":{"County":"KINGS","Model Year":{"$gt":2010}}}`

func opts(mod func(*Options)) Options {
	o := DefaultOptions()
	o.Rand = rand.New(rand.NewPCG(1, 2))
	if mod != nil {
		mod(&o)
	}
	return o
}

func TestPipelineDefaults(t *testing.T) {
	est, err := New(context.Background(), &fakeSource{count: 100}, opts(nil))
	require.NoError(t, err)

	got := pipeline.String(est.MakePipeline(kings(t)))
	assert.Equal(t, "["+kingsMatch+`, {"$count":"total"}]`, got)
	assert.False(t, est.Sampling())
	assert.Equal(t, int64(100), est.Cardinality())
}

func TestPipelineSampleSize(t *testing.T) {
	est, err := New(context.Background(), &fakeSource{count: 10}, opts(func(o *Options) {
		o.SampleSize = Size(3)
	}))
	require.NoError(t, err)

	got := pipeline.String(est.MakePipeline(kings(t)))
	assert.Equal(t, `[{"$sample":{"size":3}}, `+kingsMatch+`, {"$count":"total"}]`, got)
}

func TestPipelineSampleRatio(t *testing.T) {
	est, err := New(context.Background(), &fakeSource{count: 100}, opts(func(o *Options) {
		o.SampleRatio = Ratio(0.5)
	}))
	require.NoError(t, err)

	got := pipeline.String(est.MakePipeline(kings(t)))
	assert.Equal(t, `[{"$sample":{"size":50}}, `+kingsMatch+`, {"$count":"total"}]`, got)
	assert.Equal(t, int64(50), est.SampleSize())
}

func TestRatioRoundsHalfToEven(t *testing.T) {
	// 0.25 * 10 = 2.5 rounds to 2
	est, err := New(context.Background(), &fakeSource{count: 10}, opts(func(o *Options) {
		o.SampleRatio = Ratio(0.25)
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), est.SampleSize())
}

func TestPipelineWithRowCap(t *testing.T) {
	est, err := New(context.Background(), &fakeSource{count: 100}, opts(func(o *Options) {
		o.RowCap = 10
		o.SampleSize = Size(3)
	}))
	require.NoError(t, err)

	got := pipeline.String(est.MakePipeline(kings(t)))
	assert.Equal(t, `[{"$limit":10}, {"$sample":{"size":3}}, `+kingsMatch+`, {"$count":"total"}]`, got)
	assert.Equal(t, int64(10), est.Cardinality())
}

func TestRowCapAboveCountIsIgnored(t *testing.T) {
	est, err := New(context.Background(), &fakeSource{count: 100}, opts(func(o *Options) {
		o.RowCap = 500
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(100), est.Cardinality())
	assert.Len(t, est.MakePipeline(kings(t)), 2)
}

func TestInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Options)
	}{
		{"zero size", func(o *Options) { o.SampleSize = Size(0) }},
		{"size above collection", func(o *Options) { o.SampleSize = Size(1000) }},
		{"ratio rounds to zero", func(o *Options) { o.SampleRatio = Ratio(0.0001) }},
		{"ratio above one", func(o *Options) { o.SampleRatio = Ratio(1.5) }},
		{"zero ratio", func(o *Options) { o.SampleRatio = Ratio(0) }},
		{"both", func(o *Options) { o.SampleRatio = Ratio(0.5); o.SampleSize = Size(5) }},
		{"negative cap", func(o *Options) { o.RowCap = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), &fakeSource{count: 100}, opts(tt.mod))
			assert.True(t, mxerrors.IsKind(err, mxerrors.ErrInvalidConfiguration), "got %v", err)
		})
	}
}

func TestFullSizeSampleDisablesSamplingAndPersistence(t *testing.T) {
	src := &fakeSource{count: 100}
	est, err := New(context.Background(), src, opts(func(o *Options) {
		o.SampleSize = Size(100)
		o.Persist = true
	}))
	require.NoError(t, err)

	assert.False(t, est.Sampling())
	assert.False(t, est.Persisted())
	assert.Empty(t, src.calls, "nothing should be materialized")
	for _, s := range est.MakePipeline(kings(t)) {
		_, isSample := s.(pipeline.Sample)
		assert.False(t, isSample)
	}
}

func TestPersistWithoutSampleIsDisabled(t *testing.T) {
	src := &fakeSource{count: 100}
	est, err := New(context.Background(), src, opts(func(o *Options) { o.Persist = true }))
	require.NoError(t, err)
	assert.False(t, est.Persisted())
	assert.Empty(t, src.calls)
}

func TestPersistedSample(t *testing.T) {
	src := &fakeSource{count: 100}
	est, err := New(context.Background(), src, opts(func(o *Options) {
		o.RowCap = 50
		o.SampleSize = Size(10)
		o.Persist = true
	}))
	require.NoError(t, err)
	require.True(t, est.Persisted())

	require.Len(t, src.calls, 1)
	assert.Equal(t, pipeline.Namespace{}, src.calls[0].ns)
	assert.Equal(t,
		`[{"$limit":50}, {"$sample":{"size":10}}, {"$out":{"db":"samples","coll":"vehicles"}}]`,
		pipeline.String(src.calls[0].stages))

	assert.Equal(t, "["+kingsMatch+`, {"$count":"total"}]`, pipeline.String(est.MakePipeline(kings(t))))

	src.rows = []pipeline.Row{{"total": int64(2)}}
	assert.Equal(t, int64(10), est.Estimate(context.Background(), kings(t)))
	assert.Equal(t, pipeline.Namespace{Location: "samples", Collection: "vehicles"}, src.calls[1].ns)

	require.NoError(t, est.DropSample(context.Background()))
	assert.Equal(t, []pipeline.Namespace{{Location: "samples", Collection: "vehicles"}}, src.dropped)
}

func TestEstimateScalesSampledCount(t *testing.T) {
	src := &fakeSource{count: 100}
	est, err := New(context.Background(), src, opts(func(o *Options) { o.SampleSize = Size(50) }))
	require.NoError(t, err)

	src.rows = []pipeline.Row{{"total": int64(10)}}
	assert.Equal(t, int64(20), est.Estimate(context.Background(), kings(t)))
	assert.Equal(t, pipeline.Namespace{}, src.calls[0].ns)
}

func TestEstimateExact(t *testing.T) {
	src := &fakeSource{count: 100, rows: []pipeline.Row{{"total": int64(37)}}}
	est, err := New(context.Background(), src, opts(nil))
	require.NoError(t, err)
	assert.Equal(t, int64(37), est.Estimate(context.Background(), kings(t)))
}

func TestEstimateNoRowsIsZero(t *testing.T) {
	est, err := New(context.Background(), &fakeSource{count: 100}, opts(func(o *Options) { o.SampleSize = Size(50) }))
	require.NoError(t, err)
	assert.Equal(t, int64(0), est.Estimate(context.Background(), kings(t)))
}

func TestEstimateFailureIsZero(t *testing.T) {
	src := &fakeSource{count: 100}
	est, err := New(context.Background(), src, opts(nil))
	require.NoError(t, err)

	src.aggErr = errors.New("connection reset")
	assert.Equal(t, int64(0), est.Estimate(context.Background(), kings(t)))

	src.aggErr = nil
	src.rows = []pipeline.Row{{"total": "many"}}
	assert.Equal(t, int64(0), est.Estimate(context.Background(), kings(t)))
}

func TestSampleDuplicatesAndShuffles(t *testing.T) {
	src := &fakeSource{count: 100, rows: []pipeline.Row{
		{"id": int64(0), "addr": map[string]any{"city": "NYC"}},
		{"id": int64(1), "addr": map[string]any{"city": "LA"}},
	}}
	est, err := New(context.Background(), src, opts(nil))
	require.NoError(t, err)

	rows, err := est.Sample(context.Background(), kings(t), 5)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	counts := map[int64]int{}
	for _, r := range rows {
		id := r["id"].(int64)
		counts[id%2]++
		assert.Contains(t, []any{"NYC", "LA"}, r["addr.city"])
		assert.NotContains(t, r, "addr")
	}
	assert.Equal(t, map[int64]int{0: 3, 1: 2}, counts)

	assert.Equal(t, `[`+kingsMatch+`, {"$sample":{"size":5}}]`, pipeline.String(src.calls[0].stages))
}

func TestSampleRowsAreIndependentCopies(t *testing.T) {
	src := &fakeSource{count: 10, rows: []pipeline.Row{{"id": int64(7)}}}
	est, err := New(context.Background(), src, opts(nil))
	require.NoError(t, err)

	rows, err := est.Sample(context.Background(), kings(t), 3)
	require.NoError(t, err)
	rows[0]["id"] = int64(99)
	assert.Equal(t, int64(7), rows[1]["id"])
	assert.Equal(t, int64(7), src.rows[0]["id"])
}

func TestSampleEmptyRegion(t *testing.T) {
	est, err := New(context.Background(), &fakeSource{count: 100}, opts(nil))
	require.NoError(t, err)

	_, err = est.Sample(context.Background(), kings(t), 5)
	assert.True(t, mxerrors.IsKind(err, mxerrors.ErrEmptyQueryRegion), "got %v", err)
}

func TestSampleFailurePropagates(t *testing.T) {
	src := &fakeSource{count: 100}
	est, err := New(context.Background(), src, opts(nil))
	require.NoError(t, err)

	src.aggErr = errors.New("connection reset")
	_, err = est.Sample(context.Background(), kings(t), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, src.aggErr)

	_, err = est.Sample(context.Background(), kings(t), 0)
	assert.True(t, mxerrors.IsKind(err, mxerrors.ErrInvalidArgument))
}

func TestFlatten(t *testing.T) {
	got := Flatten(pipeline.Row{
		"a":    map[string]any{"b": int64(1), "c": map[string]any{"d": "x"}},
		"tags": []any{"p", "q"},
		"e":    map[string]any{},
	})
	assert.Equal(t, pipeline.Row{
		"a.b":   int64(1),
		"a.c.d": "x",
		"tags":  []any{"p", "q"},
		"e":     map[string]any{},
	}, got)
}

func TestEstimateAllCancelled(t *testing.T) {
	src := &fakeSource{count: 100, rows: []pipeline.Row{{"total": int64(3)}}}
	est, err := New(context.Background(), src, opts(nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = est.EstimateAll(ctx, []*query.Query{query.New(), query.New()}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
