package cliutil

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mindexer/mindexer/internal/cliopt"
	"github.com/mindexer/mindexer/mindexer"
	"github.com/mindexer/mindexer/mindexer/collection"
	"github.com/mindexer/mindexer/mindexer/query"
	"github.com/mindexer/mindexer/mindexer/sampling"
)

type OutputFormat string

const (
	FormatPretty OutputFormat = "pretty"
	FormatJSON   OutputFormat = "json"
)

func ParseOutputFormat(s string) OutputFormat {
	switch OutputFormat(s) {
	case FormatPretty, FormatJSON:
		return OutputFormat(s)
	default:
		return FormatPretty
	}
}

func PrintJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

// OpenCollection opens the collection the global flags select
func OpenCollection(ctx context.Context, g cliopt.GlobalOptions, logger zerolog.Logger) (collection.Collection, error) {
	if g.Collection == "" {
		return nil, fmt.Errorf("missing --collection")
	}
	return mindexer.Open(ctx, g.Config(logger))
}

// SplitFields parses "a, b,c" into its fields; empty input is no fields
func SplitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// QueryFlags describe one find on the command line
type QueryFlags struct {
	Filter     string
	Sort       string
	Projection string
	Limit      int
}

func (f *QueryFlags) Bind(fs *flag.FlagSet) {
	fs.StringVar(&f.Filter, "filter", "{}", "filter document as JSON")
	fs.StringVar(&f.Filter, "f", "{}", "filter document as JSON (shorthand)")
	fs.StringVar(&f.Sort, "sort", "", "comma separated sort fields")
	fs.StringVar(&f.Projection, "projection", "", "comma separated projected fields")
	fs.IntVar(&f.Limit, "limit", 0, "maximum number of documents (0 = no limit)")
}

// Query builds the query the flags describe
func (f *QueryFlags) Query() (*query.Query, error) {
	q, err := query.ParseQuery([]byte(f.Filter))
	if err != nil {
		return nil, err
	}
	if err := q.SetSort(SplitFields(f.Sort)...); err != nil {
		return nil, err
	}
	if err := q.SetProjection(SplitFields(f.Projection)...); err != nil {
		return nil, err
	}
	if f.Limit != 0 {
		if err := q.SetLimit(f.Limit); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// EstimatorFlags configure a sampling.Estimator
type EstimatorFlags struct {
	RowCap      int64
	SampleRatio float64
	SampleSize  int64
	Persist     bool
	Location    string
	KeepSample  bool
	Seed        uint64
}

func (f *EstimatorFlags) Bind(fs *flag.FlagSet) {
	fs.Int64Var(&f.RowCap, "row-cap", 0, "only consider the first N documents (0 = all)")
	fs.Float64Var(&f.SampleRatio, "sample-ratio", 0, "sample this fraction of the documents")
	fs.Int64Var(&f.SampleSize, "sample-size", 0, "sample this many documents")
	fs.BoolVar(&f.Persist, "persist", false, "materialize the sample once and estimate against it")
	fs.StringVar(&f.Location, "sample-location", sampling.DefaultSampleLocation, "where persisted samples are written")
	fs.BoolVar(&f.KeepSample, "keep-sample", false, "keep a persisted sample after the command")
	fs.Uint64Var(&f.Seed, "seed", 0, "seed for shuffling sampled rows (0 = random)")
}

// Options converts the flags; zero ratio and size mean no sampling
func (f *EstimatorFlags) Options(logger zerolog.Logger) sampling.Options {
	opts := sampling.DefaultOptions()
	opts.Logger = logger
	opts.RowCap = f.RowCap
	opts.Persist = f.Persist
	opts.SampleLocation = f.Location
	if f.SampleRatio != 0 {
		opts.SampleRatio = sampling.Ratio(f.SampleRatio)
	}
	if f.SampleSize != 0 {
		opts.SampleSize = sampling.Size(f.SampleSize)
	}
	if f.Seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(f.Seed, f.Seed))
	}
	return opts
}

// NewEstimator builds an estimator over c. The returned cleanup drops a
// persisted sample unless it is kept.
func (f *EstimatorFlags) NewEstimator(ctx context.Context, c collection.Collection, logger zerolog.Logger) (*sampling.Estimator, func(), error) {
	est, err := sampling.New(ctx, c, f.Options(logger))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if !est.Persisted() || f.KeepSample {
			return
		}
		if err := est.DropSample(ctx); err != nil {
			logger.Warn().Err(err).Msg("dropping sample failed")
		}
	}
	return est, cleanup, nil
}
