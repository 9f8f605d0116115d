package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mindexer/mindexer/internal/cliopt"
	"github.com/mindexer/mindexer/internal/cliutil"
	"github.com/mindexer/mindexer/mindexer/pipeline"
)

func RunEstimate(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("estimate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var qf cliutil.QueryFlags
	var ef cliutil.EstimatorFlags
	qf.Bind(fs)
	ef.Bind(fs)
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	q, err := qf.Query()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx := context.Background()
	c, logger, ok := open(ctx, g)
	if !ok {
		return 1
	}
	defer c.Close()

	est, cleanup, err := ef.NewEstimator(ctx, c, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cleanup()

	n := est.Estimate(ctx, q)
	if jsonOutput(g) {
		cliutil.PrintJSON(os.Stdout, map[string]any{
			"query":       q,
			"estimate":    n,
			"cardinality": est.Cardinality(),
			"sample_size": est.SampleSize(),
			"pipeline":    pipeline.Wire(est.MakePipeline(q)),
		})
		return 0
	}
	fmt.Fprintf(os.Stdout, "%d\n", n)
	return 0
}

func RunSample(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var qf cliutil.QueryFlags
	var ef cliutil.EstimatorFlags
	var n int64
	qf.Bind(fs)
	ef.Bind(fs)
	fs.Int64Var(&n, "n", 10, "number of rows to draw")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	q, err := qf.Query()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx := context.Background()
	c, logger, ok := open(ctx, g)
	if !ok {
		return 1
	}
	defer c.Close()

	est, cleanup, err := ef.NewEstimator(ctx, c, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cleanup()

	rows, err := est.Sample(ctx, q, n)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cliutil.PrintJSON(os.Stdout, rows)
	return 0
}
