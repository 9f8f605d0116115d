package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mindexer/mindexer/internal/cliopt"
	"github.com/mindexer/mindexer/internal/cliutil"
	"github.com/mindexer/mindexer/mindexer/query"
)

func parseQuery(name string, argv []string) (*query.Query, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var qf cliutil.QueryFlags
	qf.Bind(fs)
	if err := fs.Parse(argv); err != nil {
		return nil, false
	}
	q, err := qf.Query()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, false
	}
	return q, true
}

func RunFind(g cliopt.GlobalOptions, argv []string) int {
	q, ok := parseQuery("find", argv)
	if !ok {
		return 2
	}
	ctx := context.Background()
	c, _, ok := open(ctx, g)
	if !ok {
		return 1
	}
	defer c.Close()

	docs, err := c.RunFind(ctx, q)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cliutil.PrintJSON(os.Stdout, docs)
	return 0
}

func RunExplain(g cliopt.GlobalOptions, argv []string) int {
	q, ok := parseQuery("explain", argv)
	if !ok {
		return 2
	}
	ctx := context.Background()
	c, _, ok := open(ctx, g)
	if !ok {
		return 1
	}
	defer c.Close()

	stats, err := c.Explain(ctx, q)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if jsonOutput(g) {
		cliutil.PrintJSON(os.Stdout, stats)
		return 0
	}
	fmt.Fprintf(os.Stdout, "%s\n", q)
	fmt.Fprintf(os.Stdout, "  executionTimeMillis %d\n", stats.ElapsedMillis)
	fmt.Fprintf(os.Stdout, "  totalKeysExamined   %d\n", stats.KeysExamined)
	fmt.Fprintf(os.Stdout, "  totalDocsExamined   %d\n", stats.DocsExamined)
	fmt.Fprintf(os.Stdout, "  nReturned           %d\n", stats.Returned)
	fmt.Fprintf(os.Stdout, "  plan                %s\n", stats.PlanString())
	if stats.Index != "" {
		fmt.Fprintf(os.Stdout, "  index               %s\n", stats.Index)
	}
	return 0
}
