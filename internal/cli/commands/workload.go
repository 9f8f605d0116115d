package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/mindexer/mindexer/internal/cliopt"
	"github.com/mindexer/mindexer/internal/cliutil"
	"github.com/mindexer/mindexer/mindexer/workload"
)

func RunWorkload(g cliopt.GlobalOptions, argv []string) int {
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "workload requires a subcommand: show|add|run")
		return 2
	}
	verb := argv[0]
	args := argv[1:]
	switch verb {
	case "show":
		return runWorkloadShow(g, args)
	case "add":
		return runWorkloadAdd(g, args)
	case "run":
		return runWorkloadRun(g, args)
	case "--help", "-h", "help":
		fmt.Fprintln(os.Stdout, "workload subcommands: show|add|run")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown workload subcommand: %s\n", verb)
		return 2
	}
}

func workloadPath(fset *flag.FlagSet) *string {
	var path string
	fset.StringVar(&path, "workload", "", "workload file (JSON lines)")
	fset.StringVar(&path, "w", "", "workload file (shorthand)")
	return &path
}

func runWorkloadShow(g cliopt.GlobalOptions, argv []string) int {
	fset := flag.NewFlagSet("workload show", flag.ContinueOnError)
	fset.SetOutput(os.Stderr)
	path := workloadPath(fset)
	if err := fset.Parse(argv); err != nil {
		return 2
	}
	w, err := workload.LoadFile(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if jsonOutput(g) {
		cliutil.PrintJSON(os.Stdout, w.Queries)
		return 0
	}
	fmt.Fprintln(os.Stdout, w)
	w.Print(os.Stdout)
	return 0
}

// runWorkloadAdd appends one query, creating the file if needed
func runWorkloadAdd(g cliopt.GlobalOptions, argv []string) int {
	fset := flag.NewFlagSet("workload add", flag.ContinueOnError)
	fset.SetOutput(os.Stderr)
	path := workloadPath(fset)
	var qf cliutil.QueryFlags
	qf.Bind(fset)
	if err := fset.Parse(argv); err != nil {
		return 2
	}
	if *path == "" {
		fmt.Fprintln(os.Stderr, "missing --workload")
		return 2
	}
	q, err := qf.Query()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	w, err := workload.LoadFile(*path)
	if errors.Is(err, fs.ErrNotExist) {
		w, err = workload.New(), nil
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	w.Add(q)
	if err := w.SaveFile(*path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintln(os.Stdout, w)
	return 0
}

func runWorkloadRun(g cliopt.GlobalOptions, argv []string) int {
	fset := flag.NewFlagSet("workload run", flag.ContinueOnError)
	fset.SetOutput(os.Stderr)
	path := workloadPath(fset)
	var noExplain bool
	fset.BoolVar(&noExplain, "no-explain", false, "only time the queries")
	if err := fset.Parse(argv); err != nil {
		return 2
	}
	w, err := workload.LoadFile(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx := context.Background()
	c, logger, ok := open(ctx, g)
	if !ok {
		return 1
	}
	defer c.Close()

	opts := workload.DefaultExecuteOptions()
	opts.Explain = !noExplain
	opts.Logger = logger
	res, err := workload.Execute(ctx, c, w, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if jsonOutput(g) {
		cliutil.PrintJSON(os.Stdout, map[string]any{
			"total_ms": res.TotalMillis,
			"stats":    res.Stats,
		})
		return 0
	}
	for i, s := range res.Stats {
		fmt.Fprintf(os.Stdout, "%2d  %s\n     executionTimeMillis %d     totalKeysExamined %d     totalDocsExamined %d     nReturned %d     plan %s\n",
			i, w.Queries[i], s.ElapsedMillis, s.KeysExamined, s.DocsExamined, s.Returned, s.PlanString())
	}
	fmt.Fprintf(os.Stdout, "total %d ms\n", res.TotalMillis)
	return 0
}
