package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mindexer/mindexer/internal/cliopt"
	"github.com/mindexer/mindexer/internal/cliutil"
	"github.com/mindexer/mindexer/mindexer/index"
	"github.com/mindexer/mindexer/mindexer/query"
	"github.com/mindexer/mindexer/mindexer/workload"
)

type analysis struct {
	Query        int    `json:"query"`
	Index        string `json:"index"`
	Intersection string `json:"intersection"`
	Subset       bool   `json:"subset"`
	Covered      bool   `json:"covered"`
	SortUsable   bool   `json:"sort_usable"`
	// EstimatedKeys is the estimated number of index keys the query scans
	EstimatedKeys int64 `json:"estimated_keys"`
}

func analyze(i int, q *query.Query, ix index.Index) (analysis, *query.Query) {
	inter := index.Intersect(q, ix)
	return analysis{
		Query:        i,
		Index:        ix.String(),
		Intersection: inter.ToWire().String(),
		Subset:       index.IsSubset(q, ix),
		Covered:      index.IsCovered(q, ix),
		SortUsable:   index.CanUseSort(q, ix),
	}, inter
}

// RunAnalyze checks every workload query against candidate indexes: the
// --index flags, or the collection's indexes when none are given
func RunAnalyze(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var path string
	var indexes indexArgs
	var ef cliutil.EstimatorFlags
	fs.StringVar(&path, "workload", "", "workload file (JSON lines)")
	fs.StringVar(&path, "w", "", "workload file (shorthand)")
	fs.Var(&indexes, "index", "candidate index fields a,b (repeatable)")
	var parallel int
	fs.IntVar(&parallel, "parallel", 4, "estimates run at once")
	ef.Bind(fs)
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "missing --workload")
		return 2
	}
	var candidates []index.Index
	for _, s := range indexes {
		ix, err := index.Parse(s)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		candidates = append(candidates, ix)
	}
	w, err := workload.LoadFile(path)
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

	if len(candidates) == 0 {
		infos, err := c.ListIndexes(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		for _, info := range infos {
			candidates = append(candidates, info.Fields)
		}
	}
	if len(candidates) == 0 {
		fmt.Fprintln(os.Stderr, "no candidate indexes: pass --index or create some")
		return 2
	}

	est, cleanup, err := ef.NewEstimator(ctx, c, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cleanup()

	var out []analysis
	var pending []int
	var inters []*query.Query
	for i, q := range w.Queries {
		for _, ix := range candidates {
			a, inter := analyze(i, q, ix)
			if inter.Len() > 0 {
				pending = append(pending, len(out))
				inters = append(inters, inter)
			}
			out = append(out, a)
		}
	}
	estimates, err := est.EstimateAll(ctx, inters, parallel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for k, n := range estimates {
		out[pending[k]].EstimatedKeys = n
	}

	if jsonOutput(g) {
		cliutil.PrintJSON(os.Stdout, out)
		return 0
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tINDEX\tINTERSECTION\tSUBSET\tCOVERED\tSORT\tEST. KEYS")
	for _, a := range out {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\t%t\t%d\n", a.Query, a.Index, a.Intersection, a.Subset, a.Covered, a.SortUsable, a.EstimatedKeys)
	}
	tw.Flush()
	return 0
}
