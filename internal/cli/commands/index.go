package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mindexer/mindexer/internal/cliopt"
	"github.com/mindexer/mindexer/internal/cliutil"
	"github.com/mindexer/mindexer/mindexer/index"
)

func RunIndex(g cliopt.GlobalOptions, argv []string) int {
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "index requires a subcommand: list|create|drop|drop-all")
		return 2
	}
	verb := argv[0]
	args := argv[1:]
	switch verb {
	case "list":
		return runIndexList(g, args)
	case "create":
		return runIndexCreate(g, args)
	case "drop":
		return runIndexDrop(g, args)
	case "drop-all":
		return runIndexDropAll(g, args)
	case "--help", "-h", "help":
		fmt.Fprintln(os.Stdout, "index subcommands: list|create|drop|drop-all")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown index subcommand: %s\n", verb)
		return 2
	}
}

func runIndexList(g cliopt.GlobalOptions, argv []string) int {
	ctx := context.Background()
	c, _, ok := open(ctx, g)
	if !ok {
		return 1
	}
	defer c.Close()

	infos, err := c.ListIndexes(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if jsonOutput(g) {
		cliutil.PrintJSON(os.Stdout, infos)
		return 0
	}
	for _, info := range infos {
		fmt.Fprintf(os.Stdout, "%s %s\n", info.Name, info.Fields)
	}
	return 0
}

func runIndexCreate(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("index create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var fields string
	fs.StringVar(&fields, "fields", "", "comma separated index fields, in order")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	ix, err := index.Parse(fields)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx := context.Background()
	c, _, ok := open(ctx, g)
	if !ok {
		return 1
	}
	defer c.Close()

	name, err := c.CreateIndex(ctx, ix)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintf(os.Stdout, "created %s\n", name)
	return 0
}

// runIndexDrop drops one index by name, or the most recently created one
func runIndexDrop(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("index drop", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var name string
	var last bool
	fs.StringVar(&name, "name", "", "index name")
	fs.BoolVar(&last, "last", false, "drop the most recently created index")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if (name == "") == !last {
		fmt.Fprintln(os.Stderr, "need exactly one of --name or --last")
		return 2
	}

	ctx := context.Background()
	c, _, ok := open(ctx, g)
	if !ok {
		return 1
	}
	defer c.Close()

	if last {
		infos, err := c.ListIndexes(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if len(infos) == 0 {
			fmt.Fprintln(os.Stdout, "no indexes")
			return 0
		}
		name = infos[len(infos)-1].Name
	}
	if err := c.DropIndex(ctx, name); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintf(os.Stdout, "dropped %s\n", name)
	return 0
}

func runIndexDropAll(g cliopt.GlobalOptions, argv []string) int {
	ctx := context.Background()
	c, _, ok := open(ctx, g)
	if !ok {
		return 1
	}
	defer c.Close()

	if err := c.DropIndexes(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintln(os.Stdout, "dropped all indexes")
	return 0
}
