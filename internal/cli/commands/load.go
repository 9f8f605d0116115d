package commands

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mindexer/mindexer/internal/cliopt"
	"github.com/mindexer/mindexer/mindexer/collection"
)

func RunLoad(g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var file string
	var batch int
	fs.StringVar(&file, "file", "-", "JSON-lines file, - for stdin")
	fs.IntVar(&batch, "batch", 1000, "documents per insert")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if batch <= 0 {
		fmt.Fprintln(os.Stderr, "--batch must be positive")
		return 2
	}

	var in io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer f.Close()
		in = f
	}

	ctx := context.Background()
	c, logger, ok := open(ctx, g)
	if !ok {
		return 1
	}
	defer c.Close()

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	pending := make([]collection.Document, 0, batch)
	total, line := 0, 0
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := c.Insert(ctx, pending...); err != nil {
			return err
		}
		total += len(pending)
		logger.Debug().Int("documents", total).Msg("loading")
		pending = pending[:0]
		return nil
	}
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		doc, err := collection.DecodeDocument([]byte(text))
		if err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
			return 1
		}
		pending = append(pending, doc)
		if len(pending) == batch {
			if err := flush(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
		}
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintf(os.Stdout, "loaded %d documents into %s\n", total, c.Name())
	return 0
}
