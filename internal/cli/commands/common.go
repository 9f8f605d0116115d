package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mindexer/mindexer/internal/cliopt"
	"github.com/mindexer/mindexer/internal/cliutil"
	"github.com/mindexer/mindexer/mindexer/collection"
)

// indexArgs is a repeatable --index flag
type indexArgs []string

func (s *indexArgs) String() string { return strings.Join(*s, ";") }
func (s *indexArgs) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func open(ctx context.Context, g cliopt.GlobalOptions) (collection.Collection, zerolog.Logger, bool) {
	logger := g.Logger(os.Stderr)
	c, err := cliutil.OpenCollection(ctx, g, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, logger, false
	}
	return c, logger, true
}

func jsonOutput(g cliopt.GlobalOptions) bool {
	return cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON
}
