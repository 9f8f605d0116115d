package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/mindexer/mindexer/internal/cli/commands"
	"github.com/mindexer/mindexer/internal/cliopt"
)

// Execute runs the CLI and returns an exit code.
func Execute(argv []string) int {
	globalFS := flag.NewFlagSet("mindexer", flag.ContinueOnError)
	globalFS.SetOutput(os.Stderr)
	g := cliopt.DefaultGlobalOptions()
	cliopt.BindGlobalFlags(globalFS, &g)

	if err := globalFS.Parse(argv); err != nil {
		// flag package already printed the error
		return 2
	}

	args := globalFS.Args()
	if len(args) == 0 {
		PrintRootHelp(os.Stdout)
		return 0
	}

	verb := args[0]
	rest := args[1:]

	switch verb {
	case "--help", "-h", "help":
		PrintRootHelp(os.Stdout)
		return 0
	case "load":
		return commands.RunLoad(g, rest)
	case "index":
		return commands.RunIndex(g, rest)
	case "find":
		return commands.RunFind(g, rest)
	case "explain":
		return commands.RunExplain(g, rest)
	case "estimate":
		return commands.RunEstimate(g, rest)
	case "sample":
		return commands.RunSample(g, rest)
	case "analyze":
		return commands.RunAnalyze(g, rest)
	case "workload":
		return commands.RunWorkload(g, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", verb)
		PrintRootHelp(os.Stderr)
		return 2
	}
}
