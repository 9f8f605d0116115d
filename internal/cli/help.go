package cli

import (
	"fmt"
	"io"
)

func PrintRootHelp(w io.Writer) {
	fmt.Fprintln(w, `mindexer: index recommendations for document collections

USAGE
  mindexer [global flags] <command> [args]

GLOBAL FLAGS
  --backend sqlite|postgres|memory   (MINDEXER_BACKEND)
  --sqlite-path <file.db>            (MINDEXER_SQLITE_PATH)
  --sqlite-driver sqlite|sqlite3     (MINDEXER_SQLITE_DRIVER)
  --pg-dsn <dsn>                     (MINDEXER_PG_DSN)
  --pg-schema <schema>               (MINDEXER_PG_SCHEMA)
  --memory-load <file.jsonl>
  --collection, -c <name>            (MINDEXER_COLLECTION)
  --log-level debug|info|warn|error  (MINDEXER_LOG_LEVEL)
  --format pretty|json

COMMANDS
  load            insert JSON-lines documents
  index <sub>     list | create | drop | drop-all
  find            run a query
  explain         run a query and report its execution stats
  estimate        estimate how many documents match a query
  sample          draw documents matching a query
  analyze         check a workload against candidate indexes
  workload <sub>  show | add | run

Query flags: -f/--filter <json> --sort a,b --projection a,b --limit n
Estimator flags: --row-cap n --sample-size n | --sample-ratio r --persist --keep-sample --seed n`)
}
