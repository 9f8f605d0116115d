// Package workload holds a list of queries and replays them against a
// collection.
package workload

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mindexer/mindexer/mindexer/collection"
	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
	"github.com/mindexer/mindexer/mindexer/query"
)

type Workload struct {
	Queries []*query.Query
}

func New(queries ...*query.Query) *Workload {
	return &Workload{Queries: queries}
}

func (w *Workload) Add(q *query.Query) {
	w.Queries = append(w.Queries, q)
}

func (w *Workload) Len() int { return len(w.Queries) }

func (w *Workload) String() string {
	return fmt.Sprintf("<Workload: %d queries>", len(w.Queries))
}

// Print writes one numbered line per query
func (w *Workload) Print(out io.Writer) {
	for i, q := range w.Queries {
		fmt.Fprintf(out, "%4d %s\n", i, q)
	}
}

// Save writes one JSON query per line
func (w *Workload) Save(out io.Writer) error {
	enc := json.NewEncoder(out)
	for i, q := range w.Queries {
		if err := enc.Encode(q); err != nil {
			return mxerrors.Wrap(mxerrors.ErrIO, fmt.Sprintf("query %d", i), err)
		}
	}
	return nil
}

// SaveFile writes the workload to path, replacing it
func (w *Workload) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return mxerrors.Wrap(mxerrors.ErrIO, "create "+path, err)
	}
	if err := w.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return mxerrors.Wrap(mxerrors.ErrIO, "close "+path, err)
	}
	return nil
}

// Load reads a workload written by Save. A line may also hold a bare
// filter document.
func Load(r io.Reader) (*Workload, error) {
	w := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		q, err := parseLine([]byte(text))
		if err != nil {
			return nil, mxerrors.Wrap(mxerrors.ErrInvalidArgument, fmt.Sprintf("line %d", line), err)
		}
		w.Add(q)
	}
	if err := sc.Err(); err != nil {
		return nil, mxerrors.Wrap(mxerrors.ErrIO, "read workload", err)
	}
	return w, nil
}

func parseLine(b []byte) (*query.Query, error) {
	doc, err := query.ParseJSON(b)
	if err != nil {
		return nil, err
	}
	if _, ok := doc.Get("filter"); ok {
		q := query.New()
		if err := json.Unmarshal(b, q); err != nil {
			return nil, err
		}
		return q, nil
	}
	return query.FromWire(doc)
}

// LoadFile reads a workload from path
func LoadFile(path string) (*Workload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mxerrors.Wrap(mxerrors.ErrIO, "open "+path, err)
	}
	defer f.Close()
	return Load(f)
}

// Runner is the part of a collection a workload is replayed on
type Runner interface {
	RunFind(ctx context.Context, q *query.Query) ([]collection.Document, error)
	Explain(ctx context.Context, q *query.Query) (collection.ExecutionStats, error)
}

type ExecuteOptions struct {
	// Explain collects execution stats per query; the total is then the
	// sum of the reported execution times
	Explain bool
	Logger  zerolog.Logger
	Now     func() time.Time
}

func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{
		Explain: true,
		Logger:  zerolog.Nop(),
		Now:     time.Now,
	}
}

type Result struct {
	TotalMillis int64
	// Stats has one entry per query when explaining
	Stats []collection.ExecutionStats
}

// Execute runs every query of w in order and reports how long it took
func Execute(ctx context.Context, r Runner, w *Workload, opts ExecuteOptions) (Result, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var res Result
	start := now()
	for i, q := range w.Queries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !opts.Explain {
			if _, err := r.RunFind(ctx, q); err != nil {
				return res, fmt.Errorf("query %d: %w", i, err)
			}
			continue
		}
		stats, err := r.Explain(ctx, q)
		if err != nil {
			return res, fmt.Errorf("query %d: %w", i, err)
		}
		opts.Logger.Info().
			Int("query", i).
			Stringer("q", q).
			Int64("elapsed_ms", stats.ElapsedMillis).
			Int64("keys_examined", stats.KeysExamined).
			Int64("docs_examined", stats.DocsExamined).
			Int64("returned", stats.Returned).
			Str("plan", stats.PlanString()).
			Msg("query executed")
		res.Stats = append(res.Stats, stats)
		res.TotalMillis += stats.ElapsedMillis
	}
	if !opts.Explain {
		res.TotalMillis = now().Sub(start).Milliseconds()
	}
	return res, nil
}
