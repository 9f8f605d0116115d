package mindexer

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/mindexer/mindexer/mindexer/collection"
	mxerrors "github.com/mindexer/mindexer/mindexer/errors"
	"github.com/mindexer/mindexer/mindexer/index"
	"github.com/mindexer/mindexer/mindexer/ops"
	"github.com/mindexer/mindexer/mindexer/pipeline"
	"github.com/mindexer/mindexer/mindexer/query"
	"github.com/mindexer/mindexer/mindexer/storage"
)

// SQLCollection is a document collection stored as JSON rows in a SQL
// database
type SQLCollection struct {
	adapter storage.Adapter
	db      *sql.DB
	name    string
	table   string
	opts    Options
	log     zerolog.Logger
}

var _ collection.Collection = (*SQLCollection)(nil)

// OpenSQL connects through adapter and opens (creating if needed) the
// named collection
func OpenSQL(ctx context.Context, adapter storage.Adapter, name string, opts Options) (*SQLCollection, error) {
	if name == "" {
		return nil, mxerrors.InvalidArgument("collection", "collection name must not be empty")
	}
	if opts.Now == nil {
		opts.Now = DefaultOptions().Now
	}

	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, mxerrors.Wrap(mxerrors.ErrIO, "connect to database", err)
	}
	if err := adapter.Init(ctx, db); err != nil {
		db.Close()
		return nil, mxerrors.Wrap(mxerrors.ErrSQL, "create index registry", err)
	}

	table := adapter.Table("", name)
	if err := ops.EnsureTable(ctx, db, adapter, table); err != nil {
		db.Close()
		return nil, mxerrors.Wrap(mxerrors.ErrSQL, "create collection", err)
	}

	return &SQLCollection{
		adapter: adapter,
		db:      db,
		name:    name,
		table:   table,
		opts:    opts,
		log: opts.Logger.With().
			Str("backend", string(adapter.Backend())).
			Str("collection", name).
			Logger(),
	}, nil
}

func (c *SQLCollection) Name() string { return c.name }

// Close closes the collection
func (c *SQLCollection) Close() error {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			return mxerrors.Wrap(mxerrors.ErrIO, "close database", err)
		}
	}
	return c.adapter.Close()
}

func (c *SQLCollection) Count(ctx context.Context) (int64, error) {
	n, err := ops.Count(ctx, c.db, c.adapter, c.table, nil)
	if err != nil {
		return 0, mxerrors.Wrap(mxerrors.ErrSQL, "count", err)
	}
	return n, nil
}

func (c *SQLCollection) Insert(ctx context.Context, docs ...collection.Document) error {
	n, err := ops.InsertDocuments(ctx, c.db, c.adapter, c.table, docs)
	if err != nil {
		return mxerrors.Wrap(mxerrors.ErrSQL, "insert", err)
	}
	c.log.Debug().Int("documents", n).Msg("inserted")
	return nil
}

func (c *SQLCollection) RunFind(ctx context.Context, q *query.Query) ([]collection.Document, error) {
	res, err := ops.Find(ctx, c.db, c.adapter, c.table, q)
	if err != nil {
		return nil, mxerrors.Wrap(mxerrors.ErrSQL, "find", err)
	}
	return res.Docs, nil
}

// Explain runs q and reports how the database answered it. Keys examined
// is the number of documents the used index's prefix selects; without an
// index every document is examined.
func (c *SQLCollection) Explain(ctx context.Context, q *query.Query) (collection.ExecutionStats, error) {
	start := c.opts.Now()
	res, err := ops.Find(ctx, c.db, c.adapter, c.table, q)
	if err != nil {
		return collection.ExecutionStats{}, mxerrors.Wrap(mxerrors.ErrSQL, "find", err)
	}
	elapsed := c.opts.Now().Sub(start)

	plan, err := ops.ExplainPlan(ctx, c.db, c.adapter, res.SQL, res.Args)
	if err != nil {
		return collection.ExecutionStats{}, mxerrors.Wrap(mxerrors.ErrSQL, "explain", err)
	}
	stats := collection.ExecutionStats{
		ElapsedMillis: elapsed.Milliseconds(),
		Returned:      int64(len(res.Docs)),
		Plan:          plan,
	}

	indexes, err := c.ListIndexes(ctx)
	if err != nil {
		return collection.ExecutionStats{}, err
	}
	var used index.Index
	for _, info := range indexes {
		if ops.PlanUsesIndex(plan, c.adapter.IndexName(c.name, info.Name)) {
			stats.Index, used = info.Name, info.Fields
			break
		}
	}

	if used == nil {
		total, err := c.Count(ctx)
		if err != nil {
			return collection.ExecutionStats{}, err
		}
		stats.DocsExamined = total
	} else {
		keys, err := ops.Count(ctx, c.db, c.adapter, c.table, index.Intersect(q, used))
		if err != nil {
			return collection.ExecutionStats{}, mxerrors.Wrap(mxerrors.ErrSQL, "count index keys", err)
		}
		stats.KeysExamined = keys
		if !index.IsCovered(q, used) {
			stats.DocsExamined = keys
		}
	}

	c.log.Debug().
		Str("plan", stats.PlanString()).
		Str("index", stats.Index).
		Int64("elapsed_ms", stats.ElapsedMillis).
		Msg("explain")
	return stats, nil
}

func (c *SQLCollection) namespaceTable(ns pipeline.Namespace) string {
	coll := ns.Collection
	if coll == "" {
		coll = c.name
	}
	return c.adapter.Table(ns.Location, coll)
}

func (c *SQLCollection) Aggregate(ctx context.Context, ns pipeline.Namespace, stages ...pipeline.Stage) (pipeline.Cursor, error) {
	c.log.Debug().Str("namespace", ns.String()).Str("pipeline", pipeline.String(stages)).Msg("aggregate")
	cur, err := ops.Aggregate(ctx, c.db, c.adapter, c.namespaceTable(ns), stages)
	if err != nil {
		return nil, mxerrors.Wrap(mxerrors.ErrSQL, "aggregate", err)
	}
	return cur, nil
}

// DropNamespace drops another namespace such as a persisted sample. The
// collection itself can't be dropped this way.
func (c *SQLCollection) DropNamespace(ctx context.Context, ns pipeline.Namespace) error {
	if c.namespaceTable(ns) == c.table {
		return mxerrors.InvalidArgument("namespace", "refusing to drop the collection itself")
	}
	if err := ops.DropNamespace(ctx, c.db, c.adapter, c.namespaceTable(ns)); err != nil {
		return mxerrors.Wrap(mxerrors.ErrSQL, "drop namespace", err)
	}
	return nil
}

func (c *SQLCollection) CreateIndex(ctx context.Context, ix index.Index) (string, error) {
	if err := ix.Validate(); err != nil {
		return "", err
	}
	name, err := ops.CreateIndex(ctx, c.db, c.adapter, c.name, c.table, ix)
	if err != nil {
		return "", mxerrors.Wrap(mxerrors.ErrSQL, "create index", err)
	}
	c.log.Info().Str("index", name).Msg("index created")
	return name, nil
}

func (c *SQLCollection) DropIndex(ctx context.Context, name string) error {
	ok, err := ops.DropIndex(ctx, c.db, c.adapter, c.name, name)
	if err != nil {
		return mxerrors.Wrap(mxerrors.ErrSQL, "drop index", err)
	}
	if !ok {
		return mxerrors.NotFound("index " + name)
	}
	c.log.Info().Str("index", name).Msg("index dropped")
	return nil
}

func (c *SQLCollection) DropIndexes(ctx context.Context) error {
	indexes, err := c.ListIndexes(ctx)
	if err != nil {
		return err
	}
	for _, info := range indexes {
		if err := c.DropIndex(ctx, info.Name); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLCollection) ListIndexes(ctx context.Context) ([]collection.IndexInfo, error) {
	out, err := ops.ListIndexes(ctx, c.db, c.adapter, c.name)
	if err != nil {
		return nil, mxerrors.Wrap(mxerrors.ErrSQL, "list indexes", err)
	}
	return out, nil
}

// Adapter returns the underlying storage adapter
func (c *SQLCollection) Adapter() storage.Adapter {
	return c.adapter
}

// DB returns the underlying database connection (for advanced use)
func (c *SQLCollection) DB() *sql.DB {
	return c.db
}
