package ops

import (
	"context"
	"database/sql"

	"github.com/mindexer/mindexer/mindexer/collection"
	"github.com/mindexer/mindexer/mindexer/pipeline"
)

// RowsCursor decodes result rows lazily. Document rows are (id, data);
// count rows are a single integer column reported under countField.
type RowsCursor struct {
	rows       *sql.Rows
	countField string
	row        pipeline.Row
	err        error
	closed     bool
}

func NewRowsCursor(rows *sql.Rows, countField string) *RowsCursor {
	return &RowsCursor{rows: rows, countField: countField}
}

func (c *RowsCursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		_ = c.Close()
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		_ = c.Close()
		return false
	}

	if c.countField != "" {
		var n int64
		if err := c.rows.Scan(&n); err != nil {
			c.err = err
			_ = c.Close()
			return false
		}
		c.row = pipeline.Row{c.countField: n}
		return true
	}

	var (
		id   int64
		data string
	)
	if err := c.rows.Scan(&id, &data); err != nil {
		c.err = err
		_ = c.Close()
		return false
	}
	doc, err := collection.DecodeDocument([]byte(data))
	if err != nil {
		c.err = err
		_ = c.Close()
		return false
	}
	c.row = doc
	return true
}

func (c *RowsCursor) Row() pipeline.Row { return c.row }
func (c *RowsCursor) Err() error        { return c.err }

func (c *RowsCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rows.Close()
}
