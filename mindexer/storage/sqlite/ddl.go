package sqlite

const ddlRegistry = `
CREATE TABLE IF NOT EXISTS mindexer_indexes (
  seq        INTEGER PRIMARY KEY AUTOINCREMENT,
  collection TEXT NOT NULL,
  name       TEXT NOT NULL,
  fields     TEXT NOT NULL,
  UNIQUE (collection, name)
);
`
