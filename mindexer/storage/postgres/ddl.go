package postgres

const ddlRegistry = `
CREATE TABLE IF NOT EXISTS mindexer_indexes (
  seq        BIGSERIAL PRIMARY KEY,
  collection TEXT NOT NULL,
  name       TEXT NOT NULL,
  fields     TEXT NOT NULL,
  UNIQUE (collection, name)
);
`
