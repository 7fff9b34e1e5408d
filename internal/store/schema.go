package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
    seq                  INTEGER PRIMARY KEY AUTOINCREMENT,
    id                   TEXT NOT NULL UNIQUE,
    label                TEXT NOT NULL DEFAULT '',
    taken_at             TEXT NOT NULL,
    fingerprint          TEXT NOT NULL,
    units                INTEGER NOT NULL,
    activities           INTEGER NOT NULL,
    payload              BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_taken ON snapshots(taken_at);
`
