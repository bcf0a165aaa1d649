package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    status      TEXT NOT NULL,
    output_dir  TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    started_at  DATETIME NOT NULL,
    finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS dataset_stats (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      INTEGER NOT NULL REFERENCES runs(id),
    dataset     TEXT NOT NULL,
    source      TEXT NOT NULL,
    raw_rows    INTEGER NOT NULL DEFAULT 0,
    clean_rows  INTEGER NOT NULL DEFAULT 0,
    path        TEXT NOT NULL DEFAULT '',
    UNIQUE(run_id, dataset)
);

CREATE INDEX IF NOT EXISTS idx_dataset_stats_run ON dataset_stats(run_id);
`
