package db

// The catalog index lives only for the life of the process. position keeps
// the source order so listings are stable across refreshes.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS markets (
    id TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    question TEXT NOT NULL,
    question_fold TEXT NOT NULL,
    category TEXT NOT NULL,
    yes_price INTEGER NOT NULL,
    no_price INTEGER NOT NULL,
    yes_percentage TEXT NOT NULL DEFAULT '',
    no_percentage TEXT NOT NULL DEFAULT '',
    volume TEXT NOT NULL DEFAULT '',
    ends_in TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_markets_category ON markets(category, position);

CREATE TABLE IF NOT EXISTS catalog_refreshes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    market_count INTEGER NOT NULL,
    refreshed_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
