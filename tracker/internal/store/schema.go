package store

// Schema holds the five counter tables. Each counter identity carries a
// UNIQUE constraint; the upsert statements in this package rely on them.
const Schema = `
-- One logical row per calendar day; the daily visit total.
CREATE TABLE IF NOT EXISTS visits (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    last_counter TEXT NOT NULL UNIQUE,
    last_visit   INTEGER NOT NULL,
    visit        INTEGER NOT NULL DEFAULT 0
);

-- Unique visitors, deduplicated per (day, actor key).
CREATE TABLE IF NOT EXISTS visitors (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    last_counter  TEXT NOT NULL,
    actor_key     TEXT NOT NULL,
    referred      TEXT NOT NULL DEFAULT '',
    agent         TEXT NOT NULL DEFAULT '',
    platform      TEXT NOT NULL DEFAULT '',
    version       TEXT NOT NULL DEFAULT '',
    user_agent    TEXT NOT NULL DEFAULT '',
    location      TEXT NOT NULL DEFAULT '000',
    search_engine TEXT NOT NULL DEFAULT '',
    search_words  TEXT NOT NULL DEFAULT '',
    user_id       INTEGER NOT NULL DEFAULT 0,
    hits          INTEGER NOT NULL DEFAULT 1,
    honeypot      INTEGER NOT NULL DEFAULT 0,
    UNIQUE(last_counter, actor_key)
);
CREATE INDEX IF NOT EXISTS idx_visitors_day ON visitors(last_counter);

-- Per-page hit counts, deduplicated per (day, page identity).
CREATE TABLE IF NOT EXISTS pages (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    date      TEXT NOT NULL,
    page_type TEXT NOT NULL,
    page_id   INTEGER NOT NULL,
    uri       TEXT NOT NULL DEFAULT '',
    count     INTEGER NOT NULL DEFAULT 0,
    UNIQUE(date, page_type, page_id, uri)
);
CREATE INDEX IF NOT EXISTS idx_pages_day ON pages(date);

-- Sliding presence table; rows older than the liveness window are swept.
CREATE TABLE IF NOT EXISTS online (
    actor_key TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    created   INTEGER NOT NULL,
    referred  TEXT NOT NULL DEFAULT '',
    page_type TEXT NOT NULL DEFAULT '',
    page_id   INTEGER NOT NULL DEFAULT 0,
    user_id   INTEGER NOT NULL DEFAULT 0,
    location  TEXT NOT NULL DEFAULT '000'
);
CREATE INDEX IF NOT EXISTS idx_online_ts ON online(timestamp);

-- Excluded requests, one row per (day, reason).
CREATE TABLE IF NOT EXISTS exclusions (
    id     INTEGER PRIMARY KEY AUTOINCREMENT,
    date   TEXT NOT NULL,
    reason TEXT NOT NULL,
    count  INTEGER NOT NULL DEFAULT 0,
    UNIQUE(date, reason)
);
`
