package store

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    hash         TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    link         TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    source       TEXT NOT NULL,
    category     TEXT NOT NULL DEFAULT '',
    type         TEXT NOT NULL,
    author       TEXT NOT NULL DEFAULT '',
    published    DATETIME NOT NULL,
    engagement   TEXT NOT NULL DEFAULT '{}',
    trend_score  REAL NOT NULL DEFAULT 0,
    is_trending  BOOLEAN NOT NULL DEFAULT 0,
    build_id     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published);
CREATE INDEX IF NOT EXISTS idx_articles_score ON articles(trend_score);

CREATE TABLE IF NOT EXISTS topics (
    term         TEXT PRIMARY KEY,
    position     INTEGER NOT NULL,
    mentions     INTEGER NOT NULL DEFAULT 0,
    sources      TEXT NOT NULL DEFAULT '[]',
    num_sources  INTEGER NOT NULL DEFAULT 0,
    velocity     REAL NOT NULL DEFAULT 0,
    direction    TEXT NOT NULL DEFAULT '',
    score        REAL NOT NULL DEFAULT 0,
    build_id     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS builds (
    id              TEXT PRIMARY KEY,
    started_at      DATETIME NOT NULL,
    finished_at     DATETIME NOT NULL,
    fetched         INTEGER NOT NULL DEFAULT 0,
    articles        INTEGER NOT NULL DEFAULT 0,
    trending        INTEGER NOT NULL DEFAULT 0,
    topics          INTEGER NOT NULL DEFAULT 0,
    status          TEXT NOT NULL,
    error           TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at);

CREATE TABLE IF NOT EXISTS seen_hashes (
    id    INTEGER PRIMARY KEY AUTOINCREMENT,
    hash  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS alerts (
    term        TEXT PRIMARY KEY,
    score       REAL NOT NULL DEFAULT 0,
    alerted_at  DATETIME NOT NULL
);
`
