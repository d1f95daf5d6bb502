package store

// Schema contains the complete DDL for the darkmark tables.
const Schema = `
-- Pages: one row per collected submission
CREATE TABLE IF NOT EXISTS pages (
    id               TEXT PRIMARY KEY,
    tab_url          TEXT NOT NULL,
    tab_title        TEXT NOT NULL DEFAULT '',
    collected_at     TEXT NOT NULL DEFAULT '',
    frames_collected INTEGER NOT NULL DEFAULT 0,
    full_text        TEXT NOT NULL DEFAULT '',
    original_text    TEXT NOT NULL DEFAULT '',
    frames_json      TEXT NOT NULL DEFAULT '[]',
    frame_meta_json  TEXT NOT NULL DEFAULT '[]',
    snapshot_html    TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'pending',
    progress_current INTEGER NOT NULL DEFAULT 0,
    progress_total   INTEGER NOT NULL DEFAULT 0,
    error_message    TEXT NOT NULL DEFAULT '',
    completed_at     INTEGER,
    created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(tab_url, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_pages_time ON pages(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(status);

-- Structured blocks belonging to a page
CREATE TABLE IF NOT EXISTS page_blocks (
    page_id           TEXT NOT NULL,
    block_index       INTEGER NOT NULL,
    block_json        TEXT NOT NULL,
    PRIMARY KEY (page_id, block_index),
    FOREIGN KEY (page_id) REFERENCES pages(id) ON DELETE CASCADE
);

-- Classification output, one row per analysed block
CREATE TABLE IF NOT EXISTS model_results (
    page_id         TEXT NOT NULL,
    block_index     INTEGER NOT NULL,
    text            TEXT NOT NULL,
    translated_text TEXT NOT NULL DEFAULT '',
    is_darkpattern  INTEGER NOT NULL DEFAULT 0,
    probability     REAL NOT NULL DEFAULT 0,
    pattern_type    TEXT NOT NULL DEFAULT '',
    predicate       TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (page_id, block_index),
    FOREIGN KEY (page_id) REFERENCES pages(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_results_dark ON model_results(page_id, is_darkpattern);
`
