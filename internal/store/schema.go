package store

// schema is executed in full on every open; every statement is
// idempotent (CREATE TABLE/INDEX IF NOT EXISTS, DROP TRIGGER IF EXISTS
// before CREATE TRIGGER) so opening an already-initialized database is
// a cheap no-op pass, the same approach the teacher's schema.go takes.
const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id               TEXT PRIMARY KEY,
	body             TEXT NOT NULL,
	importance       INTEGER NOT NULL CHECK (importance IN (1, 2, 3)),
	source_url       TEXT,
	image_path       TEXT,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL,
	deleted_at       TEXT,
	server_timestamp TEXT
);

CREATE TABLE IF NOT EXISTS keywords (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS note_keywords (
	note_id    TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	keyword_id INTEGER NOT NULL REFERENCES keywords(id) ON DELETE CASCADE,
	score      REAL NOT NULL DEFAULT 0,
	source     TEXT NOT NULL CHECK (source IN ('ai', 'manual')),
	PRIMARY KEY (note_id, keyword_id)
);

CREATE TABLE IF NOT EXISTS relations (
	id            TEXT PRIMARY KEY,
	from_note_id  TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	to_note_id    TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	relation_type TEXT NOT NULL CHECK (relation_type IN ('related', 'parent_child', 'similar', 'custom')),
	rationale     TEXT,
	source        TEXT NOT NULL CHECK (source IN ('ai', 'manual')),
	created_at    TEXT NOT NULL,
	CHECK (from_note_id != to_note_id),
	UNIQUE (from_note_id, to_note_id, relation_type)
);

CREATE TABLE IF NOT EXISTS reflections (
	date       TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS change_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	operation   TEXT NOT NULL CHECK (operation IN ('insert', 'update', 'delete')),
	payload     TEXT NOT NULL,
	priority    INTEGER NOT NULL CHECK (priority IN (1, 2, 3)),
	created_at  TEXT NOT NULL,
	synced_at   TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT
);

CREATE TABLE IF NOT EXISTS conflict_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	local_data  TEXT NOT NULL,
	remote_data TEXT NOT NULL,
	resolution  TEXT NOT NULL CHECK (resolution IN ('local_wins', 'remote_wins')),
	resolved_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	query       TEXT NOT NULL,
	searched_at TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	body,
	content='notes',
	content_rowid='rowid',
	tokenize='unicode61 remove_diacritics 2'
);

DROP TRIGGER IF EXISTS notes_fts_after_insert;
CREATE TRIGGER notes_fts_after_insert AFTER INSERT ON notes BEGIN
	INSERT INTO notes_fts(rowid, body) VALUES (new.rowid, new.body);
END;

DROP TRIGGER IF EXISTS notes_fts_after_delete;
CREATE TRIGGER notes_fts_after_delete AFTER DELETE ON notes BEGIN
	INSERT INTO notes_fts(notes_fts, rowid, body) VALUES ('delete', old.rowid, old.body);
END;

DROP TRIGGER IF EXISTS notes_fts_after_update;
CREATE TRIGGER notes_fts_after_update AFTER UPDATE ON notes BEGIN
	INSERT INTO notes_fts(notes_fts, rowid, body) VALUES ('delete', old.rowid, old.body);
	INSERT INTO notes_fts(rowid, body) VALUES (new.rowid, new.body);
END;

CREATE INDEX IF NOT EXISTS idx_notes_updated_at ON notes(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_notes_importance ON notes(importance DESC);
CREATE INDEX IF NOT EXISTS idx_notes_deleted_at ON notes(deleted_at);
CREATE INDEX IF NOT EXISTS idx_change_log_synced_at ON change_log(synced_at);
CREATE INDEX IF NOT EXISTS idx_change_log_entity ON change_log(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_note_keywords_note_id ON note_keywords(note_id);
CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_note_id);
CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_note_id);
`

// requiredTables lists every base table and FTS shadow table that must
// exist after initialization for missingTables to consider the schema
// healthy. Listing every missing table (not just the first) is a
// deliberate improvement over the teacher's single-error migration
// check.
var requiredTables = []string{
	"notes",
	"keywords",
	"note_keywords",
	"relations",
	"reflections",
	"change_log",
	"conflict_log",
	"sync_state",
	"search_history",
	"notes_fts",
	"notes_fts_data",
	"notes_fts_idx",
	"notes_fts_docsize",
	"notes_fts_config",
}
