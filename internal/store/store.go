// Package store is the storage engine: the only component that issues raw
// SQL. It backs workspaces, corpora, notes, per-chunk embedding rows, the
// sqlite-vec cosine index, the FTS5 keyword index, the staging/committed
// access log, and the scanner's file-hash cache.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spall-labs/spall/internal/bus"
)

func init() {
	// Register the vec0 extension with every new go-sqlite3 connection.
	sqlite_vec.Auto()
}

// Store is the storage engine handle. Safe for concurrent use; the
// connection pool is capped at one connection so writers serialize.
type Store struct {
	db     *sql.DB
	path   string
	dims   int
	events *bus.Bus
	log    *slog.Logger
}

// Options configures Open.
type Options struct {
	// Path is the database file; empty means in-memory (tests).
	Path string
	// Dims is the embedding vector dimension, fixed at schema creation.
	Dims int
	// ModelName is recorded in the meta table at schema creation.
	ModelName string
	// Events receives store.create/store.created; nil disables publishing.
	Events *bus.Bus
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Open opens (creating if necessary) the database at opts.Path.
func Open(opts Options) (*Store, error) {
	if opts.Dims <= 0 {
		return nil, fmt.Errorf("store: embedding dimension must be positive, got %d", opts.Dims)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dsn := ":memory:"
	fresh := true
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("store: failed to create data directory: %w", err)
		}
		_, statErr := os.Stat(opts.Path)
		fresh = os.IsNotExist(statErr)
		dsn = "file:" + opts.Path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	if fresh && opts.Events != nil {
		opts.Events.Publish(bus.StoreCreate(opts.Path))
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	// Single connection: one serialized writer, and it keeps :memory:
	// databases from evaporating between pool checkouts.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: opts.Path, dims: opts.Dims, events: opts.Events, log: logger}
	if err := s.ensureSchema(opts.ModelName); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if fresh && opts.Events != nil {
		opts.Events.Publish(bus.StoreCreated(opts.Path))
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dims returns the embedding dimension the schema was created with.
func (s *Store) Dims() int {
	return s.dims
}

// DB exposes the raw handle for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) ensureSchema(modelName string) error {
	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS corpora (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS workspaces (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	corpus_id    INTEGER NOT NULL REFERENCES corpora(id),
	path         TEXT NOT NULL,
	content      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	size         INTEGER NOT NULL,
	mtime        INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	UNIQUE (corpus_id, path)
);
CREATE INDEX IF NOT EXISTS idx_notes_corpus_path ON notes(corpus_id, path);
CREATE INDEX IF NOT EXISTS idx_notes_hash ON notes(corpus_id, content_hash);

CREATE TABLE IF NOT EXISTS embeddings (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	note_id INTEGER NOT NULL REFERENCES notes(id),
	seq     INTEGER NOT NULL,
	pos     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_note ON embeddings(note_id);

CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(
	id INTEGER PRIMARY KEY,
	embedding float[%d] distance_metric=cosine
);

CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	content,
	tokenize = "unicode61 tokenchars '_'",
	prefix = '2 3'
);

CREATE TABLE IF NOT EXISTS queries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	viewer_id  INTEGER NOT NULL REFERENCES workspaces(id),
	tracked    INTEGER NOT NULL DEFAULT 0,
	corpora    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS staging (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	note_id    INTEGER NOT NULL,
	query_id   INTEGER NOT NULL REFERENCES queries(id),
	kind       INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS committed (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	note_id      INTEGER NOT NULL,
	query_id     INTEGER NOT NULL REFERENCES queries(id),
	kind         INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	payload      TEXT NOT NULL DEFAULT '{}',
	committed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS file_hashes (
	path         TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	mtime        INTEGER NOT NULL
);
`, s.dims)

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: failed to create schema: %w", err)
	}

	now := nowMillis()
	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO corpora (id, name, created_at, updated_at) VALUES (1, 'default', ?, ?)`,
		now, now,
	); err != nil {
		return fmt.Errorf("store: failed to seed default corpus: %w", err)
	}

	metaDefaults := [][2]string{
		{"embedding_model_name", modelName},
		{"embedding_dims", fmt.Sprintf("%d", s.dims)},
	}
	for _, kv := range metaDefaults {
		if _, err := s.db.Exec(
			`INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1],
		); err != nil {
			return fmt.Errorf("store: failed to write meta: %w", err)
		}
	}
	return nil
}

// migrate adds the notes.size column to databases created before it
// existed and backfills it from the content length.
func (s *Store) migrate() error {
	rows, err := s.db.Query(`PRAGMA table_info(notes)`)
	if err != nil {
		return fmt.Errorf("store: failed to inspect notes schema: %w", err)
	}
	defer rows.Close()

	hasSize := false
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			deflt      sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &deflt, &primaryKey); err != nil {
			return fmt.Errorf("store: failed to scan notes schema: %w", err)
		}
		if name == "size" {
			hasSize = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if hasSize {
		return nil
	}

	s.log.Info("store_migrating", slog.String("step", "notes.size"))
	_, err = s.db.Exec(`
		ALTER TABLE notes ADD COLUMN size INTEGER NOT NULL DEFAULT 0;
		UPDATE notes SET size = length(content);
	`)
	if err != nil {
		return fmt.Errorf("store: failed to add notes.size: %w", err)
	}
	return nil
}

// Meta returns a value from the meta table, or "" when absent.
func (s *Store) Meta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: failed to read meta %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) publish(ev bus.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// idsJSON renders ids as a JSON array for json_each() IN-list predicates.
func idsJSON(ids []int64) string {
	if len(ids) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// CanonicalPath normalizes a note path for storage and comparison:
// backslashes become forward slashes, runs of slashes collapse, and
// leading "./" plus leading/trailing slashes are stripped.
func CanonicalPath(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	p = strings.TrimPrefix(p, "./")
	p = strings.Trim(p, "/")
	return p
}
