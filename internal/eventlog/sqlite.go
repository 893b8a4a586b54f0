package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/brianly1003/msgboard/internal/domain"
	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/brianly1003/msgboard/internal/domain/ports"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// ErrClosed is returned by operations on a closed event log.
var ErrClosed = errors.New("event log is closed")

// schemaVersion is incremented when the messages table changes shape.
const schemaVersion = 1

// SQLite is an event log persisted in a SQLite database.
type SQLite struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

// OpenSQLite opens (creating if needed) the database at path.
// The special path ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps appends serialized and makes ":memory:"
	// refer to one database.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		// Enable WAL mode for better concurrency
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("sqlite event log opened")
	return &SQLite{db: db}, nil
}

// createSchema creates the database schema and records its version.
func createSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'")
	if err := row.Scan(&currentVersion); err != nil {
		// No version found, this is a new database
		currentVersion = 0
	}

	if currentVersion > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, schemaVersion)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			content TEXT NOT NULL,
			author TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}

	if currentVersion < schemaVersion {
		log.Info().
			Int("old_version", currentVersion).
			Int("new_version", schemaVersion).
			Msg("event log schema initialized")
	}

	_, err := db.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)", schemaVersion)
	return err
}

// Append inserts msg. Ids must be decimal and strictly increasing.
func (s *SQLite) Append(ctx context.Context, msg events.Message) error {
	if s.isClosed() {
		return domain.NewStorageError("append", ErrClosed)
	}

	id, err := strconv.ParseUint(msg.ID, 10, 64)
	if err != nil {
		return domain.NewStorageError("append", fmt.Errorf("non-numeric message id %q", msg.ID))
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO messages (id, content, author, created_at) VALUES (?, ?, ?, ?)",
		int64(id), msg.Content, msg.Author, events.FormatTime(msg.CreatedAt))
	if err != nil {
		return domain.NewStorageError("append", err)
	}
	return nil
}

// Snapshot returns every stored message ordered by id.
func (s *SQLite) Snapshot(ctx context.Context) ([]events.Message, error) {
	if s.isClosed() {
		return nil, domain.NewStorageError("snapshot", ErrClosed)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, content, author, created_at FROM messages ORDER BY id")
	if err != nil {
		return nil, domain.NewStorageError("snapshot", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]events.Message, 0)
	for rows.Next() {
		var (
			id        int64
			content   string
			author    string
			createdAt string
		)
		if err := rows.Scan(&id, &content, &author, &createdAt); err != nil {
			return nil, domain.NewStorageError("snapshot", err)
		}
		at, err := events.ParseTime(createdAt)
		if err != nil {
			return nil, domain.NewStorageError("snapshot", err)
		}
		result = append(result, events.Message{
			ID:        strconv.FormatInt(id, 10),
			Content:   content,
			Author:    author,
			CreatedAt: at,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("snapshot", err)
	}
	return result, nil
}

// LastID returns the largest stored id, or 0 for an empty log.
func (s *SQLite) LastID(ctx context.Context) (uint64, error) {
	if s.isClosed() {
		return 0, domain.NewStorageError("last_id", ErrClosed)
	}

	var id int64
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM messages")
	if err := row.Scan(&id); err != nil {
		return 0, domain.NewStorageError("last_id", err)
	}
	return uint64(id), nil
}

// Count returns the number of stored messages.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	if s.isClosed() {
		return 0, domain.NewStorageError("count", ErrClosed)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, domain.NewStorageError("count", err)
	}
	return n, nil
}

// Close closes the database. Safe to call multiple times.
func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.db.Close()
}

func (s *SQLite) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ ports.EventLog = (*SQLite)(nil)
