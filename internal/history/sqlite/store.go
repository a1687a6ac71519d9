// Package sqlite provides a history store in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	// Pure-Go driver registered as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/listingwatch/internal/history"
)

// Store keeps recorded keys in the listing_history table.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens (or creates) the database at path and ensures the schema.
func New(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create history database directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, logger: logger}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("sqlite history ready", zap.String("path", path))
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const query = `
	CREATE TABLE IF NOT EXISTS listing_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Load reads every recorded key.
func (s *Store) Load(ctx context.Context) (history.Set, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM listing_history ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	set := history.NewSet()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		set.Add(key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return set, nil
}

// Append inserts key in its own implicit transaction.
func (s *Store) Append(ctx context.Context, key string) error {
	if err := history.ValidateKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO listing_history (key) VALUES (?)`, key); err != nil {
		return fmt.Errorf("insert history key: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
