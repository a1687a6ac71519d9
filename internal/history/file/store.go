// Package file implements the default history store: a flat UTF-8 text file
// holding one key per line, only ever appended to.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/listingwatch/internal/history"
)

// Config captures the parameters for the file-backed history store.
type Config struct {
	// Path is the history file location.
	Path string `mapstructure:"path" yaml:"path"`
}

// Store appends keys to a line-delimited text file.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a file-backed store. The file itself is created lazily on the
// first append; its parent directory must be creatable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	dir := filepath.Dir(cfg.Path)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create history directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat history directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("history directory %s is not a directory", dir)
	}
	return &Store{path: cfg.Path}, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Load reads every recorded key. A missing file is the first-run case and
// yields an empty set.
func (s *Store) Load(_ context.Context) (history.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return history.NewSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	set, err := history.ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("read history file %s: %w", s.path, err)
	}
	return set, nil
}

// Append writes key followed by a newline and syncs the file before
// returning.
func (s *Store) Append(ctx context.Context, key string) error {
	if err := history.ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// #nosec G304 -- path comes from operator configuration.
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	if _, err := f.WriteString(key + "\n"); err != nil {
		closeErr := f.Close()
		if closeErr != nil {
			return fmt.Errorf("write history key: %w (close: %v)", err, closeErr)
		}
		return fmt.Errorf("write history key: %w", err)
	}
	if err := f.Sync(); err != nil {
		closeErr := f.Close()
		if closeErr != nil {
			return fmt.Errorf("sync history file: %w (close: %v)", err, closeErr)
		}
		return fmt.Errorf("sync history file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close history file: %w", err)
	}
	return nil
}

// Close is a no-op; every append closes its own handle.
func (s *Store) Close() error {
	return nil
}
