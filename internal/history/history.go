// Package history defines the persisted set of listing keys that have already
// been reported, and the contract every storage backend satisfies.
package history

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Store persists history keys. Load is called once per run; Append durably
// records a single key before returning. Stores do not deduplicate appends;
// the caller checks membership first.
type Store interface {
	Load(ctx context.Context) (Set, error)
	Append(ctx context.Context, key string) error
	Close() error
}

// Set is an in-memory snapshot of recorded keys.
type Set map[string]struct{}

// NewSet builds a set from keys, ignoring blanks.
func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Has reports whether key is recorded.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Add records key in the snapshot. Blank keys are ignored.
func (s Set) Add(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	s[key] = struct{}{}
}

// Len returns the number of keys.
func (s Set) Len() int {
	return len(s)
}

// ReadLines parses the line-delimited history format: one key per line,
// surrounding whitespace and blank lines ignored.
func ReadLines(r io.Reader) (Set, error) {
	set := NewSet()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		set.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return set, nil
}

// ValidateKey rejects keys that cannot be stored in the line format.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("history key is empty")
	}
	if strings.ContainsAny(key, "\r\n") {
		return fmt.Errorf("history key %q contains a line break", key)
	}
	return nil
}
