// Package gcs provides a history store backed by Google Cloud Storage.
//
// Every key is its own object under a common prefix. Recording a key creates
// an object and never touches existing ones, so the store stays append-only
// even though GCS objects are immutable.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/JakeFAU/listingwatch/internal/history"
)

// DefaultPrefix is used when no object prefix is configured.
const DefaultPrefix = "history"

// Config captures the parameters required to locate history objects.
type Config struct {
	Bucket string
	Prefix string
}

// Store records keys as objects in a configured bucket.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed history store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
	}, nil
}

func (s *Store) objectName(key string) string {
	return s.prefix + "/" + url.PathEscape(key)
}

// Load lists every object under the prefix.
func (s *Store) Load(ctx context.Context) (history.Set, error) {
	set := history.NewSet()
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix + "/"})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list history objects: %w", err)
		}
		escaped := strings.TrimPrefix(attrs.Name, s.prefix+"/")
		key, err := url.PathUnescape(escaped)
		if err != nil {
			return nil, fmt.Errorf("decode history object %q: %w", attrs.Name, err)
		}
		set.Add(key)
	}
	return set, nil
}

// Append uploads an object named after key. An object that already exists
// counts as recorded.
func (s *Store) Append(ctx context.Context, key string) error {
	if err := history.ValidateKey(key); err != nil {
		return err
	}
	name := s.objectName(key)
	writer := s.client.Bucket(s.bucket).Object(name).
		If(storage.Conditions{DoesNotExist: true}).
		NewWriter(ctx)
	writer.ContentType = "text/plain; charset=utf-8"
	if _, err := writer.Write([]byte(key + "\n")); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write history object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write history object: %w", err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return nil
		}
		return fmt.Errorf("close history object writer for %s: %w", name, err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}

// Close closes the storage client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close storage client: %w", err)
	}
	return nil
}
