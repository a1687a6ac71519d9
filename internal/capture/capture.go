// Package capture renders target pages in a headless browser and returns a
// full-page PNG screenshot of each.
package capture

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by Noop.
var ErrNotConfigured = errors.New("page capture not configured")

// Capturer produces a screenshot of the page at url.
type Capturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// Noop implements Capturer but always fails. It stands in when no browser is
// available, for example in --test-push mode.
type Noop struct{}

// Capture implements Capturer.
func (Noop) Capture(_ context.Context, _ string) ([]byte, error) {
	return nil, ErrNotConfigured
}
