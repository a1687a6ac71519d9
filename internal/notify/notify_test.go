package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/listingwatch/internal/listing"
)

type recordingSender struct {
	name string
	err  error
	sent []Message
}

func (r *recordingSender) Name() string { return r.name }

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestFindingMessage(t *testing.T) {
	t.Parallel()

	f := listing.Candidate{RawID: "AID 649991 - Hinau", Status: "Ask to foster"}.
		Promote("649991", "https://example.org/foster", time.Unix(0, 0))
	msg := FindingMessage("", f)
	assert.Equal(t, DefaultTitle, msg.Title)
	assert.Equal(t, "Found: AID 649991 - Hinau<br>Status: Ask to foster<br>Link: https://example.org/foster", msg.Content)

	assert.Equal(t, "Custom", FindingMessage("Custom", f).Title)
}

func TestNewWithoutSendersWarnsOnce(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	n := New(zap.New(core))
	n.Notify(context.Background(), TestMessage())
	n.Notify(context.Background(), TestMessage())
	n = New(zap.New(core), nil)
	n.Notify(context.Background(), TestMessage())

	assert.Equal(t, 2, logs.FilterMessage("no notification channel configured; skipping notifications").Len())
}

func TestBestEffortSwallowsErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	failing := &recordingSender{name: "failing", err: errors.New("connection refused")}
	n := New(zap.New(core), failing)

	require.NotPanics(t, func() { n.Notify(context.Background(), TestMessage()) })
	assert.Len(t, failing.sent, 1)
	entries := logs.FilterMessage("notification failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "connection refused")
}

func TestMultiAttemptsEverySender(t *testing.T) {
	t.Parallel()

	first := &recordingSender{name: "first", err: errors.New("first down")}
	second := &recordingSender{name: "second"}
	third := &recordingSender{name: "third", err: errors.New("third down")}

	err := Multi(first, second, third).Send(context.Background(), TestMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first: first down")
	assert.Contains(t, err.Error(), "third: third down")
	assert.Len(t, second.sent, 1)
	assert.Len(t, third.sent, 1)
}

func TestMultiSingleSenderPassthrough(t *testing.T) {
	t.Parallel()

	only := &recordingSender{name: "only"}
	assert.Same(t, only, Multi(only))
}
