// Package notify delivers alerts about new listings. Delivery is best-effort:
// a failed send is logged and never reaches the caller, because a Finding is
// recorded as seen whether or not its alert got through.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/listingwatch/internal/listing"
)

// DefaultTitle heads the alert for a new listing.
const DefaultTitle = "New listing found!"

// Message is one alert. Content may contain simple markup such as <br>.
type Message struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Sender performs one delivery attempt to a concrete channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Notifier dispatches alerts without reporting failure.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// FindingMessage formats the alert for a new listing.
func FindingMessage(title string, f listing.Finding) Message {
	if title == "" {
		title = DefaultTitle
	}
	return Message{
		Title:   title,
		Content: fmt.Sprintf("Found: %s<br>Status: %s<br>Link: %s", f.RawID, f.Status, f.TargetURL),
	}
}

// TestMessage is sent by the --test-push command.
func TestMessage() Message {
	return Message{
		Title:   "Test Notification",
		Content: "This is a test message from listingwatch to verify notification delivery.",
	}
}

// New wraps senders in a best-effort Notifier. Without senders the result is
// a no-op that warns once.
func New(logger *zap.Logger, senders ...Sender) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	active := make([]Sender, 0, len(senders))
	for _, s := range senders {
		if s != nil {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return &noop{logger: logger}
	}
	return &bestEffort{sender: Multi(active...), logger: logger}
}

type bestEffort struct {
	sender Sender
	logger *zap.Logger
}

func (b *bestEffort) Notify(ctx context.Context, msg Message) {
	if err := b.sender.Send(ctx, msg); err != nil {
		b.logger.Error("notification failed", zap.String("title", msg.Title), zap.Error(err))
		return
	}
	b.logger.Info("notification sent", zap.String("title", msg.Title))
}

type noop struct {
	once   sync.Once
	logger *zap.Logger
}

func (n *noop) Notify(_ context.Context, msg Message) {
	n.once.Do(func() {
		n.logger.Warn("no notification channel configured; skipping notifications")
	})
	n.logger.Debug("notification skipped", zap.String("title", msg.Title))
}

// Multi fans a message out to every sender. Each sender is attempted
// regardless of earlier failures; the joined error reports all of them.
func Multi(senders ...Sender) Sender {
	if len(senders) == 1 {
		return senders[0]
	}
	return multi(senders)
}

type multi []Sender

func (m multi) Name() string {
	return "multi"
}

func (m multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
