// Package pubsub publishes alerts to a Google Cloud Pub/Sub topic so other
// services can fan them out further.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/listingwatch/internal/notify"
)

// Config identifies the destination topic.
type Config struct {
	ProjectID string
	TopicID   string
}

// Sender publishes each message as JSON.
type Sender struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New connects to Pub/Sub using Application Default Credentials unless opts
// say otherwise.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Sender, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, errors.New("pubsub project_id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	return &Sender{client: client, topic: client.Topic(cfg.TopicID)}, nil
}

// Name implements notify.Sender.
func (s *Sender) Name() string {
	return "pubsub"
}

// Send implements notify.Sender and waits for the server to acknowledge.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	result := s.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"title": msg.Title},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (s *Sender) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
