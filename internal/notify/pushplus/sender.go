// Package pushplus sends alerts through the PushPlus HTTP push service.
package pushplus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/listingwatch/internal/notify"
)

const (
	// DefaultEndpoint is the public PushPlus send API.
	DefaultEndpoint = "http://www.pushplus.plus/send"
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	successCode = 200
	maxBodySize = 64 << 10
)

// ErrMissingToken is returned when the sender is built without a token.
var ErrMissingToken = errors.New("pushplus token is required")

// Config controls the PushPlus sender.
type Config struct {
	Token    string
	Endpoint string
	Timeout  time.Duration
	// RatePerSecond caps outgoing requests. Zero or less disables the limit.
	RatePerSecond float64
}

// Sender posts messages to PushPlus.
type Sender struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

type request struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
}

type response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// New validates cfg and builds a Sender. A nil client gets one with cfg.Timeout.
func New(cfg Config, client *http.Client) (*Sender, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Sender{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Name implements notify.Sender.
func (s *Sender) Name() string {
	return "pushplus"
}

// Send implements notify.Sender.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(request{
		Token:    s.cfg.Token,
		Title:    msg.Title,
		Content:  msg.Content,
		Template: "html",
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out.Code != successCode {
		return fmt.Errorf("pushplus rejected message: code %d: %s", out.Code, out.Msg)
	}
	return nil
}
