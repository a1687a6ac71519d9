package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listingwatch/internal/listing"
)

// ImageMIMEType is the format produced by the capture step.
const ImageMIMEType = "image/png"

// ErrEmptyResponse is returned when the backend answers with no text.
var ErrEmptyResponse = errors.New("empty model response")

// Request is one multimodal inference call.
type Request struct {
	Model     string
	Prompt    string
	Image     []byte
	MIMEType  string
	HighRes   bool
	JSONReply bool
}

// Backend performs a single inference call and returns the raw text answer.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config controls the extraction policy.
type Config struct {
	Rules         string
	PrimaryModel  string
	FallbackModel string
	// Timeout bounds each attempt; zero leaves only the caller's deadline.
	Timeout time.Duration
	// Debug logs the prompt and raw responses.
	Debug bool
}

// Attempt records one call against one model.
type Attempt struct {
	Model    string
	Err      error
	Duration time.Duration
}

// Outcome is the explicit result of Extract. Candidates is empty when every
// attempt failed.
type Outcome struct {
	Candidates []listing.Candidate
	// Model is the model whose answer was used; empty on failure.
	Model    string
	Attempts []Attempt
}

// OK reports whether some attempt produced a usable answer.
func (o Outcome) OK() bool {
	return o.Model != ""
}

// FellBack reports whether the answer came from a model other than the first
// one tried.
func (o Outcome) FellBack() bool {
	return o.OK() && len(o.Attempts) > 1
}

// Err joins the failures of every attempt.
func (o Outcome) Err() error {
	var errs []error
	for _, a := range o.Attempts {
		if a.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Model, a.Err))
		}
	}
	return errors.Join(errs...)
}

// Service applies the primary/fallback policy over a Backend.
type Service struct {
	backend Backend
	cfg     Config
	prompt  string
	logger  *zap.Logger
}

// NewService validates cfg and builds a Service.
func NewService(backend Backend, cfg Config, logger *zap.Logger) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("extraction backend is required")
	}
	if strings.TrimSpace(cfg.PrimaryModel) == "" {
		return nil, fmt.Errorf("primary model is required")
	}
	if strings.TrimSpace(cfg.Rules) == "" {
		cfg.Rules = DefaultRules
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend: backend,
		cfg:     cfg,
		prompt:  BuildPrompt(cfg.Rules),
		logger:  logger,
	}, nil
}

// Prompt returns the instruction text sent with every capture.
func (s *Service) Prompt() string {
	return s.prompt
}

// Extract asks the primary model to read image and, if that fails in any
// way, repeats the identical request against the fallback model once. It
// never returns an error; a failed extraction is an Outcome with no
// candidates.
func (s *Service) Extract(ctx context.Context, image []byte) Outcome {
	if s.cfg.Debug {
		s.logger.Debug("extraction prompt", zap.String("prompt", s.prompt))
	}

	var out Outcome
	for _, model := range s.models() {
		candidates, attempt := s.attempt(ctx, model, image)
		out.Attempts = append(out.Attempts, attempt)
		if attempt.Err == nil {
			out.Candidates = candidates
			out.Model = model
			return out
		}
		s.logger.Warn("model attempt failed",
			zap.String("model", model),
			zap.Duration("duration", attempt.Duration),
			zap.Error(attempt.Err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	s.logger.Error("extraction failed on every model", zap.Error(out.Err()))
	return out
}

func (s *Service) models() []string {
	models := []string{s.cfg.PrimaryModel}
	if fb := strings.TrimSpace(s.cfg.FallbackModel); fb != "" {
		models = append(models, fb)
	}
	return models
}

func (s *Service) attempt(ctx context.Context, model string, image []byte) ([]listing.Candidate, Attempt) {
	attemptCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.backend.Generate(attemptCtx, Request{
		Model:     model,
		Prompt:    s.prompt,
		Image:     image,
		MIMEType:  ImageMIMEType,
		HighRes:   true,
		JSONReply: true,
	})
	attempt := Attempt{Model: model, Duration: time.Since(start)}
	if err != nil {
		attempt.Err = fmt.Errorf("generate: %w", err)
		return nil, attempt
	}
	if s.cfg.Debug {
		s.logger.Debug("extraction response", zap.String("model", model), zap.String("response", text))
	}
	candidates, err := ParseCandidates(text)
	if err != nil {
		attempt.Err = err
		return nil, attempt
	}
	return candidates, attempt
}

type record struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ParseCandidates strictly decodes a JSON array of {id, status} records.
// Anything else, including trailing data, is an error.
func ParseCandidates(text string) ([]listing.Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	dec := json.NewDecoder(strings.NewReader(text))
	var records []record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode model response: trailing data after JSON array")
	}
	if records == nil {
		return nil, fmt.Errorf("decode model response: expected a JSON array, got null")
	}
	candidates := make([]listing.Candidate, 0, len(records))
	for _, r := range records {
		candidates = append(candidates, listing.Candidate{
			RawID:  strings.TrimSpace(r.ID),
			Status: strings.TrimSpace(r.Status),
		})
	}
	return candidates, nil
}
