// Package gemini implements extract.Backend on top of the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/JakeFAU/listingwatch/internal/extract"
)

// DefaultAPIVersion selects the API surface that accepts high media resolution.
const DefaultAPIVersion = "v1alpha"

// ErrMissingAPIKey is returned when no credentials are configured.
var ErrMissingAPIKey = errors.New("gemini api key is required")

// Config captures the client settings.
type Config struct {
	APIKey     string
	APIVersion string
	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string
}

type generator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Backend sends extraction requests to Gemini.
type Backend struct {
	models generator
}

// New creates a Gemini-backed extraction backend.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			APIVersion: version,
			BaseURL:    cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Backend{models: client.Models}, nil
}

// Generate sends the prompt and image as one user turn and returns the text
// of the first candidate.
func (b *Backend) Generate(ctx context.Context, req extract.Request) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image, req.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := &genai.GenerateContentConfig{}
	if req.JSONReply {
		config.ResponseMIMEType = "application/json"
	}
	if req.HighRes {
		config.MediaResolution = genai.MediaResolutionHigh
	}

	resp, err := b.models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", req.Model, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("no candidates in response from %s", req.Model)
	}
	return resp.Text(), nil
}
