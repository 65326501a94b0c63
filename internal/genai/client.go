// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package genai is a thin HTTP client for the generative text and embedding
// API used by the pipeline stages and the similarity engine.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/pkg/types"
)

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	// MaxTokens caps the response length. Zero uses the server default.
	MaxTokens int

	// Temperature controls sampling randomness. Zero uses the server default.
	Temperature float64
}

// Client abstracts the generative API so tests can supply a mock.
type Client interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// HTTPClient calls the API over HTTP with retry on rate limiting.
type HTTPClient struct {
	cfg    types.AIConfig
	client *http.Client
}

// NewHTTPClient builds a client from cfg. A zero timeout defaults to 60s;
// generation calls routinely take tens of seconds.
func NewHTTPClient(cfg types.AIConfig, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Text string `json:"text"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Generate sends the prompt to the generation endpoint and returns the
// model's text.
func (c *HTTPClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	body := generateRequest{
		Model:       c.cfg.Model,
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	var out generateResponse
	if err := c.post(ctx, "/v1/generate", body, &out); err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return out.Text, nil
}

// Embed returns the embedding vector for text. It fails when no embedding
// model is configured; callers treat that as "semantic comparison off".
func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.cfg.EmbedModel == "" {
		return nil, fmt.Errorf("embed: no embedding model configured")
	}
	body := embedRequest{Model: c.cfg.EmbedModel, Input: text}
	var out embedResponse
	if err := c.post(ctx, "/v1/embed", body, &out); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return out.Embedding, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.cfg.MaxRetries)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
