package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrModelNotConfigured is returned when a task is requested without a model name
	ErrModelNotConfigured = errors.New("inference: model not configured")

	// ErrEmptyOutput is returned when the server answers without predictions
	ErrEmptyOutput = errors.New("inference: empty output")
)

// Client calls a HuggingFace-compatible inference server
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Config holds client configuration
type Config struct {
	BaseURL           string
	APIToken          string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api-inference.huggingface.co/models",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
	}
}

// NewClient creates a new inference client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiToken:   config.APIToken,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
	}
}

// Prediction is one label produced by a classification model
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Entity is one span produced by a token-classification model
type Entity struct {
	Group string  `json:"entity_group"`
	Score float64 `json:"score"`
	Word  string  `json:"word"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

type request struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

// Classify runs a text-classification model and returns predictions sorted by the server.
// Both flat and nested ([[...]]) response shapes are accepted.
func (c *Client) Classify(ctx context.Context, model, text string) ([]Prediction, error) {
	raw, err := c.post(ctx, model, request{Inputs: text})
	if err != nil {
		return nil, err
	}

	var nested [][]Prediction
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		if len(nested[0]) == 0 {
			return nil, ErrEmptyOutput
		}
		return nested[0], nil
	}

	var flat []Prediction
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	if len(flat) == 0 {
		return nil, ErrEmptyOutput
	}
	return flat, nil
}

// Entities runs a token-classification model with simple aggregation
func (c *Client) Entities(ctx context.Context, model, text string) ([]Entity, error) {
	raw, err := c.post(ctx, model, request{
		Inputs:     text,
		Parameters: map[string]any{"aggregation_strategy": "simple"},
	})
	if err != nil {
		return nil, err
	}

	var entities []Entity
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	return entities, nil
}

// Summarize runs a summarization model
func (c *Client) Summarize(ctx context.Context, model, text string, minLength, maxLength int) (string, error) {
	raw, err := c.post(ctx, model, request{
		Inputs: text,
		Parameters: map[string]any{
			"min_length": minLength,
			"max_length": maxLength,
		},
	})
	if err != nil {
		return "", err
	}

	var out []struct {
		SummaryText string `json:"summary_text"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode summary: %w", err)
	}
	if len(out) == 0 || strings.TrimSpace(out[0].SummaryText) == "" {
		return "", ErrEmptyOutput
	}
	return strings.TrimSpace(out[0].SummaryText), nil
}

// Warmup loads a model on the server, waiting for it when it is cold
func (c *Client) Warmup(ctx context.Context, model string) error {
	_, err := c.post(ctx, model, request{
		Inputs:  "warmup",
		Options: map[string]any{"wait_for_model": true},
	})
	return err
}

func (c *Client) post(ctx context.Context, model string, body request) ([]byte, error) {
	if model == "" {
		return nil, ErrModelNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+model, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference %s: status %d: %s", model, resp.StatusCode, truncate(string(respBytes), 200))
	}

	return respBytes, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
