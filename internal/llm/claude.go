package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultClaudeConfig returns default configuration for the Anthropic messages API
func DefaultClaudeConfig() Config {
	return Config{
		BaseURL:           "https://api.anthropic.com/v1",
		Model:             "claude-3-haiku-20240307",
		MaxTokens:         2000,
		Temperature:       0.3,
		Timeout:           60 * time.Second,
		RequestsPerSecond: 2,
	}
}

// Claude talks to the Anthropic messages API
type Claude struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewClaude creates a Claude client
func NewClaude(config Config) *Claude {
	config = config.withDefaults(DefaultClaudeConfig())

	return &Claude{
		apiKey:      config.APIKey,
		baseURL:     config.BaseURL,
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		httpClient:  &http.Client{Timeout: config.Timeout},
		limiter:     newLimiter(config.RequestsPerSecond),
	}
}

// Model returns the model identifier
func (c *Claude) Model() string {
	return c.model
}

type claudeRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends one user prompt and returns the first text block of the answer
func (c *Claude) Chat(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	reqBody := claudeRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: ProviderClaude, StatusCode: resp.StatusCode, Message: truncate(string(respBytes), 200)}
	}

	var cr claudeResponse
	if err := json.Unmarshal(respBytes, &cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if cr.Error.Message != "" {
		return "", &APIError{Provider: ProviderClaude, StatusCode: resp.StatusCode, Message: cr.Error.Message}
	}
	if len(cr.Content) == 0 || cr.Content[0].Text == "" {
		return "", ErrEmptyResponse
	}

	return cr.Content[0].Text, nil
}
