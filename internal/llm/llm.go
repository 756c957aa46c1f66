package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// LLM is a generative model that answers a single user prompt
type LLM interface {
	Chat(ctx context.Context, prompt string) (string, error)
	Model() string
}

var (
	// ErrMissingAPIKey is returned when a provider is selected without credentials
	ErrMissingAPIKey = errors.New("llm: api key is required")

	// ErrEmptyResponse is returned when the provider answers without content
	ErrEmptyResponse = errors.New("llm: empty response")
)

// APIError is a non-200 answer from a provider
type APIError struct {
	Provider   Provider
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Config holds client configuration shared by every provider
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	RequestsPerSecond float64
}

func (c Config) withDefaults(def Config) Config {
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = def.Temperature
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = def.RequestsPerSecond
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

var fenceRegex = regexp.MustCompile("```[a-zA-Z]*\n|```")

// StripFences removes markdown code fences such as ```json ... ``` so JSON can be parsed
func StripFences(text string) string {
	return strings.TrimSpace(fenceRegex.ReplaceAllString(text, ""))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
