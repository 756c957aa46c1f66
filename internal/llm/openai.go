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

// DefaultOpenAIConfig returns default configuration for the chat completions API
func DefaultOpenAIConfig() Config {
	return Config{
		BaseURL:           "https://api.openai.com/v1",
		Model:             "gpt-4-turbo-preview",
		MaxTokens:         2000,
		Temperature:       0.3,
		Timeout:           60 * time.Second,
		RequestsPerSecond: 2,
	}
}

// OpenAI talks to the chat completions API in JSON object mode
type OpenAI struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewOpenAI creates an OpenAI client
func NewOpenAI(config Config) *OpenAI {
	config = config.withDefaults(DefaultOpenAIConfig())

	return &OpenAI{
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
func (o *OpenAI) Model() string {
	return o.model
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

const systemPrompt = "You are an expert legal contract analyst. Always respond with valid JSON."

// Chat sends one user prompt and returns the first choice
func (o *OpenAI) Chat(ctx context.Context, prompt string) (string, error) {
	if o.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	reqBody := openAIRequest{
		Model: o.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:      o.maxTokens,
		Temperature:    o.temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Message: truncate(string(respBytes), 200)}
	}

	var or openAIResponse
	if err := json.Unmarshal(respBytes, &or); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if or.Error.Message != "" {
		return "", &APIError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Message: or.Error.Message}
	}
	if len(or.Choices) == 0 || or.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return or.Choices[0].Message.Content, nil
}
