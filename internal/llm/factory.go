package llm

import (
	"fmt"
	"strings"
)

// Provider represents the LLM provider type
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderOpenAI Provider = "openai"
)

// ParseProvider accepts provider names case-insensitively; "anthropic" is an alias for claude
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "claude", "anthropic":
		return ProviderClaude, nil
	case "openai":
		return ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("unsupported LLM provider: %q (supported: claude, openai)", s)
	}
}

// New creates an LLM client for the provider
func New(provider Provider, config Config) (LLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrMissingAPIKey)
	}

	switch provider {
	case ProviderClaude:
		return NewClaude(config), nil
	case ProviderOpenAI:
		return NewOpenAI(config), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// AvailableProviders returns every supported provider
func AvailableProviders() []Provider {
	return []Provider{ProviderClaude, ProviderOpenAI}
}
