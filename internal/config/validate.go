package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	validLogLevels   = []string{"debug", "info", "warn", "error"}
	validLogFormats  = []string{"text", "json"}
	validAggregation = []string{"keyword_count", "score_mean"}
	validProviders   = []string{"", "claude", "anthropic", "openai"}
)

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server address cannot be empty")
	}
	if c.Server.MaxWords <= 0 {
		return errors.New("server max_words must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server max_upload_bytes must be positive")
	}
	if c.Server.AnalysisTimeout <= 0 {
		return errors.New("server analysis_timeout must be positive")
	}

	if !oneOf(c.LLM.Provider, validProviders) {
		return fmt.Errorf("invalid llm provider: %s", c.LLM.Provider)
	}
	if c.LLM.Provider != "" && c.LLM.APIKey == "" {
		return fmt.Errorf("llm api key cannot be empty when provider %s is set", c.LLM.Provider)
	}
	if c.LLM.RequestsPerSecond < 0 {
		return errors.New("llm requests_per_second cannot be negative")
	}

	if c.Inference.Enabled {
		if c.Inference.BaseURL == "" {
			return errors.New("inference base_url cannot be empty when inference is enabled")
		}
		if c.Inference.ClassifierModel == "" {
			return errors.New("inference classifier_model cannot be empty when inference is enabled")
		}
	}

	if c.Analyzer.MaxConcurrentSections <= 0 {
		return errors.New("analyzer max_concurrent_sections must be positive")
	}
	if !oneOf(c.Analyzer.RuleAggregation, validAggregation) {
		return fmt.Errorf("invalid analyzer rule_aggregation: %s", c.Analyzer.RuleAggregation)
	}

	if c.Billing.FreeMonthlyAnalyses < 0 {
		return errors.New("billing free_monthly_analyses cannot be negative")
	}

	if !oneOf(c.Logging.Level, validLogLevels) {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if !oneOf(c.Logging.Format, validLogFormats) {
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /: %s", c.Metrics.Path)
	}

	return nil
}

// ValidateServer additionally requires what the HTTP service needs to start
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Database.URL == "" {
		return errors.New("database url cannot be empty")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth jwt_secret cannot be empty")
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
