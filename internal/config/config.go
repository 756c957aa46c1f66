package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. LRIQ_SERVER_ADDR
const EnvPrefix = "LRIQ"

// Config represents the complete service configuration.
// The structure matches config.yaml and can be overridden by environment variables.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Inference  InferenceConfig  `mapstructure:"inference"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Analyzer   AnalyzerConfig   `mapstructure:"analyzer"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	AnalysisTimeout time.Duration `mapstructure:"analysis_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	MaxWords        int           `mapstructure:"max_words"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains the Postgres connection
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// AuthConfig contains JWT settings
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenDuration time.Duration `mapstructure:"token_duration"`
}

// LLMConfig contains the generative backend provider. An empty provider disables it.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// InferenceConfig contains the hosted model endpoints for the model backend
type InferenceConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	APIToken          string        `mapstructure:"api_token"`
	ClassifierModel   string        `mapstructure:"classifier_model"`
	SentimentModel    string        `mapstructure:"sentiment_model"`
	NERModel          string        `mapstructure:"ner_model"`
	SummarizerModel   string        `mapstructure:"summarizer_model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// EmbeddingsConfig contains the clause embedding API. An empty key disables clause search.
type EmbeddingsConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	CacheSize int    `mapstructure:"cache_size"`
}

// AnalyzerConfig contains engine tuning
type AnalyzerConfig struct {
	MaxConcurrentSections int    `mapstructure:"max_concurrent_sections"`
	RuleAggregation       string `mapstructure:"rule_aggregation"`
}

// BillingConfig contains usage limits
type BillingConfig struct {
	FreeMonthlyAnalyses int `mapstructure:"free_monthly_analyses"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig contains the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads .env, an optional config file and the environment.
// When file is empty, config.yaml is searched in . and $HOME/.legalreviewiq.
func Load(file string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.legalreviewiq")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindFallbacks(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if port := v.GetString("server.port"); port != "" && os.Getenv(EnvPrefix+"_SERVER_ADDR") == "" {
		cfg.Server.Addr = ":" + port
	}
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "claude", "anthropic":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.analysis_timeout", "60s")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.max_words", 10000)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.token_duration", "24h")

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.requests_per_second", 2)

	v.SetDefault("inference.enabled", false)
	v.SetDefault("inference.base_url", "https://api-inference.huggingface.co/models")
	v.SetDefault("inference.classifier_model", "nlpaueb/legal-bert-base-uncased")
	v.SetDefault("inference.sentiment_model", "cardiffnlp/twitter-roberta-base-sentiment-latest")
	v.SetDefault("inference.ner_model", "dslim/bert-base-NER")
	v.SetDefault("inference.summarizer_model", "sshleifer/distilbart-cnn-12-6")
	v.SetDefault("inference.timeout", "30s")
	v.SetDefault("inference.requests_per_second", 10)

	v.SetDefault("embeddings.model", "openai/text-embedding-3-small")
	v.SetDefault("embeddings.base_url", "")
	v.SetDefault("embeddings.cache_size", 10000)

	v.SetDefault("analyzer.max_concurrent_sections", 4)
	v.SetDefault("analyzer.rule_aggregation", "keyword_count")

	v.SetDefault("billing.free_monthly_analyses", 3)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// bindFallbacks maps well-known unprefixed variables onto config keys.
// The prefixed form still wins because it is listed first.
func bindFallbacks(v *viper.Viper) error {
	fallbacks := map[string]string{
		"database.url":        "DATABASE_URL",
		"auth.jwt_secret":     "JWT_SECRET",
		"inference.api_token": "HF_API_TOKEN",
		"embeddings.api_key":  "OPENROUTER_API_KEY",
		"server.port":         "PORT",
	}
	for key, env := range fallbacks {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return err
		}
	}
	return nil
}
