// Package app builds the analysis engine and optional clients from configuration.
package app

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/analyzer"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/config"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/embeddings"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/inference"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/llm"
)

// EngineOptions translates configuration into engine options. An empty LLM
// provider and disabled inference leave the rule backend as the only strategy.
func EngineOptions(cfg *config.Config) ([]analyzer.Option, error) {
	var opts []analyzer.Option

	if cfg.LLM.Provider != "" {
		provider, err := llm.ParseProvider(cfg.LLM.Provider)
		if err != nil {
			return nil, err
		}
		client, err := llm.New(provider, llm.Config{
			APIKey:            cfg.LLM.APIKey,
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			Timeout:           cfg.LLM.Timeout,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("create llm client: %w", err)
		}
		opts = append(opts, analyzer.WithLLM(client))
	}

	if cfg.Inference.Enabled {
		opts = append(opts, analyzer.WithInference(inference.NewClient(inference.Config{
			BaseURL:           cfg.Inference.BaseURL,
			APIToken:          cfg.Inference.APIToken,
			Timeout:           cfg.Inference.Timeout,
			RequestsPerSecond: cfg.Inference.RequestsPerSecond,
		})))
	}

	return opts, nil
}

// EngineConfig maps analyzer settings and model names
func EngineConfig(cfg *config.Config) analyzer.Config {
	return analyzer.Config{
		MaxConcurrentSections: cfg.Analyzer.MaxConcurrentSections,
		RuleAggregation:       analyzer.AggregationMode(cfg.Analyzer.RuleAggregation),
		Models: analyzer.ModelConfig{
			Classifier: cfg.Inference.ClassifierModel,
			Sentiment:  cfg.Inference.SentimentModel,
			NER:        cfg.Inference.NERModel,
			Summarizer: cfg.Inference.SummarizerModel,
		},
	}
}

// NewEngine builds an engine with the configured backends. extra options are applied last.
func NewEngine(cfg *config.Config, logger *log.Logger, extra ...analyzer.Option) (*analyzer.Engine, error) {
	opts, err := EngineOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, analyzer.WithLogger(logger))
	opts = append(opts, extra...)
	return analyzer.NewEngine(EngineConfig(cfg), opts...), nil
}

// NewEmbedder returns a cached embedding client, or nil when no API key is configured
func NewEmbedder(cfg *config.Config) embeddings.Embedder {
	if cfg.Embeddings.APIKey == "" {
		return nil
	}
	client := embeddings.NewClient(cfg.Embeddings.APIKey,
		embeddings.WithBaseURL(cfg.Embeddings.BaseURL),
		embeddings.WithModel(cfg.Embeddings.Model),
	)
	return embeddings.NewCachedClient(client, embeddings.NewMemoryCache(cfg.Embeddings.CacheSize))
}
