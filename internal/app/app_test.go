package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/analyzer"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/config"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/logging"
)

func TestNewEngineBackendSelection(t *testing.T) {
	warm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"label":"LABEL_0","score":0.9}]`))
	}))
	defer warm.Close()

	cold := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer cold.Close()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		want    string
		wantErr bool
	}{
		{"rule only", func(*config.Config) {}, analyzer.BackendRule, false},
		{"inference", func(c *config.Config) {
			c.Inference.Enabled = true
			c.Inference.BaseURL = warm.URL
			c.Inference.ClassifierModel = "nlpaueb/legal-bert-base-uncased"
		}, analyzer.BackendModel, false},
		{"inference warmup fails", func(c *config.Config) {
			c.Inference.Enabled = true
			c.Inference.BaseURL = cold.URL
			c.Inference.ClassifierModel = "nlpaueb/legal-bert-base-uncased"
		}, analyzer.BackendRule, false},
		{"llm wins over inference", func(c *config.Config) {
			c.LLM.Provider = "anthropic"
			c.LLM.APIKey = "sk-test"
			c.Inference.Enabled = true
		}, analyzer.BackendGenerative, false},
		{"llm without key", func(c *config.Config) { c.LLM.Provider = "openai" }, "", true},
		{"unknown provider", func(c *config.Config) {
			c.LLM.Provider = "gemini"
			c.LLM.APIKey = "k"
		}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Analyzer.RuleAggregation = string(analyzer.ModeKeywordCount)
			tt.mutate(cfg)

			engine, err := NewEngine(cfg, logging.Discard())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, engine.Backend())
		})
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Analyzer.MaxConcurrentSections = 8
	cfg.Analyzer.RuleAggregation = "score_mean"
	cfg.Inference.ClassifierModel = "clf"
	cfg.Inference.SummarizerModel = "sum"

	got := EngineConfig(cfg)
	assert.Equal(t, 8, got.MaxConcurrentSections)
	assert.Equal(t, analyzer.ModeScoreMean, got.RuleAggregation)
	assert.Equal(t, "clf", got.Models.Classifier)
	assert.Equal(t, "sum", got.Models.Summarizer)
}

func TestNewEmbedder(t *testing.T) {
	cfg := &config.Config{}
	assert.Nil(t, NewEmbedder(cfg))

	cfg.Embeddings.APIKey = "key"
	cfg.Embeddings.Model = "openai/text-embedding-3-small"
	embedder := NewEmbedder(cfg)
	require.NotNil(t, embedder)
	assert.Equal(t, 1536, embedder.Dimension())
}
