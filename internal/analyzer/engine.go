package analyzer

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/llm"
)

// MinTextLength is the shortest trimmed contract text accepted for analysis
const MinTextLength = 100

// Config holds engine configuration
type Config struct {
	MaxConcurrentSections int
	RuleAggregation       AggregationMode
	Models                ModelConfig
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrentSections: 4,
		RuleAggregation:       ModeKeywordCount,
	}
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithLLM makes the generative backend the primary strategy
func WithLLM(client llm.LLM) Option {
	return func(e *Engine) { e.llm = client }
}

// WithInference makes the model backend the primary strategy when no LLM is set
func WithInference(client InferenceClient) Option {
	return func(e *Engine) { e.inference = client }
}

// Engine selects an analysis backend and falls back to rules on any failure
type Engine struct {
	config    Config
	logger    *log.Logger
	recorder  Recorder
	llm       llm.LLM
	inference InferenceClient

	primary Backend
	rule    *RuleBackend

	initOnce sync.Once
	disabled bool
}

// NewEngine creates an engine. The primary backend is fixed here: generative
// when an LLM client is given, otherwise model when an inference client is
// given, otherwise rule.
func NewEngine(config Config, opts ...Option) *Engine {
	if config.MaxConcurrentSections <= 0 {
		config.MaxConcurrentSections = DefaultConfig().MaxConcurrentSections
	}
	if config.RuleAggregation == "" {
		config.RuleAggregation = DefaultConfig().RuleAggregation
	}

	e := &Engine{
		config:   config,
		logger:   discardLogger(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}

	e.rule = NewRuleBackend(config.RuleAggregation)
	switch {
	case e.llm != nil:
		e.primary = NewGenerativeBackend(e.llm)
	case e.inference != nil:
		e.primary = NewModelBackend(e.inference, config.Models, config.MaxConcurrentSections, e.logger, e.recorder)
	default:
		e.primary = e.rule
	}

	return e
}

// Initialize prepares the primary backend once. It never fails: a primary that
// cannot be initialized is disabled and the rule backend serves every request.
func (e *Engine) Initialize(ctx context.Context) {
	e.initOnce.Do(func() {
		if err := e.primary.Initialize(ctx); err != nil {
			e.disabled = true
			e.recorder.IncFallback(e.primary.Name(), fallbackReason(err))
			e.logger.Warn("analysis backend disabled", "backend", e.primary.Name(), "err", err)
			return
		}
		e.logger.Info("analysis backend ready", "backend", e.primary.Name())
	})
}

// Backend returns the name of the active strategy
func (e *Engine) Backend() string {
	e.Initialize(context.Background())
	return e.active().Name()
}

func (e *Engine) active() Backend {
	if e.disabled {
		return e.rule
	}
	return e.primary
}

// AnalyzeContract validates the text and runs it through the active backend.
// Any primary failure, including an expired context, is answered by the rule
// backend for this request only.
func (e *Engine) AnalyzeContract(ctx context.Context, text string) (*ContractAnalysis, error) {
	result, _, err := e.Analyze(ctx, text)
	return result, err
}

// Analyze is AnalyzeContract that also returns the name of the backend that
// produced the result, which is rule whenever the primary fell back.
func (e *Engine) Analyze(ctx context.Context, text string) (*ContractAnalysis, string, error) {
	if len(strings.TrimSpace(text)) < MinTextLength {
		return nil, "", ErrTextTooShort
	}

	e.Initialize(ctx)

	backend := e.active()
	if backend != Backend(e.rule) {
		start := time.Now()
		result, err := backend.Analyze(ctx, text)
		if err == nil && result.RiskLevel.Valid() {
			e.recorder.ObserveAnalysis(backend.Name(), string(result.RiskLevel), time.Since(start))
			return result, backend.Name(), nil
		}
		if err == nil {
			err = ErrIncompleteResult
		}

		reason := fallbackReason(err)
		e.recorder.IncFallback(backend.Name(), reason)
		e.logger.Warn("analysis backend failed, using rules", "backend", backend.Name(), "reason", reason, "err", err)
	}

	start := time.Now()
	result, err := e.rule.Analyze(ctx, text)
	if err != nil {
		return nil, "", err
	}
	e.recorder.ObserveAnalysis(BackendRule, string(result.RiskLevel), time.Since(start))
	return result, BackendRule, nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrIncompleteResult):
		return "incomplete"
	case errors.Is(err, ErrBackendUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
