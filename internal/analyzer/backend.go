package analyzer

import (
	"context"
	"time"
)

// Backend names reported in logs and metrics
const (
	BackendGenerative = "generative"
	BackendModel      = "model"
	BackendRule       = "rule"
)

// Backend is one interchangeable analysis strategy
type Backend interface {
	Name() string
	Initialize(ctx context.Context) error
	Analyze(ctx context.Context, text string) (*ContractAnalysis, error)
}

// Recorder receives engine measurements. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveAnalysis(backend, riskLevel string, elapsed time.Duration)
	IncFallback(from, reason string)
	IncSectionFailure(backend string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAnalysis(string, string, time.Duration) {}
func (nopRecorder) IncFallback(string, string)                    {}
func (nopRecorder) IncSectionFailure(string)                      {}

// RuleBackend analyzes contracts with keyword lists and patterns only.
// It has no external dependencies and always produces a result.
type RuleBackend struct {
	mode AggregationMode
}

// NewRuleBackend creates a rule backend. An unknown mode falls back to keyword counting.
func NewRuleBackend(mode AggregationMode) *RuleBackend {
	if mode != ModeScoreMean {
		mode = ModeKeywordCount
	}
	return &RuleBackend{mode: mode}
}

// Name implements Backend
func (b *RuleBackend) Name() string { return BackendRule }

// Initialize implements Backend
func (b *RuleBackend) Initialize(context.Context) error { return nil }

// Analyze implements Backend
func (b *RuleBackend) Analyze(_ context.Context, text string) (*ContractAnalysis, error) {
	sections := ExtractSections(text)

	analyses := make([]SectionAnalysis, len(sections))
	for i, s := range sections {
		analyses[i] = ScoreWithRules(s)
	}

	level := AggregateRiskLevel(b.mode, text, analyses)

	sectionFlags, sectionFavorable := CategorizeTerms(sections)
	docFlags, docFavorable := DocumentTerms(text, sections)
	redFlags, favorable := WithPlaceholders(
		merge(sectionFlags, docFlags),
		merge(sectionFavorable, docFavorable),
	)

	return &ContractAnalysis{
		RiskLevel:       level,
		Summary:         TemplateSummary(text),
		KeyTerms:        KeyTerms(sections),
		RedFlags:        redFlags,
		FavorableTerms:  favorable,
		Recommendations: Recommendations(level, redFlags, favorable),
		Confidence:      ruleConfidence,
	}, nil
}

// merge concatenates lists keeping the first occurrence of every string
func merge(lists ...[]string) []string {
	set := newOrderedSet()
	for _, l := range lists {
		for _, v := range l {
			set.add(v)
		}
	}
	return set.items
}

func capText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
