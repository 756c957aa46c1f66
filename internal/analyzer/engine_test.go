package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/inference"
)

type fakeLLM struct {
	respond func(ctx context.Context, prompt string) (string, error)
	calls   int
	mu      sync.Mutex
}

func (f *fakeLLM) Chat(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.respond(ctx, prompt)
}

func (f *fakeLLM) Model() string { return "fake" }

type fakeInference struct {
	classify  func(model, text string) ([]inference.Prediction, error)
	summary   string
	warmupErr error
	mu        sync.Mutex
	texts     []string
}

func (f *fakeInference) Classify(_ context.Context, model, text string) ([]inference.Prediction, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return f.classify(model, text)
}

func (f *fakeInference) Entities(context.Context, string, string) ([]inference.Entity, error) {
	return []inference.Entity{{Group: "ORG", Word: "Acme"}}, nil
}

func (f *fakeInference) Summarize(context.Context, string, string, int, int) (string, error) {
	if f.summary == "" {
		return "", errors.New("summarizer offline")
	}
	return f.summary, nil
}

func (f *fakeInference) Warmup(context.Context, string) error { return f.warmupErr }

type fakeRecorder struct {
	mu        sync.Mutex
	analyses  []string
	fallbacks []string
	failures  int
}

func (r *fakeRecorder) ObserveAnalysis(backend, level string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses = append(r.analyses, backend+"/"+level)
}

func (r *fakeRecorder) IncFallback(from, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, from+"/"+reason)
}

func (r *fakeRecorder) IncSectionFailure(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func completeResponse(text string) string {
	sections := ExtractSections(text)
	resp := generativeResponse{
		Summary:  "A services agreement with standard terms.",
		KeyTerms: []string{"Monthly invoicing"},
	}
	for i := range sections {
		resp.Sections = append(resp.Sections, generativeSection{
			Index:               i,
			Classification:      ClassLowRisk,
			ClassificationScore: 0.9,
			Sentiment:           "positive",
			SentimentScore:      0.8,
		})
	}
	b, _ := json.Marshal(resp)
	return "```json\n" + string(b) + "\n```"
}

func TestAnalyzeContractValidation(t *testing.T) {
	e := NewEngine(DefaultConfig())

	_, err := e.AnalyzeContract(context.Background(), "")
	assert.ErrorIs(t, err, ErrTextTooShort)

	short := strings.Repeat("a", MinTextLength-1)
	_, err = e.AnalyzeContract(context.Background(), "   "+short+"\n\n")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	exact := strings.Repeat("a", MinTextLength)
	got, err := e.AnalyzeContract(context.Background(), exact)
	require.NoError(t, err)
	assert.True(t, got.RiskLevel.Valid())
}

func TestEngineRuleOnly(t *testing.T) {
	rec := &fakeRecorder{}
	e := NewEngine(DefaultConfig(), WithRecorder(rec))

	assert.Equal(t, BackendRule, e.Backend())

	got, err := e.AnalyzeContract(context.Background(), liabilityContract)
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, got.RiskLevel)
	assert.Equal(t, []string{"rule/high"}, rec.analyses)
	assert.Empty(t, rec.fallbacks)
}

func TestEngineGenerative(t *testing.T) {
	client := &fakeLLM{respond: func(_ context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "SECTIONS:")
		return completeResponse(cleanContract), nil
	}}
	rec := &fakeRecorder{}
	e := NewEngine(DefaultConfig(), WithLLM(client), WithRecorder(rec))

	got, err := e.AnalyzeContract(context.Background(), cleanContract)
	require.NoError(t, err)
	assert.Equal(t, BackendGenerative, e.Backend())
	assert.Equal(t, "A services agreement with standard terms.", got.Summary)
	assert.Equal(t, 0.85, got.Confidence)
	assert.Contains(t, got.KeyTerms, "Monthly invoicing")
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, rec.fallbacks)
}

func TestEngineGenerativeFallback(t *testing.T) {
	tests := []struct {
		name    string
		respond func(ctx context.Context, prompt string) (string, error)
		reason  string
	}{
		{
			name: "malformed json",
			respond: func(context.Context, string) (string, error) {
				return "I think this contract is fine.", nil
			},
			reason: "incomplete",
		},
		{
			name: "missing summary",
			respond: func(context.Context, string) (string, error) {
				return `{"sections":[]}`, nil
			},
			reason: "incomplete",
		},
		{
			name: "too few sections",
			respond: func(context.Context, string) (string, error) {
				return `{"summary":"s","sections":[{"index":0,"classification":"LOW_RISK","classificationScore":0.5,"sentiment":"neutral","sentimentScore":0.5}]}`, nil
			},
			reason: "incomplete",
		},
		{
			name: "transport error",
			respond: func(context.Context, string) (string, error) {
				return "", errors.New("connection refused")
			},
			reason: "unavailable",
		},
		{
			name: "deadline",
			respond: func(ctx context.Context, _ string) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
			reason: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			e := NewEngine(DefaultConfig(), WithLLM(&fakeLLM{respond: tt.respond}), WithRecorder(rec))

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			got, err := e.AnalyzeContract(ctx, liabilityContract)
			require.NoError(t, err)
			assert.True(t, got.RiskLevel.Valid())
			assert.LessOrEqual(t, got.Confidence, 0.7)
			assert.NotEmpty(t, got.RedFlags)
			assert.NotEmpty(t, got.FavorableTerms)
			assert.Equal(t, []string{"generative/" + tt.reason}, rec.fallbacks)

			// degradation is per request
			assert.Equal(t, BackendGenerative, e.Backend())
		})
	}
}

func TestEngineModelBackend(t *testing.T) {
	inf := &fakeInference{
		classify: func(model, text string) ([]inference.Prediction, error) {
			if model == "sentiment" {
				return []inference.Prediction{{Label: "NEGATIVE", Score: 0.9}, {Label: "POSITIVE", Score: 0.1}}, nil
			}
			return []inference.Prediction{{Label: "LOW_RISK", Score: 0.2}, {Label: "HIGH_RISK", Score: 0.8}}, nil
		},
		summary: "Contractor indemnifies the company.",
	}
	cfg := DefaultConfig()
	cfg.Models = ModelConfig{Classifier: "cls", Sentiment: "sentiment", NER: "ner", Summarizer: "sum"}
	e := NewEngine(cfg, WithInference(inf))

	got, err := e.AnalyzeContract(context.Background(), liabilityContract)
	require.NoError(t, err)
	assert.Equal(t, BackendModel, e.Backend())
	assert.Equal(t, "Contractor indemnifies the company.", got.Summary)
	assert.Equal(t, 0.85, got.Confidence)
	assert.True(t, got.RiskLevel.Valid())
	assert.Contains(t, strings.Join(got.RedFlags, "\n"), "Unfavorable language detected (90% confidence)")
}

func TestEngineModelBackendSkipsFailedSections(t *testing.T) {
	inf := &fakeInference{
		classify: func(_, text string) ([]inference.Prediction, error) {
			if strings.Contains(text, "Liability") {
				return nil, errors.New("model crashed")
			}
			return []inference.Prediction{{Label: "LOW_RISK", Score: 0.6}}, nil
		},
	}
	rec := &fakeRecorder{}
	cfg := DefaultConfig()
	cfg.Models = ModelConfig{Classifier: "cls"}
	e := NewEngine(cfg, WithInference(inf), WithRecorder(rec))

	got, err := e.AnalyzeContract(context.Background(), liabilityContract)
	require.NoError(t, err)
	assert.Empty(t, rec.fallbacks)
	assert.Greater(t, rec.failures, 0)
	// summarizer not configured
	assert.True(t, strings.HasPrefix(got.Summary, "This "))
	assert.Equal(t, []string{"model/" + string(got.RiskLevel)}, rec.analyses)
}

func TestEngineModelBackendAllSectionsFail(t *testing.T) {
	inf := &fakeInference{
		classify: func(string, string) ([]inference.Prediction, error) {
			return nil, errors.New("model crashed")
		},
	}
	rec := &fakeRecorder{}
	cfg := DefaultConfig()
	cfg.Models = ModelConfig{Classifier: "cls"}
	e := NewEngine(cfg, WithInference(inf), WithRecorder(rec))

	got, err := e.AnalyzeContract(context.Background(), liabilityContract)
	require.NoError(t, err)
	assert.Equal(t, 0.7, got.Confidence)
	assert.Equal(t, []string{"model/unavailable"}, rec.fallbacks)
}

func TestEngineInitializeFailureDisablesPrimary(t *testing.T) {
	inf := &fakeInference{
		classify: func(string, string) ([]inference.Prediction, error) {
			t.Fatal("disabled backend must not be called")
			return nil, nil
		},
		warmupErr: errors.New("model not found"),
	}
	cfg := DefaultConfig()
	cfg.Models = ModelConfig{Classifier: "cls"}
	e := NewEngine(cfg, WithInference(inf))

	e.Initialize(context.Background())
	e.Initialize(context.Background())
	assert.Equal(t, BackendRule, e.Backend())

	got, err := e.AnalyzeContract(context.Background(), cleanContract)
	require.NoError(t, err)
	assert.Equal(t, 0.7, got.Confidence)
}

func TestEngineGenerativeWithoutClientIsRule(t *testing.T) {
	e := NewEngine(DefaultConfig(), WithLLM(nil))
	assert.Equal(t, BackendRule, e.Backend())
}

func TestModelScorerCapsText(t *testing.T) {
	inf := &fakeInference{
		classify: func(string, string) ([]inference.Prediction, error) {
			return []inference.Prediction{{Label: "LOW_RISK", Score: 0.5}}, nil
		},
	}
	scorer := NewModelScorer(inf, ModelConfig{Classifier: "cls"})

	long := newSection(strings.Repeat("word ", 400), TypeParagraph)
	_, err := scorer.ScoreSection(context.Background(), long)
	require.NoError(t, err)

	require.Len(t, inf.texts, 1)
	assert.Len(t, inf.texts[0], maxSectionChars)
}

type slowScorer struct{}

func (slowScorer) ScoreSection(_ context.Context, s ContractSection) (SectionAnalysis, error) {
	// later sections finish first
	time.Sleep(time.Duration(10-len(s.Text)) * time.Millisecond)
	if s.Text == "fail" {
		return SectionAnalysis{}, fmt.Errorf("%w: boom", ErrSectionAnalysis)
	}
	return SectionAnalysis{Section: s}, nil
}

func TestScoreSectionsPreservesOrder(t *testing.T) {
	texts := []string{"a", "bb", "fail", "dddd", "eeeee", "ffffff"}
	sections := make([]ContractSection, len(texts))
	for i, txt := range texts {
		sections[i] = newSection(txt, TypeParagraph)
	}

	var failed []int
	got := scoreSections(context.Background(), slowScorer{}, sections, 3, func(i int, err error) {
		assert.ErrorIs(t, err, ErrSectionAnalysis)
		failed = append(failed, i)
	})

	require.Len(t, got, 5)
	assert.Equal(t, []int{2}, failed)
	assert.Equal(t, "a", got[0].Section.Text)
	assert.Equal(t, "bb", got[1].Section.Text)
	assert.Equal(t, "dddd", got[2].Section.Text)
	assert.Equal(t, "ffffff", got[4].Section.Text)
}

type panickyScorer struct{}

func (panickyScorer) ScoreSection(_ context.Context, s ContractSection) (SectionAnalysis, error) {
	if s.Text == "bad" {
		panic("nil prediction slice")
	}
	return SectionAnalysis{Section: s}, nil
}

func TestScoreSectionsRecoversPanics(t *testing.T) {
	sections := []ContractSection{
		newSection("good", TypeParagraph),
		newSection("bad", TypeParagraph),
		newSection("fine", TypeParagraph),
	}

	var failed []int
	got := scoreSections(context.Background(), panickyScorer{}, sections, 2, func(i int, err error) {
		assert.ErrorIs(t, err, ErrSectionAnalysis)
		assert.Contains(t, err.Error(), "nil prediction slice")
		failed = append(failed, i)
	})

	require.Len(t, got, 2)
	assert.Equal(t, []int{1}, failed)
	assert.Equal(t, "good", got[0].Section.Text)
	assert.Equal(t, "fine", got[1].Section.Text)
}

func TestEngineModelBackendSurvivesClientPanic(t *testing.T) {
	inf := &fakeInference{
		classify: func(_, text string) ([]inference.Prediction, error) {
			if strings.Contains(text, "Liability") {
				panic("decoder bug")
			}
			return []inference.Prediction{{Label: "LOW_RISK", Score: 0.6}}, nil
		},
	}
	rec := &fakeRecorder{}
	cfg := DefaultConfig()
	cfg.Models = ModelConfig{Classifier: "cls"}
	e := NewEngine(cfg, WithInference(inf), WithRecorder(rec))

	got, backend, err := e.Analyze(context.Background(), liabilityContract)
	require.NoError(t, err)
	assert.Equal(t, BackendModel, backend)
	assert.True(t, got.RiskLevel.Valid())
	assert.Greater(t, rec.failures, 0)
	assert.Empty(t, rec.fallbacks)
}

func TestEngineAnalyzeReportsFallbackBackend(t *testing.T) {
	llm := &fakeLLM{respond: func(context.Context, string) (string, error) {
		return "", errors.New("rate limited")
	}}
	e := NewEngine(DefaultConfig(), WithLLM(llm))

	_, backend, err := e.Analyze(context.Background(), liabilityContract)
	require.NoError(t, err)
	assert.Equal(t, BackendRule, backend)
	assert.Equal(t, BackendGenerative, e.Backend())

	llm.respond = func(_ context.Context, prompt string) (string, error) {
		return completeResponse(liabilityContract), nil
	}
	_, backend, err = e.Analyze(context.Background(), liabilityContract)
	require.NoError(t, err)
	assert.Equal(t, BackendGenerative, backend)
}

func TestEngineConcurrentRequests(t *testing.T) {
	e := NewEngine(DefaultConfig())
	want, err := e.AnalyzeContract(context.Background(), liabilityContract)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.AnalyzeContract(context.Background(), liabilityContract)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}
