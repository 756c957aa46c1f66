package analyzer

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/inference"
)

const (
	maxSectionChars = 512
	maxSummaryChars = 4000
	summaryMinLen   = 50
	summaryMaxLen   = 150
)

// InferenceClient is the local-model surface used by the model backend
type InferenceClient interface {
	Classify(ctx context.Context, model, text string) ([]inference.Prediction, error)
	Entities(ctx context.Context, model, text string) ([]inference.Entity, error)
	Summarize(ctx context.Context, model, text string, minLength, maxLength int) (string, error)
	Warmup(ctx context.Context, model string) error
}

// ModelConfig names the models used by the model backend.
// Only Classifier is required.
type ModelConfig struct {
	Classifier string
	Sentiment  string
	NER        string
	Summarizer string
}

// ModelScorer scores sections with locally hosted models
type ModelScorer struct {
	client InferenceClient
	models ModelConfig
}

// NewModelScorer creates a model scorer
func NewModelScorer(client InferenceClient, models ModelConfig) *ModelScorer {
	return &ModelScorer{client: client, models: models}
}

// ScoreSection implements SectionScorer. Text is capped before every model call.
func (s *ModelScorer) ScoreSection(ctx context.Context, section ContractSection) (SectionAnalysis, error) {
	text := capText(section.Text, maxSectionChars)

	preds, err := s.client.Classify(ctx, s.models.Classifier, text)
	if err != nil {
		return SectionAnalysis{}, fmt.Errorf("%w: classify: %w", ErrSectionAnalysis, err)
	}
	classification := topPrediction(preds)

	sentiment := RuleSentiment(section.Text)
	if s.models.Sentiment != "" {
		preds, err := s.client.Classify(ctx, s.models.Sentiment, text)
		if err != nil {
			return SectionAnalysis{}, fmt.Errorf("%w: sentiment: %w", ErrSectionAnalysis, err)
		}
		top := topPrediction(preds)
		sentiment = Label{Label: normalizeSentiment(top.Label), Score: top.Score}
	}

	entities := 0
	if s.models.NER != "" {
		ents, err := s.client.Entities(ctx, s.models.NER, text)
		if err != nil {
			return SectionAnalysis{}, fmt.Errorf("%w: entities: %w", ErrSectionAnalysis, err)
		}
		entities = len(ents)
	}

	return SectionAnalysis{
		Section:        section,
		Classification: classification,
		Sentiment:      sentiment,
		Entities:       entities,
		RiskScore:      CompositeRiskScore(section, classification, sentiment, entities),
	}, nil
}

func topPrediction(preds []inference.Prediction) Label {
	var top Label
	for _, p := range preds {
		if p.Score > top.Score {
			top = Label{Label: p.Label, Score: p.Score}
		}
	}
	return top
}

// ModelBackend runs the pipeline against locally hosted models.
// Sections whose scoring fails are skipped.
type ModelBackend struct {
	client        InferenceClient
	scorer        *ModelScorer
	models        ModelConfig
	maxConcurrent int
	logger        *log.Logger
	recorder      Recorder
}

// NewModelBackend creates a model backend
func NewModelBackend(client InferenceClient, models ModelConfig, maxConcurrent int, logger *log.Logger, recorder Recorder) *ModelBackend {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultConfig().MaxConcurrentSections
	}
	if logger == nil {
		logger = discardLogger()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &ModelBackend{
		client:        client,
		scorer:        NewModelScorer(client, models),
		models:        models,
		maxConcurrent: maxConcurrent,
		logger:        logger,
		recorder:      recorder,
	}
}

// Name implements Backend
func (b *ModelBackend) Name() string { return BackendModel }

// Initialize warms the classification model
func (b *ModelBackend) Initialize(ctx context.Context) error {
	if b.client == nil || b.models.Classifier == "" {
		return fmt.Errorf("%w: no classification model configured", ErrBackendUnavailable)
	}
	if err := b.client.Warmup(ctx, b.models.Classifier); err != nil {
		return fmt.Errorf("%w: warmup %s: %w", ErrBackendUnavailable, b.models.Classifier, err)
	}
	return nil
}

// Analyze implements Backend
func (b *ModelBackend) Analyze(ctx context.Context, text string) (*ContractAnalysis, error) {
	sections := ExtractSections(text)

	analyses := scoreSections(ctx, b.scorer, sections, b.maxConcurrent, func(i int, err error) {
		b.recorder.IncSectionFailure(BackendModel)
		b.logger.Warn("section analysis failed", "section", i, "type", sections[i].Type, "err", err)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(analyses) == 0 {
		return nil, fmt.Errorf("%w: no section could be scored", ErrBackendUnavailable)
	}

	level := AggregateRiskLevel(ModeScoreMean, text, analyses)

	sectionFlags, favorable := CategorizeTerms(sections)
	redFlags, favorable := WithPlaceholders(merge(sectionFlags, ModelFlags(analyses)), favorable)

	return &ContractAnalysis{
		RiskLevel:       level,
		Summary:         b.summarize(ctx, text),
		KeyTerms:        KeyTerms(sections),
		RedFlags:        redFlags,
		FavorableTerms:  favorable,
		Recommendations: Recommendations(level, redFlags, favorable),
		Confidence:      Confidence(analyses),
	}, nil
}

func (b *ModelBackend) summarize(ctx context.Context, text string) string {
	if b.models.Summarizer == "" {
		return TemplateSummary(text)
	}
	summary, err := b.client.Summarize(ctx, b.models.Summarizer, capText(text, maxSummaryChars), summaryMinLen, summaryMaxLen)
	if err != nil {
		b.logger.Warn("summarization failed, using template", "err", err)
		return TemplateSummary(text)
	}
	return summary
}

// scoreSections scores every section concurrently and returns the successful
// analyses in extraction order. onError is called once per failed section;
// a scorer panic counts as a failure of that section only.
func scoreSections(ctx context.Context, scorer SectionScorer, sections []ContractSection, limit int, onError func(int, error)) []SectionAnalysis {
	results := make([]*SectionAnalysis, len(sections))
	errs := make([]error, len(sections))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, section := range sections {
		i, section := i, section
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = nil
					errs[i] = fmt.Errorf("%w: panic: %v", ErrSectionAnalysis, r)
				}
			}()
			a, err := scorer.ScoreSection(ctx, section)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &a
			return nil
		})
	}
	g.Wait()

	analyses := make([]SectionAnalysis, 0, len(sections))
	for i, r := range results {
		if r == nil {
			if onError != nil {
				onError(i, errs[i])
			}
			continue
		}
		analyses = append(analyses, *r)
	}
	return analyses
}
