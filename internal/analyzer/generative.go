package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/llm"
)

const maxPromptContractChars = 12000

// GenerativeBackend classifies every section and writes the summary in a single LLM call
type GenerativeBackend struct {
	llm llm.LLM
}

// NewGenerativeBackend creates a generative backend
func NewGenerativeBackend(client llm.LLM) *GenerativeBackend {
	return &GenerativeBackend{llm: client}
}

// Name implements Backend
func (b *GenerativeBackend) Name() string { return BackendGenerative }

// Initialize checks that a client is present. No request is sent.
func (b *GenerativeBackend) Initialize(context.Context) error {
	if b.llm == nil {
		return fmt.Errorf("%w: no LLM client configured", ErrBackendUnavailable)
	}
	return nil
}

type generativeSection struct {
	Index               int     `json:"index"`
	Classification      string  `json:"classification"`
	ClassificationScore float64 `json:"classificationScore"`
	Sentiment           string  `json:"sentiment"`
	SentimentScore      float64 `json:"sentimentScore"`
	Entities            int     `json:"entities"`
}

type generativeResponse struct {
	Summary        string              `json:"summary"`
	Sections       []generativeSection `json:"sections"`
	KeyTerms       []string            `json:"keyTerms"`
	RedFlags       []string            `json:"redFlags"`
	FavorableTerms []string            `json:"favorableTerms"`
}

// Analyze implements Backend
func (b *GenerativeBackend) Analyze(ctx context.Context, text string) (*ContractAnalysis, error) {
	if b.llm == nil {
		return nil, fmt.Errorf("%w: no LLM client configured", ErrBackendUnavailable)
	}

	sections := ExtractSections(text)

	raw, err := b.llm.Chat(ctx, buildGenerativePrompt(text, sections))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	resp, err := parseGenerativeResponse(raw, len(sections))
	if err != nil {
		return nil, err
	}

	analyses := make([]SectionAnalysis, len(sections))
	for _, gs := range resp.Sections {
		section := sections[gs.Index]
		classification := Label{Label: gs.Classification, Score: gs.ClassificationScore}
		sentiment := Label{Label: normalizeSentiment(gs.Sentiment), Score: gs.SentimentScore}
		analyses[gs.Index] = SectionAnalysis{
			Section:        section,
			Classification: classification,
			Sentiment:      sentiment,
			Entities:       gs.Entities,
			RiskScore:      CompositeRiskScore(section, classification, sentiment, gs.Entities),
		}
	}

	level := AggregateRiskLevel(ModeScoreMean, text, analyses)

	sectionFlags, sectionFavorable := CategorizeTerms(sections)
	redFlags, favorable := WithPlaceholders(
		merge(sectionFlags, ModelFlags(analyses), trimAll(resp.RedFlags)),
		merge(sectionFavorable, trimAll(resp.FavorableTerms)),
	)

	return &ContractAnalysis{
		RiskLevel:       level,
		Summary:         strings.TrimSpace(resp.Summary),
		KeyTerms:        merge(KeyTerms(sections), trimAll(resp.KeyTerms)),
		RedFlags:        redFlags,
		FavorableTerms:  favorable,
		Recommendations: Recommendations(level, redFlags, favorable),
		Confidence:      generativeConfidence,
	}, nil
}

// parseGenerativeResponse requires a summary and exactly one well-formed entry per section
func parseGenerativeResponse(raw string, sectionCount int) (*generativeResponse, error) {
	var resp generativeResponse
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &resp); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrIncompleteResult, err)
	}

	if strings.TrimSpace(resp.Summary) == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrIncompleteResult)
	}
	if len(resp.Sections) != sectionCount {
		return nil, fmt.Errorf("%w: got %d section entries, want %d", ErrIncompleteResult, len(resp.Sections), sectionCount)
	}

	seen := make([]bool, sectionCount)
	for _, s := range resp.Sections {
		if s.Index < 0 || s.Index >= sectionCount || seen[s.Index] {
			return nil, fmt.Errorf("%w: bad section index %d", ErrIncompleteResult, s.Index)
		}
		seen[s.Index] = true

		if s.Classification == "" || s.Sentiment == "" {
			return nil, fmt.Errorf("%w: section %d missing labels", ErrIncompleteResult, s.Index)
		}
		if !unitInterval(s.ClassificationScore) || !unitInterval(s.SentimentScore) || s.Entities < 0 {
			return nil, fmt.Errorf("%w: section %d scores out of range", ErrIncompleteResult, s.Index)
		}
	}

	return &resp, nil
}

func buildGenerativePrompt(text string, sections []ContractSection) string {
	var sb strings.Builder
	for i, s := range sections {
		fmt.Fprintf(&sb, "[%d] (%s) %s\n", i, s.Type, capText(s.Text, maxSectionChars))
	}

	return fmt.Sprintf(`Analyze this contract and its extracted sections.

CONTRACT:
%s

SECTIONS:
%s
For every section, classify its legal risk and the sentiment of its language toward the reviewing party.
Respond with JSON:
{
  "summary": "2-3 sentence plain-language summary of the contract",
  "sections": [
    {
      "index": 0,
      "classification": "HIGH_RISK|MEDIUM_RISK|LOW_RISK",
      "classificationScore": 0.0-1.0,
      "sentiment": "negative|neutral|positive",
      "sentimentScore": 0.0-1.0,
      "entities": 0
    }
  ],
  "keyTerms": ["..."],
  "redFlags": ["..."],
  "favorableTerms": ["..."]
}

Include exactly one entry per section, %d in total. "entities" counts named parties, amounts and dates in the section.
Respond ONLY with valid JSON.`, capText(text, maxPromptContractChars), sb.String(), len(sections))
}

func unitInterval(v float64) bool {
	return v >= 0 && v <= 1
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
