package analyzer

import (
	"context"
	"strings"
)

// SectionScorer assigns classification, sentiment and a risk score to a section
type SectionScorer interface {
	ScoreSection(ctx context.Context, section ContractSection) (SectionAnalysis, error)
}

var (
	negativeWords = []string{"shall not", "prohibited", "forbidden", "penalty", "breach", "default", "liable"}
	positiveWords = []string{"benefit", "protection", "right", "entitled", "guarantee", "ensure"}
)

type classificationRule struct {
	terms []string
	label Label
}

// First matching bucket wins.
var classificationRules = []classificationRule{
	{[]string{"liability", "damages", "indemnify"}, Label{Label: ClassHighRisk, Score: 0.8}},
	{[]string{"payment", "compensation", "fee"}, Label{Label: ClassMediumRisk, Score: 0.6}},
	{[]string{"termination", "cancel", "breach"}, Label{Label: ClassMediumRisk, Score: 0.7}},
}

// RuleScorer scores sections with fixed keyword lists. It never blocks and never fails.
type RuleScorer struct{}

// ScoreSection implements SectionScorer
func (RuleScorer) ScoreSection(_ context.Context, section ContractSection) (SectionAnalysis, error) {
	return ScoreWithRules(section), nil
}

// ScoreWithRules is the synchronous form of RuleScorer.ScoreSection
func ScoreWithRules(section ContractSection) SectionAnalysis {
	classification := RuleClassification(section.Text)
	sentiment := RuleSentiment(section.Text)

	return SectionAnalysis{
		Section:        section,
		Classification: classification,
		Sentiment:      sentiment,
		RiskScore:      CompositeRiskScore(section, classification, sentiment, 0),
	}
}

// RuleClassification buckets text into a coarse legal-risk category
func RuleClassification(text string) Label {
	lower := strings.ToLower(text)
	for _, rule := range classificationRules {
		if containsAny(lower, rule.terms) {
			return rule.label
		}
	}
	return Label{Label: ClassLowRisk, Score: 0.4}
}

// RuleSentiment compares how many negative and positive phrases appear in the text
func RuleSentiment(text string) Label {
	lower := strings.ToLower(text)
	neg := countPresent(lower, negativeWords)
	pos := countPresent(lower, positiveWords)

	switch {
	case neg > pos:
		return Label{Label: SentimentNegative, Score: 0.7}
	case pos > neg:
		return Label{Label: SentimentPositive, Score: 0.7}
	default:
		return Label{Label: SentimentNeutral, Score: 0.5}
	}
}

// CompositeRiskScore combines classification, sentiment, entity density and
// clause flags into one score, scaled by section importance and clamped to [0,1].
// Every backend scores sections through this function.
func CompositeRiskScore(section ContractSection, classification, sentiment Label, entities int) float64 {
	score := 0.5

	if indicatesHighRisk(classification.Label) {
		score += 0.3 * classification.Score
	}

	switch normalizeSentiment(sentiment.Label) {
	case SentimentNegative:
		score += 0.4 * sentiment.Score
	case SentimentPositive:
		score -= 0.2 * sentiment.Score
	}

	score += minFloat(0.2, float64(entities)*0.05)

	if flagsLiabilityOrPenalty(section, classification) {
		score += 0.25
	}

	score *= section.Importance

	return clamp01(score)
}

func indicatesHighRisk(label string) bool {
	upper := strings.ToUpper(label)
	return strings.Contains(upper, "HIGH") || strings.Contains(upper, "NEGATIVE")
}

func flagsLiabilityOrPenalty(section ContractSection, classification Label) bool {
	if section.Type == TypeLiability {
		return true
	}
	label := strings.ToLower(classification.Label)
	if strings.Contains(label, "liability") || strings.Contains(label, "penalty") {
		return true
	}
	return strings.Contains(strings.ToLower(section.Text), "penalty")
}

// normalizeSentiment maps model label spellings onto negative/neutral/positive
func normalizeSentiment(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "negative", "neg", "label_0":
		return SentimentNegative
	case "positive", "pos", "label_2":
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func countPresent(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
