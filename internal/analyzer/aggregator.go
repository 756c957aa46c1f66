package analyzer

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"gonum.org/v1/gonum/stat"
)

const (
	ruleConfidence       = 0.7
	generativeConfidence = 0.85
	strongSignal         = 0.75
)

var riskKeywords = []string{
	"unlimited liability", "personal guarantee", "liquidated damages",
	"automatic renewal", "non-compete", "exclusive", "irrevocable",
	"penalty", "forfeiture", "indemnify", "hold harmless",
	"waive", "disclaim", "no warranty", "as is",
}

var favorableKeywords = []string{
	"limited liability", "mutual termination", "reasonable notice",
	"fair compensation", "dispute resolution", "force majeure",
	"intellectual property protection", "confidentiality",
	"warranty", "guarantee", "insurance", "cure period",
}

var (
	placeholderRedFlags = []string{
		"Comprehensive legal review recommended",
		"Verify all liability and indemnification clauses",
		"Confirm termination and breach provisions",
	}
	placeholderFavorable = []string{
		"Professional contract structure maintained",
		"Clear legal framework established",
		"Standard industry protections included",
	}
)

var keyTermLabels = map[SectionType]string{
	TypePaymentTerms:    "Payment Terms",
	TypeTermination:     "Termination Clauses",
	TypeLiability:       "Liability Provisions",
	TypeConfidentiality: "Confidentiality Agreement",
	TypeIPRights:        "Intellectual Property Rights",
}

var baselineKeyTerms = []string{"Duration", "Obligations", "Rights", "Responsibilities"}

type summaryTopic struct {
	name    string
	pattern *regexp.Regexp
	risky   bool
}

var summaryTopics = []summaryTopic{
	{"payment", regexp.MustCompile(`(?i)payment|compensation|salary|fee|remuneration|consideration`), false},
	{"termination", regexp.MustCompile(`(?i)termination|terminate|end|expire|cancel|dissolution`), true},
	{"liability", regexp.MustCompile(`(?i)liability|responsible|damages|loss|harm|indemnify`), true},
	{"confidentiality", regexp.MustCompile(`(?i)confidential|proprietary|trade secret|non-disclosure`), false},
	{"intellectual property", regexp.MustCompile(`(?i)intellectual property|copyright|patent|trademark|ip rights`), false},
	{"governing law", regexp.MustCompile(`(?i)governing law|jurisdiction|applicable law|venue`), false},
	{"force majeure", regexp.MustCompile(`(?i)force majeure|act of god|unforeseeable circumstances`), false},
}

var sentenceSplitRegex = regexp.MustCompile(`[.!?]+`)

// RiskLevelForScore maps a mean section risk score onto a risk level.
// Boundaries sit exactly at 0.3, 0.6 and 0.8.
func RiskLevelForScore(mean float64) RiskLevel {
	switch {
	case mean < 0.3:
		return RiskLow
	case mean < 0.6:
		return RiskMedium
	case mean < 0.8:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RiskLevelForIndicators maps a count of risk keywords onto a risk level
func RiskLevelForIndicators(n int) RiskLevel {
	switch {
	case n >= 5:
		return RiskCritical
	case n >= 3:
		return RiskHigh
	case n >= 1:
		return RiskMedium
	default:
		return RiskLow
	}
}

// MeanRiskScore averages section risk scores. ok is false when there are none.
func MeanRiskScore(analyses []SectionAnalysis) (mean float64, ok bool) {
	if len(analyses) == 0 {
		return 0, false
	}
	scores := make([]float64, len(analyses))
	for i, a := range analyses {
		scores[i] = a.RiskScore
	}
	return stat.Mean(scores, nil), true
}

// CountRiskIndicators returns how many distinct risk keywords appear in text
func CountRiskIndicators(text string) int {
	return countPresent(strings.ToLower(text), riskKeywords)
}

// AggregateRiskLevel computes the document verdict for the given mode.
// Score-mean aggregation with no scored sections falls back to keyword counting.
func AggregateRiskLevel(mode AggregationMode, text string, analyses []SectionAnalysis) RiskLevel {
	if mode == ModeScoreMean {
		if mean, ok := MeanRiskScore(analyses); ok {
			return RiskLevelForScore(mean)
		}
	}
	return RiskLevelForIndicators(CountRiskIndicators(text))
}

// TemplateSummary builds a fixed-form summary from topical patterns
func TemplateSummary(text string) string {
	sentences := 0
	for _, s := range sentenceSplitRegex.Split(text, -1) {
		if len(strings.TrimSpace(s)) > 20 {
			sentences++
		}
	}

	var findings []string
	riskTerms := make(map[string]struct{})
	for _, topic := range summaryTopics {
		matches := topic.pattern.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		findings = append(findings, topic.name)
		if topic.risky {
			for _, m := range matches {
				riskTerms[strings.ToLower(m)] = struct{}{}
			}
		}
	}

	qualifier := "standard"
	switch {
	case len(riskTerms) > 2:
		qualifier = "high-risk"
	case len(riskTerms) > 0:
		qualifier = "moderate-risk"
	}

	topics := "general provisions"
	keyAreas := topics
	if len(findings) > 0 {
		topics = strings.Join(findings, ", ")
		keyAreas = strings.Join(findings[:min(3, len(findings))], ", ")
	}

	return fmt.Sprintf(
		"This %s contract addresses %s and contains %d substantive clauses. Key areas identified: %s. Professional legal review recommended for optimal risk management.",
		qualifier, topics, sentences, keyAreas,
	)
}

// KeyTerms maps section types to provision labels, deduplicated, followed by baseline terms
func KeyTerms(sections []ContractSection) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}

	for _, s := range sections {
		if label, ok := keyTermLabels[s.Type]; ok {
			add(label)
		}
	}
	for _, t := range baselineKeyTerms {
		add(t)
	}
	return terms
}

// CategorizeTerms matches the risk and favorable keyword lists against every section.
// Each hit is tagged with the section type; identical findings are reported once.
func CategorizeTerms(sections []ContractSection) (redFlags, favorable []string) {
	flagSet := newOrderedSet()
	favSet := newOrderedSet()

	for _, section := range sections {
		lower := strings.ToLower(section.Text)
		for _, kw := range riskKeywords {
			if strings.Contains(lower, kw) {
				flagSet.add(fmt.Sprintf("%s: Contains \"%s\" clause", section.Type, kw))
			}
		}
		for _, kw := range favorableKeywords {
			if strings.Contains(lower, kw) {
				favSet.add(fmt.Sprintf("%s: Includes \"%s\" protection", section.Type, kw))
			}
		}
	}

	return flagSet.items, favSet.items
}

// DocumentTerms reports keywords that appear in the text but in none of the
// sections, untagged. Keywords already found in a section are left to CategorizeTerms.
func DocumentTerms(text string, sections []ContractSection) (redFlags, favorable []string) {
	lowered := make([]string, len(sections))
	for i, s := range sections {
		lowered[i] = strings.ToLower(s.Text)
	}
	inSection := func(kw string) bool {
		for _, t := range lowered {
			if strings.Contains(t, kw) {
				return true
			}
		}
		return false
	}

	lower := strings.ToLower(text)
	for _, kw := range riskKeywords {
		if strings.Contains(lower, kw) && !inSection(kw) {
			redFlags = append(redFlags, fmt.Sprintf("Contains \"%s\" clause", kw))
		}
	}
	for _, kw := range favorableKeywords {
		if strings.Contains(lower, kw) && !inSection(kw) {
			favorable = append(favorable, fmt.Sprintf("Includes \"%s\" protection", kw))
		}
	}
	return redFlags, favorable
}

// ModelFlags reports sections whose model signals are strongly negative
func ModelFlags(analyses []SectionAnalysis) []string {
	var flags []string
	for _, a := range analyses {
		switch {
		case normalizeSentiment(a.Sentiment.Label) == SentimentNegative && a.Sentiment.Score > strongSignal:
			flags = append(flags, fmt.Sprintf("%s: Unfavorable language detected (%.0f%% confidence)",
				a.Section.Type, a.Sentiment.Score*100))
		case indicatesHighRisk(a.Classification.Label) && a.Classification.Score > strongSignal:
			flags = append(flags, fmt.Sprintf("%s: Classified as high risk (%.0f%% confidence)",
				a.Section.Type, a.Classification.Score*100))
		}
	}
	return flags
}

// WithPlaceholders substitutes generic findings for empty lists
func WithPlaceholders(redFlags, favorable []string) ([]string, []string) {
	if len(redFlags) == 0 {
		redFlags = append([]string(nil), placeholderRedFlags...)
	}
	if len(favorable) == 0 {
		favorable = append([]string(nil), placeholderFavorable...)
	}
	return redFlags, favorable
}

// Confidence averages the classification and sentiment scores of all sections,
// rounded to two decimals. A zero score counts as the rule default.
func Confidence(analyses []SectionAnalysis) float64 {
	if len(analyses) == 0 {
		return ruleConfidence
	}

	per := make([]float64, len(analyses))
	for i, a := range analyses {
		c := a.Classification.Score
		if c == 0 {
			c = ruleConfidence
		}
		s := a.Sentiment.Score
		if s == 0 {
			s = ruleConfidence
		}
		per[i] = (c + s) / 2
	}

	return math.Round(stat.Mean(per, nil)*100) / 100
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(v string) {
	if s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}
