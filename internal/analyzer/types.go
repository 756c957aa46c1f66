package analyzer

import (
	"errors"
	"fmt"
)

// SectionType is the topical category assigned to an extracted section
type SectionType string

const (
	TypePaymentTerms    SectionType = "payment_terms"
	TypeTermination     SectionType = "termination"
	TypeLiability       SectionType = "liability"
	TypeConfidentiality SectionType = "confidentiality"
	TypeIPRights        SectionType = "ip_rights"
	TypeArticle         SectionType = "article"
	TypeNumberedClause  SectionType = "numbered_clause"
	TypeParagraph       SectionType = "paragraph"
)

var importanceByType = map[SectionType]float64{
	TypePaymentTerms:    0.9,
	TypeLiability:       0.9,
	TypeTermination:     0.8,
	TypeIPRights:        0.8,
	TypeConfidentiality: 0.7,
	TypeArticle:         0.6,
	TypeNumberedClause:  0.5,
	TypeParagraph:       0.3,
}

// Importance returns the fixed weight of a section type
func Importance(t SectionType) float64 {
	if w, ok := importanceByType[t]; ok {
		return w
	}
	return 0.3
}

// ContractSection is one clause-like excerpt of a contract
type ContractSection struct {
	Text       string      `json:"text"`
	Type       SectionType `json:"type"`
	Importance float64     `json:"importance"`
}

// Label is a model or rule output with its confidence
type Label struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Sentiment labels
const (
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentPositive = "positive"
)

// Classification labels produced by the rule scorer
const (
	ClassHighRisk   = "HIGH_RISK"
	ClassMediumRisk = "MEDIUM_RISK"
	ClassLowRisk    = "LOW_RISK"
)

// SectionAnalysis is the scored form of a single section
type SectionAnalysis struct {
	Section        ContractSection `json:"section"`
	Classification Label           `json:"classification"`
	Sentiment      Label           `json:"sentiment"`
	Entities       int             `json:"entities"`
	RiskScore      float64         `json:"riskScore"`
}

// RiskLevel is the document-level verdict
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Valid reports whether the level is one of the four known values
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// ContractAnalysis is the structured result handed to callers
type ContractAnalysis struct {
	RiskLevel       RiskLevel `json:"riskLevel"`
	Summary         string    `json:"summary"`
	KeyTerms        []string  `json:"keyTerms"`
	RedFlags        []string  `json:"redFlags"`
	FavorableTerms  []string  `json:"favorableTerms"`
	Recommendations []string  `json:"recommendations"`
	Confidence      float64   `json:"confidence"`
}

// AggregationMode selects how section signals become a risk level
type AggregationMode string

const (
	// ModeScoreMean averages section risk scores
	ModeScoreMean AggregationMode = "score_mean"
	// ModeKeywordCount counts distinct risk keywords in the whole document
	ModeKeywordCount AggregationMode = "keyword_count"
)

var (
	// ErrTextTooShort is returned for empty or short contract text
	ErrTextTooShort = &ValidationError{Reason: "text too short"}

	// ErrSectionAnalysis marks a failure scoring a single section
	ErrSectionAnalysis = errors.New("section analysis failed")

	// ErrBackendUnavailable marks missing credentials, models or transport failures
	ErrBackendUnavailable = errors.New("analysis backend unavailable")

	// ErrIncompleteResult marks malformed or incomplete model output
	ErrIncompleteResult = errors.New("incomplete analysis result")
)

// ValidationError is returned when the input is rejected before analysis
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Reason)
}

// IsValidationError reports whether err is an input validation failure
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
