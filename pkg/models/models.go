package models

import (
	"time"
)

// Contract represents an uploaded contract in list responses
type Contract struct {
	ID         string     `json:"id"`
	FileName   string     `json:"file_name"`
	Status     string     `json:"status"`
	WordCount  int        `json:"word_count"`
	RiskScore  *int       `json:"risk_score,omitempty"`
	AnalyzedAt *time.Time `json:"analyzed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Analysis is the stored review of a contract
type Analysis struct {
	RiskLevel       string    `json:"risk_level"`
	RiskScore       int       `json:"risk_score"`
	Summary         string    `json:"summary"`
	KeyTerms        []string  `json:"key_terms"`
	RedFlags        []string  `json:"red_flags"`
	FavorableTerms  []string  `json:"favorable_terms"`
	Recommendations []string  `json:"recommendations"`
	Confidence      float64   `json:"confidence"`
	CreatedAt       time.Time `json:"created_at"`
}

// ContractDetail is a contract with its latest analysis
type ContractDetail struct {
	Contract
	Analysis *Analysis `json:"analysis,omitempty"`
}

// UploadResult is returned after a contract upload
type UploadResult struct {
	ContractDetail
	Duplicate bool `json:"duplicate"`
}

// ClauseMatch is a stored clause similar to the query text
type ClauseMatch struct {
	ContractID  string  `json:"contract_id"`
	FileName    string  `json:"file_name"`
	SectionType string  `json:"section_type"`
	Position    int     `json:"position"`
	Text        string  `json:"text"`
	Similarity  float64 `json:"similarity"`
}

// Usage reports a user's metered analyses for the current month
type Usage struct {
	Plan        string    `json:"plan"`
	Used        int       `json:"used"`
	Limit       *int      `json:"limit,omitempty"`
	Remaining   *int      `json:"remaining,omitempty"`
	PeriodStart time.Time `json:"period_start"`
}
