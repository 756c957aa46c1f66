package api

import (
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/analyzer"
)

type scoreBand struct{ lo, hi int }

var riskScoreBands = map[analyzer.RiskLevel]scoreBand{
	analyzer.RiskLow:      {20, 25},
	analyzer.RiskMedium:   {40, 50},
	analyzer.RiskHigh:     {70, 75},
	analyzer.RiskCritical: {90, 90},
}

// RiskScore converts an analysis into the 0-100 score shown on contract lists.
// The score never leaves the band of its risk level; within the band it rises
// with the share of red flags among all flagged terms.
func RiskScore(a *analyzer.ContractAnalysis) int {
	band, ok := riskScoreBands[a.RiskLevel]
	if !ok {
		band = riskScoreBands[analyzer.RiskMedium]
	}

	red, favorable := len(a.RedFlags), len(a.FavorableTerms)
	if red+favorable == 0 {
		return band.lo
	}
	return band.lo + (band.hi-band.lo)*red/(red+favorable)
}
