package analyzer

var recommendationsByLevel = map[RiskLevel][]string{
	RiskCritical: {
		"URGENT: Engage specialized legal counsel immediately",
		"Conduct comprehensive risk assessment before proceeding",
		"Consider alternative contract structures or vendors",
		"Document all concerns for legal review",
	},
	RiskHigh: {
		"Mandatory legal team review required",
		"Negotiate key risk mitigation terms",
		"Perform detailed financial impact analysis",
		"Ensure adequate insurance coverage",
	},
	RiskMedium: {
		"Thorough internal review recommended",
		"Consider negotiating specific clauses",
		"Document any concerns or modifications",
		"Allow sufficient review time",
	},
	RiskLow: {
		"Standard due diligence review sufficient",
		"Verify all terms align with business objectives",
		"Final compliance check recommended",
	},
}

const (
	recMultipleRisks     = "Multiple risk factors identified - prioritize legal consultation"
	recAddressRisks      = "Address identified risk factors before execution"
	recLeverageFavorable = "Leverage favorable terms in negotiations"
)

var closingRecommendations = []string{
	"Align contract terms with strategic business goals",
	"Establish regular contract performance reviews",
}

// Recommendations returns action items ordered most severe first
func Recommendations(level RiskLevel, redFlags, favorable []string) []string {
	recs := append([]string(nil), recommendationsByLevel[level]...)

	switch {
	case len(redFlags) > 3:
		recs = append(recs, recMultipleRisks)
	case len(redFlags) > 1:
		recs = append(recs, recAddressRisks)
	}

	if len(favorable) > 2 {
		recs = append(recs, recLeverageFavorable)
	}

	return append(recs, closingRecommendations...)
}
