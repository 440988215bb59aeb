package scoring

import "github.com/ignite/churn-scorer/internal/domain"

// Tier thresholds. Fixed, not configurable.
const (
	HighRiskThreshold   = 0.7
	MediumRiskThreshold = 0.4
)

// Tier maps a churn probability onto its risk level:
// p >= 0.7 is high, 0.4 <= p < 0.7 is medium, anything lower is low.
func Tier(p float64) domain.RiskLevel {
	switch {
	case p >= HighRiskThreshold:
		return domain.RiskHigh
	case p >= MediumRiskThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
