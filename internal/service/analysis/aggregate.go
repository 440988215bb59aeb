package analysis

import (
	"github.com/ignite/churn-scorer/internal/domain"
	"github.com/ignite/churn-scorer/internal/scoring"
)

// Aggregate summarizes the predictions that were persisted. Tiers are
// recomputed from probability so the counts can never disagree with the
// thresholds. An empty input yields zero rates.
func Aggregate(preds []domain.Prediction) domain.AnalysisSummary {
	var s domain.AnalysisSummary
	s.TotalCustomers = len(preds)
	if len(preds) == 0 {
		return s
	}

	var probSum, cltvSum float64
	for _, p := range preds {
		probSum += p.Probability
		cltvSum += p.MonthlyRevenue * 12
		switch scoring.Tier(p.Probability) {
		case domain.RiskHigh:
			s.HighRiskCount++
		case domain.RiskMedium:
			s.MediumRiskCount++
		default:
			s.LowRiskCount++
		}
	}
	n := float64(len(preds))
	s.ChurnRate = probSum / n
	s.AvgCLTV = cltvSum / n
	return s
}
