package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/churn-scorer/internal/domain"
)

func TestAggregate(t *testing.T) {
	preds := []domain.Prediction{
		{Probability: 0.70, MonthlyRevenue: 100},
		{Probability: 0.40, MonthlyRevenue: 50},
		{Probability: 0.3999, MonthlyRevenue: 0},
		{Probability: 0.95, MonthlyRevenue: 10, RiskLevel: domain.RiskLow},
	}
	s := Aggregate(preds)

	assert.Equal(t, 4, s.TotalCustomers)
	assert.Equal(t, 2, s.HighRiskCount, "tier comes from probability, not the stored level")
	assert.Equal(t, 1, s.MediumRiskCount)
	assert.Equal(t, 1, s.LowRiskCount)
	assert.InDelta(t, (0.70+0.40+0.3999+0.95)/4, s.ChurnRate, 1e-9)
	assert.InDelta(t, (100+50+0+10)*12/4.0, s.AvgCLTV, 1e-9)
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil)
	assert.Zero(t, s.TotalCustomers)
	assert.Zero(t, s.ChurnRate)
	assert.Zero(t, s.AvgCLTV)
}
