package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/churn-scorer/internal/domain"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// healthy returns a record that triggers no rule.
func healthy() domain.NormalizedRecord {
	return domain.NormalizedRecord{
		CustomerID:        "cust-1",
		Plan:              domain.PlanPro,
		MonthlyRevenue:    99,
		FeatureUsageCount: 8,
		SupportTickets:    1,
		AvgSessionMinutes: 25,
		BillingStatus:     "active",
		LastLoginDate:     "2026-03-14",
	}
}

func TestScore_Healthy(t *testing.T) {
	res := Score(healthy(), testNow)

	assert.Equal(t, 0.10, res.Probability)
	assert.Equal(t, []string{FactorHealthy}, res.ContributingFactors)
	assert.Equal(t, []string{ActionMonitor}, res.RecommendedActions)
	assert.Equal(t, 1, res.DaysSinceLastLogin)
}

func TestScore_EachRule(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.NormalizedRecord)
		prob   float64
		factor string
		action string
	}{
		{
			name:   "inactive",
			mutate: func(r *domain.NormalizedRecord) { r.LastLoginDate = "2026-02-13" },
			prob:   0.40,
			factor: "Inactive for 30 days",
			action: ActionReactivation,
		},
		{
			name:   "billing failed",
			mutate: func(r *domain.NormalizedRecord) { r.BillingStatus = "Payment FAILED" },
			prob:   0.50,
			factor: FactorBilling,
			action: ActionCheckBilling,
		},
		{
			name:   "low session",
			mutate: func(r *domain.NormalizedRecord) { r.AvgSessionMinutes = 4.9 },
			prob:   0.25,
			factor: FactorLowSession,
			action: ActionMonitor,
		},
		{
			name:   "low feature usage",
			mutate: func(r *domain.NormalizedRecord) { r.FeatureUsageCount = 2 },
			prob:   0.30,
			factor: FactorLowFeatureUsage,
			action: ActionMonitor,
		},
		{
			name:   "support tickets",
			mutate: func(r *domain.NormalizedRecord) { r.SupportTickets = 4 },
			prob:   0.25,
			factor: FactorHighSupport,
			action: ActionPriorityCall,
		},
		{
			name: "free with no revenue",
			mutate: func(r *domain.NormalizedRecord) {
				r.Plan = domain.PlanFree
				r.MonthlyRevenue = 0
				r.FeatureUsageCount = 11
			},
			prob:   0.35,
			factor: FactorFreeNoRevenue,
			action: ActionOfferDiscount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := healthy()
			tt.mutate(&rec)
			res := Score(rec, testNow)

			assert.Equal(t, tt.prob, res.Probability)
			assert.Equal(t, []string{tt.factor}, res.ContributingFactors)
			assert.Equal(t, []string{tt.action}, res.RecommendedActions)
		})
	}
}

func TestScore_ThresholdsAreStrict(t *testing.T) {
	rec := healthy()
	rec.LastLoginDate = "2026-03-01" // exactly 14 days
	rec.AvgSessionMinutes = 5
	rec.FeatureUsageCount = 3
	rec.SupportTickets = 3

	res := Score(rec, testNow)
	assert.Equal(t, 0.10, res.Probability)
	assert.Equal(t, 14, res.DaysSinceLastLogin)
}

func TestScore_SumsAllRulesAndClamps(t *testing.T) {
	rec := domain.NormalizedRecord{
		CustomerID:        "worst",
		Plan:              domain.PlanFree,
		BillingStatus:     "overdue",
		LastLoginDate:     "2025-01-01",
		SupportTickets:    9,
		AvgSessionMinutes: 1,
		FeatureUsageCount: 0,
	}

	res := Score(rec, testNow)
	assert.Equal(t, MaxProbability, res.Probability)
	assert.Len(t, res.ContributingFactors, 5)
	assert.Equal(t, []string{ActionReactivation, ActionCheckBilling, ActionPriorityCall}, res.RecommendedActions)
}

func TestScore_ExampleBatchRows(t *testing.T) {
	a := healthy()
	a.BillingStatus = "overdue"
	a.LastLoginDate = testNow.AddDate(0, 0, -20).Format("2006-01-02")

	b := healthy()
	b.SupportTickets = 4

	c := healthy()
	c.FeatureUsageCount = 1
	c.AvgSessionMinutes = 2

	ra, rb, rc := Score(a, testNow), Score(b, testNow), Score(c, testNow)

	assert.GreaterOrEqual(t, ra.Probability, 0.70)
	assert.Equal(t, domain.RiskHigh, Tier(ra.Probability))
	assert.InDelta(t, 0.25, rb.Probability, 1e-9)
	assert.Equal(t, domain.RiskLow, Tier(rb.Probability))
	assert.InDelta(t, 0.45, rc.Probability, 1e-9)
	assert.Equal(t, domain.RiskMedium, Tier(rc.Probability))
}

func TestScore_BoundsAndDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	plans := []domain.Plan{domain.PlanFree, domain.PlanPro, domain.PlanEnterprise}
	statuses := []string{"active", "failed", "OVERDUE", "", "trial"}

	for i := 0; i < 2000; i++ {
		rec := domain.NormalizedRecord{
			CustomerID:        "c",
			Plan:              plans[rng.Intn(len(plans))],
			MonthlyRevenue:    float64(rng.Intn(3)) * 50,
			FeatureUsageCount: rng.Intn(20),
			SupportTickets:    rng.Intn(8),
			AvgSessionMinutes: rng.Float64() * 30,
			BillingStatus:     statuses[rng.Intn(len(statuses))],
			LastLoginDate:     testNow.AddDate(0, 0, -rng.Intn(90)).Format("2006-01-02"),
		}

		first := Score(rec, testNow)
		require.GreaterOrEqual(t, first.Probability, MinProbability)
		require.LessOrEqual(t, first.Probability, MaxProbability)
		require.NotEmpty(t, first.ContributingFactors)
		require.NotEmpty(t, first.RecommendedActions)

		second := Score(rec, testNow)
		require.Equal(t, first, second)
	}
}

func TestFallback_UsesInjectedClock(t *testing.T) {
	f := NewFallback(func() time.Time { return testNow })
	rec := healthy()
	rec.LastLoginDate = "2026-01-01"

	assert.Equal(t, Score(rec, testNow), f.Score(rec))
}

func TestDaysSince(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"2026-03-01", 14},
		{"2026-03-01T12:00:00Z", 14},
		{"2026-03-01 12:00:00", 14},
		{"03/01/2026", 14},
		{"2026/03/01", 14},
		{"2026-03-29", 13},
		{"", 0},
		{"yesterday", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysSince(tt.raw, testNow))
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, MinProbability, Clamp(0))
	assert.Equal(t, MinProbability, Clamp(-3))
	assert.Equal(t, MaxProbability, Clamp(1.4))
	assert.Equal(t, 0.7, Clamp(0.5+0.2))
	assert.Equal(t, MinProbability, Clamp(0/zero()))
}

func zero() float64 { return 0 }
