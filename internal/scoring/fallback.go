// Package scoring holds the deterministic churn rule engine used whenever the
// remote model is unavailable, and the fixed risk tier thresholds.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ignite/churn-scorer/internal/domain"
)

// Probability bounds. A score is never 0 and never above MaxProbability.
const (
	BaseRisk       = 0.10
	MinProbability = 0.10
	MaxProbability = 0.95
)

const (
	inactiveDaysThreshold  = 14
	lowSessionMinutes      = 5
	lowFeatureUsage        = 3
	highSupportTickets     = 3
	freeHighUsageThreshold = 10

	riskInactive         = 0.30
	riskBilling          = 0.40
	riskLowSession       = 0.15
	riskLowFeatureUsage  = 0.20
	riskHighSupport      = 0.15
	riskFreeNoConversion = 0.25
)

const (
	FactorBilling         = "Payment/billing issues detected"
	FactorLowSession      = "Very low session engagement"
	FactorLowFeatureUsage = "Low feature adoption and usage"
	FactorHighSupport     = "High support ticket volume indicates frustration"
	FactorFreeNoRevenue   = "Free plan user with no revenue conversion despite high usage"
	FactorHealthy         = "User showing healthy engagement patterns"

	ActionReactivation  = "Send reactivation email"
	ActionCheckBilling  = "Check billing"
	ActionPriorityCall  = "Priority customer success call"
	ActionOfferDiscount = "Offer discount"
	ActionMonitor       = "Monitor engagement closely"
)

// Result is the output of the rule engine for one record.
type Result struct {
	Probability         float64
	ContributingFactors []string
	RecommendedActions  []string
	DaysSinceLastLogin  int
}

// Fallback scores records with the additive rule table. It has no external
// dependencies and is safe for concurrent use.
type Fallback struct {
	now func() time.Time
}

// NewFallback creates a rule engine. If now is nil, time.Now is used.
func NewFallback(now func() time.Time) *Fallback {
	if now == nil {
		now = time.Now
	}
	return &Fallback{now: now}
}

// Score applies every rule to rec and sums the contributions. Identical input
// at the same instant always yields identical output.
func (f *Fallback) Score(rec domain.NormalizedRecord) Result {
	return Score(rec, f.now())
}

// Score is the pure form of Fallback.Score with an explicit clock.
func Score(rec domain.NormalizedRecord, now time.Time) Result {
	days := DaysSince(rec.LastLoginDate, now)
	risk := BaseRisk
	var factors, actions []string

	if days > inactiveDaysThreshold {
		risk += riskInactive
		factors = append(factors, fmt.Sprintf("Inactive for %d days", days))
		actions = append(actions, ActionReactivation)
	}
	if hasBillingIssue(rec.BillingStatus) {
		risk += riskBilling
		factors = append(factors, FactorBilling)
		actions = append(actions, ActionCheckBilling)
	}
	if rec.AvgSessionMinutes < lowSessionMinutes {
		risk += riskLowSession
		factors = append(factors, FactorLowSession)
	}
	if rec.FeatureUsageCount < lowFeatureUsage {
		risk += riskLowFeatureUsage
		factors = append(factors, FactorLowFeatureUsage)
	}
	if rec.SupportTickets > highSupportTickets {
		risk += riskHighSupport
		factors = append(factors, FactorHighSupport)
		actions = append(actions, ActionPriorityCall)
	}
	// Heuristic downgrade proxy: the file has no previous plan to compare
	// against, so a heavy free user who never paid stands in for one.
	if rec.Plan == domain.PlanFree && rec.MonthlyRevenue == 0 && rec.FeatureUsageCount > freeHighUsageThreshold {
		risk += riskFreeNoConversion
		factors = append(factors, FactorFreeNoRevenue)
		actions = append(actions, ActionOfferDiscount)
	}

	if len(factors) == 0 {
		factors = []string{FactorHealthy}
	}
	if len(actions) == 0 {
		actions = []string{ActionMonitor}
	}

	return Result{
		Probability:         Clamp(risk),
		ContributingFactors: factors,
		RecommendedActions:  dedupe(actions),
		DaysSinceLastLogin:  days,
	}
}

// Clamp bounds p to [MinProbability, MaxProbability] and rounds it to four
// decimals so that sums such as 0.5+0.2 land exactly on tier boundaries.
func Clamp(p float64) float64 {
	if math.IsNaN(p) {
		return MinProbability
	}
	p = math.Round(p*1e4) / 1e4
	if p < MinProbability {
		return MinProbability
	}
	if p > MaxProbability {
		return MaxProbability
	}
	return p
}

func hasBillingIssue(status string) bool {
	s := strings.ToLower(status)
	return strings.Contains(s, "failed") || strings.Contains(s, "overdue")
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"2006/01/02",
}

// DaysSince returns the absolute number of whole days between the date in
// raw and now. Unparsable or empty dates yield 0.
func DaysSince(raw string, now time.Time) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		d := now.Sub(t)
		if d < 0 {
			d = -d
		}
		return int(d / (24 * time.Hour))
	}
	return 0
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
