package domain

import "time"

// Plan is the canonical subscription tier of a customer.
type Plan string

const (
	PlanFree       Plan = "Free"
	PlanPro        Plan = "Pro"
	PlanEnterprise Plan = "Enterprise"
)

// RiskLevel is the discrete bucket derived from a churn probability.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PredictionSource records which scorer produced a prediction.
type PredictionSource string

const (
	SourceRemote   PredictionSource = "remote"
	SourceFallback PredictionSource = "fallback"
)

// DefaultDaysSinceSignup is stored on every prediction. The input file
// carries no signup date.
const DefaultDaysSinceSignup = 30

// NormalizedRecord is one customer's validated, typed usage record.
// Every field is always set; unparsable input has already been replaced
// by its zero default.
type NormalizedRecord struct {
	CustomerID        string  `json:"customer_id"`
	Plan              Plan    `json:"plan"`
	MonthlyRevenue    float64 `json:"monthly_revenue"`
	FeatureUsageCount int     `json:"feature_usage_count"`
	SupportTickets    int     `json:"support_tickets"`
	AvgSessionMinutes float64 `json:"avg_session_minutes"`
	BillingStatus     string  `json:"billing_status"`
	LastLoginDate     string  `json:"last_login_date"`
}

// Prediction is the scored output for one customer.
type Prediction struct {
	ID                  string           `json:"id" db:"id"`
	AnalysisID          string           `json:"analysis_id" db:"analysis_id"`
	CustomerID          string           `json:"customer_id" db:"customer_id"`
	Probability         float64          `json:"churn_probability" db:"churn_probability"`
	RiskLevel           RiskLevel        `json:"risk_level" db:"risk_level"`
	ContributingFactors []string         `json:"contributing_factors" db:"contributing_factors"`
	RecommendedActions  []string         `json:"recommended_actions" db:"recommended_actions"`
	MonthlyRevenue      float64          `json:"monthly_revenue" db:"monthly_revenue"`
	Plan                Plan             `json:"plan" db:"plan"`
	DaysSinceSignup     int              `json:"days_since_signup" db:"days_since_signup"`
	DaysSinceLastActive int              `json:"days_since_last_active" db:"days_since_last_active"`
	Source              PredictionSource `json:"source" db:"source"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
}

// AnalysisSummary is the portfolio-level record of one batch run.
type AnalysisSummary struct {
	ID              string    `json:"id" db:"id"`
	OwnerID         string    `json:"owner_id" db:"owner_id"`
	FileName        string    `json:"file_name" db:"file_name"`
	TotalCustomers  int       `json:"total_customers" db:"total_customers"`
	ChurnRate       float64   `json:"churn_rate" db:"churn_rate"`
	HighRiskCount   int       `json:"high_risk_count" db:"high_risk_count"`
	MediumRiskCount int       `json:"medium_risk_count" db:"medium_risk_count"`
	LowRiskCount    int       `json:"low_risk_count" db:"low_risk_count"`
	AvgCLTV         float64   `json:"avg_cltv" db:"avg_cltv"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// RowOutcome is the processing result of a single input row. Row is the
// 1-based data row number, header excluded.
type RowOutcome struct {
	Row        int    `json:"row"`
	Success    bool   `json:"success"`
	CustomerID string `json:"customer_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RowError is the caller-facing detail of a failed row.
type RowError struct {
	Row        int    `json:"row"`
	CustomerID string `json:"customerId"`
	Error      string `json:"error"`
}
