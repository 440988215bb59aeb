package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/churn-scorer/internal/domain"
)

// AnalysisRepo implements analysis.Repository against PostgreSQL.
type AnalysisRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewAnalysisRepo creates a Postgres-backed analysis repository.
func NewAnalysisRepo(db *sql.DB) *AnalysisRepo {
	return &AnalysisRepo{db: db, now: time.Now}
}

func (r *AnalysisRepo) CreateAnalysis(ctx context.Context, ownerID, fileName string, totalCustomers int) (string, error) {
	id := uuid.New().String()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO churn_analyses (id, owner_id, file_name, total_customers, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, ownerID, fileName, totalCustomers, r.now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert churn analysis: %w", err)
	}
	return id, nil
}

func (r *AnalysisRepo) InsertPrediction(ctx context.Context, p *domain.Prediction) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO churn_predictions (
			id, analysis_id, customer_id, churn_probability, risk_level,
			contributing_factors, recommended_actions, monthly_revenue, plan,
			days_since_signup, days_since_last_active, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		p.ID, p.AnalysisID, p.CustomerID, p.Probability, string(p.RiskLevel),
		pq.Array(nonNil(p.ContributingFactors)), pq.Array(nonNil(p.RecommendedActions)),
		p.MonthlyRevenue, string(p.Plan),
		p.DaysSinceSignup, p.DaysSinceLastActive, string(p.Source), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert churn prediction %s: %w", p.CustomerID, err)
	}
	return nil
}

func (r *AnalysisRepo) UpdateAnalysisAggregates(ctx context.Context, id string, s domain.AnalysisSummary) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE churn_analyses
		SET total_customers = $2, churn_rate = $3, high_risk_count = $4,
		    medium_risk_count = $5, low_risk_count = $6, avg_cltv = $7,
		    completed_at = $8
		WHERE id = $1
	`, id, s.TotalCustomers, s.ChurnRate, s.HighRiskCount, s.MediumRiskCount, s.LowRiskCount, s.AvgCLTV, r.now().UTC())
	if err != nil {
		return fmt.Errorf("update churn analysis: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update churn analysis %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
