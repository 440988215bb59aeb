package analysis

import (
	"context"
	"io"

	"github.com/ignite/churn-scorer/internal/digest"
	"github.com/ignite/churn-scorer/internal/domain"
)

// Repository persists analyses and their predictions.
// Implementations must be safe for concurrent use.
type Repository interface {
	// CreateAnalysis inserts an analysis stub and returns its ID. A failure
	// here aborts the run.
	CreateAnalysis(ctx context.Context, ownerID, fileName string, totalCustomers int) (string, error)

	// InsertPrediction stores one customer's prediction. It assigns p.ID
	// when empty. A failure affects only that row.
	InsertPrediction(ctx context.Context, p *domain.Prediction) error

	// UpdateAnalysisAggregates writes the final summary onto the stub.
	UpdateAnalysisAggregates(ctx context.Context, id string, s domain.AnalysisSummary) error
}

// FileSource opens stored upload files by key.
type FileSource interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Predictor scores one normalized record. It must not fail; remote errors
// are absorbed into a locally derived prediction.
type Predictor interface {
	Predict(ctx context.Context, rec domain.NormalizedRecord) domain.Prediction
}

// Digester sends the post-run digest.
type Digester interface {
	Send(ctx context.Context, in digest.Input) error
}

// Locker is a non-blocking run lock.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}
