package analysis

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/churn-scorer/internal/datanorm"
	"github.com/ignite/churn-scorer/internal/domain"
	"github.com/ignite/churn-scorer/internal/pkg/logger"
)

// processRows scores and stores every row with at most MaxInFlight tasks
// running. Each task writes only its own slot, so no locking is needed. It
// returns one outcome per row in input order and the predictions that were
// inserted.
func (s *Service) processRows(ctx context.Context, analysisID string, rows []datanorm.Row) ([]domain.RowOutcome, []domain.Prediction) {
	outcomes := make([]domain.RowOutcome, len(rows))
	preds := make([]*domain.Prediction, len(rows))

	var g errgroup.Group
	g.SetLimit(s.opts.MaxInFlight)
	for i, row := range rows {
		g.Go(func() error {
			outcomes[i], preds[i] = s.processRow(ctx, analysisID, row)
			if s.opts.OnRow != nil {
				s.opts.OnRow(outcomes[i])
			}
			return nil
		})
	}
	// Row tasks never return errors.
	_ = g.Wait()

	inserted := make([]domain.Prediction, 0, len(rows))
	for _, p := range preds {
		if p != nil {
			inserted = append(inserted, *p)
		}
	}
	return outcomes, inserted
}

// processRow handles one row. A panic is contained to the row.
func (s *Service) processRow(ctx context.Context, analysisID string, row datanorm.Row) (out domain.RowOutcome, pred *domain.Prediction) {
	out = domain.RowOutcome{Row: row.Line, CustomerID: row.Record.CustomerID}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("row task panicked",
				"analysis_id", analysisID, "row", row.Line, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			out.Success = false
			out.Error = "internal error while processing row"
			pred = nil
		}
	}()

	if out.CustomerID == "" {
		out.Error = "missing customer_id"
		return out, nil
	}

	p := s.predictor.Predict(ctx, row.Record)
	p.AnalysisID = analysisID
	p.CreatedAt = s.opts.Now()
	if err := s.repo.InsertPrediction(ctx, &p); err != nil {
		logger.Warn("failed to save prediction",
			"analysis_id", analysisID, "row", row.Line, "customer_id", out.CustomerID, "error", err)
		out.Error = "failed to save prediction"
		return out, nil
	}

	out.Success = true
	return out, &p
}
