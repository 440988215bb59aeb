// Package memory keeps analyses in process memory. The offline scoring CLI
// uses it when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/churn-scorer/internal/domain"
)

// AnalysisRepo implements analysis.Repository in memory. It is safe for
// concurrent use.
type AnalysisRepo struct {
	mu          sync.RWMutex
	analyses    map[string]domain.AnalysisSummary
	predictions map[string][]domain.Prediction // keyed by analysis id
}

// NewAnalysisRepo creates an empty repository.
func NewAnalysisRepo() *AnalysisRepo {
	return &AnalysisRepo{
		analyses:    make(map[string]domain.AnalysisSummary),
		predictions: make(map[string][]domain.Prediction),
	}
}

func (r *AnalysisRepo) CreateAnalysis(_ context.Context, ownerID, fileName string, totalCustomers int) (string, error) {
	id := uuid.New().String()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses[id] = domain.AnalysisSummary{
		ID:             id,
		OwnerID:        ownerID,
		FileName:       fileName,
		TotalCustomers: totalCustomers,
		CreatedAt:      time.Now().UTC(),
	}
	return id, nil
}

func (r *AnalysisRepo) InsertPrediction(_ context.Context, p *domain.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.analyses[p.AnalysisID]; !ok {
		return fmt.Errorf("analysis %s not found", p.AnalysisID)
	}
	for _, existing := range r.predictions[p.AnalysisID] {
		if existing.CustomerID == p.CustomerID {
			return fmt.Errorf("duplicate prediction for customer %s", p.CustomerID)
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	cp := *p
	r.predictions[p.AnalysisID] = append(r.predictions[p.AnalysisID], cp)
	return nil
}

func (r *AnalysisRepo) UpdateAnalysisAggregates(_ context.Context, id string, s domain.AnalysisSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.analyses[id]
	if !ok {
		return fmt.Errorf("analysis %s not found", id)
	}
	s.ID = id
	s.OwnerID = cur.OwnerID
	s.FileName = cur.FileName
	s.CreatedAt = cur.CreatedAt
	r.analyses[id] = s
	return nil
}

// Analysis returns a stored summary.
func (r *AnalysisRepo) Analysis(id string) (domain.AnalysisSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.analyses[id]
	return s, ok
}

// Predictions returns a copy of an analysis's predictions, riskiest first.
func (r *AnalysisRepo) Predictions(analysisID string) []domain.Prediction {
	r.mu.RLock()
	out := append([]domain.Prediction(nil), r.predictions[analysisID]...)
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	return out
}
