package analysis_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/churn-scorer/internal/datanorm"
	"github.com/ignite/churn-scorer/internal/digest"
	"github.com/ignite/churn-scorer/internal/domain"
	"github.com/ignite/churn-scorer/internal/prediction"
	"github.com/ignite/churn-scorer/internal/scoring"
	"github.com/ignite/churn-scorer/internal/service/analysis"
	"github.com/ignite/churn-scorer/internal/storage"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const header = "customer_id,plan,last_login,avg_session_duration,billing_status,monthly_revenue,feature_usage_count,support_tickets\n"

// memRepo is an in-memory analysis repository for unit testing.
type memRepo struct {
	mu          sync.Mutex
	analyses    map[string]domain.AnalysisSummary
	predictions []domain.Prediction
	writes      int

	createErr error
	updateErr error
	failFor   map[string]bool // customer ids whose insert fails
}

func newMemRepo() *memRepo {
	return &memRepo{analyses: make(map[string]domain.AnalysisSummary), failFor: map[string]bool{}}
}

func (m *memRepo) CreateAnalysis(_ context.Context, ownerID, fileName string, total int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.writes++
	id := fmt.Sprintf("analysis-%d", len(m.analyses)+1)
	m.analyses[id] = domain.AnalysisSummary{ID: id, OwnerID: ownerID, FileName: fileName, TotalCustomers: total}
	return id, nil
}

func (m *memRepo) InsertPrediction(_ context.Context, p *domain.Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[p.CustomerID] {
		return errors.New("unique violation")
	}
	m.writes++
	p.ID = fmt.Sprintf("pred-%d", len(m.predictions)+1)
	m.predictions = append(m.predictions, *p)
	return nil
}

func (m *memRepo) UpdateAnalysisAggregates(_ context.Context, id string, s domain.AnalysisSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.writes++
	m.analyses[id] = s
	return nil
}

func (m *memRepo) prediction(customerID string) (domain.Prediction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.predictions {
		if p.CustomerID == customerID {
			return p, true
		}
	}
	return domain.Prediction{}, false
}

type memFiles map[string]string

func (f memFiles) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f[key]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// localPredictor scores with the rule engine only.
type localPredictor struct{}

func (localPredictor) Predict(_ context.Context, rec domain.NormalizedRecord) domain.Prediction {
	r := scoring.Score(rec, now)
	return domain.Prediction{
		CustomerID:          rec.CustomerID,
		Probability:         r.Probability,
		RiskLevel:           scoring.Tier(r.Probability),
		ContributingFactors: r.ContributingFactors,
		RecommendedActions:  r.RecommendedActions,
		MonthlyRevenue:      rec.MonthlyRevenue,
		Plan:                rec.Plan,
		DaysSinceSignup:     domain.DefaultDaysSinceSignup,
		DaysSinceLastActive: r.DaysSinceLastLogin,
		Source:              domain.SourceFallback,
	}
}

type panicPredictor struct{ on string }

func (p panicPredictor) Predict(ctx context.Context, rec domain.NormalizedRecord) domain.Prediction {
	if rec.CustomerID == p.on {
		panic("model exploded")
	}
	return localPredictor{}.Predict(ctx, rec)
}

type fakeDigest struct {
	mu   sync.Mutex
	got  []digest.Input
	err  error
	wait chan struct{}
}

func (f *fakeDigest) Send(_ context.Context, in digest.Input) error {
	if f.wait != nil {
		<-f.wait
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, in)
	return f.err
}

func (f *fakeDigest) calls() []digest.Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]digest.Input(nil), f.got...)
}

func day(daysAgo int) string {
	return now.AddDate(0, 0, -daysAgo).Format("2006-01-02")
}

// exampleCSV holds one high, one low and one medium risk customer.
func exampleCSV() string {
	return header +
		"A,Pro," + day(20) + ",30,overdue,$100.00,10,0\n" +
		"B,Pro," + day(1) + ",30,active,200,10,4\n" +
		"C,Pro," + day(1) + ",2,active,300,1,0\n"
}

func newService(repo analysis.Repository, files analysis.FileSource, p analysis.Predictor, opts analysis.Options) *analysis.Service {
	opts.Now = func() time.Time { return now }
	return analysis.NewService(repo, files, p, opts)
}

func run(t *testing.T, svc *analysis.Service, file string) *analysis.Result {
	t.Helper()
	res, err := svc.Run(context.Background(), analysis.Request{OwnerID: "owner-1", FileName: file})
	require.NoError(t, err)
	return res
}

func TestRun_ExampleBatch(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, memFiles{"owner-1/jan.csv": exampleCSV()}, localPredictor{}, analysis.Options{})

	res := run(t, svc, "jan.csv")

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, 3, res.ProcessedRows)
	assert.Equal(t, 0, res.FailedRows)
	assert.Empty(t, res.ErrorDetails)
	require.NotEmpty(t, res.AnalysisID)

	a, _ := repo.prediction("A")
	b, _ := repo.prediction("B")
	c, _ := repo.prediction("C")
	assert.Equal(t, domain.RiskHigh, a.RiskLevel)
	assert.GreaterOrEqual(t, a.Probability, 0.70)
	assert.Equal(t, domain.RiskLow, b.RiskLevel)
	assert.InDelta(t, 0.25, b.Probability, 1e-9)
	assert.Equal(t, domain.RiskMedium, c.RiskLevel)
	assert.InDelta(t, 0.45, c.Probability, 1e-9)
	assert.Equal(t, res.AnalysisID, a.AnalysisID)

	summary := repo.analyses[res.AnalysisID]
	assert.Equal(t, 3, summary.TotalCustomers)
	assert.Equal(t, 1, summary.HighRiskCount)
	assert.Equal(t, 1, summary.MediumRiskCount)
	assert.Equal(t, 1, summary.LowRiskCount)
	assert.InDelta(t, (a.Probability+0.25+0.45)/3, summary.ChurnRate, 1e-9)
	assert.InDelta(t, 2400.0, summary.AvgCLTV, 1e-9)
	assert.Equal(t, "owner-1", summary.OwnerID)
	assert.Equal(t, "jan.csv", summary.FileName)
}

func TestRun_MissingColumnsWritesNothing(t *testing.T) {
	repo := newMemRepo()
	csv := "customer_id,plan,monthly_revenue\nA,Pro,10\n"
	svc := newService(repo, memFiles{"owner-1/bad.csv": csv}, localPredictor{}, analysis.Options{})

	res, err := svc.Run(context.Background(), analysis.Request{OwnerID: "owner-1", FileName: "bad.csv"})
	assert.Nil(t, res)

	var verr *datanorm.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, datanorm.ErrMissingColumns)
	assert.Equal(t, []string{"last_login", "avg_session_duration", "billing_status", "feature_usage_count", "support_tickets"}, verr.Missing)
	assert.True(t, analysis.IsClientError(err))
	assert.Zero(t, repo.writes)
}

func TestRun_EmptyFileWritesNothing(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, memFiles{"owner-1/empty.csv": header}, localPredictor{}, analysis.Options{})

	_, err := svc.Run(context.Background(), analysis.Request{OwnerID: "owner-1", FileName: "empty.csv"})
	assert.ErrorIs(t, err, datanorm.ErrEmptyFile)
	assert.Zero(t, repo.writes)
}

func TestRun_EmptyCustomerIDIsIsolated(t *testing.T) {
	repo := newMemRepo()
	csv := header +
		"A,Pro," + day(1) + ",30,active,100,10,0\n" +
		"   ,Pro," + day(1) + ",30,active,100,10,0\n" +
		"C,Pro," + day(1) + ",30,active,100,10,0\n"
	svc := newService(repo, memFiles{"owner-1/f.csv": csv}, localPredictor{}, analysis.Options{})

	res := run(t, svc, "f.csv")

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, 2, res.ProcessedRows)
	assert.Equal(t, 1, res.FailedRows)
	require.Len(t, res.ErrorDetails, 1)
	assert.Equal(t, 2, res.ErrorDetails[0].Row)
	assert.Equal(t, "missing customer_id", res.ErrorDetails[0].Error)

	_, okA := repo.prediction("A")
	_, okC := repo.prediction("C")
	assert.True(t, okA)
	assert.True(t, okC)
	assert.Equal(t, 2, repo.analyses[res.AnalysisID].TotalCustomers)
}

func TestRun_TotalCustomersCountsOnlyInserted(t *testing.T) {
	repo := newMemRepo()
	repo.failFor["B"] = true
	svc := newService(repo, memFiles{"owner-1/jan.csv": exampleCSV()}, localPredictor{}, analysis.Options{})

	res := run(t, svc, "jan.csv")

	assert.Equal(t, 2, res.ProcessedRows)
	assert.Equal(t, 1, res.FailedRows)
	require.Len(t, res.ErrorDetails, 1)
	assert.Equal(t, "B", res.ErrorDetails[0].CustomerID)
	assert.Equal(t, "failed to save prediction", res.ErrorDetails[0].Error)

	summary := repo.analyses[res.AnalysisID]
	assert.Equal(t, 2, summary.TotalCustomers)
	assert.Equal(t, 0, summary.LowRiskCount)
}

func TestRun_MalformedRowsReported(t *testing.T) {
	repo := newMemRepo()
	csv := header +
		"A,Pro," + day(1) + ",30,active,100,10,0\n" +
		"B,Pro,short\n"
	svc := newService(repo, memFiles{"owner-1/f.csv": csv}, localPredictor{}, analysis.Options{})

	res := run(t, svc, "f.csv")

	assert.Equal(t, 2, res.TotalRows)
	assert.Equal(t, 1, res.ProcessedRows)
	assert.Equal(t, 1, res.FailedRows)
	require.Len(t, res.ErrorDetails, 1)
	assert.Equal(t, "B", res.ErrorDetails[0].CustomerID)
	assert.Contains(t, res.ErrorDetails[0].Error, "malformed row")
}

func TestRun_StrayQuoteIsolatedToItsRow(t *testing.T) {
	repo := newMemRepo()
	csv := header +
		"A,\"Pro\"x," + day(1) + ",30,active,100,10,0\n" +
		"B,Pro," + day(1) + ",30,active,100,10,0\n" +
		"C,Pro," + day(1) + ",30,active,100,10,0\n"
	svc := newService(repo, memFiles{"owner-1/f.csv": csv}, localPredictor{}, analysis.Options{})

	res := run(t, svc, "f.csv")

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, 2, res.ProcessedRows)
	assert.Equal(t, 1, res.FailedRows)
	require.Len(t, res.ErrorDetails, 1)
	assert.Equal(t, 1, res.ErrorDetails[0].Row)
	assert.Equal(t, "A", res.ErrorDetails[0].CustomerID)
	assert.Contains(t, res.ErrorDetails[0].Error, "malformed row")

	_, okB := repo.prediction("B")
	_, okC := repo.prediction("C")
	assert.True(t, okB)
	assert.True(t, okC)
	assert.Equal(t, 2, repo.analyses[res.AnalysisID].TotalCustomers)
}

func TestRun_AllRowsFail(t *testing.T) {
	repo := newMemRepo()
	csv := header + ",Pro," + day(1) + ",30,active,100,10,0\n"
	svc := newService(repo, memFiles{"owner-1/f.csv": csv}, localPredictor{}, analysis.Options{})

	res := run(t, svc, "f.csv")
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.ProcessedRows)
	assert.Equal(t, 1, res.FailedRows)
	assert.Equal(t, "All 1 rows failed", res.Message)
}

func TestRun_RemoteFailureUsesFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
	}{
		{
			name: "500 response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := prediction.NewClient(prediction.Config{
				BaseURL: srv.URL,
				Timeout: tt.timeout,
				Now:     func() time.Time { return now },
			})
			repo := newMemRepo()
			svc := newService(repo, memFiles{"owner-1/jan.csv": exampleCSV()}, client, analysis.Options{})

			res := run(t, svc, "jan.csv")
			assert.True(t, res.Success)
			assert.Equal(t, 3, res.ProcessedRows)
			assert.Empty(t, res.ErrorDetails)

			a, ok := repo.prediction("A")
			require.True(t, ok)
			assert.Equal(t, domain.SourceFallback, a.Source)
			assert.Contains(t, a.ContributingFactors, scoring.FactorBilling)
			assert.Contains(t, a.RecommendedActions, scoring.ActionCheckBilling)
			assert.Equal(t, domain.RiskHigh, a.RiskLevel)
		})
	}
}

func TestRun_RemoteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"churn_probability": 0.99, "factors": ["model says so"], "actions": "Call them"}`)
	}))
	defer srv.Close()

	repo := newMemRepo()
	client := prediction.NewClient(prediction.Config{BaseURL: srv.URL, Now: func() time.Time { return now }})
	svc := newService(repo, memFiles{"owner-1/jan.csv": exampleCSV()}, client, analysis.Options{})

	run(t, svc, "jan.csv")
	b, ok := repo.prediction("B")
	require.True(t, ok)
	assert.Equal(t, domain.SourceRemote, b.Source)
	assert.Equal(t, scoring.MaxProbability, b.Probability)
	assert.Equal(t, []string{"model says so"}, b.ContributingFactors)
	assert.Equal(t, []string{"Call them"}, b.RecommendedActions)
}

func TestRun_PanicInRowIsContained(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, memFiles{"owner-1/jan.csv": exampleCSV()}, panicPredictor{on: "B"}, analysis.Options{})

	res := run(t, svc, "jan.csv")
	assert.Equal(t, 2, res.ProcessedRows)
	require.Len(t, res.ErrorDetails, 1)
	assert.Equal(t, "B", res.ErrorDetails[0].CustomerID)
	assert.Equal(t, 2, res.ErrorDetails[0].Row)
}

func TestRun_SummaryCreateFailureAborts(t *testing.T) {
	repo := newMemRepo()
	repo.createErr = errors.New("connection refused")
	svc := newService(repo, memFiles{"owner-1/jan.csv": exampleCSV()}, localPredictor{}, analysis.Options{})

	_, err := svc.Run(context.Background(), analysis.Request{OwnerID: "owner-1", FileName: "jan.csv"})
	var serr *analysis.SummaryError
	require.ErrorAs(t, err, &serr)
	assert.False(t, analysis.IsClientError(err))
	assert.Empty(t, repo.predictions)
}

func TestRun_AggregateUpdateFailureIsLoggedOnly(t *testing.T) {
	repo := newMemRepo()
	repo.updateErr = errors.New("timeout")
	svc := newService(repo, memFiles{"owner-1/jan.csv": exampleCSV()}, localPredictor{}, analysis.Options{})

	res := run(t, svc, "jan.csv")
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.ProcessedRows)
}

func TestRun_DigestFailureDoesNotChangeResult(t *testing.T) {
	ok := &fakeDigest{}
	failing := &fakeDigest{err: errors.New("provider outage")}

	var results []*analysis.Result
	for _, d := range []*fakeDigest{ok, failing} {
		svc := newService(newMemRepo(), memFiles{"owner-1/jan.csv": exampleCSV()}, localPredictor{}, analysis.Options{Digest: d})
		results = append(results, run(t, svc, "jan.csv"))
		require.NoError(t, svc.Drain(context.Background()))
	}

	assert.Equal(t, results[0].Success, results[1].Success)
	assert.Equal(t, results[0].ProcessedRows, results[1].ProcessedRows)
	assert.Equal(t, results[0].FailedRows, results[1].FailedRows)
	require.Len(t, failing.calls(), 1)
	assert.Len(t, failing.calls()[0].Predictions, 3)
}

func TestRun_DigestIsAsynchronous(t *testing.T) {
	d := &fakeDigest{wait: make(chan struct{})}
	svc := newService(newMemRepo(), memFiles{"owner-1/jan.csv": exampleCSV()}, localPredictor{}, analysis.Options{Digest: d})

	res := run(t, svc, "jan.csv")
	assert.True(t, res.Success)
	assert.Empty(t, d.calls(), "result returned before digest completes")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Drain(ctx), context.DeadlineExceeded)

	close(d.wait)
	require.NoError(t, svc.Drain(context.Background()))
	require.Len(t, d.calls(), 1)
	assert.Equal(t, "owner-1", d.calls()[0].OwnerID)
	assert.Equal(t, res.AnalysisID, d.calls()[0].Summary.ID)
}

func TestRun_CallerCancellationDoesNotAbortRows(t *testing.T) {
	repo := newMemRepo()
	ctx, cancel := context.WithCancel(context.Background())
	var seen atomic.Int32
	svc := newService(repo, memFiles{"owner-1/jan.csv": exampleCSV()}, localPredictor{}, analysis.Options{
		MaxInFlight: 1,
		OnRow: func(domain.RowOutcome) {
			if seen.Add(1) == 1 {
				cancel()
			}
		},
	})

	res, err := svc.Run(ctx, analysis.Request{OwnerID: "owner-1", FileName: "jan.csv"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ProcessedRows)
	assert.Equal(t, 3, repo.analyses[res.AnalysisID].TotalCustomers)
}

func TestRun_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	p := predictorFunc(func(ctx context.Context, rec domain.NormalizedRecord) domain.Prediction {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return localPredictor{}.Predict(ctx, rec)
	})

	var b strings.Builder
	b.WriteString(header)
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "c%d,Pro,%s,30,active,100,10,0\n", i, day(1))
	}
	repo := newMemRepo()
	svc := newService(repo, memFiles{"owner-1/big.csv": b.String()}, p, analysis.Options{MaxInFlight: 4})

	res := run(t, svc, "big.csv")
	assert.Equal(t, 40, res.ProcessedRows)
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

type predictorFunc func(context.Context, domain.NormalizedRecord) domain.Prediction

func (f predictorFunc) Predict(ctx context.Context, rec domain.NormalizedRecord) domain.Prediction {
	return f(ctx, rec)
}

type fakeLock struct {
	held     *atomic.Bool
	released *atomic.Int32
	err      error
}

func (l fakeLock) Acquire(context.Context) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return l.held.CompareAndSwap(false, true), nil
}

func (l fakeLock) Release(context.Context) error {
	l.held.Store(false)
	l.released.Add(1)
	return nil
}

func TestRun_Lock(t *testing.T) {
	var held atomic.Bool
	var released atomic.Int32
	var keys []string
	svc := newService(newMemRepo(), memFiles{"owner-1/jan.csv": exampleCSV()}, localPredictor{}, analysis.Options{
		NewLock: func(key string) analysis.Locker {
			keys = append(keys, key)
			return fakeLock{held: &held, released: &released}
		},
	})

	run(t, svc, "jan.csv")
	assert.Equal(t, int32(1), released.Load())
	assert.Equal(t, []string{"analysis:owner-1:jan.csv"}, keys)

	held.Store(true)
	_, err := svc.Run(context.Background(), analysis.Request{OwnerID: "owner-1", FileName: "jan.csv"})
	assert.ErrorIs(t, err, analysis.ErrRunInProgress)
	assert.Equal(t, int32(1), released.Load(), "lock not taken is not released")
}

func TestRun_LockBackendError(t *testing.T) {
	var held atomic.Bool
	var released atomic.Int32
	svc := newService(newMemRepo(), memFiles{}, localPredictor{}, analysis.Options{
		NewLock: func(string) analysis.Locker {
			return fakeLock{held: &held, released: &released, err: errors.New("redis down")}
		},
	})
	_, err := svc.Run(context.Background(), analysis.Request{OwnerID: "owner-1", FileName: "jan.csv"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, analysis.ErrRunInProgress)
}

func TestRun_RequestErrors(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, memFiles{}, localPredictor{}, analysis.Options{})
	ctx := context.Background()

	_, err := svc.Run(ctx, analysis.Request{FileName: "jan.csv"})
	assert.ErrorIs(t, err, analysis.ErrMissingOwner)

	_, err = svc.Run(ctx, analysis.Request{OwnerID: "owner-1", FileName: "../owner-2/jan.csv"})
	assert.ErrorIs(t, err, analysis.ErrInvalidFileName)

	_, err = svc.Run(ctx, analysis.Request{OwnerID: "owner-1", FileName: "missing.csv"})
	assert.ErrorIs(t, err, storage.ErrFileNotFound)
	assert.Zero(t, repo.writes)
}

func TestProcess_Reader(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, nil, localPredictor{}, analysis.Options{})
	res, err := svc.Process(context.Background(), analysis.Request{OwnerID: "local", FileName: "jan.csv"}, strings.NewReader(exampleCSV()))
	require.NoError(t, err)
	assert.Equal(t, 3, res.ProcessedRows)
	assert.Equal(t, "Processed all 3 rows", res.Message)
}

func TestFileKey(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
		err  bool
	}{
		{"plain", "jan.csv", "u1/jan.csv", false},
		{"nested", "2025/jan.csv", "u1/2025/jan.csv", false},
		{"trimmed", "  jan.csv ", "u1/jan.csv", false},
		{"empty", "", "", true},
		{"absolute", "/etc/passwd", "", true},
		{"parent", "../u2/jan.csv", "", true},
		{"inner parent", "a/../../b.csv", "", true},
		{"dot", "./jan.csv", "", true},
		{"double slash", "a//b.csv", "", true},
		{"backslash", `..\jan.csv`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := analysis.FileKey("u1", tt.file)
			if tt.err {
				assert.ErrorIs(t, err, analysis.ErrInvalidFileName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
