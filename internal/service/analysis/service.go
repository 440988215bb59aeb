package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/churn-scorer/internal/datanorm"
	"github.com/ignite/churn-scorer/internal/digest"
	"github.com/ignite/churn-scorer/internal/domain"
	"github.com/ignite/churn-scorer/internal/pkg/distlock"
	"github.com/ignite/churn-scorer/internal/pkg/logger"
)

const (
	// DefaultMaxInFlight caps concurrent row tasks.
	DefaultMaxInFlight = 16
	// DefaultDigestTimeout bounds an asynchronous digest send.
	DefaultDigestTimeout = 10 * time.Second

	releaseTimeout = 5 * time.Second
)

// Request identifies the file to analyze and the caller that owns it.
type Request struct {
	OwnerID    string
	OwnerEmail string
	FileName   string
}

// Result is returned to the caller once every row has been processed.
type Result struct {
	Success       bool              `json:"success"`
	TotalRows     int               `json:"total_rows"`
	ProcessedRows int               `json:"processed_rows"`
	FailedRows    int               `json:"failed_rows"`
	AnalysisID    string            `json:"analysis_id"`
	ErrorDetails  []domain.RowError `json:"error_details"`
	Message       string            `json:"message"`
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	MaxInFlight   int
	Digest        Digester
	DigestTimeout time.Duration
	// NewLock returns the run lock for a key. Nil disables locking.
	NewLock func(key string) Locker
	// LockKey derives the lock key for a run. Defaults to distlock.RunKey.
	LockKey func(ownerID, fileName string) string
	// OnRow is called once per processed row, from the row's goroutine.
	OnRow func(domain.RowOutcome)
	Now   func() time.Time
}

// Service runs churn analyses. All public methods are safe for concurrent
// use if the repository is.
type Service struct {
	repo      Repository
	files     FileSource
	predictor Predictor
	opts      Options

	digests sync.WaitGroup
}

// NewService creates an analysis service.
func NewService(repo Repository, files FileSource, predictor Predictor, opts Options) *Service {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.DigestTimeout <= 0 {
		opts.DigestTimeout = DefaultDigestTimeout
	}
	if opts.LockKey == nil {
		opts.LockKey = distlock.RunKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{repo: repo, files: files, predictor: predictor, opts: opts}
}

// FileKey returns the storage key of an owner's upload. The name must be a
// plain relative path without parent references.
func FileKey(ownerID, fileName string) (string, error) {
	name := strings.TrimSpace(fileName)
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, fileName)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." || part == "." || part == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidFileName, fileName)
		}
	}
	return path.Join(ownerID, name), nil
}

// Run analyzes the stored file named by req. It returns a
// *datanorm.ValidationError when the file fails schema checks, a
// *SummaryError when the analysis record cannot be created, and
// ErrRunInProgress when the same file is already being analyzed. Row
// failures are reported in the Result, not as an error.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, ErrMissingOwner
	}
	key, err := FileKey(req.OwnerID, req.FileName)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, req)
	if err != nil {
		return nil, err
	}
	defer release()

	rc, err := s.files.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer rc.Close()

	return s.process(ctx, req, rc)
}

// Process analyzes CSV content read from r. Run calls it after opening the
// stored file; the offline CLI calls it directly with a local file.
func (s *Service) Process(ctx context.Context, req Request, r io.Reader) (*Result, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, ErrMissingOwner
	}
	return s.process(ctx, req, r)
}

func (s *Service) process(ctx context.Context, req Request, r io.Reader) (*Result, error) {
	start := s.opts.Now()

	parsed, err := datanorm.Parse(r)
	if err != nil {
		return nil, err
	}

	analysisID, err := s.repo.CreateAnalysis(ctx, req.OwnerID, req.FileName, len(parsed.Rows))
	if err != nil {
		return nil, &SummaryError{Err: err}
	}

	// Rows already dispatched must finish and persist even if the caller
	// goes away, so the summary always matches the stored predictions.
	work := context.WithoutCancel(ctx)

	outcomes, inserted := s.processRows(work, analysisID, parsed.Rows)

	summary := Aggregate(inserted)
	summary.ID = analysisID
	summary.OwnerID = req.OwnerID
	summary.FileName = req.FileName
	summary.CreatedAt = start
	if err := s.repo.UpdateAnalysisAggregates(work, analysisID, summary); err != nil {
		logger.Error("failed to update analysis aggregates",
			"analysis_id", analysisID, "error", err)
	}

	res := buildResult(analysisID, parsed, outcomes)

	logger.Info("analysis complete",
		"analysis_id", analysisID,
		"owner_id", req.OwnerID,
		"file", req.FileName,
		"total_rows", res.TotalRows,
		"processed_rows", res.ProcessedRows,
		"failed_rows", res.FailedRows,
		"high_risk", summary.HighRiskCount,
		"duration_ms", s.opts.Now().Sub(start).Milliseconds())

	if len(inserted) > 0 {
		s.dispatchDigest(digest.Input{
			OwnerID:     req.OwnerID,
			OwnerEmail:  req.OwnerEmail,
			Summary:     summary,
			Predictions: inserted,
		})
	}
	return res, nil
}

// Drain blocks until every dispatched digest has finished or ctx is done.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.digests.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatchDigest sends the digest in the background. The result already
// returned to the caller is never affected by its outcome.
func (s *Service) dispatchDigest(in digest.Input) {
	if s.opts.Digest == nil {
		return
	}
	s.digests.Add(1)
	go func() {
		defer s.digests.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("digest panicked", "analysis_id", in.Summary.ID, "panic", fmt.Sprint(r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.DigestTimeout)
		defer cancel()
		if err := s.opts.Digest.Send(ctx, in); err != nil {
			logger.Warn("digest not sent", "analysis_id", in.Summary.ID, "error", err)
		}
	}()
}

func (s *Service) lock(ctx context.Context, req Request) (func(), error) {
	if s.opts.NewLock == nil {
		return func() {}, nil
	}
	l := s.opts.NewLock(s.opts.LockKey(req.OwnerID, req.FileName))
	ok, err := l.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := l.Release(ctx); err != nil {
			logger.Warn("failed to release run lock", "owner_id", req.OwnerID, "file", req.FileName, "error", err)
		}
	}, nil
}

func buildResult(analysisID string, parsed *datanorm.ParsedFile, outcomes []domain.RowOutcome) *Result {
	res := &Result{
		TotalRows:    parsed.TotalRows,
		AnalysisID:   analysisID,
		ErrorDetails: make([]domain.RowError, 0, len(parsed.Dropped)),
	}
	res.ErrorDetails = append(res.ErrorDetails, parsed.Dropped...)
	for _, o := range outcomes {
		if o.Success {
			res.ProcessedRows++
			continue
		}
		res.ErrorDetails = append(res.ErrorDetails, domain.RowError{
			Row:        o.Row,
			CustomerID: o.CustomerID,
			Error:      o.Error,
		})
	}
	sort.SliceStable(res.ErrorDetails, func(i, j int) bool {
		return res.ErrorDetails[i].Row < res.ErrorDetails[j].Row
	})
	res.FailedRows = len(res.ErrorDetails)
	res.Success = res.ProcessedRows > 0

	switch {
	case res.TotalRows == 0:
		res.Message = "file contains no data rows"
	case res.FailedRows == 0:
		res.Message = fmt.Sprintf("Processed all %d rows", res.ProcessedRows)
	case res.Success:
		res.Message = fmt.Sprintf("Processed %d of %d rows; %d failed", res.ProcessedRows, res.TotalRows, res.FailedRows)
	default:
		res.Message = fmt.Sprintf("All %d rows failed", res.FailedRows)
	}
	return res
}

// IsClientError reports whether err was caused by the request rather than
// the service.
func IsClientError(err error) bool {
	var verr *datanorm.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, ErrInvalidFileName) ||
		errors.Is(err, ErrMissingOwner)
}
