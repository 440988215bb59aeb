package analysis

import "errors"

// Sentinel errors for the analysis service layer.
var (
	ErrRunInProgress   = errors.New("an analysis of this file is already running")
	ErrInvalidFileName = errors.New("invalid file name")
	ErrMissingOwner    = errors.New("owner id is required")
)

// SummaryError reports that the analysis record could not be created. No
// row can be attributed without it, so the run is aborted.
type SummaryError struct {
	Err error
}

func (e *SummaryError) Error() string {
	return "create analysis record: " + e.Err.Error()
}

func (e *SummaryError) Unwrap() error { return e.Err }
