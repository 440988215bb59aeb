package datanorm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/churn-scorer/internal/domain"
)

var (
	ErrEmptyFile      = errors.New("file is empty: a header and at least one data row are required")
	ErrMissingColumns = errors.New("missing required columns")
)

// ValidationError is returned when a file fails the schema gate. No row of a
// file that fails validation is ever normalized or persisted.
type ValidationError struct {
	Missing []string
	err     error
}

func (e *ValidationError) Error() string {
	base := e.err
	if base == nil {
		base = ErrMissingColumns
	}
	if len(e.Missing) == 0 {
		return base.Error()
	}
	return fmt.Sprintf("%v: %s", base, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error { return e.err }

// RawRow is one CSV line keyed by folded header name.
type RawRow map[string]string

// Row is a data row that passed the shape check. Line is the 1-based data
// row number (the header is not counted).
type Row struct {
	Line   int
	Record domain.NormalizedRecord
}

// ParsedFile is the result of validating and normalizing a whole file.
type ParsedFile struct {
	Header    []string
	Rows      []Row
	Dropped   []domain.RowError
	TotalRows int
}
