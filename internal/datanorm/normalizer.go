// Package datanorm validates stored churn input files and normalizes their
// rows into typed records.
package datanorm

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/churn-scorer/internal/domain"
	"github.com/ignite/churn-scorer/internal/pkg/logger"
)

// maxLineBytes bounds a single input line.
const maxLineBytes = 1 << 20

// Parse reads a whole CSV file, validates its header, and normalizes every
// data row. Input is split on newlines first and each line is decoded on its
// own, so a bad quote can only break the line it is on. Blank lines are
// skipped. Schema failures are returned as *ValidationError before any row
// is normalized. Rows that cannot be decoded or whose column count differs
// from the header are dropped and reported in ParsedFile.Dropped.
func Parse(r io.Reader) (*ParsedFile, error) {
	lines, err := splitLines(stripBOM(r))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(lines) == 0 {
		return nil, &ValidationError{err: ErrEmptyFile}
	}

	header, err := decodeLine(lines[0])
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := ValidateHeader(header); err != nil {
		return nil, err
	}
	if len(lines) < 2 {
		return nil, &ValidationError{err: ErrEmptyFile}
	}

	folded := FoldHeaders(header)
	out := &ParsedFile{
		Header:    folded,
		Rows:      make([]Row, 0, len(lines)-1),
		TotalRows: len(lines) - 1,
	}

	for i, line := range lines[1:] {
		rowNum := i + 1
		fields, err := decodeLine(line)
		if err != nil {
			logger.Warn("dropping unreadable row", "row", rowNum, "error", err)
			out.Dropped = append(out.Dropped, domain.RowError{
				Row:        rowNum,
				CustomerID: customerIDAt(folded, strings.Split(line, ",")),
				Error:      "malformed row: " + err.Error(),
			})
			continue
		}
		if len(fields) != len(folded) {
			msg := fmt.Sprintf("malformed row: expected %d columns, got %d", len(folded), len(fields))
			logger.Warn("dropping malformed row", "row", rowNum, "columns", len(fields), "expected", len(folded))
			out.Dropped = append(out.Dropped, domain.RowError{
				Row:        rowNum,
				CustomerID: customerIDAt(folded, fields),
				Error:      msg,
			})
			continue
		}
		out.Rows = append(out.Rows, Row{
			Line:   rowNum,
			Record: NormalizeRow(toRawRow(folded, fields)),
		})
	}
	return out, nil
}

// splitLines returns the non-blank lines of r with line endings removed.
func splitLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// decodeLine parses one line as a single CSV record.
func decodeLine(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	fields, err := reader.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, perr.Err
		}
		return nil, err
	}
	return fields, nil
}

// NormalizeRow converts a raw row into a NormalizedRecord. It never fails:
// unparsable values take their zero default. An empty CustomerID is left for
// the caller to reject.
func NormalizeRow(raw RawRow) domain.NormalizedRecord {
	return domain.NormalizedRecord{
		CustomerID:        strings.TrimSpace(raw[ColCustomerID]),
		Plan:              normalizePlan(raw[ColPlan]),
		MonthlyRevenue:    parseCurrency(raw[ColMonthlyRevenue]),
		FeatureUsageCount: parseCount(raw[ColFeatureUsageCount]),
		SupportTickets:    parseCount(raw[ColSupportTickets]),
		AvgSessionMinutes: parseFloat(raw[ColAvgSession]),
		BillingStatus:     strings.TrimSpace(raw[ColBillingStatus]),
		LastLoginDate:     strings.TrimSpace(raw[ColLastLogin]),
	}
}

// customerIDAt best-effort extracts the customer id from a malformed row so
// its error detail can name the customer.
func customerIDAt(folded, fields []string) string {
	for i, h := range folded {
		if h == ColCustomerID && i < len(fields) {
			return strings.Trim(strings.TrimSpace(fields[i]), `"`)
		}
	}
	return ""
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
