package datanorm

import (
	"strings"

	"golang.org/x/text/cases"
)

// Canonical column names of the churn input file.
const (
	ColCustomerID        = "customer_id"
	ColPlan              = "plan"
	ColLastLogin         = "last_login"
	ColAvgSession        = "avg_session_duration"
	ColBillingStatus     = "billing_status"
	ColMonthlyRevenue    = "monthly_revenue"
	ColFeatureUsageCount = "feature_usage_count"
	ColSupportTickets    = "support_tickets"
)

// RequiredColumns lists every column a file must carry, in the order they are
// reported when missing.
var RequiredColumns = []string{
	ColCustomerID,
	ColPlan,
	ColLastLogin,
	ColAvgSession,
	ColBillingStatus,
	ColMonthlyRevenue,
	ColFeatureUsageCount,
	ColSupportTickets,
}

// foldHeader canonicalizes a raw header cell: surrounding whitespace and
// quotes are removed and the result is case folded.
func foldHeader(raw string) string {
	h := strings.TrimSpace(raw)
	h = strings.Trim(h, `"'`)
	return cases.Fold().String(strings.TrimSpace(h))
}

// FoldHeaders returns the canonical form of every header cell.
func FoldHeaders(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = foldHeader(h)
	}
	return out
}

// MissingColumns reports which required columns are absent from the folded
// header, in RequiredColumns order. Additional columns are ignored.
func MissingColumns(folded []string) []string {
	present := make(map[string]struct{}, len(folded))
	for _, h := range folded {
		present[h] = struct{}{}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// ValidateHeader checks a raw header line against RequiredColumns.
func ValidateHeader(header []string) error {
	missing := MissingColumns(FoldHeaders(header))
	if len(missing) > 0 {
		return &ValidationError{Missing: missing, err: ErrMissingColumns}
	}
	return nil
}

// toRawRow pairs a record with the folded header. The caller has already
// checked that both have the same length.
func toRawRow(folded, record []string) RawRow {
	row := make(RawRow, len(folded))
	for i, h := range folded {
		row[h] = record[i]
	}
	return row
}
