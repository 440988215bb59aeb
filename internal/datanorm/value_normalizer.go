package datanorm

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ignite/churn-scorer/internal/domain"
)

// Numeric fields are parsed permissively: anything that does not start with
// a number yields 0 instead of an error. A missing telemetry value means "no
// signal", and the scorers rely on every field being defined.

var (
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
)

// stripNumeric removes currency symbols, thousands separators and whitespace.
func stripNumeric(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', '¥', ',', ' ', '\t', '\u00a0':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
}

// parseFloat parses the leading numeric prefix of raw. Negative, NaN and
// unparsable values become 0.
func parseFloat(raw string) float64 {
	m := leadingFloat.FindString(stripNumeric(raw))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// parseCount parses the leading integer prefix of raw ("4.0" is 4).
// Negative and unparsable values become 0.
func parseCount(raw string) int {
	m := leadingInt.FindString(stripNumeric(raw))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseCurrency parses amounts such as "$1,299.00".
func parseCurrency(raw string) float64 {
	return parseFloat(raw)
}

// normalizePlan maps a free-text plan name onto the canonical tiers by
// keyword. Unknown plans are Free.
func normalizePlan(raw string) domain.Plan {
	p := cases.Fold().String(strings.TrimSpace(raw))
	switch {
	case strings.Contains(p, "pro"), strings.Contains(p, "premium"):
		return domain.PlanPro
	case strings.Contains(p, "enterprise"), strings.Contains(p, "business"):
		return domain.PlanEnterprise
	default:
		return domain.PlanFree
	}
}
