package prediction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Candidate field names of the remote contract, in priority order. The model
// service has shipped several response shapes; the first key that holds a
// usable value wins.
var (
	ProbabilityKeys = []string{"churn_probability", "prediction", "score"}
	FactorKeys      = []string{"contributing_factors", "contributingFactors", "factors", "reasons"}
	ActionKeys      = []string{"recommended_actions", "recommendedActions", "actions", "recommendations"}
)

// ErrNotObject is returned when the response body is valid JSON but not an
// object.
var ErrNotObject = errors.New("prediction response is not a JSON object")

// Mapped is a remote response reshaped into canonical fields. Probability is
// 0 when no candidate key carried a number.
type Mapped struct {
	Probability float64
	Factors     []string
	Actions     []string
}

// MapResponse decodes a remote prediction body using the candidate key lists.
func MapResponse(body []byte) (Mapped, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Mapped{}, ErrNotObject
		}
		return Mapped{}, fmt.Errorf("decode prediction response: %w", err)
	}
	if fields == nil {
		return Mapped{}, ErrNotObject
	}

	var m Mapped
	for _, key := range ProbabilityKeys {
		if p, ok := numberField(fields[key]); ok {
			m.Probability = p
			break
		}
	}
	m.Factors = firstStringList(fields, FactorKeys)
	m.Actions = firstStringList(fields, ActionKeys)
	return m, nil
}

// numberField accepts a JSON number or a numeric string.
func numberField(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// firstStringList returns the first non-empty list found under keys. A bare
// string is wrapped into a one element list.
func firstStringList(fields map[string]json.RawMessage, keys []string) []string {
	for _, key := range keys {
		if list := stringList(fields[key]); len(list) > 0 {
			return list
		}
	}
	return nil
}

func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		out := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}
		}
	}
	return nil
}
