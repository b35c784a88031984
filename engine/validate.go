package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/samarth-org/samarth/dataset"
)

// ============================================================================
// VALIDATION — Static checks before anything executes
// ============================================================================
// Two layers:
//   1. A forbidden-token scan over the raw generated text. Programs are
//      declarative JSON with no capability surface, but the model may
//      emit imperative code anyway; anything that smells like imports,
//      process control, file or network access is rejected outright.
//   2. Strict structural validation: exactly one JSON object, no
//      unknown fields, table name fixed, metric and dimension names
//      checked against the live schema, aggregation from the closed
//      set.
// Rejection is an execution_error, not a crash.
// ============================================================================

var forbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bimport\b`),
	regexp.MustCompile(`__[a-z]+__`),
	regexp.MustCompile(`(?i)\b(os|sys|subprocess|socket|shutil)\s*\.`),
	regexp.MustCompile(`(?i)\b(exec|eval|open|compile|input)\s*\(`),
	regexp.MustCompile(`(?i)\b(requests|urllib|http\.client)\b`),
}

var allowedAggregations = map[string]bool{
	"sum":   true,
	"count": true,
	"avg":   true,
	"min":   true,
	"max":   true,
}

var allowedSorts = map[string]bool{
	"":           true,
	"value_desc": true,
	"value_asc":  true,
	"label_asc":  true,
	"label_desc": true,
}

// ValidateProgram scans and parses raw generated text into a Program
// checked against the schema. The returned error text is fed back to
// the model on retry, so messages name the exact violation.
func ValidateProgram(raw string, schema dataset.Schema) (*Program, error) {
	for _, pat := range forbiddenPatterns {
		if loc := pat.FindString(raw); loc != "" {
			return nil, fmt.Errorf("forbidden token %q: programs must be a single JSON analysis object", loc)
		}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	var p Program
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("invalid program JSON: %w", err)
	}
	// Trailing content after the object means the output was not a
	// single program.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("expected exactly one JSON object")
	}

	if p.Table != BoundTableName {
		return nil, fmt.Errorf("unknown table %q: only %q is available", p.Table, BoundTableName)
	}

	if p.Aggregation == "" {
		p.Aggregation = "sum"
	}
	p.Aggregation = strings.ToLower(p.Aggregation)
	if !allowedAggregations[p.Aggregation] {
		return nil, fmt.Errorf("unknown aggregation %q: use sum, count, avg, min or max", p.Aggregation)
	}

	if p.Aggregation != "count" {
		if p.Metric == "" {
			return nil, fmt.Errorf("aggregation %q requires a metric", p.Aggregation)
		}
		if !schema.HasMetric(p.Metric) {
			return nil, fmt.Errorf("unknown metric %q: choose one of %s", p.Metric, strings.Join(schema.MetricKeys(), ", "))
		}
	}

	for dim := range p.Filters {
		if !schema.HasDimension(dim) {
			return nil, fmt.Errorf("unknown filter dimension %q: choose one of %s", dim, strings.Join(schema.DimensionKeys(), ", "))
		}
	}
	for _, dim := range p.GroupBy {
		if !schema.HasDimension(dim) {
			return nil, fmt.Errorf("unknown groupBy dimension %q: choose one of %s", dim, strings.Join(schema.DimensionKeys(), ", "))
		}
	}

	if !allowedSorts[p.SortBy] {
		return nil, fmt.Errorf("unknown sortBy %q: use value_desc, value_asc, label_asc or label_desc", p.SortBy)
	}
	if p.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative")
	}

	return &p, nil
}
