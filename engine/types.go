package engine

import (
	"fmt"
	"strings"
)

// ============================================================================
// ENGINE TYPES — Analysis programs and execution results
// ============================================================================
// The model generates an analysis program: one JSON object describing a
// filter → group → aggregate computation over the single bound table.
// The engine validates it against the dataset schema and executes it
// locally. Nothing in a program can name a capability — there is no
// file, network, or process surface to reach.
// ============================================================================

// BoundTableName is the one name a program may reference as its table.
const BoundTableName = "analytic"

// Program is the parsed form of a generated analysis program.
type Program struct {
	Table       string              `json:"table"`
	Filters     map[string][]string `json:"filters,omitempty"`
	Metric      string              `json:"metric,omitempty"`
	Aggregation string              `json:"aggregation"`
	GroupBy     []string            `json:"groupBy,omitempty"`
	SortBy      string              `json:"sortBy,omitempty"`
	Limit       int                 `json:"limit,omitempty"`
}

// ============================================================================
// EXECUTION RESULT — tagged success/failure union
// ============================================================================

// FailureKind classifies sandbox failures.
type FailureKind string

const (
	// FailureExecution covers rejection by validation, panics inside the
	// sandbox, and programs that produce no usable value.
	FailureExecution FailureKind = "execution_error"
	// FailureResource covers wall-clock and memory-budget violations.
	FailureResource FailureKind = "resource_exceeded"
)

// ExecutionResult is either a value or a typed failure. Failures carry
// the original error text for the trace; they are never re-raised.
type ExecutionResult struct {
	OK      bool        `json:"ok"`
	Value   *Value      `json:"value,omitempty"`
	Kind    FailureKind `json:"failureKind,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Success wraps a value.
func Success(v Value) ExecutionResult {
	return ExecutionResult{OK: true, Value: &v}
}

// Failure builds a typed failure.
func Failure(kind FailureKind, format string, args ...any) ExecutionResult {
	return ExecutionResult{OK: false, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Failed reports whether the result is a failure.
func (r ExecutionResult) Failed() bool { return !r.OK }

// Render produces the text form shown to the model during answer
// synthesis, and to humans in the trace.
func (r ExecutionResult) Render() string {
	if r.Failed() {
		return fmt.Sprintf("%s: %s", r.Kind, r.Message)
	}
	return r.Value.Render()
}

// ============================================================================
// VALUE — scalar, small table snippet, or explicitly empty
// ============================================================================

// ValueKind tags the shape of a successful result.
type ValueKind string

const (
	ValueScalar ValueKind = "scalar"
	ValueTable  ValueKind = "table"
	// ValueEmpty means no matching data existed. Distinct from a scalar
	// zero: zero is an observation, empty is the absence of one.
	ValueEmpty ValueKind = "empty"
)

// Value is the single value a program execution produces.
type Value struct {
	Kind   ValueKind  `json:"kind"`
	Scalar float64    `json:"scalar,omitempty"`
	Unit   string     `json:"unit,omitempty"`
	Rows   []ValueRow `json:"rows,omitempty"`
}

// ValueRow is one row of a tabular result snippet.
type ValueRow struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// ScalarValue builds a scalar result.
func ScalarValue(v float64, unit string) Value {
	return Value{Kind: ValueScalar, Scalar: v, Unit: unit}
}

// TableValue builds a tabular result snippet.
func TableValue(rows []ValueRow, unit string) Value {
	return Value{Kind: ValueTable, Rows: rows, Unit: unit}
}

// EmptyValue marks "no matching data" — never rendered as zero.
func EmptyValue() Value {
	return Value{Kind: ValueEmpty}
}

// IsEmpty reports whether the value carries no data.
func (v Value) IsEmpty() bool { return v.Kind == ValueEmpty }

// Render formats the value as plain text.
func (v Value) Render() string {
	switch v.Kind {
	case ValueEmpty:
		return "NO DATA (no matching records)"
	case ValueScalar:
		if v.Unit != "" {
			return fmt.Sprintf("%s %s", formatNumber(v.Scalar), v.Unit)
		}
		return formatNumber(v.Scalar)
	case ValueTable:
		var b strings.Builder
		for i, row := range v.Rows {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s: %s", row.Label, formatNumber(row.Value))
			if v.Unit != "" {
				b.WriteString(" " + v.Unit)
			}
		}
		return b.String()
	}
	return ""
}

// formatNumber prints whole numbers without decimals, fractional values
// with two.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
