package translator

import (
	"fmt"
	"strings"

	"github.com/samarth-org/samarth/dataset"
)

// ============================================================================
// PROMPT BUILDERS — Schema-driven prompt generation
// ============================================================================
// Nothing here is hardcoded to a particular harvest of the data: the
// dimensions, metrics, sample districts and year range all come from
// the live schema, so loading a different export changes the prompt
// without a code change.
//
// Total data sent to the AI per query: a few KB of metadata plus the
// question. Never raw rows.
// ============================================================================

// BuildCodePrompt generates the system prompt for analysis program
// generation. previousFailure carries the rendered failure of the prior
// attempt so the model can correct itself; empty on the first attempt.
func BuildCodePrompt(sch dataset.Schema, previousFailure string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf(`You generate analysis programs for "%s", a question answering service over district-level agricultural and climate data.

YOUR ROLE:
Translate the user's question into ONE JSON analysis program that a local engine will execute.
You are a TRANSLATOR ONLY. Do NOT compute any values. The engine does all computation locally.

`, sch.Name))

	b.WriteString("DATA MODEL:\n")
	b.WriteString(fmt.Sprintf("One table named %q with %d rows, one row per (district, year).\n\n", "analytic", sch.Rows))
	b.WriteString(buildDimensionSection(sch))
	b.WriteString(buildMetricSection(sch))
	b.WriteString(buildProgramFormat(sch))
	b.WriteString(buildProgramRules())
	b.WriteString(buildExampleSection(sch))

	if previousFailure != "" {
		b.WriteString(fmt.Sprintf(`PREVIOUS ATTEMPT FAILED:
%s

Fix the program so this failure does not repeat. Check metric and dimension names against the DATA MODEL above.

`, previousFailure))
	}

	b.WriteString("Respond with the JSON program only. No markdown fences, no explanation, no computed values.\n")
	return b.String()
}

func buildDimensionSection(sch dataset.Schema) string {
	var b strings.Builder
	b.WriteString("DIMENSIONS (string fields for filtering and grouping):\n")
	for _, d := range sch.Dimensions {
		b.WriteString(fmt.Sprintf("- %q", d.Key))
		if d.Description != "" {
			b.WriteString(": " + d.Description)
		}
		if len(d.SampleValues) > 0 {
			b.WriteString(fmt.Sprintf(" — values: [%s]", strings.Join(quoted(d.SampleValues), ", ")))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func buildMetricSection(sch dataset.Schema) string {
	var b strings.Builder
	b.WriteString("METRICS (numeric fields for aggregation):\n")
	for _, m := range sch.Metrics {
		b.WriteString(fmt.Sprintf("- %q", m.Key))
		if m.Description != "" {
			b.WriteString(": " + m.Description)
		}
		if m.Unit != "" {
			b.WriteString(fmt.Sprintf(" [unit: %s]", m.Unit))
		}
		b.WriteString(fmt.Sprintf(" — aggregations: [%s]\n", strings.Join(m.Aggregations, ", ")))
	}
	b.WriteString("\nA metric can be MISSING for a (district, year): missing is not zero. The engine skips missing values and reports NO DATA when nothing matches.\n\n")
	return b.String()
}

func buildProgramFormat(sch dataset.Schema) string {
	dims := quoted(sch.DimensionKeys())
	return fmt.Sprintf(`PROGRAM FORMAT (a single JSON object, nothing else):
{
  "table": "analytic",
  "filters": {%s: ["value", ...]},
  "metric": "<one metric key from METRICS>",
  "aggregation": "sum|count|avg|min|max",
  "groupBy": [%s],
  "sortBy": "value_desc|value_asc|label_asc|label_desc",
  "limit": 0
}

`, strings.Join(dims, " | "), strings.Join(dims, " | "))
}

func buildProgramRules() string {
	return `PROGRAM RULES:
1. "filters" selects rows. Keys are dimension names; values are matched case-insensitively. Omit a dimension to include all its values. Year values are strings, e.g. "2010".
2. "metric" must be one key from METRICS, copied exactly. Required unless aggregation is "count".
3. "aggregation": "sum" for totals, "count" for row counts, "avg"/"min"/"max" as named.
4. "groupBy": [] for a single number; one or more dimensions for a breakdown.
5. "sortBy" and "limit" only matter with groupBy. limit 0 means all groups.
6. Never invent table, metric or dimension names not listed above.

`
}

func buildExampleSection(sch dataset.Schema) string {
	var b strings.Builder
	b.WriteString("EXAMPLES:\n")
	b.WriteString(`- "What was the rice production in Pune in 2010?" →
  {"table":"analytic","filters":{"district":["Pune"],"year":["2010"]},"metric":"crop_production_rice","aggregation":"sum"}
- "Which districts got the most rain in 2015?" →
  {"table":"analytic","filters":{"year":["2015"]},"metric":"rainfall_annual_total_mm","aggregation":"sum","groupBy":["district"],"sortBy":"value_desc","limit":10}
- "Average soil moisture in Nagpur across all years?" →
  {"table":"analytic","filters":{"district":["Nagpur"]},"metric":"soil_moisture_annual_mean","aggregation":"avg"}

`)
	return b.String()
}

// ============================================================================
// ANSWER SYNTHESIS PROMPT
// ============================================================================

// BuildAnswerPrompt generates the system prompt for synthesizing the
// final answer from an executed result.
func BuildAnswerPrompt() string {
	return `You answer questions about district-level agricultural and climate data.

You are given the user's question, the analysis program that was executed, and the computed result.

RULES:
1. Answer ONLY from the computed result. Do not add numbers, trends or facts the result does not contain.
2. If the result is "NO DATA", say the data is unavailable for that question. Never substitute a guess or a zero.
3. State the relevant numbers with their units as given.
4. Keep the answer to a few sentences of plain prose.
5. Mention that the figures come from the integrated district dataset (crop production, rainfall, soil moisture records).
`
}

// BuildAnswerUserPrompt assembles the user-side content for answer
// synthesis.
func BuildAnswerUserPrompt(question, program, renderedResult string) string {
	return fmt.Sprintf("QUESTION: %s\n\nEXECUTED PROGRAM:\n%s\n\nCOMPUTED RESULT:\n%s\n\nWrite the answer now.",
		question, program, renderedResult)
}

func quoted(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}
