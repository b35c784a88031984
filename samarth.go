// Package samarth answers natural-language questions about a merged
// agricultural/climate dataset.
//
// The pipeline has two halves:
//
//	dataset:      crop + rainfall + soil-moisture sources → one frozen
//	              annual, district-keyed analytic table (built at startup)
//	orchestrator: question → model-generated analysis program →
//	              sandboxed execution → model-synthesized answer,
//	              packaged as a traceable AnswerRecord
//
// The engine executes model-generated programs locally against a
// read-only view of the analytic table. The translator package is the
// only code that calls an external AI service, and model output is
// never executed without passing through the engine's validation.
package samarth
