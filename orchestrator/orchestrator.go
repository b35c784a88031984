package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samarth-org/samarth/dataset"
	"github.com/samarth-org/samarth/engine"
	"github.com/samarth-org/samarth/trace"
	"github.com/samarth-org/samarth/translator"
)

// ============================================================================
// ORCHESTRATOR — Generate → execute → retry → synthesize state machine
// ============================================================================
// One Ask() drives a question through an explicit state machine:
//
//   generate ──→ execute ──ok──→ synthesize ──→ done
//      ↑            │
//      └──failure───┘   (bounded retries; the failure text is fed back
//                        into the next generation prompt)
//
// When the retry budget is exhausted the question fails visibly: the
// caller gets a record with a user-facing message and the raw failure
// attached. The orchestrator never silently degrades to an answer the
// engine did not compute.
// ============================================================================

// DefaultMaxRetries is how many regeneration attempts follow a failed
// execution.
const DefaultMaxRetries = 2

// Executor runs generated programs. Satisfied by engine.Executor.
type Executor interface {
	Execute(ctx context.Context, code string) engine.ExecutionResult
}

// Config wires an Orchestrator.
type Config struct {
	Logger     *slog.Logger
	Client     translator.Client
	Executor   Executor
	Schema     dataset.Schema
	MaxRetries int
}

// Orchestrator answers questions over one dataset schema.
type Orchestrator struct {
	log        *slog.Logger
	client     translator.Client
	executor   Executor
	schema     dataset.Schema
	maxRetries int
}

// New builds an orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	return &Orchestrator{
		log:        logger,
		client:     cfg.Client,
		executor:   cfg.Executor,
		schema:     cfg.Schema,
		maxRetries: retries,
	}
}

type phase int

const (
	phaseGenerate phase = iota
	phaseExecute
	phaseSynthesize
	phaseDone
	phaseFailed
)

// Ask answers one natural language question. The returned record is
// never nil: failed questions carry a user-facing message plus the raw
// failure. The error is non-nil only when the AI service itself was
// unreachable.
func (o *Orchestrator) Ask(ctx context.Context, question string) (*trace.AnswerRecord, error) {
	record := trace.NewAnswerRecord(question)

	var (
		state       = phaseGenerate
		lastFailure string
		code        string
		clientErr   error
	)

	for state != phaseDone && state != phaseFailed {
		switch state {
		case phaseGenerate:
			if record.Attempts > o.maxRetries {
				state = phaseFailed
				continue
			}
			record.Attempts++
			o.log.Debug("generating program", "question", question, "attempt", record.Attempts)

			raw, err := o.client.Complete(ctx, translator.BuildCodePrompt(o.schema, lastFailure), question)
			if err != nil {
				clientErr = fmt.Errorf("code generation: %w", err)
				state = phaseFailed
				continue
			}
			extracted, err := translator.ExtractProgram(raw)
			if err != nil {
				lastFailure = err.Error()
				// Keep a typed failure on the record so diagnostics
				// survive even when no attempt reaches the executor.
				record.Result = engine.Failure(engine.FailureExecution, "%s", err.Error())
				o.log.Warn("program extraction failed", "attempt", record.Attempts, "error", err)
				state = phaseGenerate
				continue
			}
			code = extracted
			record.GeneratedCode = code
			state = phaseExecute

		case phaseExecute:
			result := o.executor.Execute(ctx, code)
			record.Result = result
			if result.Failed() {
				lastFailure = result.Render()
				o.log.Warn("program execution failed",
					"attempt", record.Attempts,
					"kind", result.Kind,
					"message", result.Message)
				state = phaseGenerate
				continue
			}
			state = phaseSynthesize

		case phaseSynthesize:
			answer, err := o.client.Complete(ctx,
				translator.BuildAnswerPrompt(),
				translator.BuildAnswerUserPrompt(question, code, record.Result.Render()))
			if err != nil {
				clientErr = fmt.Errorf("answer synthesis: %w", err)
				state = phaseFailed
				continue
			}
			// An empty completion is a synthesis failure, not an answer.
			if strings.TrimSpace(answer) == "" {
				clientErr = fmt.Errorf("answer synthesis: model returned empty text")
				state = phaseFailed
				continue
			}
			record.FinalAnswer = answer
			state = phaseDone
		}
	}

	if state == phaseFailed {
		record.State = trace.StateFailed
		record.FinalAnswer = o.failureMessage(question, clientErr)
		o.log.Error("question failed",
			"question", question,
			"attempts", record.Attempts,
			"lastFailure", lastFailure,
			"clientError", clientErr)
		return record, clientErr
	}

	record.State = trace.StateAnswered
	o.log.Info("question answered", "question", question, "attempts", record.Attempts)
	return record, nil
}

// failureMessage is what the user sees on terminal failure. Internal
// error text never appears here; the raw failure stays on the record.
func (o *Orchestrator) failureMessage(question string, clientErr error) string {
	if clientErr != nil {
		return fmt.Sprintf("I could not complete the answer to %q because the analysis service failed. Please try again.", question)
	}
	return fmt.Sprintf("I could not compute a reliable answer to %q after %d attempts. The question may need data or metrics this dataset does not have.",
		question, 1+o.maxRetries)
}
