package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samarth-org/samarth/dataset"
	"github.com/samarth-org/samarth/engine"
	"github.com/samarth-org/samarth/trace"
)

// ============================================================================
// ORCHESTRATOR TESTS — stub client + stub executor
// ============================================================================

// stubClient replays scripted code generations and records the prompts
// it was given. Synthesis calls are recognized by their system prompt.
type stubClient struct {
	codeResponses []string
	codePrompts   []string
	answer        string
	err           error
	calls         int
}

func (c *stubClient) Complete(_ context.Context, systemPrompt, _ string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	if strings.Contains(systemPrompt, "TRANSLATOR") {
		c.codePrompts = append(c.codePrompts, systemPrompt)
		resp := c.codeResponses[c.calls]
		c.calls++
		return resp, nil
	}
	return c.answer, nil
}

// stubExecutor replays scripted execution results.
type stubExecutor struct {
	results []engine.ExecutionResult
	codes   []string
	calls   int
}

func (e *stubExecutor) Execute(_ context.Context, code string) engine.ExecutionResult {
	e.codes = append(e.codes, code)
	r := e.results[e.calls]
	e.calls++
	return r
}

func testOrchestrator(client *stubClient, exec *stubExecutor) *Orchestrator {
	return New(Config{
		Client:   client,
		Executor: exec,
		Schema: dataset.Schema{
			Name:       "samarth",
			Dimensions: []dataset.DimensionMeta{{Key: "district"}, {Key: "year"}},
			Metrics:    []dataset.MetricMeta{{Key: "crop_production_rice", Aggregations: []string{"sum"}}},
		},
	})
}

const goodProgram = `{"table":"analytic","filters":{"district":["Pune"]},"metric":"crop_production_rice","aggregation":"sum"}`

func TestAskAnswersFirstAttempt(t *testing.T) {
	client := &stubClient{
		codeResponses: []string{goodProgram},
		answer:        "Pune produced 21345.87 thousand tons of rice in 2010.",
	}
	exec := &stubExecutor{
		results: []engine.ExecutionResult{engine.Success(engine.ScalarValue(21345.87, "1000 tons"))},
	}

	record, err := testOrchestrator(client, exec).Ask(context.Background(), "rice production in Pune in 2010?")
	require.NoError(t, err)

	assert.Equal(t, trace.StateAnswered, record.State)
	assert.Equal(t, 1, record.Attempts)
	assert.Equal(t, goodProgram, record.GeneratedCode)
	assert.Contains(t, record.FinalAnswer, "21345.87")
	assert.NotEmpty(t, record.ID)
}

func TestAskRetriesWithFailureContext(t *testing.T) {
	badProgram := `{"table":"analytic","metric":"gdp","aggregation":"sum"}`
	client := &stubClient{
		codeResponses: []string{badProgram, goodProgram},
		answer:        "The total is 21345.87.",
	}
	exec := &stubExecutor{
		results: []engine.ExecutionResult{
			engine.Failure(engine.FailureExecution, `unknown metric "gdp"`),
			engine.Success(engine.ScalarValue(21345.87, "1000 tons")),
		},
	}

	record, err := testOrchestrator(client, exec).Ask(context.Background(), "rice production?")
	require.NoError(t, err)

	assert.Equal(t, trace.StateAnswered, record.State)
	assert.Equal(t, 2, record.Attempts)
	// The successful program is what the trace records.
	assert.Equal(t, goodProgram, record.GeneratedCode)

	// The second generation prompt carries the first failure.
	require.Len(t, client.codePrompts, 2)
	assert.NotContains(t, client.codePrompts[0], "PREVIOUS ATTEMPT FAILED")
	assert.Contains(t, client.codePrompts[1], "PREVIOUS ATTEMPT FAILED")
	assert.Contains(t, client.codePrompts[1], `unknown metric "gdp"`)
}

func TestAskFailsAfterRetryBudget(t *testing.T) {
	client := &stubClient{
		codeResponses: []string{goodProgram, goodProgram, goodProgram},
	}
	exec := &stubExecutor{
		results: []engine.ExecutionResult{
			engine.Failure(engine.FailureResource, "group budget exceeded"),
			engine.Failure(engine.FailureResource, "group budget exceeded"),
			engine.Failure(engine.FailureResource, "group budget exceeded"),
		},
	}

	question := "rainfall by village by day?"
	record, err := testOrchestrator(client, exec).Ask(context.Background(), question)
	require.NoError(t, err)

	assert.Equal(t, trace.StateFailed, record.State)
	assert.Equal(t, 3, record.Attempts)
	assert.Equal(t, 3, exec.calls)
	assert.Contains(t, record.FinalAnswer, question)
	// Raw failure stays attached for the trace.
	assert.Equal(t, engine.FailureResource, record.Result.Kind)
	assert.Contains(t, record.Result.Message, "group budget exceeded")
}

func TestAskFailureTextStaysOffTheAnswer(t *testing.T) {
	internal := `forbidden token "eval(": programs must be a single JSON analysis object`
	client := &stubClient{
		codeResponses: []string{goodProgram, goodProgram, goodProgram},
	}
	exec := &stubExecutor{
		results: []engine.ExecutionResult{
			engine.Failure(engine.FailureExecution, "%s", internal),
			engine.Failure(engine.FailureExecution, "%s", internal),
			engine.Failure(engine.FailureExecution, "%s", internal),
		},
	}

	record, err := testOrchestrator(client, exec).Ask(context.Background(), "q?")
	require.NoError(t, err)

	assert.Equal(t, trace.StateFailed, record.State)
	// The user-facing answer never carries internal error text; the raw
	// failure lives on the record for diagnostics.
	assert.NotContains(t, record.FinalAnswer, "forbidden token")
	assert.NotContains(t, record.FinalAnswer, "eval(")
	assert.Contains(t, record.FinalAnswer, "q?")
	assert.Contains(t, record.Result.Message, "forbidden token")
}

func TestAskEmptySynthesisFails(t *testing.T) {
	client := &stubClient{
		codeResponses: []string{goodProgram},
		answer:        "   \n",
	}
	exec := &stubExecutor{
		results: []engine.ExecutionResult{engine.Success(engine.ScalarValue(21345.87, "1000 tons"))},
	}

	record, err := testOrchestrator(client, exec).Ask(context.Background(), "q?")
	require.Error(t, err)

	assert.Equal(t, trace.StateFailed, record.State)
	assert.NotEmpty(t, record.FinalAnswer)
	assert.NotEqual(t, "   \n", record.FinalAnswer)
}

func TestAskAllExtractionFailuresAttachTypedFailure(t *testing.T) {
	client := &stubClient{
		codeResponses: []string{"no program here", "still no program", "nope"},
	}
	exec := &stubExecutor{}

	record, err := testOrchestrator(client, exec).Ask(context.Background(), "q?")
	require.NoError(t, err)

	assert.Equal(t, trace.StateFailed, record.State)
	assert.Equal(t, 0, exec.calls)
	// The record carries a typed failure even though the executor was
	// never reached.
	require.True(t, record.Result.Failed())
	assert.Equal(t, engine.FailureExecution, record.Result.Kind)
	assert.Contains(t, record.Result.Message, "no JSON program found")
}

func TestAskUnparsableOutputConsumesAttempt(t *testing.T) {
	client := &stubClient{
		codeResponses: []string{"I cannot help with that.", goodProgram},
		answer:        "Answer.",
	}
	exec := &stubExecutor{
		results: []engine.ExecutionResult{engine.Success(engine.ScalarValue(1, ""))},
	}

	record, err := testOrchestrator(client, exec).Ask(context.Background(), "q?")
	require.NoError(t, err)

	assert.Equal(t, trace.StateAnswered, record.State)
	assert.Equal(t, 2, record.Attempts)
	assert.Equal(t, 1, exec.calls)
}

func TestAskClientErrorIsTerminal(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	exec := &stubExecutor{}

	record, err := testOrchestrator(client, exec).Ask(context.Background(), "q?")
	require.Error(t, err)

	assert.Equal(t, trace.StateFailed, record.State)
	assert.Contains(t, record.FinalAnswer, "try again")
}
