package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractProgramBareObject(t *testing.T) {
	raw := `{"table":"analytic","aggregation":"count"}`
	got, err := ExtractProgram(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestExtractProgramFenced(t *testing.T) {
	raw := "```json\n{\"table\":\"analytic\",\"aggregation\":\"count\"}\n```"
	got, err := ExtractProgram(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"table":"analytic","aggregation":"count"}`, got)
}

func TestExtractProgramSurroundedByProse(t *testing.T) {
	raw := "Here is the program:\n{\"table\":\"analytic\",\"metric\":\"crop_production_rice\",\"aggregation\":\"sum\"}\nLet me know if you need anything else."
	got, err := ExtractProgram(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"table":"analytic","metric":"crop_production_rice","aggregation":"sum"}`, got)
}

func TestExtractProgramBracesInsideStrings(t *testing.T) {
	raw := `{"table":"analytic","filters":{"district":["A {odd} name"]},"aggregation":"count"}`
	got, err := ExtractProgram(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestExtractProgramNoObject(t *testing.T) {
	_, err := ExtractProgram("I cannot answer that question.")
	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
}

func TestExtractProgramUnbalanced(t *testing.T) {
	_, err := ExtractProgram(`{"table":"analytic"`)
	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
}
