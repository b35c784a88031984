package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samarth-org/samarth/dataset"
)

func testSchema() dataset.Schema {
	return dataset.Schema{
		Name: "samarth",
		Dimensions: []dataset.DimensionMeta{
			{Key: "district"},
			{Key: "year"},
		},
		Metrics: []dataset.MetricMeta{
			{Key: "crop_production_rice", Unit: "1000 tons"},
			{Key: dataset.MetricRainfallAnnualTotal, Unit: "mm"},
		},
	}
}

func TestValidateProgramAccepts(t *testing.T) {
	raw := `{
		"table": "analytic",
		"filters": {"district": ["Pune"], "year": ["2010"]},
		"metric": "crop_production_rice",
		"aggregation": "sum"
	}`
	p, err := ValidateProgram(raw, testSchema())
	require.NoError(t, err)
	assert.Equal(t, "crop_production_rice", p.Metric)
	assert.Equal(t, []string{"Pune"}, p.Filters["district"])
}

func TestValidateProgramDefaultsAggregationToSum(t *testing.T) {
	p, err := ValidateProgram(`{"table":"analytic","metric":"crop_production_rice","aggregation":""}`, testSchema())
	require.NoError(t, err)
	assert.Equal(t, "sum", p.Aggregation)
}

func TestValidateProgramCountNeedsNoMetric(t *testing.T) {
	p, err := ValidateProgram(`{"table":"analytic","aggregation":"count"}`, testSchema())
	require.NoError(t, err)
	assert.Equal(t, "count", p.Aggregation)
}

func TestValidateProgramRejectsForbiddenTokens(t *testing.T) {
	cases := []string{
		`import os; os.system("rm -rf /")`,
		`{"table": "analytic", "metric": "__import__"}`,
		`open("/etc/passwd")`,
		`subprocess.run(["ls"])`,
		`eval("1+1")`,
		`requests.get("http://example.com")`,
	}
	for _, raw := range cases {
		_, err := ValidateProgram(raw, testSchema())
		assert.Errorf(t, err, "should reject %q", raw)
	}
}

func TestValidateProgramRejectsStructure(t *testing.T) {
	cases := map[string]string{
		"unknown field":     `{"table":"analytic","metric":"crop_production_rice","aggregation":"sum","shell":"sh"}`,
		"trailing object":   `{"table":"analytic","aggregation":"count"} {"table":"analytic","aggregation":"count"}`,
		"wrong table":       `{"table":"secrets","aggregation":"count"}`,
		"unknown metric":    `{"table":"analytic","metric":"gdp","aggregation":"sum"}`,
		"missing metric":    `{"table":"analytic","aggregation":"avg"}`,
		"unknown dimension": `{"table":"analytic","aggregation":"count","filters":{"state":["MH"]}}`,
		"unknown groupBy":   `{"table":"analytic","metric":"crop_production_rice","aggregation":"sum","groupBy":["crop"]}`,
		"unknown sort":      `{"table":"analytic","metric":"crop_production_rice","aggregation":"sum","sortBy":"random"}`,
		"negative limit":    `{"table":"analytic","metric":"crop_production_rice","aggregation":"sum","limit":-1}`,
		"not json":          `please compute the total`,
	}
	for name, raw := range cases {
		_, err := ValidateProgram(raw, testSchema())
		assert.Errorf(t, err, "case %s", name)
	}
}
