package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samarth-org/samarth/dataset"
)

// ============================================================================
// EXECUTOR TESTS
// ============================================================================

func rec(source dataset.SourceKind, fields map[string]string) dataset.RawRecord {
	return dataset.RawRecord{Source: source, Fields: fields}
}

// buildTestTable integrates a small fixture: Pune and Nagpur with full
// coverage, Solapur with rainfall only.
func buildTestTable(t *testing.T) (*dataset.AnalyticTable, dataset.Schema) {
	t.Helper()

	crop := []dataset.RawRecord{
		rec(dataset.SourceCrop, map[string]string{
			dataset.FieldDistrict: "Pune", dataset.FieldYear: "2010",
			dataset.FieldCrop: "Rice", dataset.FieldProduction: "21345.87",
		}),
		rec(dataset.SourceCrop, map[string]string{
			dataset.FieldDistrict: "Pune", dataset.FieldYear: "2011",
			dataset.FieldCrop: "Rice", dataset.FieldProduction: "19980.00",
		}),
		rec(dataset.SourceCrop, map[string]string{
			dataset.FieldDistrict: "Nagpur", dataset.FieldYear: "2010",
			dataset.FieldCrop: "Rice", dataset.FieldProduction: "5400.50",
		}),
	}
	rain := []dataset.RawRecord{
		rec(dataset.SourceRainfall, map[string]string{
			dataset.FieldDistrict: "Pune", dataset.FieldDate: "2010-06-01", dataset.FieldValue: "12.5",
		}),
		rec(dataset.SourceRainfall, map[string]string{
			dataset.FieldDistrict: "Pune", dataset.FieldDate: "2010-06-02", dataset.FieldValue: "7.5",
		}),
		rec(dataset.SourceRainfall, map[string]string{
			dataset.FieldDistrict: "Solapur", dataset.FieldDate: "2010-08-15", dataset.FieldValue: "9.0",
		}),
	}
	soil := []dataset.RawRecord{
		rec(dataset.SourceSoil, map[string]string{
			dataset.FieldDistrict: "Pune", dataset.FieldDate: "2010-06-01", dataset.FieldValue: "0.40",
		}),
	}

	table, _, err := dataset.Integrate(crop, rain, soil)
	require.NoError(t, err)
	return table, dataset.Describe(table)
}

func newTestExecutor(t *testing.T, limits Limits) *Executor {
	t.Helper()
	table, schema := buildTestTable(t)
	ex := NewExecutor(Config{Table: table, Schema: schema, Limits: limits})
	t.Cleanup(ex.Close)
	return ex
}

func TestExecuteScalar(t *testing.T) {
	ex := newTestExecutor(t, Limits{})

	result := ex.Execute(context.Background(), `{
		"table": "analytic",
		"filters": {"district": ["Pune"], "year": ["2010"]},
		"metric": "crop_production_rice",
		"aggregation": "sum"
	}`)

	require.True(t, result.OK, result.Message)
	require.Equal(t, ValueScalar, result.Value.Kind)
	assert.InDelta(t, 21345.87, result.Value.Scalar, 1e-9)
	assert.Equal(t, "1000 tons", result.Value.Unit)
	assert.Equal(t, "21345.87 1000 tons", result.Render())
}

func TestExecuteCaseInsensitiveFilter(t *testing.T) {
	ex := newTestExecutor(t, Limits{})

	result := ex.Execute(context.Background(), `{
		"table": "analytic",
		"filters": {"district": ["pune"]},
		"metric": "rainfall_annual_total_mm",
		"aggregation": "sum"
	}`)

	require.True(t, result.OK, result.Message)
	assert.InDelta(t, 20.0, result.Value.Scalar, 1e-9)
}

func TestExecuteGroupBySorted(t *testing.T) {
	ex := newTestExecutor(t, Limits{})

	result := ex.Execute(context.Background(), `{
		"table": "analytic",
		"metric": "crop_production_rice",
		"aggregation": "sum",
		"groupBy": ["district"],
		"sortBy": "value_desc",
		"limit": 2
	}`)

	require.True(t, result.OK, result.Message)
	require.Equal(t, ValueTable, result.Value.Kind)
	// Solapur has no crop data and must not appear as a zero row.
	require.Len(t, result.Value.Rows, 2)
	assert.Equal(t, "Pune", result.Value.Rows[0].Label)
	assert.InDelta(t, 41325.87, result.Value.Rows[0].Value, 1e-9)
	assert.Equal(t, "Nagpur", result.Value.Rows[1].Label)
}

func TestExecuteEmptyIsNotZero(t *testing.T) {
	ex := newTestExecutor(t, Limits{})

	// Solapur exists in the table but has no crop metrics.
	result := ex.Execute(context.Background(), `{
		"table": "analytic",
		"filters": {"district": ["Solapur"]},
		"metric": "crop_production_rice",
		"aggregation": "sum"
	}`)

	require.True(t, result.OK, result.Message)
	assert.True(t, result.Value.IsEmpty())
	assert.Contains(t, result.Render(), "NO DATA")
}

func TestExecuteNoMatchingRows(t *testing.T) {
	ex := newTestExecutor(t, Limits{})

	result := ex.Execute(context.Background(), `{
		"table": "analytic",
		"filters": {"district": ["Mumbai"]},
		"metric": "crop_production_rice",
		"aggregation": "sum"
	}`)

	require.True(t, result.OK, result.Message)
	assert.True(t, result.Value.IsEmpty())
}

func TestExecuteAvgSkipsMissing(t *testing.T) {
	ex := newTestExecutor(t, Limits{})

	// Only Pune 2010 carries soil moisture; the average must not be
	// dragged down by rows where the metric is absent.
	result := ex.Execute(context.Background(), `{
		"table": "analytic",
		"metric": "soil_moisture_annual_mean",
		"aggregation": "avg"
	}`)

	require.True(t, result.OK, result.Message)
	require.Equal(t, ValueScalar, result.Value.Kind)
	assert.InDelta(t, 0.40, result.Value.Scalar, 1e-9)
}

func TestExecuteRejectsImperativeCode(t *testing.T) {
	ex := newTestExecutor(t, Limits{})

	result := ex.Execute(context.Background(), `import os
os.system("cat /etc/passwd")`)

	require.True(t, result.Failed())
	assert.Equal(t, FailureExecution, result.Kind)
	assert.Contains(t, result.Message, "forbidden token")
}

func TestExecuteDeadlineIsResourceFailure(t *testing.T) {
	ex := newTestExecutor(t, Limits{Timeout: time.Nanosecond})

	result := ex.Execute(context.Background(), `{
		"table": "analytic",
		"metric": "crop_production_rice",
		"aggregation": "sum",
		"groupBy": ["district"]
	}`)

	require.True(t, result.Failed())
	assert.Equal(t, FailureResource, result.Kind)
}

func TestExecuteGroupBudgetIsResourceFailure(t *testing.T) {
	ex := newTestExecutor(t, Limits{MaxGroups: 1})

	result := ex.Execute(context.Background(), `{
		"table": "analytic",
		"metric": "crop_production_rice",
		"aggregation": "sum",
		"groupBy": ["district"]
	}`)

	require.True(t, result.Failed())
	assert.Equal(t, FailureResource, result.Kind)
	assert.Contains(t, result.Message, "group budget")
}

func TestExecuteRowLimitClamped(t *testing.T) {
	ex := newTestExecutor(t, Limits{MaxRows: 1})

	result := ex.Execute(context.Background(), `{
		"table": "analytic",
		"metric": "rainfall_annual_total_mm",
		"aggregation": "sum",
		"groupBy": ["district"],
		"sortBy": "value_desc",
		"limit": 10
	}`)

	require.True(t, result.OK, result.Message)
	assert.Len(t, result.Value.Rows, 1)
	assert.Equal(t, "Pune", result.Value.Rows[0].Label)
}
