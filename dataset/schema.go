package dataset

import (
	"fmt"
	"strings"
)

// ============================================================================
// SCHEMA — Dataset metadata for the AI prompt
// ============================================================================
// The model never sees row data. It sees this: dimension keys with
// sample values, metric keys with units and allowed aggregations, and
// the year range. Built once from the frozen table at startup.
// ============================================================================

// How many district sample values the prompt may carry.
const maxSampleDistricts = 40

// Schema describes the shape of the analytic table.
type Schema struct {
	Name       string          `json:"name"`
	Rows       int             `json:"rows"`
	Dimensions []DimensionMeta `json:"dimensions"`
	Metrics    []MetricMeta    `json:"metrics"`
}

// DimensionMeta describes a string field used for filtering/grouping.
type DimensionMeta struct {
	Key          string   `json:"key"`
	Description  string   `json:"description,omitempty"`
	SampleValues []string `json:"sampleValues,omitempty"`
}

// MetricMeta describes a numeric field used for aggregation.
type MetricMeta struct {
	Key          string   `json:"key"`
	Description  string   `json:"description,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	Aggregations []string `json:"aggregations"`
}

// Describe builds the Schema for a table.
func Describe(t *AnalyticTable) Schema {
	districts := t.Districts()
	truncated := false
	if len(districts) > maxSampleDistricts {
		districts = districts[:maxSampleDistricts]
		truncated = true
	}
	districtDesc := "Normalized district name"
	if truncated {
		districtDesc += " (sample values are a subset)"
	}

	minYear, maxYear := t.YearRange()

	sch := Schema{
		Name: "samarth",
		Rows: t.Len(),
		Dimensions: []DimensionMeta{
			{Key: "district", Description: districtDesc, SampleValues: districts},
			{Key: "year", Description: fmt.Sprintf("Calendar year, %d to %d", minYear, maxYear)},
		},
	}

	for _, key := range t.MetricKeys() {
		sch.Metrics = append(sch.Metrics, describeMetric(key))
	}

	return sch
}

// MetricKeys returns all metric keys in the schema.
func (s Schema) MetricKeys() []string {
	keys := make([]string, len(s.Metrics))
	for i, m := range s.Metrics {
		keys[i] = m.Key
	}
	return keys
}

// DimensionKeys returns all dimension keys in the schema.
func (s Schema) DimensionKeys() []string {
	keys := make([]string, len(s.Dimensions))
	for i, d := range s.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// HasMetric reports whether a metric key exists.
func (s Schema) HasMetric(key string) bool {
	for _, m := range s.Metrics {
		if m.Key == key {
			return true
		}
	}
	return false
}

// HasDimension reports whether a dimension key exists.
func (s Schema) HasDimension(key string) bool {
	for _, d := range s.Dimensions {
		if d.Key == key {
			return true
		}
	}
	return false
}

func describeMetric(key string) MetricMeta {
	meta := MetricMeta{
		Key:          key,
		Aggregations: []string{"sum", "avg", "min", "max", "count"},
	}

	switch {
	case key == MetricRainfallAnnualTotal:
		meta.Description = "Total annual rainfall (sum of daily observations)"
		meta.Unit = "mm"
	case key == MetricSoilMoistureMean:
		meta.Description = "Mean annual soil moisture at 15cm depth"
	case strings.HasPrefix(key, "crop_production_"):
		meta.Description = "Annual production of " + cropLabel(key, "crop_production_")
		meta.Unit = "1000 tons"
	case strings.HasPrefix(key, "crop_area_"):
		meta.Description = "Area under " + cropLabel(key, "crop_area_")
		meta.Unit = "1000 ha"
	case strings.HasPrefix(key, "crop_yield_"):
		meta.Description = "Yield of " + cropLabel(key, "crop_yield_")
		meta.Unit = "kg/ha"
	}

	return meta
}

func cropLabel(key, prefix string) string {
	return strings.ReplaceAll(strings.TrimPrefix(key, prefix), "_", " ")
}
