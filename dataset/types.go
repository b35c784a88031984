package dataset

import (
	"sort"
	"strings"
)

// ============================================================================
// DATASET TYPES — Raw source records and the integrated analytic table
// ============================================================================
// Three heterogeneous sources (annual crop, daily rainfall, daily soil
// moisture) are merged into one annual, district-keyed table. The table
// is built once at startup and never mutated afterwards — every query
// reads it through a view, no locking required.
// ============================================================================

// SourceKind tags a RawRecord with the table it came from.
type SourceKind string

const (
	SourceCrop     SourceKind = "crop"
	SourceRainfall SourceKind = "rainfall"
	SourceSoil     SourceKind = "soil"
)

// RawRecord is one observation from a source table: a field-name → raw
// value mapping. Loaders produce these; the integrator consumes them.
// Immutable once loaded.
type RawRecord struct {
	Source SourceKind        `json:"source"`
	Fields map[string]string `json:"fields"`
}

// Field returns the trimmed value for a key, "" if absent. Loaders
// trim on read; trimming here covers records built by hand.
func (r RawRecord) Field(key string) string {
	return strings.TrimSpace(r.Fields[key])
}

// Metric keys produced by integration. Crop metrics are derived per
// crop name (crop_production_rice, crop_area_wheat, ...); the climate
// metrics are fixed.
const (
	MetricRainfallAnnualTotal = "rainfall_annual_total_mm"
	MetricSoilMoistureMean    = "soil_moisture_annual_mean"
)

// AnalyticRow is one (district, year) observation after integration.
// A metric absent from Metrics means "no data from that source" — it is
// never recorded as zero, because zero is a legitimate observed value.
type AnalyticRow struct {
	District string             `json:"district"`
	Year     int                `json:"year"`
	Metrics  map[string]float64 `json:"metrics"`
}

// Metric returns a metric value and whether it is present.
func (r AnalyticRow) Metric(key string) (float64, bool) {
	v, ok := r.Metrics[key]
	return v, ok
}

// AnalyticTable is the single merged dataset: exactly one row per
// (district, year) appearing in any source, sorted by district then
// year. Frozen after Integrate returns; callers hold read references
// only.
type AnalyticTable struct {
	rows       []AnalyticRow
	metricKeys []string
}

func newAnalyticTable(rows []AnalyticRow) *AnalyticTable {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].District != rows[j].District {
			return rows[i].District < rows[j].District
		}
		return rows[i].Year < rows[j].Year
	})

	seen := make(map[string]bool)
	var keys []string
	for _, row := range rows {
		for k := range row.Metrics {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)

	return &AnalyticTable{rows: rows, metricKeys: keys}
}

// Len returns the number of rows.
func (t *AnalyticTable) Len() int { return len(t.rows) }

// Row returns the row at index i. The returned value shares the
// underlying metric map — callers must treat it as read-only.
func (t *AnalyticTable) Row(i int) AnalyticRow { return t.rows[i] }

// MetricKeys returns all metric keys present anywhere in the table,
// sorted.
func (t *AnalyticTable) MetricKeys() []string { return t.metricKeys }

// Districts returns the distinct normalized district names, in table
// order.
func (t *AnalyticTable) Districts() []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.rows {
		if !seen[row.District] {
			seen[row.District] = true
			out = append(out, row.District)
		}
	}
	return out
}

// YearRange returns the smallest and largest year in the table.
func (t *AnalyticTable) YearRange() (min, max int) {
	for i, row := range t.rows {
		if i == 0 || row.Year < min {
			min = row.Year
		}
		if i == 0 || row.Year > max {
			max = row.Year
		}
	}
	return min, max
}
