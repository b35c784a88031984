package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ============================================================================
// INTEGRATOR — Three heterogeneous sources → one annual analytic table
// ============================================================================
// Reconciliation steps:
//   1. Normalize district names (trim + title case) so joins are exact.
//   2. Aggregate the daily sources per (district, calendar year):
//      rainfall summed, soil moisture averaged.
//   3. Outer-join the three per-(district, year) aggregates. A row
//      exists for every key present in ANY source; metrics from absent
//      sources stay missing — never defaulted to zero.
//
// Records with unparsable dates or out-of-range years are dropped and
// counted in the Report. Integration failure is fatal at startup: the
// service must not answer queries against a partially built table.
// ============================================================================

// Years outside this window are treated as corrupt source data.
const (
	minValidYear = 1900
	maxValidYear = 2100
)

// IntegrationError reports a structurally unusable source.
type IntegrationError struct {
	Source SourceKind
	Reason string
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration failed for %s source: %s", e.Source, e.Reason)
}

// Report counts what integration accepted and dropped, per source.
type Report struct {
	Accepted map[SourceKind]int `json:"accepted"`
	Dropped  map[SourceKind]int `json:"dropped"`
	Rows     int                `json:"rows"`
}

// Integrate merges the three raw sources into a frozen AnalyticTable.
// Fails if any source is empty or lacks its key fields in every record.
func Integrate(crop, rainfall, soil []RawRecord) (*AnalyticTable, *Report, error) {
	report := &Report{
		Accepted: make(map[SourceKind]int),
		Dropped:  make(map[SourceKind]int),
	}

	if err := checkKeyFields(SourceCrop, crop, FieldYear); err != nil {
		return nil, nil, err
	}
	if err := checkKeyFields(SourceRainfall, rainfall, FieldDate); err != nil {
		return nil, nil, err
	}
	if err := checkKeyFields(SourceSoil, soil, FieldDate); err != nil {
		return nil, nil, err
	}

	merged := make(map[rowKey]map[string]*metricAcc)

	integrateCrop(merged, crop, report)
	integrateDaily(merged, rainfall, MetricRainfallAnnualTotal, accSum, report)
	integrateDaily(merged, soil, MetricSoilMoistureMean, accMean, report)

	rows := make([]AnalyticRow, 0, len(merged))
	for key, accs := range merged {
		metrics := make(map[string]float64, len(accs))
		for name, acc := range accs {
			metrics[name] = acc.value()
		}
		rows = append(rows, AnalyticRow{
			District: key.district,
			Year:     key.year,
			Metrics:  metrics,
		})
	}

	report.Rows = len(rows)
	return newAnalyticTable(rows), report, nil
}

// checkKeyFields fails if the source is empty, or if no record at all
// carries the district identifier plus its time key. Individual bad
// records are handled later (dropped and counted), but a source where
// the key columns are entirely absent is a wiring error, not noise.
func checkKeyFields(source SourceKind, records []RawRecord, timeKey string) error {
	if len(records) == 0 {
		return &IntegrationError{Source: source, Reason: "no records provided"}
	}
	for _, r := range records {
		if r.Field(FieldDistrict) != "" && r.Field(timeKey) != "" {
			return nil
		}
	}
	return &IntegrationError{
		Source: source,
		Reason: fmt.Sprintf("key fields (%s, %s) absent from every record", FieldDistrict, timeKey),
	}
}

// ============================================================================
// PER-SOURCE INTEGRATION
// ============================================================================

// integrateCrop folds long-format crop records (district, year, crop,
// production[, area, yield]) into namespaced metrics. Production and
// area for the same (district, year, crop) accumulate by sum, yield by
// mean.
func integrateCrop(merged map[rowKey]map[string]*metricAcc, records []RawRecord, report *Report) {
	for _, rec := range records {
		district := NormalizeDistrict(rec.Field(FieldDistrict))
		year, yearOK := parseYear(rec.Field(FieldYear))
		crop := toSnakeCase(rec.Field(FieldCrop))
		if district == "" || !yearOK || crop == "" {
			report.Dropped[SourceCrop]++
			continue
		}

		accepted := false
		for field, mode := range cropMetricModes {
			raw := rec.Field(field)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			metric := "crop_" + field + "_" + crop
			addMetric(merged, rowKey{district, year}, metric, v, mode)
			accepted = true
		}

		if accepted {
			report.Accepted[SourceCrop]++
		} else {
			report.Dropped[SourceCrop]++
		}
	}
}

var cropMetricModes = map[string]accMode{
	FieldProduction: accSum,
	FieldArea:       accSum,
	FieldYield:      accMean,
}

// integrateDaily folds a daily source into one annual metric per
// (district, year): rainfall by sum, soil moisture by mean.
func integrateDaily(merged map[rowKey]map[string]*metricAcc, records []RawRecord, metric string, mode accMode, report *Report) {
	source := SourceRainfall
	if len(records) > 0 {
		source = records[0].Source
	}

	for _, rec := range records {
		district := NormalizeDistrict(rec.Field(FieldDistrict))
		year, yearOK := parseObservationYear(rec)
		v, err := strconv.ParseFloat(rec.Field(FieldValue), 64)
		if district == "" || !yearOK || err != nil {
			report.Dropped[source]++
			continue
		}

		addMetric(merged, rowKey{district, year}, metric, v, mode)
		report.Accepted[source]++
	}
}

// parseObservationYear extracts the calendar year from the date field,
// falling back to an explicit year column when the date is unusable
// (the source exports carry both).
func parseObservationYear(rec RawRecord) (int, bool) {
	if t, ok := parseDate(rec.Field(FieldDate)); ok {
		y := t.Year()
		if y >= minValidYear && y <= maxValidYear {
			return y, true
		}
		return 0, false
	}
	return parseYear(rec.Field(FieldYear))
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	time.RFC3339,
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseYear(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	// Tolerate "2010.0" from float-typed year columns.
	if i := strings.IndexByte(s, '.'); i > 0 {
		s = s[:i]
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < minValidYear || y > maxValidYear {
		return 0, false
	}
	return y, true
}

// NormalizeDistrict trims and title-cases a district identifier so the
// three sources join on exact match. Spelling variants beyond casing
// and whitespace are NOT corrected — a known accuracy gap, kept visible
// rather than fuzzily matched away.
func NormalizeDistrict(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	words := strings.Split(strings.ToLower(name), " ")
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// ============================================================================
// METRIC ACCUMULATION
// ============================================================================

type rowKey struct {
	district string
	year     int
}

type accMode int

const (
	accSum accMode = iota
	accMean
)

type metricAcc struct {
	mode  accMode
	sum   float64
	count int
}

func (a *metricAcc) add(v float64) {
	a.sum += v
	a.count++
}

func (a *metricAcc) value() float64 {
	if a.mode == accMean && a.count > 0 {
		return a.sum / float64(a.count)
	}
	return a.sum
}

func addMetric(merged map[rowKey]map[string]*metricAcc, key rowKey, metric string, v float64, mode accMode) {
	accs, ok := merged[key]
	if !ok {
		accs = make(map[string]*metricAcc)
		merged[key] = accs
	}
	acc, ok := accs[metric]
	if !ok {
		acc = &metricAcc{mode: mode}
		accs[metric] = acc
	}
	acc.add(v)
}
