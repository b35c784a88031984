package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ============================================================================
// CSV LOADERS — Raw source files → []RawRecord
// ============================================================================
// Loaders only reshape rows into field maps under canonical key names.
// All validation, normalization, and aggregation happens in Integrate —
// a loader never drops a record for having bad values, only for being
// structurally unreadable.
// ============================================================================

// Canonical field keys the integrator looks for.
const (
	FieldDistrict   = "district"
	FieldYear       = "year"
	FieldDate       = "date"
	FieldCrop       = "crop"
	FieldProduction = "production"
	FieldArea       = "area"
	FieldYield      = "yield"
	FieldValue      = "value"
)

// headerAliases maps the column spellings seen in the source exports to
// canonical field keys. Matching is case-insensitive on the snake_cased
// header.
var headerAliases = map[string]string{
	"district":         FieldDistrict,
	"dist_name":        FieldDistrict,
	"district_name":    FieldDistrict,
	"year":             FieldYear,
	"date":             FieldDate,
	"crop":             FieldCrop,
	"crop_name":        FieldCrop,
	"production":       FieldProduction,
	"area":             FieldArea,
	"yield":            FieldYield,
	"value":            FieldValue,
	"avg_rainfall":     FieldValue,
	"rainfall":         FieldValue,
	"avg_smlvl_at15cm": FieldValue,
	"soil_moisture":    FieldValue,
}

// LoadCropCSV reads the annual crop table. Expected columns: district,
// year, crop, production and optionally area, yield. Unknown columns
// are carried through under their snake_cased names and ignored later.
func LoadCropCSV(r io.Reader) ([]RawRecord, error) {
	return loadCSV(r, SourceCrop)
}

// LoadRainfallCSV reads the daily rainfall table (district, date, value).
func LoadRainfallCSV(r io.Reader) ([]RawRecord, error) {
	return loadCSV(r, SourceRainfall)
}

// LoadSoilCSV reads the daily soil-moisture table (district, date, value).
func LoadSoilCSV(r io.Reader) ([]RawRecord, error) {
	return loadCSV(r, SourceSoil)
}

func loadCSV(r io.Reader, source SourceKind) ([]RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are skipped below, not fatal

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV headers: %w", source, err)
	}

	keys := make([]string, len(headers))
	for i, h := range headers {
		key := toSnakeCase(strings.TrimSpace(h))
		if canonical, ok := headerAliases[key]; ok {
			key = canonical
		}
		keys[i] = key
	}

	var records []RawRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		rec := RawRecord{
			Source: source,
			Fields: make(map[string]string, len(keys)),
		}
		for i, val := range row {
			if i >= len(keys) {
				break
			}
			rec.Fields[keys[i]] = strings.TrimSpace(val)
		}
		records = append(records, rec)
	}

	return records, nil
}

// toSnakeCase converts "Dist Name" → "dist_name". Parenthesized unit
// suffixes are folded in: "Production (1000 tons)" → "production_1000_tons".
func toSnakeCase(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "(", "")
	s = strings.ReplaceAll(s, ")", "")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.Join(strings.Fields(s), "_")
	return s
}
