// Package enrich attaches country-level indicators (population, GDP, income group,
// PPP conversion factors and map shapes) to analysis rows.
//
// Enrichers never drop rows: a country without a value gets a null (or "") and is
// counted so callers can report it.
package enrich

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"tradeimpact/internal/model"
	"tradeimpact/internal/providers/weo"
	"tradeimpact/internal/rawdata"
)

var ErrAmbiguousGDP = errors.New("enrich: more than one GDP value for a country")

// Lookup maps ISO3 codes to a numeric indicator.
type Lookup map[string]float64

// Labels maps ISO3 codes to a categorical indicator.
type Labels map[string]string

func (l Lookup) Get(iso3 string) sql.NullFloat64 {
	v, ok := l[strings.ToUpper(iso3)]
	if !ok {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func (l Labels) Get(iso3 string) string {
	return l[strings.ToUpper(iso3)]
}

// LookupFrom keeps the most recent year per country.
func LookupFrom(values []model.IndicatorValue) Lookup {
	years := make(map[string]int, len(values))
	out := make(Lookup, len(values))
	for _, value := range values {
		iso := strings.ToUpper(value.ISO3)
		if year, ok := years[iso]; ok && year > value.Year {
			continue
		}
		years[iso] = value.Year
		out[iso] = value.Value
	}
	return out
}

func LabelsFrom(labels []model.Label) Labels {
	out := make(Labels, len(labels))
	for _, label := range labels {
		out[strings.ToUpper(label.ISO3)] = label.Value
	}
	return out
}

// Floats sets a looked-up value on every row and returns how many rows had no
// value.
func Floats[T any](rows []T, iso func(*T) string, lookup Lookup, set func(*T, sql.NullFloat64)) int {
	missing := 0
	for i := range rows {
		value := lookup.Get(iso(&rows[i]))
		if !value.Valid {
			missing++
		}
		set(&rows[i], value)
	}
	return missing
}

// Strings is Floats for labels.
func Strings[T any](rows []T, iso func(*T) string, labels Labels, set func(*T, string)) int {
	missing := 0
	for i := range rows {
		value := labels.Get(iso(&rows[i]))
		if value == "" {
			missing++
		}
		set(&rows[i], value)
	}
	return missing
}

// GDP builds a lookup of nominal GDP in US dollars for year from the WEO release.
func GDP(records []weo.Record, year int) (Lookup, error) {
	out := make(Lookup)
	duplicates := make([]string, 0)
	for _, record := range records {
		if record.Subject != weo.SubjectGDP || record.Year != year {
			continue
		}
		if _, ok := out[record.ISO]; ok {
			duplicates = append(duplicates, record.ISO)
			continue
		}
		out[record.ISO] = record.Value * 1e9
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousGDP, strings.Join(duplicates, ", "))
	}
	return out, nil
}

// PPP converts a US dollar value to international dollars:
// value × official exchange rate / PPP conversion factor.
func PPP(value, fx, factor sql.NullFloat64) sql.NullFloat64 {
	if !value.Valid || !fx.Valid || !factor.Valid || factor.Float64 == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: value.Float64 * fx.Float64 / factor.Float64, Valid: true}
}

// PPPFactors holds the two World Bank series PPP needs.
type PPPFactors struct {
	ExchangeRate Lookup
	Conversion   Lookup
}

// AddPPP sets the PPP version of a value on every row.
func AddPPP[T any](rows []T, iso func(*T) string, get func(*T) sql.NullFloat64, set func(*T, sql.NullFloat64), factors PPPFactors) int {
	missing := 0
	for i := range rows {
		code := iso(&rows[i])
		value := PPP(get(&rows[i]), factors.ExchangeRate.Get(code), factors.Conversion.Get(code))
		if !value.Valid {
			missing++
		}
		set(&rows[i], value)
	}
	return missing
}

// Geometries reads map shapes keyed by ISO3 from a CSV with iso_code and geometry
// columns.
func Geometries(r io.Reader) (Labels, error) {
	out := make(Labels)
	err := rawdata.ScanCSV(r, func(header rawdata.Header, record []string) error {
		iso := strings.ToUpper(header.Get(record, "iso_code"))
		if iso == "" {
			return nil
		}
		out[iso] = header.Get(record, "geometry")
		return nil
	}, func(header rawdata.Header) error {
		return header.Require("iso_code", "geometry")
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: geometries: %w", err)
	}
	return out, nil
}

// IncomeLevelsCSV reads a classification extract keyed by a Code column. The
// income group is taken from "Income group" when present, otherwise from the first
// other column.
func IncomeLevelsCSV(r io.Reader) (Labels, error) {
	out := make(Labels)
	column := ""
	err := rawdata.ScanCSV(r, func(header rawdata.Header, record []string) error {
		iso := strings.ToUpper(header.Get(record, "Code"))
		level := header.Get(record, column)
		if iso == "" || level == "" {
			return nil
		}
		out[iso] = level
		return nil
	}, func(header rawdata.Header) error {
		if err := header.Require("Code"); err != nil {
			return err
		}
		if header.Has("Income group") {
			column = "Income group"
			return nil
		}
		for _, name := range header.Names {
			if !strings.EqualFold(strings.TrimSpace(name), "Code") && strings.TrimSpace(name) != "" {
				column = name
				return nil
			}
		}
		return errors.New("no income group column")
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: income levels: %w", err)
	}
	return out, nil
}
