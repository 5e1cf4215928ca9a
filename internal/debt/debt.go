// Package debt extracts what African governments owe to, and pay, Russia and
// Ukraine from World Bank International Debt Statistics extracts.
package debt

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"tradeimpact/internal/model"
	"tradeimpact/internal/rawdata"
	"tradeimpact/internal/reference"
)

const (
	Stocks  = "stocks"
	Service = "service"
)

var ErrInvalidIndicator = errors.New("debt: invalid indicator")

// DefaultCreditors are matched by name against the counterpart area.
var DefaultCreditors = []string{"Ukraine", "Russia"}

// RawFile is the IDS extract name for indicator.
func RawFile(indicator string) string {
	return "ids_" + indicator + "_raw.csv"
}

var serviceGroups = map[string]string{
	"PPG, bilateral (AMT, current US$)":               "Bilateral debt service",
	"PPG, bilateral (INT, current US$)":               "Bilateral debt service",
	"PPG, commercial banks (AMT, current US$)":        "Private debt service",
	"PPG, commercial banks (INT, current US$)":        "Private debt service",
	"PPG, other private creditors (AMT, current US$)": "Private debt service",
	"PPG, other private creditors (INT, current US$)": "Private debt service",
}

var stockGroups = map[string]string{
	"PPG, bilateral (DOD, current US$)":               "Bilateral debt stock",
	"PPG, commercial banks (DOD, current US$)":        "Private debt stock",
	"PPG, other private creditors (DOD, current US$)": "Private debt stock",
}

// Totals name the single indicator each group collapses into.
const (
	TotalService = "Debt Service"
	TotalStocks  = "Debt Stock"
)

// Row is one observation of an IDS extract.
type Row struct {
	Country     string
	Counterpart string
	Series      string
	SeriesCode  string
	Year        int
	Value       float64
}

// Read parses an IDS CSV. Observations without a value are skipped.
func Read(r io.Reader) ([]Row, error) {
	rows := make([]Row, 0)
	err := rawdata.ScanCSV(r, func(header rawdata.Header, record []string) error {
		year, err := strconv.Atoi(header.Get(record, "time"))
		if err != nil {
			return fmt.Errorf("debt: time %q: %w", header.Get(record, "time"), err)
		}
		value, ok := header.Float(record, "value")
		if !ok {
			return nil
		}
		rows = append(rows, Row{
			Country:     header.Get(record, "country"),
			Counterpart: header.Get(record, "counterpart-area"),
			Series:      header.Get(record, "series"),
			SeriesCode:  header.Get(record, "series_code"),
			Year:        year,
			Value:       value,
		})
		return nil
	}, func(header rawdata.Header) error {
		return header.Require("country", "counterpart-area", "series", "time", "value")
	})
	if err != nil {
		return nil, fmt.Errorf("debt: read: %w", err)
	}
	return rows, nil
}

// Debt is the grouped amount an African debtor owes or pays to one creditor.
type Debt struct {
	ISO         string
	Country     string
	Creditor    string
	CreditorISO string
	Indicator   string
	Year        int
	Value       float64
}

// Pipeline filters creditors and African debtors, groups the series into
// bilateral and private amounts and then into a single total, and keeps years in
// [start, end].
func Pipeline(rows []Row, indicator string, start, end int, countries *reference.Table) ([]Debt, error) {
	groups, total, err := grouping(indicator)
	if err != nil {
		return nil, err
	}
	if countries == nil {
		countries = reference.Countries()
	}
	debts := AfricanDebtors(FilterCreditors(rows, DefaultCreditors, countries), countries)
	debts = Collapse(Simplify(debts, groups), total)

	out := make([]Debt, 0, len(debts))
	for _, d := range debts {
		if d.Year >= start && d.Year <= end {
			out = append(out, d)
		}
	}
	return out, nil
}

func grouping(indicator string) (map[string]string, string, error) {
	switch indicator {
	case Stocks:
		return stockGroups, TotalStocks, nil
	case Service:
		return serviceGroups, TotalService, nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrInvalidIndicator, indicator)
}

// FilterCreditors keeps rows whose counterpart area is one of creditors, matched by
// ISO3 after name resolution.
func FilterCreditors(rows []Row, creditors []string, countries *reference.Table) []Row {
	wanted := make(map[string]bool, len(creditors))
	for _, name := range creditors {
		if iso := countries.ISO3FromName(name); iso != "" {
			wanted[iso] = true
		}
	}
	out := make([]Row, 0)
	for _, row := range rows {
		if wanted[countries.ISO3FromName(row.Counterpart)] {
			out = append(out, row)
		}
	}
	return out
}

// AfricanDebtors keeps rows whose debtor resolves to an African country, with
// the series as the provisional indicator.
func AfricanDebtors(rows []Row, countries *reference.Table) []Debt {
	out := make([]Debt, 0, len(rows))
	for _, row := range rows {
		iso := countries.ISO3FromName(row.Country)
		if countries.Continent(iso) != model.ContinentAfrica {
			continue
		}
		out = append(out, Debt{
			ISO:         iso,
			Country:     row.Country,
			Creditor:    row.Counterpart,
			CreditorISO: countries.ISO3FromName(row.Counterpart),
			Indicator:   row.Series,
			Year:        row.Year,
			Value:       row.Value,
		})
	}
	return out
}

// Simplify relabels indicators through groups and sums the debts that collapse
// together. Indicators without a group are dropped.
func Simplify(debts []Debt, groups map[string]string) []Debt {
	return regroup(debts, func(indicator string) (string, bool) {
		label, ok := groups[indicator]
		return label, ok
	})
}

// Collapse sums every indicator of a debtor, creditor and year into total.
func Collapse(debts []Debt, total string) []Debt {
	return regroup(debts, func(string) (string, bool) { return total, true })
}

func regroup(debts []Debt, relabel func(string) (string, bool)) []Debt {
	index := make(map[Debt]int)
	out := make([]Debt, 0)
	for _, d := range debts {
		label, ok := relabel(d.Indicator)
		if !ok {
			continue
		}
		d.Indicator = label
		key := d
		key.Value = 0
		if i, seen := index[key]; seen {
			out[i].Value += d.Value
			continue
		}
		index[key] = len(out)
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ISO != out[j].ISO {
			return out[i].ISO < out[j].ISO
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Creditor < out[j].Creditor
	})
	return out
}

// ByCountry sums debts per debtor.
func ByCountry(debts []Debt) map[string]float64 {
	out := make(map[string]float64)
	for _, d := range debts {
		out[d.ISO] += d.Value
	}
	return out
}
