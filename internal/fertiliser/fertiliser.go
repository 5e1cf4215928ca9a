// Package fertiliser derives import dependence, shortage scenarios and price
// exposure from FAOSTAT fertiliser balances.
package fertiliser

import (
	"database/sql"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"tradeimpact/internal/calc"
	"tradeimpact/internal/model"
	"tradeimpact/internal/prices"
	"tradeimpact/internal/rawdata"
	"tradeimpact/internal/reference"
)

const (
	NutrientsFile = "fertiliser_nutrients_fao.csv"
	ProductsFile  = "fertiliser_products_fao.csv"
)

// FAO element names and the balance fields they fill.
const (
	ElementAgUse          = "Agricultural Use"
	ElementExportQuantity = "Export Quantity"
	ElementImportQuantity = "Import Quantity"
	ElementExportValue    = "Export Value"
	ElementImportValue    = "Import Value"
	ElementProduction     = "Production"
)

// Nutrients are the FAO nutrient totals used for dependence and shortage.
var Nutrients = []string{
	"Nutrient nitrogen N (total)",
	"Nutrient phosphate P2O5 (total)",
	"Nutrient potash K2O (total)",
}

// Product pairs an FAO product item with its price-sheet column.
type Product struct {
	FAO       string
	PinkSheet string
}

var Products = []Product{
	{FAO: "Phosphate rock", PinkSheet: "Phosphate rock"},
	{FAO: "Diammonium phosphate (DAP)", PinkSheet: "DAP"},
	{FAO: "Superphosphates above 35%", PinkSheet: "TSP"},
	{FAO: "Urea", PinkSheet: "Urea"},
	{FAO: "Potassium chloride (muriate of potash) (MOP)", PinkSheet: "Potassium chloride"},
}

// PinkSheetNames lists the price columns of Products.
func PinkSheetNames() []string {
	names := make([]string, 0, len(Products))
	for _, product := range Products {
		names = append(names, product.PinkSheet)
	}
	return names
}

// FAORow is one observation of a FAOSTAT long extract.
type FAORow struct {
	Area    string
	Element string
	Item    string
	Year    int
	Value   float64
}

// ReadFAO reads a FAOSTAT CSV extract. Rows without a numeric year or value are
// skipped.
func ReadFAO(r io.Reader) ([]FAORow, error) {
	rows := make([]FAORow, 0)
	err := rawdata.ScanCSV(r, func(header rawdata.Header, record []string) error {
		year, err := strconv.Atoi(header.Get(record, "Year"))
		if err != nil {
			return nil
		}
		value, ok := header.Float(record, "Value")
		if !ok {
			return nil
		}
		rows = append(rows, FAORow{
			Area:    header.Get(record, "Area"),
			Element: header.Get(record, "Element"),
			Item:    header.Get(record, "Item"),
			Year:    year,
			Value:   value,
		})
		return nil
	}, func(header rawdata.Header) error {
		return header.Require("Area", "Element", "Item", "Year", "Value")
	})
	if err != nil {
		return nil, fmt.Errorf("fertiliser: read fao: %w", err)
	}
	return rows, nil
}

// Balance is one country's mean fertiliser balance over the selected years.
type Balance struct {
	Country        string
	ISO            string
	Continent      string
	Fertiliser     string
	AgUse          sql.NullFloat64
	ExportQuantity sql.NullFloat64
	ImportQuantity sql.NullFloat64
	ExportValue    sql.NullFloat64
	ImportValue    sql.NullFloat64
	Production     sql.NullFloat64

	NetImport    float64
	NetImportAdj float64
	Dependence   float64
}

func (b *Balance) set(element string, value float64) {
	v := calc.Null(value)
	switch element {
	case ElementAgUse:
		b.AgUse = v
	case ElementExportQuantity:
		b.ExportQuantity = v
	case ElementImportQuantity:
		b.ImportQuantity = v
	case ElementExportValue:
		b.ExportValue = v
	case ElementImportValue:
		b.ImportValue = v
	case ElementProduction:
		b.Production = v
	}
}

// CleanFAO averages each (area, element, item) over years and pivots elements into
// balance fields. Areas are matched to ISO3 codes by name or FAO alias; unmatched
// areas keep their FAO name and an empty code.
func CleanFAO(rows []FAORow, years []int, countries *reference.Table) []Balance {
	if countries == nil {
		countries = reference.Countries()
	}
	keep := make(map[int]bool, len(years))
	for _, year := range years {
		keep[year] = true
	}

	type cell struct{ area, element, item string }
	type pivot struct{ area, item string }
	values := make(map[cell][]float64)
	order := make([]pivot, 0)
	seen := make(map[pivot]bool)
	for _, row := range rows {
		if !keep[row.Year] {
			continue
		}
		key := cell{row.Area, row.Element, row.Item}
		values[key] = append(values[key], row.Value)
		p := pivot{row.Area, row.Item}
		if !seen[p] {
			seen[p] = true
			order = append(order, p)
		}
	}

	balances := make(map[pivot]*Balance, len(order))
	for _, p := range order {
		iso := countries.ISO3FromName(p.area)
		balances[p] = &Balance{
			Country:    countries.ShortName(iso, p.area),
			ISO:        iso,
			Continent:  countries.Continent(iso),
			Fertiliser: p.item,
		}
	}
	for key, observations := range values {
		mean := calc.Sum(observations) / float64(len(observations))
		balances[pivot{key.area, key.item}].set(key.element, mean)
	}

	out := make([]Balance, 0, len(order))
	for _, p := range order {
		out = append(out, *balances[p])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fertiliser != out[j].Fertiliser {
			return out[i].Fertiliser < out[j].Fertiliser
		}
		return out[i].Country < out[j].Country
	})
	return out
}

func orZero(v sql.NullFloat64) float64 {
	if !v.Valid || math.IsNaN(v.Float64) {
		return 0
	}
	return v.Float64
}

// Dependence fills the net import fields. Net exporters get an adjusted net import
// of 0; dependence is the adjusted net import as a percentage of agricultural use,
// 0 without agricultural use and capped at 100. A country missing either its
// import or its export quantity gets 0 for all three.
func Dependence(rows []Balance) []Balance {
	out := make([]Balance, len(rows))
	for i, row := range rows {
		row.NetImport, row.NetImportAdj, row.Dependence = 0, 0, 0
		if !row.ImportQuantity.Valid || !row.ExportQuantity.Valid {
			out[i] = row
			continue
		}
		row.NetImport = orZero(row.ImportQuantity) - orZero(row.ExportQuantity)
		row.NetImportAdj = math.Max(0, row.NetImport)
		row.Dependence = math.Min(100, calc.Percent(row.NetImportAdj, orZero(row.AgUse)))
		out[i] = row
	}
	return out
}

// Fertilisers lists the distinct fertilisers of rows in first-seen order.
func Fertilisers(rows []Balance) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, row := range rows {
		if !seen[row.Fertiliser] {
			seen[row.Fertiliser] = true
			out = append(out, row.Fertiliser)
		}
	}
	return out
}

// PriceChart is the long (period, fertiliser, price) series of the product prices
// from start.
func PriceChart(table *prices.Table, start time.Time) []model.PricePoint {
	return table.Select(PinkSheetNames()...).Since(start).Long()
}

func isAny(iso string, set []string) bool {
	for _, item := range set {
		if strings.EqualFold(item, iso) {
			return true
		}
	}
	return false
}
