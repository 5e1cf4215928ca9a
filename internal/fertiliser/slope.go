package fertiliser

import (
	"database/sql"
	"sort"

	"tradeimpact/internal/calc"
	"tradeimpact/internal/model"
)

// Reference window for product prices.
const (
	SlopeReferenceStart = 2018
	SlopeReferenceEnd   = 2019
)

// SlopeRow is the net import of one product valued at both price points.
type SlopeRow struct {
	ISO        string
	Country    string
	Continent  string
	Fertiliser string
	Commodity  string

	NetImportQty float64
	Reference    sql.NullFloat64
	Latest       sql.NullFloat64
	Change       sql.NullFloat64
}

// Slope values product-level net imports. Rows for items that are not a known
// product are dropped; missing import or export quantities count as zero.
func Slope(rows []Balance, snapshots map[model.PriceSnapshot]map[string]float64) []SlopeRow {
	pink := make(map[string]string, len(Products))
	for _, product := range Products {
		pink[product.FAO] = product.PinkSheet
	}

	out := make([]SlopeRow, 0)
	for _, row := range rows {
		commodity, ok := pink[row.Fertiliser]
		if !ok {
			continue
		}
		net := orZero(row.ImportQuantity) - orZero(row.ExportQuantity)
		slope := SlopeRow{
			ISO:          row.ISO,
			Country:      row.Country,
			Continent:    row.Continent,
			Fertiliser:   row.Fertiliser,
			Commodity:    commodity,
			NetImportQty: net,
			Reference:    calc.Mul(calc.Null(net), calc.Lookup(snapshots[model.SnapshotReference], commodity)),
			Latest:       calc.Mul(calc.Null(net), calc.Lookup(snapshots[model.SnapshotLatest], commodity)),
		}
		slope.Change = calc.Sub(slope.Latest, slope.Reference)
		out = append(out, slope)
	}
	return out
}

// AfricaSlope keeps African net importers of the given fertilisers whose bill
// changed and that are valued at both price points. An empty list keeps every
// fertiliser.
func AfricaSlope(rows []SlopeRow, fertilisers []string) []SlopeRow {
	wanted := make(map[string]bool, len(fertilisers))
	for _, fertiliser := range fertilisers {
		wanted[fertiliser] = true
	}
	out := make([]SlopeRow, 0)
	for _, row := range rows {
		if len(wanted) > 0 && !wanted[row.Fertiliser] {
			continue
		}
		if row.Continent != model.ContinentAfrica || row.NetImportQty < 0 {
			continue
		}
		if !row.Latest.Valid || !row.Reference.Valid || row.Change.Float64 == 0 {
			continue
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fertiliser != out[j].Fertiliser {
			return out[i].Fertiliser < out[j].Fertiliser
		}
		return out[i].ISO < out[j].ISO
	})
	return out
}
