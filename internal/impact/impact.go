// Package impact values African net imports of the study commodities at two price
// points: the mean over a pre-crisis reference window and the latest observation.
package impact

import (
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"tradeimpact/internal/calc"
	"tradeimpact/internal/codes"
	"tradeimpact/internal/model"
	"tradeimpact/internal/prices"
	"tradeimpact/internal/rawdata"
)

const (
	StudyFile = "codes_pink.csv"

	CrudeCategory  = "crude oil"
	CrudeCommodity = "Crude oil, average"

	// ToBarrels converts tonnes of crude to barrels (one barrel ≈ 0.1364 t).
	ToBarrels = 0.1364
)

// ExtraPriceCommodities are priced alongside the study commodities.
var ExtraPriceCommodities = []string{"Wheat, US HRW", "Rice"}

// Commodity is one row of the study list.
type Commodity struct {
	Code      string
	Category  string
	PinkSheet string
}

// StudyCommodities reads codes_pink.csv (code, category, pink_sheet_commodity).
func StudyCommodities(r io.Reader) (map[string]Commodity, error) {
	study := make(map[string]Commodity)
	err := rawdata.ScanCSV(r, func(header rawdata.Header, record []string) error {
		code := codes.Normalize(header.Get(record, "code"))
		if code == "" {
			return nil
		}
		study[code] = Commodity{
			Code:      code,
			Category:  header.Get(record, "category"),
			PinkSheet: header.Get(record, "pink_sheet_commodity"),
		}
		return nil
	}, func(header rawdata.Header) error {
		return header.Require("code", "category", "pink_sheet_commodity")
	})
	if err != nil {
		return nil, fmt.Errorf("impact: study commodities: %w", err)
	}
	return study, nil
}

// PriceCommodities lists the price columns the study needs, sorted.
func PriceCommodities(study map[string]Commodity) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, commodity := range study {
		if commodity.PinkSheet != "" && !seen[commodity.PinkSheet] {
			seen[commodity.PinkSheet] = true
			out = append(out, commodity.PinkSheet)
		}
	}
	sort.Strings(out)
	for _, extra := range ExtraPriceCommodities {
		if !seen[extra] {
			out = append(out, extra)
		}
	}
	return out
}

// Flow is a study-commodity trade quantity between two countries in one year.
type Flow struct {
	Year              int16
	Exporter          string
	Importer          string
	CommodityCode     string
	ImporterContinent string
	ExporterContinent string
	Category          string
	Commodity         string
	Quantity          float64
}

type flowKey struct {
	year     int16
	exporter string
	importer string
	code     string
	impCont  string
	expCont  string
}

// Group keeps study codes and sums quantities per flow. Crude quantities are
// converted from tonnes to barrels. Missing quantities count as zero.
func Group(records []model.TradeRecord, study map[string]Commodity) []Flow {
	sums := make(map[flowKey]*Flow)
	order := make([]flowKey, 0)
	for _, record := range records {
		code := codes.Normalize(record.CommodityCode)
		commodity, ok := study[code]
		if !ok {
			continue
		}
		key := flowKey{record.Year, record.Exporter, record.Importer, code, record.ImporterContinent, record.ExporterContinent}
		flow, ok := sums[key]
		if !ok {
			flow = &Flow{
				Year:              record.Year,
				Exporter:          record.Exporter,
				Importer:          record.Importer,
				CommodityCode:     code,
				ImporterContinent: record.ImporterContinent,
				ExporterContinent: record.ExporterContinent,
				Category:          commodity.Category,
				Commodity:         commodity.PinkSheet,
			}
			sums[key] = flow
			order = append(order, key)
		}
		if record.Quantity.Valid {
			flow.Quantity += record.Quantity.Float64
		}
	}

	out := make([]Flow, 0, len(order))
	for _, key := range order {
		flow := *sums[key]
		if isCrude(flow.Category) {
			flow.Quantity /= ToBarrels
		}
		out = append(out, flow)
	}
	return out
}

// Key identifies a country-level quantity. Year is a single year or a span label.
type Key struct {
	Year      string
	ISO       string
	Category  string
	Commodity string
}

func (k Key) less(o Key) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	if k.ISO != o.ISO {
		return k.ISO < o.ISO
	}
	if k.Category != o.Category {
		return k.Category < o.Category
	}
	return k.Commodity < o.Commodity
}

type Quantity struct {
	Key
	Value float64
}

// AfricanImports sums quantities imported by each African country.
func AfricanImports(flows []Flow, yearly bool) []Quantity {
	return aggregate(flows, model.SideImporter, yearly, 1)
}

// AfricanExports sums quantities exported by each African country, negated.
func AfricanExports(flows []Flow, yearly bool) []Quantity {
	return aggregate(flows, model.SideExporter, yearly, -1)
}

type groupKey struct {
	iso, category, commodity string
}

func aggregate(flows []Flow, side model.Side, yearly bool, sign float64) []Quantity {
	perYear := make(map[groupKey]map[int16]float64)
	minYear, maxYear := int16(0), int16(0)
	first := true
	for _, flow := range flows {
		// The span covers every flow so both sides share one label.
		if first || flow.Year < minYear {
			minYear = flow.Year
		}
		if first || flow.Year > maxYear {
			maxYear = flow.Year
		}
		first = false

		iso, continent := flow.Exporter, flow.ExporterContinent
		if side == model.SideImporter {
			iso, continent = flow.Importer, flow.ImporterContinent
		}
		if continent != model.ContinentAfrica {
			continue
		}
		key := groupKey{iso, flow.Category, flow.Commodity}
		if perYear[key] == nil {
			perYear[key] = make(map[int16]float64)
		}
		perYear[key][flow.Year] += flow.Quantity
	}

	span := fmt.Sprintf("%d-%d (mean)", minYear, maxYear)
	out := make([]Quantity, 0, len(perYear))
	for key, years := range perYear {
		if yearly {
			for year, value := range years {
				out = append(out, Quantity{
					Key:   Key{Year: strconv.Itoa(int(year)), ISO: key.iso, Category: key.category, Commodity: key.commodity},
					Value: sign * value,
				})
			}
			continue
		}
		values := make([]float64, 0, len(years))
		for _, value := range years {
			values = append(values, value)
		}
		out = append(out, Quantity{
			Key:   Key{Year: span, ISO: key.iso, Category: key.category, Commodity: key.commodity},
			Value: sign * calc.Sum(values) / float64(len(values)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// NetImport joins imports and (negative) exports for one country and commodity.
type NetImport struct {
	Key
	Imports    float64
	Exports    float64
	Net        float64
	TotalTrade float64
}

// NetImports outer-joins the two sides; a side with no rows counts as zero.
func NetImports(imports, exports []Quantity) []NetImport {
	rows := make(map[Key]*NetImport)
	get := func(key Key) *NetImport {
		row, ok := rows[key]
		if !ok {
			row = &NetImport{Key: key}
			rows[key] = row
		}
		return row
	}
	for _, q := range imports {
		get(q.Key).Imports += q.Value
	}
	for _, q := range exports {
		get(q.Key).Exports += q.Value
	}

	out := make([]NetImport, 0, len(rows))
	for _, row := range rows {
		row.Net = row.Imports + row.Exports
		row.TotalTrade = row.Imports - row.Exports
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// NetImportsAfrica runs grouping, both sides and the join in one step.
func NetImportsAfrica(records []model.TradeRecord, study map[string]Commodity, yearly bool) []NetImport {
	flows := Group(records, study)
	return NetImports(AfricanImports(flows, yearly), AfricanExports(flows, yearly))
}

// Measures are the quantities that get valued, in output order.
var Measures = []string{"imports", "exports", "net_imports", "total_trade"}

// Snapshots are the two price points, in output order.
var Snapshots = []model.PriceSnapshot{model.SnapshotReference, model.SnapshotLatest}

const ImpactColumn = "net_imports_impact_value"

func ValueColumn(measure string, snapshot model.PriceSnapshot) string {
	return "value_" + measure + "_" + string(snapshot)
}

func (n NetImport) measure(name string) float64 {
	switch name {
	case "imports":
		return n.Imports
	case "exports":
		return n.Exports
	case "net_imports":
		return n.Net
	default:
		return n.TotalTrade
	}
}

// Valued is a NetImport with every measure valued at both price points.
type Valued struct {
	NetImport
	Values map[string]sql.NullFloat64
	Impact sql.NullFloat64
}

// Spending multiplies each measure by the commodity price of each snapshot.
// Snapshot maps are keyed by canonical price names. A commodity with no price
// gives null values.
func Spending(rows []NetImport, snapshots map[model.PriceSnapshot]map[string]float64) []Valued {
	out := make([]Valued, 0, len(rows))
	for _, row := range rows {
		valued := Valued{NetImport: row, Values: make(map[string]sql.NullFloat64, len(Measures)*len(Snapshots))}
		commodity := prices.Canonical(row.Commodity)
		for _, measure := range Measures {
			quantity := calc.Null(row.measure(measure))
			for _, snapshot := range Snapshots {
				price := calc.Lookup(snapshots[snapshot], commodity)
				valued.Values[ValueColumn(measure, snapshot)] = calc.Mul(quantity, price)
			}
		}
		valued.Impact = calc.Sub(
			valued.Values[ValueColumn("net_imports", model.SnapshotLatest)],
			valued.Values[ValueColumn("net_imports", model.SnapshotReference)],
		)
		out = append(out, valued)
	}
	return out
}

func isCrude(category string) bool {
	return strings.EqualFold(strings.TrimSpace(category), CrudeCategory)
}
