package impact

import (
	"database/sql"
	"sort"

	"go.uber.org/zap"

	"tradeimpact/internal/calc"
	"tradeimpact/internal/enrich"
	"tradeimpact/internal/logging"
	"tradeimpact/internal/model"
	"tradeimpact/internal/prices"
	"tradeimpact/internal/reference"
)

// pppColumns are the values restated in international dollars.
var pppColumns = []string{
	ValueColumn("imports", model.SnapshotReference),
	ValueColumn("imports", model.SnapshotLatest),
	ValueColumn("exports", model.SnapshotReference),
	ValueColumn("exports", model.SnapshotLatest),
	ValueColumn("net_imports", model.SnapshotReference),
	ValueColumn("net_imports", model.SnapshotLatest),
	ImpactColumn,
}

func pppColumn(column string) string {
	return column + "_ppp"
}

// Enrichment carries the country lookups the analysis table needs.
type Enrichment struct {
	Countries    *reference.Table
	Population   enrich.Lookup
	GDP          enrich.Lookup
	IncomeLevels enrich.Labels
	PPP          enrich.PPPFactors
}

// Indicator is one melted row of the analysis table.
type Indicator struct {
	ISO         string
	Country     string
	Category    string
	Commodity   string
	Year        string
	Population  sql.NullFloat64
	GDP         sql.NullFloat64
	IncomeLevel string
	Indicator   string
	Value       sql.NullFloat64
}

type enriched struct {
	Valued
	country     string
	population  sql.NullFloat64
	gdp         sql.NullFloat64
	incomeLevel string
	ppp         map[string]sql.NullFloat64
}

// Analysis enriches the valued rows and melts them to one row per indicator.
func Analysis(rows []Valued, e Enrichment, logger *zap.Logger) []Indicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	countries := e.Countries
	if countries == nil {
		countries = reference.Countries()
	}

	table := make([]enriched, len(rows))
	for i, row := range rows {
		table[i] = enriched{Valued: row, ppp: make(map[string]sql.NullFloat64, len(pppColumns))}
	}
	iso := func(r *enriched) string { return r.ISO }

	missingPPP := 0
	for _, column := range pppColumns {
		missingPPP += enrich.AddPPP(table, iso,
			func(r *enriched) sql.NullFloat64 { return r.column(column) },
			func(r *enriched, v sql.NullFloat64) { r.ppp[pppColumn(column)] = v },
			e.PPP,
		)
	}
	missingPopulation := enrich.Floats(table, iso, e.Population, func(r *enriched, v sql.NullFloat64) { r.population = v })
	missingGDP := enrich.Floats(table, iso, e.GDP, func(r *enriched, v sql.NullFloat64) { r.gdp = v })
	missingIncome := enrich.Strings(table, iso, e.IncomeLevels, func(r *enriched, v string) { r.incomeLevel = v })
	for i := range table {
		table[i].country = countries.ShortName(table[i].ISO, reference.NotFound)
	}

	logging.DataQuality(logger, "country", "missing ppp factors", missingPPP)
	logging.DataQuality(logger, "country", "missing population", missingPopulation)
	logging.DataQuality(logger, "country", "missing gdp", missingGDP)
	logging.DataQuality(logger, "country", "missing income level", missingIncome)

	columns := analysisColumns()
	out := make([]Indicator, 0, len(table)*len(columns))
	for i := range table {
		row := &table[i]
		for _, column := range columns {
			out = append(out, Indicator{
				ISO:         row.ISO,
				Country:     row.country,
				Category:    row.Category,
				Commodity:   row.Commodity,
				Year:        row.Year,
				Population:  row.population,
				GDP:         row.gdp,
				IncomeLevel: row.incomeLevel,
				Indicator:   column,
				Value:       row.column(column),
			})
		}
	}
	return out
}

// analysisColumns is the melt order: quantities, values, impact, then PPP values.
func analysisColumns() []string {
	columns := []string{"imports_quantity", "exports_quantity", "net_imports_quantity", "total_trade"}
	for _, measure := range Measures {
		for _, snapshot := range Snapshots {
			columns = append(columns, ValueColumn(measure, snapshot))
		}
	}
	columns = append(columns, ImpactColumn)
	for _, column := range pppColumns {
		columns = append(columns, pppColumn(column))
	}
	return columns
}

func (r *enriched) column(name string) sql.NullFloat64 {
	switch name {
	case "imports_quantity":
		return calc.Null(r.Imports)
	case "exports_quantity":
		return calc.Null(r.Exports)
	case "net_imports_quantity":
		return calc.Null(r.Net)
	case "total_trade":
		return calc.Null(r.TotalTrade)
	case ImpactColumn:
		return r.Impact
	}
	if v, ok := r.Values[name]; ok {
		return v
	}
	return r.ppp[name]
}

// Revenue is the value of one country's net crude exports.
type Revenue struct {
	ISO        string
	Country    string
	NetExports float64
	Reference  sql.NullFloat64
	Latest     sql.NullFloat64
	Additional sql.NullFloat64
	PerCapita  sql.NullFloat64
}

// CrudeRevenue values the net crude exports of the listed countries at both price
// points. Countries that are net importers of crude are left out.
func CrudeRevenue(rows []NetImport, countries []string, snapshots map[model.PriceSnapshot]map[string]float64, population enrich.Lookup, table *reference.Table) []Revenue {
	if table == nil {
		table = reference.Countries()
	}
	wanted := make(map[string]bool, len(countries))
	for _, iso := range countries {
		wanted[iso] = true
	}

	crude := prices.Canonical(CrudeCommodity)
	out := make([]Revenue, 0)
	for _, row := range rows {
		if !isCrude(row.Category) || row.Net >= 0 || !wanted[row.ISO] {
			continue
		}
		netExports := -row.Net
		revenue := Revenue{
			ISO:        row.ISO,
			Country:    table.ShortName(row.ISO, reference.NotFound),
			NetExports: netExports,
			Reference:  calc.Mul(calc.Null(netExports), calc.Lookup(snapshots[model.SnapshotReference], crude)),
			Latest:     calc.Mul(calc.Null(netExports), calc.Lookup(snapshots[model.SnapshotLatest], crude)),
		}
		revenue.Additional = calc.Sub(revenue.Latest, revenue.Reference)
		if pop := population.Get(row.ISO); pop.Valid && pop.Float64 != 0 && revenue.Latest.Valid {
			revenue.PerCapita = calc.Null(revenue.Latest.Float64 / pop.Float64)
		}
		out = append(out, revenue)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ISO < out[j].ISO })
	return out
}
