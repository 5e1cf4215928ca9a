package impact

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeimpact/internal/enrich"
	"tradeimpact/internal/model"
	"tradeimpact/internal/prices"
	"tradeimpact/internal/reference"
)

const studyCSV = "code,category,pink_sheet_commodity\n" +
	"100199,wheat,Wheat\n" +
	"270900,crude oil,\"Crude oil, average\"\n" +
	"10121,other,Other\n"

func quantity(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func study(t *testing.T) map[string]Commodity {
	t.Helper()
	s, err := StudyCommodities(strings.NewReader(studyCSV))
	require.NoError(t, err)
	return s
}

func tradeRecords() []model.TradeRecord {
	return []model.TradeRecord{
		{Year: 2019, Exporter: "RUS", Importer: "EGY", CommodityCode: "100199", Quantity: quantity(100), ImporterContinent: "Africa", ExporterContinent: "Europe"},
		{Year: 2019, Exporter: "RUS", Importer: "EGY", CommodityCode: "100199", Quantity: quantity(50), ImporterContinent: "Africa", ExporterContinent: "Europe"},
		{Year: 2020, Exporter: "UKR", Importer: "EGY", CommodityCode: "100199", Quantity: quantity(250), ImporterContinent: "Africa", ExporterContinent: "Europe"},
		{Year: 2019, Exporter: "EGY", Importer: "SDN", CommodityCode: "100199", Quantity: quantity(20), ImporterContinent: "Africa", ExporterContinent: "Africa"},
		{Year: 2020, Exporter: "NGA", Importer: "FRA", CommodityCode: "270900", Quantity: quantity(136.4), ImporterContinent: "Europe", ExporterContinent: "Africa"},
		{Year: 2020, Exporter: "FRA", Importer: "NGA", CommodityCode: "270900", Quantity: quantity(13.64), ImporterContinent: "Africa", ExporterContinent: "Europe"},
		{Year: 2020, Exporter: "FRA", Importer: "NGA", CommodityCode: "999999", Quantity: quantity(1), ImporterContinent: "Africa", ExporterContinent: "Europe"},
		{Year: 2020, Exporter: "FRA", Importer: "EGY", CommodityCode: "100199", ImporterContinent: "Africa", ExporterContinent: "Europe"},
	}
}

func TestStudyCommodities(t *testing.T) {
	s := study(t)
	assert.Len(t, s, 3)
	assert.Equal(t, Commodity{Code: "010121", Category: "other", PinkSheet: "Other"}, s["010121"])
	assert.Equal(t, []string{"Crude oil, average", "Other", "Wheat", "Wheat, US HRW", "Rice"}, PriceCommodities(s))

	_, err := StudyCommodities(strings.NewReader("code,category\n1,a\n"))
	assert.Error(t, err)
}

func TestGroup(t *testing.T) {
	flows := Group(tradeRecords(), study(t))
	require.Len(t, flows, 6)
	assert.Equal(t, 150.0, flows[0].Quantity)
	assert.Equal(t, "Wheat", flows[0].Commodity)

	var crude []Flow
	for _, flow := range flows {
		if flow.Category == CrudeCategory {
			crude = append(crude, flow)
		}
	}
	require.Len(t, crude, 2)
	assert.InDelta(t, 1000, crude[0].Quantity, 1e-9)
	assert.InDelta(t, 100, crude[1].Quantity, 1e-9)
}

func TestNetImportsAveraged(t *testing.T) {
	rows := NetImportsAfrica(tradeRecords(), study(t), false)

	byKey := make(map[string]NetImport)
	for _, row := range rows {
		assert.Equal(t, "2019-2020 (mean)", row.Year)
		byKey[row.ISO+"/"+row.Category] = row
	}

	egypt := byKey["EGY/wheat"]
	// Imports: 150 in 2019 and 250 in 2020, averaged over two years. Exports: 20 in 2019.
	assert.InDelta(t, 200, egypt.Imports, 1e-9)
	assert.InDelta(t, -20, egypt.Exports, 1e-9)
	assert.InDelta(t, 180, egypt.Net, 1e-9)
	assert.InDelta(t, 220, egypt.TotalTrade, 1e-9)

	nigeria := byKey["NGA/crude oil"]
	assert.InDelta(t, 100, nigeria.Imports, 1e-9)
	assert.InDelta(t, -1000, nigeria.Exports, 1e-9)
	assert.InDelta(t, -900, nigeria.Net, 1e-9)

	sudan := byKey["SDN/wheat"]
	assert.InDelta(t, 20, sudan.Imports, 1e-9)
	assert.Zero(t, sudan.Exports)

	for _, row := range rows {
		assert.InDelta(t, row.Imports+row.Exports, row.Net, 1e-9)
	}
}

func TestNetImportsYearly(t *testing.T) {
	rows := NetImportsAfrica(tradeRecords(), study(t), true)
	years := make(map[string]float64)
	for _, row := range rows {
		if row.ISO == "EGY" {
			years[row.Year] = row.Net
		}
	}
	assert.Equal(t, map[string]float64{"2019": 130, "2020": 250}, years)
}

func TestSpending(t *testing.T) {
	rows := []NetImport{
		{Key: Key{Year: "2019-2020 (mean)", ISO: "EGY", Category: "wheat", Commodity: "Wheat"}, Imports: 100, Exports: 0, Net: 100, TotalTrade: 100},
		{Key: Key{Year: "2019-2020 (mean)", ISO: "EGY", Category: "other", Commodity: "Other"}, Imports: 5, Net: 5, TotalTrade: 5},
	}
	snapshots := map[model.PriceSnapshot]map[string]float64{
		model.SnapshotReference: {"Wheat": 2},
		model.SnapshotLatest:    {"Wheat": 3},
	}

	valued := Spending(rows, snapshots)
	require.Len(t, valued, 2)
	wheat := valued[0]
	assert.Equal(t, quantity(200), wheat.Values["value_net_imports_pre_crisis"])
	assert.Equal(t, quantity(300), wheat.Values["value_net_imports_latest"])
	assert.Equal(t, quantity(100), wheat.Impact)
	assert.Equal(t, quantity(0), wheat.Values["value_exports_latest"])

	other := valued[1]
	assert.False(t, other.Values["value_imports_latest"].Valid)
	assert.False(t, other.Impact.Valid)
}

func TestSpendingUsesCanonicalPriceNames(t *testing.T) {
	s, err := StudyCommodities(strings.NewReader("code,category,pink_sheet_commodity\n" +
		"100199,wheat,\"Wheat, US HRW\"\n"))
	require.NoError(t, err)

	table, err := prices.FromPoints([]model.PricePoint{
		{Period: time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC), Commodity: prices.Canonical("Wheat, US HRW"), Price: quantity(2)},
	})
	require.NoError(t, err)
	require.True(t, table.Has("Wheat, US HRW"))

	rows := NetImportsAfrica([]model.TradeRecord{
		{Year: 2019, Exporter: "RUS", Importer: "EGY", CommodityCode: "100199", Quantity: quantity(100), ImporterContinent: "Africa", ExporterContinent: "Europe"},
	}, s, true)
	require.Len(t, rows, 1)
	assert.Equal(t, "Wheat, US HRW", rows[0].Commodity)

	valued := Spending(rows, table.Snapshots(2019, 2019))
	require.Len(t, valued, 1)
	assert.Equal(t, quantity(200), valued[0].Values["value_net_imports_pre_crisis"])
	assert.Equal(t, quantity(200), valued[0].Values["value_net_imports_latest"])
	assert.Equal(t, quantity(0), valued[0].Impact)
}

func TestNetImportsOuterJoin(t *testing.T) {
	imports := []Quantity{
		{Key: Key{Year: "2019", ISO: "EGY", Category: "wheat", Commodity: "Wheat"}, Value: 100},
		{Key: Key{Year: "2019", ISO: "NGA", Category: "wheat", Commodity: "Wheat"}, Value: 40},
	}
	exports := []Quantity{
		{Key: Key{Year: "2019", ISO: "EGY", Category: "wheat", Commodity: "Wheat"}, Value: -30},
		{Key: Key{Year: "2019", ISO: "ZAF", Category: "wheat", Commodity: "Wheat"}, Value: -25},
	}

	rows := NetImports(imports, exports)
	require.Len(t, rows, 3)

	tests := []struct {
		iso     string
		imports float64
		exports float64
		net     float64
		total   float64
	}{
		{"EGY", 100, -30, 70, 130},
		{"NGA", 40, 0, 40, 40},
		{"ZAF", 0, -25, -25, 25},
	}
	for i, tt := range tests {
		t.Run(tt.iso, func(t *testing.T) {
			row := rows[i]
			assert.Equal(t, tt.iso, row.ISO)
			assert.Equal(t, tt.imports, row.Imports)
			assert.Equal(t, tt.exports, row.Exports)
			assert.Equal(t, tt.net, row.Net)
			assert.Equal(t, tt.total, row.TotalTrade)
		})
	}
}

func TestAnalysis(t *testing.T) {
	rows := Spending([]NetImport{
		{Key: Key{Year: "2019-2020 (mean)", ISO: "EGY", Category: "wheat", Commodity: "Wheat"}, Imports: 100, Net: 100, TotalTrade: 100},
		{Key: Key{Year: "2019-2020 (mean)", ISO: "ZZZ", Category: "wheat", Commodity: "Wheat"}, Imports: 1, Net: 1, TotalTrade: 1},
	}, map[model.PriceSnapshot]map[string]float64{
		model.SnapshotReference: {"Wheat": 2},
		model.SnapshotLatest:    {"Wheat": 3},
	})

	indicators := Analysis(rows, Enrichment{
		Countries:    reference.Countries(),
		Population:   enrich.Lookup{"EGY": 104e6},
		GDP:          enrich.Lookup{"EGY": 400e9},
		IncomeLevels: enrich.Labels{"EGY": "Lower middle income"},
		PPP:          enrich.PPPFactors{ExchangeRate: enrich.Lookup{"EGY": 16}, Conversion: enrich.Lookup{"EGY": 4}},
	}, nil)

	columns := analysisColumns()
	require.Len(t, indicators, 2*len(columns))

	byIndicator := make(map[string]Indicator)
	for _, row := range indicators[:len(columns)] {
		byIndicator[row.Indicator] = row
	}
	impact := byIndicator[ImpactColumn]
	assert.Equal(t, "Egypt", impact.Country)
	assert.Equal(t, quantity(104e6), impact.Population)
	assert.Equal(t, "Lower middle income", impact.IncomeLevel)
	assert.Equal(t, quantity(100), impact.Value)
	assert.Equal(t, quantity(400), byIndicator[pppColumn(ImpactColumn)].Value)
	assert.Equal(t, quantity(100), byIndicator["net_imports_quantity"].Value)

	unknown := indicators[len(columns)]
	assert.Equal(t, reference.NotFound, unknown.Country)
	assert.False(t, unknown.Population.Valid)
	assert.Equal(t, "", unknown.IncomeLevel)
}

func TestCrudeRevenue(t *testing.T) {
	rows := []NetImport{
		{Key: Key{ISO: "NGA", Category: CrudeCategory, Commodity: CrudeCommodity}, Imports: 100, Exports: -1000, Net: -900},
		{Key: Key{ISO: "EGY", Category: CrudeCategory, Commodity: CrudeCommodity}, Imports: 500, Exports: -100, Net: 400},
		{Key: Key{ISO: "GHA", Category: CrudeCategory, Commodity: CrudeCommodity}, Net: -50},
		{Key: Key{ISO: "AGO", Category: "wheat", Commodity: "Wheat"}, Net: -10},
	}
	snapshots := map[model.PriceSnapshot]map[string]float64{
		model.SnapshotReference: {CrudeCommodity: 60},
		model.SnapshotLatest:    {CrudeCommodity: 100},
	}

	revenue := CrudeRevenue(rows, []string{"NGA", "AGO", "EGY"}, snapshots, enrich.Lookup{"NGA": 200}, reference.Countries())
	require.Len(t, revenue, 1)
	nigeria := revenue[0]
	assert.Equal(t, "Nigeria", nigeria.Country)
	assert.Equal(t, 900.0, nigeria.NetExports)
	assert.Equal(t, quantity(54000), nigeria.Reference)
	assert.Equal(t, quantity(90000), nigeria.Latest)
	assert.Equal(t, quantity(36000), nigeria.Additional)
	assert.Equal(t, quantity(450), nigeria.PerCapita)
}
