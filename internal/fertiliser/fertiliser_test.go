package fertiliser

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
)

const nitrogen = "Nutrient nitrogen N (total)"

func valid(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

const faoCSV = `"Domain Code","Domain","Area","Element","Item","Year","Unit","Value"
"RFN","Fertilizers","Kenya","Agricultural Use","Nutrient nitrogen N (total)","2017","t","100"
"RFN","Fertilizers","Kenya","Agricultural Use","Nutrient nitrogen N (total)","2018","t","200"
"RFN","Fertilizers","Kenya","Import Quantity","Nutrient nitrogen N (total)","2018","t","300"
"RFN","Fertilizers","Kenya","Import Quantity","Nutrient nitrogen N (total)","2020","t","9999"
"RFN","Fertilizers","China, mainland","Export Quantity","Nutrient nitrogen N (total)","2019","t","50"
"RFN","Fertilizers","Atlantis","Production","Nutrient nitrogen N (total)","2019","t","5"
"RFN","Fertilizers","Kenya","Production","Nutrient nitrogen N (total)","2019","t",""
`

func TestReadAndClean(t *testing.T) {
	rows, err := ReadFAO(strings.NewReader(faoCSV))
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, FAORow{Area: "Kenya", Element: ElementAgUse, Item: nitrogen, Year: 2017, Value: 100}, rows[0])

	balances := CleanFAO(rows, []int{2017, 2018, 2019}, nil)
	require.Len(t, balances, 3)

	byCountry := make(map[string]Balance)
	for _, b := range balances {
		byCountry[b.Country] = b
	}
	kenya := byCountry["Kenya"]
	assert.Equal(t, "KEN", kenya.ISO)
	assert.Equal(t, model.ContinentAfrica, kenya.Continent)
	assert.Equal(t, valid(150), kenya.AgUse)
	assert.Equal(t, valid(300), kenya.ImportQuantity)
	assert.False(t, kenya.ExportQuantity.Valid)

	china := byCountry["China"]
	assert.Equal(t, "CHN", china.ISO)
	assert.Equal(t, valid(50), china.ExportQuantity)

	atlantis := byCountry["Atlantis"]
	assert.Equal(t, "", atlantis.ISO)
	assert.Equal(t, valid(5), atlantis.Production)

	_, err = ReadFAO(strings.NewReader("Area,Item\nKenya,Urea\n"))
	assert.Error(t, err)
}

func TestDependence(t *testing.T) {
	tests := []struct {
		name    string
		balance Balance
		net     float64
		adj     float64
		want    float64
	}{
		{name: "importer", balance: Balance{ImportQuantity: valid(30), ExportQuantity: valid(10), AgUse: valid(40)}, net: 20, adj: 20, want: 50},
		{name: "net exporter", balance: Balance{ImportQuantity: valid(10), ExportQuantity: valid(30), AgUse: valid(40)}, net: -20, adj: 0, want: 0},
		{name: "no agricultural use", balance: Balance{ImportQuantity: valid(10), ExportQuantity: valid(0)}, net: 10, adj: 10, want: 0},
		{name: "capped", balance: Balance{ImportQuantity: valid(500), ExportQuantity: valid(0), AgUse: valid(100)}, net: 500, adj: 500, want: 100},
		{name: "missing export", balance: Balance{ImportQuantity: valid(25), AgUse: valid(100)}, net: 0, adj: 0, want: 0},
		{name: "exports only", balance: Balance{ExportQuantity: valid(5), AgUse: valid(100)}, net: 0, adj: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dependence([]Balance{tt.balance})[0]
			assert.Equal(t, tt.net, got.NetImport)
			assert.Equal(t, tt.adj, got.NetImportAdj)
			assert.InDelta(t, tt.want, got.Dependence, 1e-9)
		})
	}
}

func TestShortages(t *testing.T) {
	rows := []Balance{
		{ISO: "RUS", Fertiliser: nitrogen, ExportQuantity: valid(40), Production: valid(60)},
		{ISO: "BLR", Fertiliser: nitrogen, ExportQuantity: valid(10)},
		{ISO: "FRA", Fertiliser: nitrogen, ImportQuantity: valid(30), AgUse: valid(60), Production: valid(20)},
		{ISO: "KEN", Fertiliser: nitrogen, ImportQuantity: valid(70), ExportQuantity: valid(50), Production: valid(20)},
		{ISO: "KEN", Fertiliser: "Nutrient potash K2O (total)"},
	}
	got := Shortages(rows, Scenario{ExportCut: 1, Disrupted: []string{"RUS", "BLR"}, Privileged: []string{"FRA"}})
	require.Len(t, got, 2)

	n := got[0]
	assert.Equal(t, 100.0, n.TotalImport)
	assert.Equal(t, 100.0, n.TotalExport)
	assert.Equal(t, 50.0, n.DisruptedExport)
	assert.Equal(t, 30.0, n.PrivilegedImport)
	assert.Equal(t, 20.0, n.ExportsAvailable)
	assert.Equal(t, 70.0, n.DemandRest)
	assert.InDelta(t, 30, n.PrivilegedShare, 1e-9)
	assert.Equal(t, 50.0, n.Shortfall)
	assert.InDelta(t, 100.0*20/70, n.DemandGap, 1e-9)
	assert.InDelta(t, 50, n.PrivilegedAgUse, 1e-9)
	assert.InDelta(t, 20, n.PrivilegedOutput, 1e-9)
	assert.Len(t, n.Values(), len(ShortageVariables))

	empty := got[1]
	assert.Zero(t, empty.PrivilegedShare)
	assert.Zero(t, empty.DemandGap)

	half := Shortages(rows[:4], Scenario{ExportCut: 0.5, Disrupted: []string{"rus"}})[0]
	assert.Equal(t, 80.0, half.ExportsAvailable)
}

func TestSlope(t *testing.T) {
	rows := []Balance{
		{ISO: "KEN", Country: "Kenya", Continent: "Africa", Fertiliser: "Urea", ImportQuantity: valid(10)},
		{ISO: "NGA", Country: "Nigeria", Continent: "Africa", Fertiliser: "Urea", ImportQuantity: valid(5), ExportQuantity: valid(20)},
		{ISO: "FRA", Country: "France", Continent: "Europe", Fertiliser: "Urea", ImportQuantity: valid(10)},
		{ISO: "EGY", Country: "Egypt", Continent: "Africa", Fertiliser: "Diammonium phosphate (DAP)", ImportQuantity: valid(3)},
		{ISO: "KEN", Country: "Kenya", Continent: "Africa", Fertiliser: "Phosphate rock"},
		{ISO: "KEN", Country: "Kenya", Continent: "Africa", Fertiliser: nitrogen, ImportQuantity: valid(1)},
	}
	snapshots := map[model.PriceSnapshot]map[string]float64{
		model.SnapshotReference: {"Urea": 200, "Phosphate rock": 70},
		model.SnapshotLatest:    {"Urea": 700, "Phosphate rock": 150},
	}

	all := Slope(rows, snapshots)
	require.Len(t, all, 5)
	assert.Equal(t, "Urea", all[0].Commodity)
	assert.Equal(t, valid(2000), all[0].Reference)
	assert.Equal(t, valid(7000), all[0].Latest)
	assert.Equal(t, valid(5000), all[0].Change)
	assert.False(t, all[3].Latest.Valid)

	africa := AfricaSlope(all, nil)
	require.Len(t, africa, 1)
	assert.Equal(t, "KEN", africa[0].ISO)

	assert.Empty(t, AfricaSlope(all, []string{"Phosphate rock"}))
}

func TestPriceChart(t *testing.T) {
	apr := time.Date(2007, 4, 1, 0, 0, 0, 0, time.UTC)
	may := time.Date(2007, 5, 1, 0, 0, 0, 0, time.UTC)
	table, err := prices.FromPoints([]model.PricePoint{
		{Period: apr, Commodity: "Urea", Price: valid(1)},
		{Period: may, Commodity: "Urea", Price: valid(2)},
		{Period: may, Commodity: "DAP", Price: valid(3)},
		{Period: may, Commodity: "Wheat", Price: valid(4)},
	})
	require.NoError(t, err)

	points := PriceChart(table, may)
	require.Len(t, points, 2)
	assert.Equal(t, model.PricePoint{Period: may, Commodity: "DAP", Price: valid(3)}, points[0])
	assert.Equal(t, "Urea", points[1].Commodity)
}

func TestDependenceMaps(t *testing.T) {
	rows := Dependence([]Balance{
		{ISO: "KEN", Continent: "Africa", Fertiliser: nitrogen, ImportQuantity: valid(10), ExportQuantity: valid(0), AgUse: valid(20)},
		{ISO: "", Country: "Atlantis", Fertiliser: nitrogen},
		{ISO: "KEN", Continent: "Africa", Fertiliser: "Nutrient potash K2O (total)"},
	})
	maps := DependenceMaps(rows, enrich.Labels{"KEN": "POLYGON ((1 1))"}, nil)
	require.Len(t, maps, 2)
	assert.Equal(t, nitrogen, maps[0].Fertiliser)
	require.Len(t, maps[0].Rows, 2)
	assert.Equal(t, MapRow{Country: "Kenya", ISO: "KEN", Continent: "Africa", Fertiliser: nitrogen, Dependence: 50, Geometry: "POLYGON ((1 1))"}, maps[0].Rows[0])
	assert.Equal(t, "", maps[0].Rows[1].Country)
}
