package charts

import (
	"tradeimpact/internal/fertiliser"
	"tradeimpact/internal/model"
)

const (
	FertiliserPricesFile = "fertiliser_prices.csv"
	ShortageFile         = "shortage_analysis.csv"
	SlopeFile            = "fertiliser_slope_africa.csv"

	periodLayout = "2006-01-02"
)

func DependenceMapFile(fertiliser string) string {
	return "dependence_map_" + fertiliser + ".csv"
}

// PriceSeries is the long (period, fertiliser, price) table.
func PriceSeries(points []model.PricePoint) Table {
	table := Table{Header: []string{"period", "fertiliser", "price"}}
	for _, p := range points {
		table.Append(Text(p.Period.Format(periodLayout)), Text(p.Commodity), Nullable(p.Price))
	}
	return table
}

// DependenceMap is one fertiliser's dependence per country with its geometry.
func DependenceMap(m fertiliser.DependenceMap) Table {
	table := Table{Header: []string{"country", "iso_code", "continent", "fertiliser", "dependence", "geometry"}}
	for _, r := range m.Rows {
		table.Append(Text(r.Country), Text(r.ISO), Text(r.Continent), Text(r.Fertiliser), Number(r.Dependence), Text(r.Geometry))
	}
	return table
}

// Shortages is the scenario summary with one column per fertiliser.
func Shortages(shortages []fertiliser.Shortage) Table {
	header := []string{"variable"}
	columns := make([][]float64, len(shortages))
	for i, s := range shortages {
		header = append(header, s.Fertiliser)
		columns[i] = s.Values()
	}
	table := Table{Header: header}
	for i, variable := range fertiliser.ShortageVariables {
		row := []Cell{Text(variable)}
		for _, values := range columns {
			row = append(row, Number(values[i]))
		}
		table.Append(row...)
	}
	return table
}

// Slope is the African product bill at both price points.
func Slope(rows []fertiliser.SlopeRow) Table {
	table := Table{Header: []string{"iso_code", "country", "fertiliser", "pink_sheet_commodity",
		"value_net_import_qty_latest", "value_net_import_qty_pre_crisis"}}
	for _, r := range rows {
		table.Append(Text(r.ISO), Text(r.Country), Text(r.Fertiliser), Text(r.Commodity),
			Nullable(r.Latest), Nullable(r.Reference))
	}
	return table
}

// Fertiliser assembles the fertiliser charts.
func Fertiliser(prices []model.PricePoint, maps []fertiliser.DependenceMap, shortages []fertiliser.Shortage, slope []fertiliser.SlopeRow) []File {
	files := []File{
		{Name: FertiliserPricesFile, Table: PriceSeries(prices)},
		{Name: ShortageFile, Table: Shortages(shortages)},
		{Name: SlopeFile, Table: Slope(slope)},
	}
	for _, m := range maps {
		files = append(files, File{Name: DependenceMapFile(m.Fertiliser), Table: DependenceMap(m)})
	}
	return files
}
