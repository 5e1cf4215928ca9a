package charts

import (
	"time"

	"tradeimpact/internal/prices"
)

const CommodityPricesFile = "commodity_prices.csv"

// CommodityPrices is the wide monthly price table of the selected commodities from
// start on.
func CommodityPrices(table *prices.Table, commodities []string, start time.Time) (Table, error) {
	selected := table.Select(commodities...).Since(start)
	out := Table{Header: append([]string{prices.PeriodColumn}, selected.Commodities...)}
	series := make([][]Cell, len(selected.Commodities))
	for i, name := range selected.Commodities {
		values, err := selected.Series(name)
		if err != nil {
			return Table{}, err
		}
		cells := make([]Cell, len(values))
		for j, v := range values {
			cells[j] = Nullable(v)
		}
		series[i] = cells
	}
	for j, period := range selected.Periods {
		row := []Cell{Text(period.Format(periodLayout))}
		for i := range series {
			row = append(row, series[i][j])
		}
		out.Append(row...)
	}
	return out, nil
}
