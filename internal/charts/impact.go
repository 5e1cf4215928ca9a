package charts

import (
	"tradeimpact/internal/debt"
	"tradeimpact/internal/impact"
)

const (
	AnalysisFile     = "data_for_analysis.csv"
	CrudeRevenueFile = "crude_revenue.csv"
)

// Analysis is the long table of every valued indicator per country and commodity.
func Analysis(rows []impact.Indicator) Table {
	table := Table{Header: []string{"iso_code", "country", "category", "pink_sheet_commodity", "year",
		"population", "gdp", "income_level", "indicator", "value"}}
	for _, r := range rows {
		table.Append(Text(r.ISO), Text(r.Country), Text(r.Category), Text(r.Commodity), Text(r.Year),
			Nullable(r.Population), Nullable(r.GDP), Text(r.IncomeLevel), Text(r.Indicator), Nullable(r.Value))
	}
	return table
}

// CrudeRevenue writes barrels in millions and revenue in billions of USD.
func CrudeRevenue(rows []impact.Revenue) Table {
	table := Table{Header: []string{
		"country",
		"Net exports (million barrels)",
		"Average revenue (pre-war)",
		"Potential revenue (current prices)",
		"Potential additional revenue",
		"Potential revenue per capita (current prices)",
	}}
	for _, r := range rows {
		table.Append(
			Text(r.Country),
			Number(r.NetExports/1e6),
			NullableScaled(r.Reference, 1e9),
			NullableScaled(r.Latest, 1e9),
			NullableScaled(r.Additional, 1e9),
			Nullable(r.PerCapita),
		)
	}
	return table
}

func Impact(analysis []impact.Indicator, revenue []impact.Revenue) []File {
	return []File{
		{Name: AnalysisFile, Table: Analysis(analysis)},
		{Name: CrudeRevenueFile, Table: CrudeRevenue(revenue)},
	}
}

// DebtFile names the long debt table of one indicator.
func DebtFile(indicator string) string {
	return "debt_" + indicator + ".csv"
}

// Debt lists regrouped debt per debtor, creditor and year.
func Debt(rows []debt.Debt) Table {
	table := Table{Header: []string{"iso_code", "country", "creditor", "creditor_iso", "indicator", "year", "value"}}
	for _, r := range rows {
		table.Append(Text(r.ISO), Text(r.Country), Text(r.Creditor), Text(r.CreditorISO),
			Text(r.Indicator), Int(r.Year), Number(r.Value))
	}
	return table
}
