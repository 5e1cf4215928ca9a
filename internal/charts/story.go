package charts

import (
	"sort"

	"tradeimpact/internal/explorer"
	"tradeimpact/internal/flows"
)

// Story file names.
const (
	CommodityExportsShareFile = "commodity_exports_share.csv"
	ExportsToAfricaFile       = "exports_to_africa.csv"
	ExportsAfricaZoomFile     = "exports_africa_zoom.csv"
	ToAfricanCountriesFile    = "ukr_rus_to_african_countries.csv"
	CategoriesFile            = "rus_ukr_categories.csv"
	CategoriesCountryFile     = "rus_ukr_categories_country.csv"
	ExploreBarFile            = "commodity_explore_bar.csv"
	WheatFile                 = "wheat.csv"
	BarleyFile                = "barley.csv"
	ExplorerFile              = "flourish_explorer.csv"
)

// CommodityExportShares pivots shares to one row per category and one column per
// exporter, sorted by name.
func CommodityExportShares(shares []flows.CategoryShare) Table {
	seen := make(map[string]bool)
	exporters := make([]string, 0)
	for _, share := range shares {
		for exporter := range share.Shares {
			if !seen[exporter] {
				seen[exporter] = true
				exporters = append(exporters, exporter)
			}
		}
	}
	sort.Strings(exporters)

	table := Table{Header: append([]string{"cat2"}, exporters...)}
	for _, share := range shares {
		row := []Cell{Text(share.Category)}
		for _, exporter := range exporters {
			v, ok := share.Shares[exporter]
			if !ok {
				row = append(row, Null)
				continue
			}
			row = append(row, Round(v, 1))
		}
		table.Append(row...)
	}
	return table
}

// ExportsToAfrica is the exporter to continent chart with each link's share of the
// year.
func ExportsToAfrica(links []flows.Link) Table {
	table := Table{Header: []string{"year", "source", "target", "value", "step_from", "step_to", "exporter_name", "pct"}}
	for _, l := range links {
		table.Append(Text(l.Year), Text(l.Source), Text(l.Target), Number(l.Value),
			Int(l.StepFrom), Int(l.StepTo), Text(l.Source), Round(l.Share, 2))
	}
	return table
}

// ToAfricanCountries is the exporter to importing country chart.
func ToAfricanCountries(links []flows.Link) Table {
	table := Table{Header: []string{"year", "source", "target", "value", "step_from", "step_to", "importer_name"}}
	for _, l := range links {
		table.Append(Text(l.Year), Text(l.Source), Text(l.Target), Number(l.Value),
			Int(l.StepFrom), Int(l.StepTo), Text(l.Importer))
	}
	return table
}

// Categories is the exporter to category chart with shares of each category.
func Categories(links []flows.Link) Table {
	table := Table{Header: []string{"year", "source", "target", "value", "step_from", "step_to", "share"}}
	for _, l := range links {
		table.Append(Text(l.Year), Text(l.Source), Text(l.Target), Number(l.Value),
			Int(l.StepFrom), Int(l.StepTo), Round(l.Share, 2))
	}
	return table
}

// CategoriesByCountry lists Russia and Ukraine trade per importer and category.
func CategoriesByCountry(rows []flows.CountryCategory) Table {
	table := Table{Header: []string{"year", "importer_name", "target", "value", "share"}}
	for _, r := range rows {
		table.Append(Text(r.Year), Text(r.Importer), Text(r.Category), Number(r.Value), Round(r.Share, 2))
	}
	return table
}

// CommodityValues is CategoriesByCountry for one category with values in millions
// written as "<value>m".
func CommodityValues(rows []flows.CountryCategory, category string) Table {
	table := Table{Header: []string{"year", "importer_name", "target", "value", "share"}}
	for _, r := range flows.FilterCategory(rows, category) {
		table.Append(Text(r.Year), Text(r.Importer), Text(r.Category), WithSuffix(r.Value/1e3, 1, "m"), Round(r.Share, 2))
	}
	return table
}

// ExploreBar is the bar explorer pivot.
func ExploreBar(rows []flows.BarRow, categories []string) Table {
	table := Table{Header: append([]string{"year", "importer_name", "indicator"}, categories...)}
	for _, r := range rows {
		row := []Cell{Text(r.Year), Text(r.Importer), Text(r.Indicator)}
		for _, category := range categories {
			v, ok := r.Values[category]
			if !ok {
				row = append(row, Null)
				continue
			}
			row = append(row, Number(v))
		}
		table.Append(row...)
	}
	return table
}

// Explorer is the per-country commodity explorer.
func Explorer(rows []explorer.Row, categories []string) Table {
	header := append([]string{"iso_code", "year"}, categories...)
	header = append(header, "vote", "population", "Debt Stocks", "Debt Service", "income_level", "gdp", "name")
	table := Table{Header: header}
	for _, r := range rows {
		row := []Cell{Text(r.ISO), Text(r.Year)}
		for _, category := range categories {
			v, ok := r.Categories[category]
			if !ok {
				row = append(row, Null)
				continue
			}
			row = append(row, Number(v))
		}
		row = append(row,
			Text(r.Vote),
			Nullable(r.Population),
			Nullable(r.DebtStocks),
			Nullable(r.DebtService),
			Text(r.IncomeLevel),
			Nullable(r.GDP),
			Text(r.Name),
		)
		table.Append(row...)
	}
	return table
}

// Story assembles every story chart from the exports-to-Africa rows and the world
// export rows without intra-EU trade.
func Story(africa, world []flows.Row) []File {
	slide := flows.ExportsToAfricaSlide(africa)
	byCountry := flows.CategoriesByCountry(africa)
	bars, categories := flows.BarExplorer(byCountry)
	return []File{
		{Name: CommodityExportsShareFile, Table: CommodityExportShares(flows.CommodityExportShares(world))},
		{Name: ExportsToAfricaFile, Table: ExportsToAfrica(slide)},
		{Name: ExportsAfricaZoomFile, Table: ExportsToAfrica(flows.FilterSources(slide, flows.Ukraine, flows.Russia))},
		{Name: ToAfricanCountriesFile, Table: ToAfricanCountries(flows.RussiaUkraineToCountries(africa))},
		{Name: CategoriesFile, Table: Categories(flows.RussiaUkraineCategories(africa))},
		{Name: CategoriesCountryFile, Table: CategoriesByCountry(byCountry)},
		{Name: ExploreBarFile, Table: ExploreBar(bars, categories)},
		{Name: WheatFile, Table: CommodityValues(byCountry, "Wheat")},
		{Name: BarleyFile, Table: CommodityValues(byCountry, "Barley")},
	}
}
