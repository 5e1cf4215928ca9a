package flows

import (
	"sort"

	"tradeimpact/internal/calc"
)

// Detailed exporters by name, as they appear after AddCountryNames.
const (
	Russia  = "Russia"
	Ukraine = "Ukraine"
)

var isoNames = map[string]string{"RUS": Russia, "UKR": Ukraine}

// ShareCategories are the categories the export share chart reports.
var ShareCategories = []string{
	"Barley",
	"Maize",
	"Petroleum oils",
	"Sunflower oil",
	"Wheat",
	"Coal",
	"Steel and Iron",
	"Potash",
}

// SourceShare is one exporter's share of an importer's purchases of a category.
type SourceShare struct {
	Year         string
	ExporterName string
	Importer     string
	ImporterName string
	Category     string
	// Value is in thousands of the input unit, rounded to 1 decimal.
	Value float64
	// Share is a percentage rounded to 1 decimal.
	Share float64
}

// SourceShares computes every exporter's share of each importer's category total.
// Output is sorted by importer name, then by share descending.
func SourceShares(rows []Row) []SourceShare {
	type totalKey struct{ year, importer, category string }
	type key struct{ year, exporter, importer, importerName, category string }

	totals := make(map[totalKey]float64)
	sums := make(map[key]float64)
	order := make([]key, 0)
	for _, row := range rows {
		totals[totalKey{row.Year, row.ImporterName, row.Cat2}] += row.Value
		k := key{row.Year, row.ExporterName, row.Importer, row.ImporterName, row.Cat2}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] += row.Value
	}

	out := make([]SourceShare, 0, len(order))
	for _, k := range order {
		value := sums[k]
		share := calc.SafeDiv(value, totals[totalKey{k.year, k.importerName, k.category}])
		out = append(out, SourceShare{
			Year:         k.year,
			ExporterName: k.exporter,
			Importer:     k.importer,
			ImporterName: k.importerName,
			Category:     k.category,
			Value:        value,
			Share:        share,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ImporterName != out[j].ImporterName {
			return out[i].ImporterName < out[j].ImporterName
		}
		return out[i].Share > out[j].Share
	})
	for i := range out {
		out[i].Value = calc.Round(out[i].Value/1e3, 1)
		out[i].Share = calc.Round(100*out[i].Share, 1)
	}
	return out
}

// CategoryShare is the share of world exports of a category held by each detailed
// exporter.
type CategoryShare struct {
	Category string
	Shares   map[string]float64
}

// CommodityExportShares aggregates source shares per exporter and category and
// reports the Russia and Ukraine shares of the ShareCategories, sorted by category.
func CommodityExportShares(rows []Row) []CategoryShare {
	type key struct{ year, exporter, category string }
	type totalKey struct{ year, category string }

	sums := make(map[key]float64)
	totals := make(map[totalKey]float64)
	for _, share := range SourceShares(rows) {
		sums[key{share.Year, share.ExporterName, share.Category}] += share.Value
		totals[totalKey{share.Year, share.Category}] += share.Value
	}

	wanted := make(map[string]bool, len(ShareCategories))
	for _, category := range ShareCategories {
		wanted[category] = true
	}
	byCategory := make(map[string]map[string]float64)
	for k, value := range sums {
		if !wanted[k.category] || (k.exporter != Russia && k.exporter != Ukraine) {
			continue
		}
		if byCategory[k.category] == nil {
			byCategory[k.category] = make(map[string]float64)
		}
		byCategory[k.category][k.exporter] = calc.Round(calc.Percent(value, totals[totalKey{k.year, k.category}]), 1)
	}

	out := make([]CategoryShare, 0, len(byCategory))
	for category, shares := range byCategory {
		out = append(out, CategoryShare{Category: category, Shares: shares})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// sharesWithin sets each link's share of the total of its group, as a percentage
// rounded to 2 decimals.
func sharesWithin[K comparable](links []Link, group func(Link) K) {
	totals := make(map[K]float64)
	for _, link := range links {
		totals[group(link)] += link.Value
	}
	for i := range links {
		links[i].Share = calc.Round(calc.Percent(links[i].Value, totals[group(links[i])]), 2)
	}
}

// ExportsToAfricaSlide links exporters into Africa, without intra-African trade,
// with each link's share of the year's total.
func ExportsToAfricaSlide(rows []Row) []Link {
	all := ExportersToAfrica(rows, 0, 1)
	links := make([]Link, 0, len(all))
	for _, link := range all {
		if link.Source != "Africa" {
			links = append(links, link)
		}
	}
	sharesWithin(links, func(l Link) string { return l.Year })
	return links
}

// RussiaUkraineToCountries links Russia and Ukraine to each importing country.
func RussiaUkraineToCountries(rows []Row) []Link {
	return FilterSources(ExportersToAfricanCountries(rows, 0, 4), Ukraine, Russia)
}

// RussiaUkraineCategories links Russia and Ukraine to categories, with their share
// of the category total across all exporters.
func RussiaUkraineCategories(rows []Row) []Link {
	links := ExporterToCategories(rows, 0, 2)
	for i := range links {
		if name, ok := isoNames[links[i].Source]; ok {
			links[i].Source = name
		}
		links[i].Importer = ""
	}
	sharesWithin(links, func(l Link) [2]string { return [2]string{l.Year, l.Target} })
	out := make([]Link, 0, len(links))
	for _, link := range links {
		if link.Source != RestOfWorld {
			out = append(out, link)
		}
	}
	return out
}

// CountryCategory is the combined Russia and Ukraine trade of one importer in one
// category.
type CountryCategory struct {
	Year     string
	Importer string
	Category string
	Value    float64
	Share    float64
}

// CategoriesByCountry sums Russia and Ukraine links per importer and category,
// with the combined share of the importer's category total.
func CategoriesByCountry(rows []Row) []CountryCategory {
	links := ExporterToCategoriesByImporter(rows, 0, 4)
	sharesWithin(links, func(l Link) [3]string { return [3]string{l.Year, l.Target, l.Importer} })

	type key struct{ year, importer, category string }
	index := make(map[key]int)
	out := make([]CountryCategory, 0)
	for _, link := range links {
		if link.Source == RestOfWorld {
			continue
		}
		k := key{link.Year, link.Importer, link.Target}
		if i, ok := index[k]; ok {
			out[i].Value += link.Value
			out[i].Share += link.Share
			continue
		}
		index[k] = len(out)
		out = append(out, CountryCategory{Year: k.year, Importer: k.importer, Category: k.category, Value: link.Value, Share: link.Share})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		if out[i].Importer != out[j].Importer {
			return out[i].Importer < out[j].Importer
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// FilterCategory keeps the rows of one category.
func FilterCategory(rows []CountryCategory, category string) []CountryCategory {
	out := make([]CountryCategory, 0)
	for _, row := range rows {
		if row.Category == category {
			out = append(out, row)
		}
	}
	return out
}

// Explorer bar indicators.
const (
	IndicatorValue = "USD (million)"
	IndicatorShare = "Share"
)

// BarRow is one (year, importer, indicator) line of the bar explorer with a value
// per category.
type BarRow struct {
	Year      string
	Importer  string
	Indicator string
	Values    map[string]float64
}

// BarExplorer pivots country categories into value (millions) and share lines. It
// returns the rows sorted by year, importer and indicator, and the sorted category
// columns.
func BarExplorer(rows []CountryCategory) ([]BarRow, []string) {
	type key struct{ year, importer, indicator string }
	index := make(map[key]*BarRow)
	seen := make(map[string]bool)
	categories := make([]string, 0)
	add := func(k key, category string, value float64) {
		row, ok := index[k]
		if !ok {
			row = &BarRow{Year: k.year, Importer: k.importer, Indicator: k.indicator, Values: make(map[string]float64)}
			index[k] = row
		}
		row.Values[category] = value
	}
	for _, row := range rows {
		if !seen[row.Category] {
			seen[row.Category] = true
			categories = append(categories, row.Category)
		}
		add(key{row.Year, row.Importer, IndicatorValue}, row.Category, row.Value/1e3)
		add(key{row.Year, row.Importer, IndicatorShare}, row.Category, row.Share)
	}

	out := make([]BarRow, 0, len(index))
	for _, row := range index {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		if out[i].Importer != out[j].Importer {
			return out[i].Importer < out[j].Importer
		}
		return out[i].Indicator < out[j].Indicator
	})
	sort.Strings(categories)
	return out, categories
}
