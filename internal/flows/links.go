package flows

import (
	"sort"
)

// Link is one source to target edge of a flow chart.
type Link struct {
	Year     string
	Source   string
	Target   string
	Value    float64
	StepFrom int
	StepTo   int

	// Importer is the importer name or continent, when the chart keeps it.
	Importer string
	Share    float64
}

// Fixed display orders. Sources or targets not listed sort last.
var (
	exporterOrder = map[string]int{
		"Ukraine": 1,
		"Russia":  2,
		"Europe":  3,
		"America": 4,
		"Asia":    5,
		"Oceania": 6,
	}
	africaCategoryOrder = map[string]int{
		"Wheat":          1,
		"Petroleum oils": 2,
		"Coal":           3,
		"Steel and Iron": 4,
		"Sunflower oil":  5,
		"Gas":            6,
	}
	exporterCategoryOrder = map[string]int{
		"Wheat":          1,
		"Sunflower oil":  2,
		"Coal":           3,
		"Barley":         4,
		"Maize":          5,
		"Steel and Iron": 6,
		"Petroleum oils": 7,
	}
)

const unordered = 99

func rank(order map[string]int, name string) int {
	if n, ok := order[name]; ok {
		return n
	}
	return unordered
}

const otherContinent = "Other"

type linkKey struct {
	year, source, target, importer string
}

func sumLinks(rows []Row, stepFrom, stepTo int, key func(Row) linkKey) []Link {
	index := make(map[linkKey]int)
	out := make([]Link, 0)
	for _, row := range rows {
		k := key(row)
		if i, ok := index[k]; ok {
			out[i].Value += row.Value
			continue
		}
		index[k] = len(out)
		out = append(out, Link{
			Year:     k.year,
			Source:   k.source,
			Target:   k.target,
			Importer: k.importer,
			Value:    row.Value,
			StepFrom: stepFrom,
			StepTo:   stepTo,
		})
	}
	return out
}

// exporterSource names the grouped exporter by its continent.
func exporterSource(row Row) string {
	if row.ExporterName != RestOfWorld {
		return row.ExporterName
	}
	if row.ExporterContinent == "" {
		return otherContinent
	}
	return row.ExporterContinent
}

func sortByExporter(links []Link) {
	sort.SliceStable(links, func(i, j int) bool {
		a, b := rank(exporterOrder, links[i].Source), rank(exporterOrder, links[j].Source)
		if a != b {
			return a < b
		}
		if links[i].Year != links[j].Year {
			return links[i].Year > links[j].Year
		}
		return links[i].Value > links[j].Value
	})
}

// ExportersToAfrica links each exporter to the importing continent. Grouped
// exporters are shown as their own continent.
func ExportersToAfrica(rows []Row, stepFrom, stepTo int) []Link {
	links := sumLinks(rows, stepFrom, stepTo, func(r Row) linkKey {
		return linkKey{year: r.Year, source: exporterSource(r), target: orOther(r.ImporterContinent)}
	})
	sortByExporter(links)
	return links
}

// ExportersToAfricanCountries links each exporter to every importing country.
func ExportersToAfricanCountries(rows []Row, stepFrom, stepTo int) []Link {
	links := sumLinks(rows, stepFrom, stepTo, func(r Row) linkKey {
		return linkKey{year: r.Year, source: exporterSource(r), target: r.ImporterName, importer: r.ImporterName}
	})
	sortByExporter(links)
	return links
}

// AfricaToCategories links the importing continent to commodity categories,
// leaving out imports from the grouped exporters.
func AfricaToCategories(rows []Row, stepFrom, stepTo int) []Link {
	kept := make([]Row, 0, len(rows))
	for _, row := range rows {
		if row.Exporter != RestOfWorld {
			kept = append(kept, row)
		}
	}
	links := sumLinks(kept, stepFrom, stepTo, func(r Row) linkKey {
		return linkKey{year: r.Year, source: orOther(r.ImporterContinent), target: r.Cat2}
	})
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].Year != links[j].Year {
			return links[i].Year < links[j].Year
		}
		a, b := rank(africaCategoryOrder, links[i].Target), rank(africaCategoryOrder, links[j].Target)
		if a != b {
			return a < b
		}
		return links[i].Value > links[j].Value
	})
	return links
}

// ExporterToCategories links exporter codes to commodity categories, per importing
// continent.
func ExporterToCategories(rows []Row, stepFrom, stepTo int) []Link {
	links := sumLinks(rows, stepFrom, stepTo, func(r Row) linkKey {
		return linkKey{year: r.Year, source: r.Exporter, target: r.Cat2, importer: r.ImporterContinent}
	})
	sortByCategory(links)
	return links
}

// ExporterToCategoriesByImporter links exporter names to commodity categories, per
// importing country.
func ExporterToCategoriesByImporter(rows []Row, stepFrom, stepTo int) []Link {
	links := sumLinks(rows, stepFrom, stepTo, func(r Row) linkKey {
		return linkKey{year: r.Year, source: r.ExporterName, target: r.Cat2, importer: r.ImporterName}
	})
	sortByCategory(links)
	return links
}

func sortByCategory(links []Link) {
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].Year != links[j].Year {
			return links[i].Year < links[j].Year
		}
		if links[i].Source != links[j].Source {
			return links[i].Source > links[j].Source
		}
		a, b := rank(exporterCategoryOrder, links[i].Target), rank(exporterCategoryOrder, links[j].Target)
		if a != b {
			return a < b
		}
		return links[i].Value > links[j].Value
	})
}

func orOther(continent string) string {
	if continent == "" {
		return otherContinent
	}
	return continent
}

// FilterSources keeps links whose source is one of names.
func FilterSources(links []Link, names ...string) []Link {
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		keep[name] = true
	}
	out := make([]Link, 0, len(links))
	for _, link := range links {
		if keep[link.Source] {
			out = append(out, link)
		}
	}
	return out
}
