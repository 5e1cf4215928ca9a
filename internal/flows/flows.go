// Package flows groups bilateral trade into chart categories and shapes it into
// the source/target links and shares used by the story charts.
package flows

import (
	"sort"
	"strconv"

	"tradeimpact/internal/calc"
	"tradeimpact/internal/codes"
	"tradeimpact/internal/model"
	"tradeimpact/internal/reference"
)

// RestOfWorld is the exporter label for everything outside the detailed exporters.
const RestOfWorld = "Rest of the World"

// DefaultExporters are shown in detail unless told otherwise.
var DefaultExporters = []string{"RUS", "UKR"}

// Row is a categorised trade value. Year is a single year or a span label.
type Row struct {
	Year              string
	Exporter          string
	Importer          string
	ExporterContinent string
	ImporterContinent string
	Code              string
	Cat1              string
	Cat2              string
	Value             float64

	ExporterName string
	ImporterName string
}

type rowKey struct {
	year, exporter, importer, expCont, impCont, code, cat1, cat2 string
}

func (r Row) key() rowKey {
	return rowKey{r.Year, r.Exporter, r.Importer, r.ExporterContinent, r.ImporterContinent, r.Code, r.Cat1, r.Cat2}
}

// sumBy adds up values of rows that share key(row), keeping the first row seen
// for every other field.
func sumBy[K comparable](rows []Row, key func(Row) K) []Row {
	index := make(map[K]int)
	out := make([]Row, 0)
	for _, row := range rows {
		k := key(row)
		if i, ok := index[k]; ok {
			out[i].Value += row.Value
			continue
		}
		index[k] = len(out)
		out = append(out, row)
	}
	return out
}

// SimplifyCodes attaches the broad (cat1) and detailed (cat2) category of every
// record's commodity code.
func SimplifyCodes(records []model.TradeRecord, classification codes.Classification) []Row {
	out := make([]Row, 0, len(records))
	for _, record := range records {
		out = append(out, Row{
			Year:              strconv.Itoa(int(record.Year)),
			Exporter:          record.Exporter,
			Importer:          record.Importer,
			ExporterContinent: record.ExporterContinent,
			ImporterContinent: record.ImporterContinent,
			Code:              codes.Normalize(record.CommodityCode),
			Cat1:              classification.Broad(record.CommodityCode),
			Cat2:              classification.Detailed(record.CommodityCode),
			Value:             record.Value,
		})
	}
	return out
}

// SimplifyExporters keeps the detailed exporters and relabels every other exporter
// as grouping, summing the rows that collapse together. Nil detailed means
// DefaultExporters.
func SimplifyExporters(rows []Row, detailed []string, grouping string) []Row {
	if detailed == nil {
		detailed = DefaultExporters
	}
	if grouping == "" {
		grouping = RestOfWorld
	}
	keep := make(map[string]bool, len(detailed))
	for _, iso := range detailed {
		keep[iso] = true
	}
	relabelled := make([]Row, len(rows))
	for i, row := range rows {
		if !keep[row.Exporter] {
			row.Exporter = grouping
		}
		relabelled[i] = row
	}
	return sumBy(relabelled, Row.key)
}

// GroupByCategory sums values per (year, exporter, importer, continents, cat2).
// Rows without a detailed category are dropped. Output is sorted by exporter, then
// by value descending.
func GroupByCategory(rows []Row) []Row {
	type key struct{ year, exporter, importer, impCont, expCont, cat2 string }
	kept := make([]Row, 0, len(rows))
	for _, row := range rows {
		if row.Cat2 == "" {
			continue
		}
		row.Code, row.Cat1 = "", ""
		kept = append(kept, row)
	}
	out := sumBy(kept, func(r Row) key {
		return key{r.Year, r.Exporter, r.Importer, r.ImporterContinent, r.ExporterContinent, r.Cat2}
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Exporter != out[j].Exporter {
			return out[i].Exporter < out[j].Exporter
		}
		return out[i].Value > out[j].Value
	})
	return out
}

// AverageYearly sums each group over its years and divides by the number of
// distinct years in rows, labelling the year "<min>-<max>".
func AverageYearly(rows []Row) []Row {
	seen := make(map[int]bool)
	years := make([]int, 0)
	for _, row := range rows {
		year, err := strconv.Atoi(row.Year)
		if err != nil || seen[year] {
			continue
		}
		seen[year] = true
		years = append(years, year)
	}
	if len(years) == 0 {
		return nil
	}
	span := calc.YearSpan(years)

	spanned := make([]Row, len(rows))
	for i, row := range rows {
		row.Year = span
		spanned[i] = row
	}
	out := sumBy(spanned, Row.key)
	for i := range out {
		out[i].Value = calc.Round(out[i].Value/float64(len(years)), 4)
	}
	return out
}

// AddCountryNames sets short exporter and importer names. Codes the reference table
// does not know, such as the grouping label, become RestOfWorld.
func AddCountryNames(rows []Row, countries *reference.Table) []Row {
	if countries == nil {
		countries = reference.Countries()
	}
	out := make([]Row, len(rows))
	for i, row := range rows {
		row.ExporterName = countries.ShortName(row.Exporter, RestOfWorld)
		row.ImporterName = countries.ShortName(row.Importer, RestOfWorld)
		out[i] = row
	}
	return out
}

// ExcludeIntraEU drops trade where both partners are EU27 members.
func ExcludeIntraEU(rows []Row, countries *reference.Table) []Row {
	if countries == nil {
		countries = reference.Countries()
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if countries.EU27(row.Exporter) && countries.EU27(row.Importer) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// ExportsToAfrica is the categorised, exporter-simplified, yearly-averaged view of
// trade into Africa. Exporters outside detailed become RestOfWorld; nil detailed
// means DefaultExporters.
func ExportsToAfrica(records []model.TradeRecord, classification codes.Classification, detailed []string, countries *reference.Table) []Row {
	rows := SimplifyCodes(records, classification)
	return summarise(rows, detailed, countries)
}

// ExportsNoIntraEurope is ExportsToAfrica over world trade with intra-EU trade
// removed.
func ExportsNoIntraEurope(records []model.TradeRecord, classification codes.Classification, detailed []string, countries *reference.Table) []Row {
	rows := ExcludeIntraEU(SimplifyCodes(records, classification), countries)
	return summarise(rows, detailed, countries)
}

func summarise(rows []Row, detailed []string, countries *reference.Table) []Row {
	rows = SimplifyExporters(rows, detailed, RestOfWorld)
	rows = GroupByCategory(rows)
	rows = AverageYearly(rows)
	return AddCountryNames(rows, countries)
}
