package fertiliser

import (
	"tradeimpact/internal/enrich"
	"tradeimpact/internal/reference"
)

// MapRow is one country on a dependence map.
type MapRow struct {
	Country    string
	ISO        string
	Continent  string
	Fertiliser string
	Dependence float64
	Geometry   string
}

// DependenceMap holds the rows of one fertiliser.
type DependenceMap struct {
	Fertiliser string
	Rows       []MapRow
}

// DependenceMaps splits dependence rows into one map per fertiliser and attaches
// country geometries. Countries the reference table does not know get an empty
// name.
func DependenceMaps(rows []Balance, geometries enrich.Labels, countries *reference.Table) []DependenceMap {
	if countries == nil {
		countries = reference.Countries()
	}
	out := make([]DependenceMap, 0)
	for _, fertiliser := range Fertilisers(rows) {
		m := DependenceMap{Fertiliser: fertiliser, Rows: make([]MapRow, 0)}
		for _, row := range rows {
			if row.Fertiliser != fertiliser {
				continue
			}
			m.Rows = append(m.Rows, MapRow{
				Country:    countries.ShortName(row.ISO, ""),
				ISO:        row.ISO,
				Continent:  row.Continent,
				Fertiliser: fertiliser,
				Dependence: row.Dependence,
				Geometry:   geometries.Get(row.ISO),
			})
		}
		out = append(out, m)
	}
	return out
}
