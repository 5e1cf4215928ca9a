package fertiliser

import "tradeimpact/internal/calc"

// Scenario describes a supply shock: Disrupted exporters cut ExportCut (0-1) of
// their exports while Privileged importers keep meeting their full demand.
type Scenario struct {
	ExportCut  float64
	Disrupted  []string
	Privileged []string
}

// ShortageVariables are the summary rows, in output order.
var ShortageVariables = []string{
	"total import",
	"total export",
	"exports from disrupted exporters",
	"imports from privileged group",
	"exports available after cut and privileged demand",
	"import demand by rest of world",
	"imports by privileged group as % of total",
	"shortage",
	"import demand gap (%)",
	"privileged imports used in agriculture (%)",
	"privileged production as % of total",
}

// Shortage is the scenario summary for one fertiliser.
type Shortage struct {
	Fertiliser string

	TotalImport      float64
	TotalExport      float64
	TotalProduction  float64
	DisruptedExport  float64
	PrivilegedImport float64
	ExportsAvailable float64
	DemandRest       float64
	PrivilegedShare  float64
	Shortfall        float64
	DemandGap        float64
	PrivilegedAgUse  float64
	PrivilegedOutput float64
}

// Values lists the summary in ShortageVariables order.
func (s Shortage) Values() []float64 {
	return []float64{
		s.TotalImport,
		s.TotalExport,
		s.DisruptedExport,
		s.PrivilegedImport,
		s.ExportsAvailable,
		s.DemandRest,
		s.PrivilegedShare,
		s.Shortfall,
		s.DemandGap,
		s.PrivilegedAgUse,
		s.PrivilegedOutput,
	}
}

// Shortages runs the scenario for each fertiliser of rows, in first-seen order.
// Missing quantities count as zero.
func Shortages(rows []Balance, scenario Scenario) []Shortage {
	out := make([]Shortage, 0)
	for _, fertiliser := range Fertilisers(rows) {
		out = append(out, shortage(rows, fertiliser, scenario))
	}
	return out
}

func shortage(rows []Balance, fertiliser string, scenario Scenario) Shortage {
	s := Shortage{Fertiliser: fertiliser}
	var privilegedAgUse, privilegedProduction float64
	for _, row := range rows {
		if row.Fertiliser != fertiliser {
			continue
		}
		imports, exports, production := orZero(row.ImportQuantity), orZero(row.ExportQuantity), orZero(row.Production)
		s.TotalImport += imports
		s.TotalExport += exports
		s.TotalProduction += production
		if isAny(row.ISO, scenario.Disrupted) {
			s.DisruptedExport += exports
		}
		if isAny(row.ISO, scenario.Privileged) {
			s.PrivilegedImport += imports
			privilegedAgUse += orZero(row.AgUse)
			privilegedProduction += production
		}
	}

	s.ExportsAvailable = s.TotalExport - s.DisruptedExport*scenario.ExportCut - s.PrivilegedImport
	s.DemandRest = s.TotalImport - s.PrivilegedImport
	s.PrivilegedShare = calc.Percent(s.PrivilegedImport, s.TotalImport)
	s.Shortfall = s.DemandRest - s.ExportsAvailable
	s.DemandGap = calc.Percent(s.ExportsAvailable, s.DemandRest)
	s.PrivilegedAgUse = calc.Percent(s.PrivilegedImport, privilegedAgUse)
	s.PrivilegedOutput = calc.Percent(privilegedProduction, s.TotalProduction)
	return s
}
