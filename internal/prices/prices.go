// Package prices parses the World Bank monthly commodity price sheet (the "pink
// sheet") and derives the reference and latest prices used to value trade.
package prices

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"

	"tradeimpact/internal/model"
)

const (
	DefaultSheet = "Monthly Prices"

	// Rows are 0-based: the header is on the 5th sheet row, data starts on the 8th.
	headerRow    = 4
	firstDataRow = 7

	PeriodColumn  = "period"
	missingMarker = ".."
)

var (
	ErrUnknownCommodity   = errors.New("prices: unknown commodity")
	ErrDuplicateCommodity = errors.New("prices: duplicate commodity column")
	ErrNoData             = errors.New("prices: no price data")
)

var renames = map[string]string{
	"Wheat, US HRW":         "Wheat",
	"Potassium chloride **": "Potassium chloride",
}

// Canonical maps a sheet column name to the name used everywhere else.
func Canonical(name string) string {
	name = strings.TrimSpace(name)
	if renamed, ok := renames[name]; ok {
		return renamed
	}
	return name
}

// Table is a wide monthly series: one column per commodity, one row per period.
type Table struct {
	Periods     []time.Time
	Commodities []string
	values      map[string][]sql.NullFloat64
}

func newTable(periods []time.Time) *Table {
	return &Table{Periods: periods, values: make(map[string][]sql.NullFloat64)}
}

// Parse reads sheet from an xlsx workbook.
func Parse(r io.Reader, sheet string) (*Table, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("prices: open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("prices: read sheet %q: %w", sheet, err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) (*Table, error) {
	if len(rows) <= headerRow {
		return nil, fmt.Errorf("%w: sheet has %d rows", ErrNoData, len(rows))
	}

	header := rows[headerRow]
	columns := make(map[int]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, cell := range header {
		if i == 0 {
			continue
		}
		name := Canonical(cell)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCommodity, name)
		}
		seen[name] = struct{}{}
		columns[i] = name
	}

	periods := make([]time.Time, 0, len(rows))
	data := make([][]string, 0, len(rows))
	for i := firstDataRow; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		period, err := ParsePeriod(row[0])
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
		data = append(data, row)
	}

	table := newTable(periods)
	indexes := make([]int, 0, len(columns))
	for i := range columns {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		name := columns[i]
		series := make([]sql.NullFloat64, len(data))
		for r, row := range data {
			if i < len(row) {
				series[r] = parseCell(row[i])
			}
		}
		table.Commodities = append(table.Commodities, name)
		table.values[name] = series
	}
	return table, nil
}

// ParsePeriod converts "2022M03" into the first day of that month.
func ParsePeriod(value string) (time.Time, error) {
	period, err := time.Parse("2006M01", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("prices: bad period %q: %w", value, err)
	}
	return period, nil
}

func parseCell(value string) sql.NullFloat64 {
	value = strings.TrimSpace(value)
	if value == "" || value == missingMarker {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

// FromPoints rebuilds a wide table from long rows. Duplicate (period, commodity)
// pairs are rejected.
func FromPoints(points []model.PricePoint) (*Table, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}
	periodIndex := make(map[time.Time]int)
	periods := make([]time.Time, 0)
	commodities := make([]string, 0)
	known := make(map[string]struct{})
	for _, p := range points {
		if _, ok := periodIndex[p.Period]; !ok {
			periodIndex[p.Period] = 0
			periods = append(periods, p.Period)
		}
		if _, ok := known[p.Commodity]; !ok {
			known[p.Commodity] = struct{}{}
			commodities = append(commodities, p.Commodity)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	for i, period := range periods {
		periodIndex[period] = i
	}

	table := newTable(periods)
	table.Commodities = commodities
	filled := make(map[string][]bool, len(commodities))
	for _, name := range commodities {
		table.values[name] = make([]sql.NullFloat64, len(periods))
		filled[name] = make([]bool, len(periods))
	}
	for _, p := range points {
		i := periodIndex[p.Period]
		if filled[p.Commodity][i] {
			return nil, fmt.Errorf("prices: duplicate price for %s in %s", p.Commodity, p.Period.Format("2006-01"))
		}
		filled[p.Commodity][i] = true
		table.values[p.Commodity][i] = p.Price
	}
	return table, nil
}

func (t *Table) Has(commodity string) bool {
	_, ok := t.values[Canonical(commodity)]
	return ok
}

// Series returns the monthly values of commodity aligned with Periods.
func (t *Table) Series(commodity string) ([]sql.NullFloat64, error) {
	series, ok := t.values[Canonical(commodity)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommodity, commodity)
	}
	return series, nil
}

// Select keeps the requested commodities that exist, in the order asked.
func (t *Table) Select(names ...string) *Table {
	out := newTable(t.Periods)
	for _, name := range names {
		name = Canonical(name)
		series, ok := t.values[name]
		if !ok {
			continue
		}
		if _, dup := out.values[name]; dup {
			continue
		}
		out.Commodities = append(out.Commodities, name)
		out.values[name] = series
	}
	return out
}

// Since keeps periods on or after start.
func (t *Table) Since(start time.Time) *Table {
	first := sort.Search(len(t.Periods), func(i int) bool { return !t.Periods[i].Before(start) })
	out := newTable(t.Periods[first:])
	out.Commodities = append(out.Commodities, t.Commodities...)
	for name, series := range t.values {
		out.values[name] = series[first:]
	}
	return out
}

// Long melts the table into (period, commodity, price) rows ordered by commodity
// then period.
func (t *Table) Long() []model.PricePoint {
	out := make([]model.PricePoint, 0, len(t.Periods)*len(t.Commodities))
	for _, name := range t.Commodities {
		for i, period := range t.Periods {
			out = append(out, model.PricePoint{Period: period, Commodity: name, Price: t.values[name][i]})
		}
	}
	return out
}

// Latest is the last non-null price of every commodity that has one.
func (t *Table) Latest() map[string]float64 {
	out := make(map[string]float64, len(t.Commodities))
	for _, name := range t.Commodities {
		series := t.values[name]
		for i := len(series) - 1; i >= 0; i-- {
			if series[i].Valid {
				out[name] = series[i].Float64
				break
			}
		}
	}
	return out
}

// YearlyMean averages the non-null monthly prices per calendar year.
func (t *Table) YearlyMean() map[string]map[int]float64 {
	out := make(map[string]map[int]float64, len(t.Commodities))
	for _, name := range t.Commodities {
		byYear := make(map[int][]float64)
		for i, value := range t.values[name] {
			if !value.Valid {
				continue
			}
			year := t.Periods[i].Year()
			byYear[year] = append(byYear[year], value.Float64)
		}
		means := make(map[int]float64, len(byYear))
		for year, values := range byYear {
			means[year] = stat.Mean(values, nil)
		}
		out[name] = means
	}
	return out
}

// MeanBetween is the mean of the yearly means for years in [start, end]. Years
// without data are left out; commodities with no data in the window are absent.
func (t *Table) MeanBetween(start, end int) map[string]float64 {
	out := make(map[string]float64)
	for name, years := range t.YearlyMean() {
		values := make([]float64, 0, end-start+1)
		for year := start; year <= end; year++ {
			if mean, ok := years[year]; ok {
				values = append(values, mean)
			}
		}
		if len(values) > 0 {
			out[name] = stat.Mean(values, nil)
		}
	}
	return out
}

// Snapshots returns the two price points a quantity is valued at: the mean over
// the reference years and the latest observation.
func (t *Table) Snapshots(referenceStart, referenceEnd int) map[model.PriceSnapshot]map[string]float64 {
	return map[model.PriceSnapshot]map[string]float64{
		model.SnapshotReference: t.MeanBetween(referenceStart, referenceEnd),
		model.SnapshotLatest:    t.Latest(),
	}
}
