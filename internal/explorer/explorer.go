// Package explorer assembles the per-country commodity explorer: Russia and
// Ukraine category imports next to the UN resolution vote, bilateral debt, income
// level and GDP.
package explorer

import (
	"database/sql"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"tradeimpact/internal/calc"
	"tradeimpact/internal/enrich"
	"tradeimpact/internal/flows"
	"tradeimpact/internal/rawdata"
	"tradeimpact/internal/reference"
)

const (
	VoteFile  = "resolution_vote.xlsx"
	VoteSheet = "detail"
)

// Vote is one country's position on the UN resolution.
type Vote struct {
	ISO        string
	Vote       string
	Population sql.NullFloat64
}

// ReadVotes reads the vote sheet (iso_code, vote, population) of the resolution
// workbook.
func ReadVotes(r io.Reader, sheet string) (map[string]Vote, error) {
	if sheet == "" {
		sheet = VoteSheet
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("explorer: open votes: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("explorer: read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("explorer: sheet %q: %w", sheet, rawdata.ErrEmptyCSV)
	}
	header := rawdata.NewHeader(rows[0])
	if err := header.Require("iso_code", "vote"); err != nil {
		return nil, fmt.Errorf("explorer: %w", err)
	}

	votes := make(map[string]Vote, len(rows)-1)
	for _, row := range rows[1:] {
		iso := header.Get(row, "iso_code")
		if iso == "" {
			continue
		}
		vote := Vote{ISO: iso, Vote: header.Get(row, "vote")}
		if population, ok := header.Float(row, "population"); ok {
			vote.Population = calc.Null(population)
		}
		votes[iso] = vote
	}
	return votes, nil
}

// Inputs are the tables merged into the explorer.
type Inputs struct {
	Trade        []flows.CountryCategory
	Votes        map[string]Vote
	DebtStocks   map[string]float64
	DebtService  map[string]float64
	IncomeLevels enrich.Labels
	GDP          enrich.Lookup
	Countries    *reference.Table
}

// Row is one country (and trade year) of the explorer.
type Row struct {
	ISO         string
	Name        string
	Year        string
	Categories  map[string]float64
	Vote        string
	Population  sql.NullFloat64
	DebtStocks  sql.NullFloat64
	DebtService sql.NullFloat64
	IncomeLevel string
	GDP         sql.NullFloat64
}

// Build pivots trade values (in millions) by category per country and year, then
// attaches votes, debt, income level, GDP and the country name. Countries that only
// appear in the debt tables get a row without trade. Rows without an income level
// are dropped. It returns the rows sorted by ISO and year and the sorted category
// columns.
func Build(in Inputs) ([]Row, []string) {
	countries := in.Countries
	if countries == nil {
		countries = reference.Countries()
	}

	type key struct{ iso, year string }
	index := make(map[key]*Row)
	seen := make(map[string]bool)
	categories := make([]string, 0)
	hasTrade := make(map[string]bool)
	for _, trade := range in.Trade {
		iso := countries.ISO3FromName(trade.Importer)
		if iso == "" {
			continue
		}
		k := key{iso, trade.Year}
		row, ok := index[k]
		if !ok {
			row = &Row{ISO: iso, Year: trade.Year, Categories: make(map[string]float64)}
			index[k] = row
		}
		row.Categories[trade.Category] += trade.Value / 1e3
		hasTrade[iso] = true
		if !seen[trade.Category] {
			seen[trade.Category] = true
			categories = append(categories, trade.Category)
		}
	}
	for _, debts := range []map[string]float64{in.DebtStocks, in.DebtService} {
		for iso := range debts {
			if !hasTrade[iso] {
				hasTrade[iso] = true
				index[key{iso, ""}] = &Row{ISO: iso, Categories: map[string]float64{}}
			}
		}
	}

	out := make([]Row, 0, len(index))
	for _, row := range index {
		row.IncomeLevel = in.IncomeLevels.Get(row.ISO)
		if row.IncomeLevel == "" {
			continue
		}
		if vote, ok := in.Votes[row.ISO]; ok {
			row.Vote = vote.Vote
			row.Population = vote.Population
		}
		row.DebtStocks = calc.Lookup(in.DebtStocks, row.ISO)
		row.DebtService = calc.Lookup(in.DebtService, row.ISO)
		row.GDP = in.GDP.Get(row.ISO)
		row.Name = countries.ShortName(row.ISO, reference.NotFound)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ISO != out[j].ISO {
			return out[i].ISO < out[j].ISO
		}
		return out[i].Year < out[j].Year
	})
	sort.Strings(categories)
	return out, categories
}
