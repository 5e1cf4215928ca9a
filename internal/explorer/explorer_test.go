package explorer

import (
	"bytes"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tradeimpact/internal/enrich"
	"tradeimpact/internal/flows"
)

func valid(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func voteWorkbook(t *testing.T, sheet string, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(sheet)
	require.NoError(t, err)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadVotes(t *testing.T) {
	buf := voteWorkbook(t, VoteSheet, [][]any{
		{"country", "iso_code", "vote", "population"},
		{"Egypt", "EGY", "Yes", 104000000},
		{"Eritrea", "ERI", "No", ""},
		{"Nowhere", "", "Absent", 1},
	})
	votes, err := ReadVotes(buf, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]Vote{
		"EGY": {ISO: "EGY", Vote: "Yes", Population: valid(104000000)},
		"ERI": {ISO: "ERI", Vote: "No"},
	}, votes)

	_, err = ReadVotes(voteWorkbook(t, "other", [][]any{{"iso_code", "vote"}}), "")
	assert.Error(t, err)

	_, err = ReadVotes(voteWorkbook(t, VoteSheet, [][]any{{"country", "vote"}}), "")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	rows, categories := Build(Inputs{
		Trade: []flows.CountryCategory{
			{Year: "2018-2020", Importer: "Egypt", Category: "Wheat", Value: 2500, Share: 80},
			{Year: "2018-2020", Importer: "Egypt", Category: "Barley", Value: 100, Share: 10},
			{Year: "2018-2020", Importer: "Kenya", Category: "Wheat", Value: 400, Share: 30},
			{Year: "2018-2020", Importer: "Atlantis", Category: "Wheat", Value: 1, Share: 1},
		},
		Votes:        map[string]Vote{"EGY": {ISO: "EGY", Vote: "Yes", Population: valid(104e6)}},
		DebtStocks:   map[string]float64{"EGY": 125, "ZMB": 9},
		DebtService:  map[string]float64{"EGY": 12},
		IncomeLevels: enrich.Labels{"EGY": "Lower middle income", "ZMB": "Low income"},
		GDP:          enrich.Lookup{"EGY": 400e9},
	})

	assert.Equal(t, []string{"Barley", "Wheat"}, categories)
	require.Len(t, rows, 2)

	egypt := rows[0]
	assert.Equal(t, "Egypt", egypt.Name)
	assert.Equal(t, map[string]float64{"Wheat": 2.5, "Barley": 0.1}, egypt.Categories)
	assert.Equal(t, "Yes", egypt.Vote)
	assert.Equal(t, valid(104e6), egypt.Population)
	assert.Equal(t, valid(125), egypt.DebtStocks)
	assert.Equal(t, valid(12), egypt.DebtService)
	assert.Equal(t, valid(400e9), egypt.GDP)

	zambia := rows[1]
	assert.Equal(t, "ZMB", zambia.ISO)
	assert.Empty(t, zambia.Year)
	assert.Empty(t, zambia.Categories)
	assert.False(t, zambia.DebtService.Valid)
}
