package prices

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tradeimpact/internal/model"
)

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

// workbook lays out a sheet the way the World Bank file does: a title block, the
// header on row 5, units on rows 6-7 and monthly data from row 8.
func workbook(t *testing.T, header []any, data [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(DefaultSheet)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(DefaultSheet, "A1", "World Bank Commodity Price Data (The Pink Sheet)"))
	require.NoError(t, f.SetSheetRow(DefaultSheet, "A5", &header))
	units := []any{"", "($/mt)", "($/mt)", "($/mt)"}
	require.NoError(t, f.SetSheetRow(DefaultSheet, "A6", &units))
	for i, row := range data {
		cell, err := excelize.CoordinatesToCellName(1, 8+i)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(DefaultSheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func sampleWorkbook(t *testing.T) *bytes.Buffer {
	return workbook(t,
		[]any{"", "Maize", "Wheat, US HRW", "Sunflower oil"},
		[][]any{
			{"2019M11", 160.0, 200.0, ".."},
			{"2019M12", 170.0, 210.0, 700.0},
			{"2020M01", 180.0, 220.0, ".."},
			{"2020M02", 190.0, 230.0, 900.0},
			{"2020M03", 200.0, "..", ".."},
		},
	)
}

func TestParse(t *testing.T) {
	table, err := Parse(sampleWorkbook(t), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Maize", "Wheat", "Sunflower oil"}, table.Commodities)
	require.Len(t, table.Periods, 5)
	assert.Equal(t, month(2019, time.November), table.Periods[0])
	assert.Equal(t, month(2020, time.March), table.Periods[4])

	wheat, err := table.Series("Wheat, US HRW")
	require.NoError(t, err)
	assert.Equal(t, sql.NullFloat64{Float64: 200, Valid: true}, wheat[0])
	assert.False(t, wheat[4].Valid)

	_, err = table.Series("Gold")
	assert.ErrorIs(t, err, ErrUnknownCommodity)
}

func TestParseErrors(t *testing.T) {
	t.Run("duplicate column", func(t *testing.T) {
		buf := workbook(t, []any{"", "Maize", "Maize"}, [][]any{{"2020M01", 1.0, 2.0}})
		_, err := Parse(buf, DefaultSheet)
		assert.ErrorIs(t, err, ErrDuplicateCommodity)
	})

	t.Run("missing sheet", func(t *testing.T) {
		_, err := Parse(sampleWorkbook(t), "Annual Prices")
		assert.Error(t, err)
	})

	t.Run("bad period", func(t *testing.T) {
		buf := workbook(t, []any{"", "Maize"}, [][]any{{"January 2020", 1.0}})
		_, err := Parse(buf, DefaultSheet)
		assert.Error(t, err)
	})
}

func TestLatest(t *testing.T) {
	table, err := Parse(sampleWorkbook(t), "")
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{
		"Maize":         200,
		"Wheat":         230,
		"Sunflower oil": 900,
	}, table.Latest())
}

func TestYearlyMean(t *testing.T) {
	table, err := Parse(sampleWorkbook(t), "")
	require.NoError(t, err)

	means := table.YearlyMean()
	assert.InDelta(t, 165, means["Maize"][2019], 1e-9)
	assert.InDelta(t, 190, means["Maize"][2020], 1e-9)
	assert.InDelta(t, 700, means["Sunflower oil"][2019], 1e-9)
	assert.InDelta(t, 225, means["Wheat"][2020], 1e-9)

	between := table.MeanBetween(2019, 2020)
	assert.InDelta(t, (165.0+190.0)/2, between["Maize"], 1e-9)
	assert.InDelta(t, (700.0+900.0)/2, between["Sunflower oil"], 1e-9)

	only2020 := table.MeanBetween(2020, 2021)
	assert.InDelta(t, 190, only2020["Maize"], 1e-9)

	assert.Empty(t, table.MeanBetween(2010, 2012))
}

func TestSelectSinceLong(t *testing.T) {
	table, err := Parse(sampleWorkbook(t), "")
	require.NoError(t, err)

	selected := table.Select("Wheat, US HRW", "Gold", "Maize")
	assert.Equal(t, []string{"Wheat", "Maize"}, selected.Commodities)

	recent := selected.Since(month(2020, time.February))
	assert.Len(t, recent.Periods, 2)

	long := recent.Long()
	require.Len(t, long, 4)
	assert.Equal(t, model.PricePoint{Period: month(2020, time.February), Commodity: "Wheat", Price: sql.NullFloat64{Float64: 230, Valid: true}}, long[0])
	assert.Equal(t, "Maize", long[2].Commodity)

	assert.Empty(t, table.Since(month(2030, time.January)).Periods)
}

func TestFromPoints(t *testing.T) {
	table, err := Parse(sampleWorkbook(t), "")
	require.NoError(t, err)

	rebuilt, err := FromPoints(table.Long())
	require.NoError(t, err)
	assert.Equal(t, table.Periods, rebuilt.Periods)
	assert.Equal(t, table.Latest(), rebuilt.Latest())

	points := []model.PricePoint{
		{Period: month(2020, time.January), Commodity: "Maize", Price: sql.NullFloat64{Float64: 1, Valid: true}},
		{Period: month(2020, time.January), Commodity: "Maize", Price: sql.NullFloat64{Float64: 2, Valid: true}},
	}
	_, err = FromPoints(points)
	assert.Error(t, err)

	_, err = FromPoints(nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSnapshots(t *testing.T) {
	table, err := Parse(sampleWorkbook(t), "")
	require.NoError(t, err)

	snapshots := table.Snapshots(2019, 2019)
	assert.InDelta(t, 165, snapshots[model.SnapshotReference]["Maize"], 1e-9)
	assert.InDelta(t, 200, snapshots[model.SnapshotLatest]["Maize"], 1e-9)
}

type stubSource struct {
	name  string
	table *Table
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Table(context.Context) (*Table, error) {
	s.calls++
	return s.table, s.err
}

type stubFetcher struct{ body *bytes.Buffer }

func (f stubFetcher) Fetch(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(f.body), nil
}

func TestCache(t *testing.T) {
	table, err := Parse(sampleWorkbook(t), "")
	require.NoError(t, err)

	empty := &stubSource{name: "store", err: ErrNoData}
	full := &stubSource{name: "download", table: table}
	cache := NewCache(context.Background(), nil, empty, full)

	first, err := cache.Get()
	require.NoError(t, err)
	second, err := cache.Get()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, empty.calls)
	assert.Equal(t, 1, full.calls)

	failing := &stubSource{name: "download", err: errors.New("boom")}
	_, err = NewCache(context.Background(), nil, failing).Get()
	assert.ErrorContains(t, err, "boom")

	_, err = NewCache(context.Background(), nil, empty).Get()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFetchSource(t *testing.T) {
	source := FetchSource{Fetcher: stubFetcher{body: sampleWorkbook(t)}, Sheet: DefaultSheet}
	table, err := source.Table(context.Background())
	require.NoError(t, err)
	assert.True(t, table.Has("Maize"))
}
