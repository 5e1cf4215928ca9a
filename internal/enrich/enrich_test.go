package enrich

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeimpact/internal/model"
	"tradeimpact/internal/providers/weo"
	"tradeimpact/internal/providers/worldbank"
	"tradeimpact/internal/store"
)

type row struct {
	ISO        string
	Value      sql.NullFloat64
	Population sql.NullFloat64
	Income     string
	PPP        sql.NullFloat64
}

func valid(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func TestFloatsAndStrings(t *testing.T) {
	rows := []row{{ISO: "NGA"}, {ISO: "egy"}, {ISO: "XXX"}}

	missing := Floats(rows, func(r *row) string { return r.ISO }, Lookup{"NGA": 213e6, "EGY": 104e6},
		func(r *row, v sql.NullFloat64) { r.Population = v })
	assert.Equal(t, 1, missing)
	assert.Equal(t, valid(213e6), rows[0].Population)
	assert.Equal(t, valid(104e6), rows[1].Population)
	assert.False(t, rows[2].Population.Valid)

	missing = Strings(rows, func(r *row) string { return r.ISO }, Labels{"NGA": "Lower middle income"},
		func(r *row, v string) { r.Income = v })
	assert.Equal(t, 2, missing)
	assert.Len(t, rows, 3)
	assert.Equal(t, "Lower middle income", rows[0].Income)
	assert.Equal(t, "", rows[2].Income)
}

func TestGDP(t *testing.T) {
	records := []weo.Record{
		{ISO: "NGA", Subject: weo.SubjectGDP, Year: 2022, Value: 504.203},
		{ISO: "NGA", Subject: weo.SubjectGDP, Year: 2021, Value: 440.8},
		{ISO: "NGA", Subject: "LP", Year: 2022, Value: 216},
		{ISO: "DZA", Subject: weo.SubjectGDP, Year: 2022, Value: 187.155},
	}

	gdp, err := GDP(records, 2022)
	require.NoError(t, err)
	assert.InDelta(t, 504.203e9, gdp["NGA"], 1)
	assert.InDelta(t, 187.155e9, gdp["DZA"], 1)
	assert.Len(t, gdp, 2)

	records = append(records, weo.Record{ISO: "DZA", Subject: weo.SubjectGDP, Year: 2022, Value: 190})
	_, err = GDP(records, 2022)
	assert.ErrorIs(t, err, ErrAmbiguousGDP)
	assert.ErrorContains(t, err, "DZA")
}

func TestPPP(t *testing.T) {
	null := sql.NullFloat64{}
	tests := []struct {
		name              string
		value, fx, factor sql.NullFloat64
		want              sql.NullFloat64
	}{
		{name: "converts", value: valid(100), fx: valid(400), factor: valid(160), want: valid(250)},
		{name: "missing factor", value: valid(100), fx: valid(400), factor: null, want: null},
		{name: "zero factor", value: valid(100), fx: valid(400), factor: valid(0), want: null},
		{name: "missing value", value: null, fx: valid(400), factor: valid(160), want: null},
		{name: "missing rate", value: valid(100), fx: null, factor: valid(160), want: null},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PPP(tt.value, tt.fx, tt.factor))
		})
	}

	rows := []row{{ISO: "NGA", Value: valid(100)}, {ISO: "EGY", Value: valid(10)}}
	missing := AddPPP(rows,
		func(r *row) string { return r.ISO },
		func(r *row) sql.NullFloat64 { return r.Value },
		func(r *row, v sql.NullFloat64) { r.PPP = v },
		PPPFactors{ExchangeRate: Lookup{"NGA": 400, "EGY": 16}, Conversion: Lookup{"NGA": 160}},
	)
	assert.Equal(t, 1, missing)
	assert.Equal(t, valid(250), rows[0].PPP)
	assert.False(t, rows[1].PPP.Valid)
}

func TestLookupFrom(t *testing.T) {
	lookup := LookupFrom([]model.IndicatorValue{
		{ISO3: "NGA", Year: 2020, Value: 1},
		{ISO3: "NGA", Year: 2021, Value: 2},
		{ISO3: "nga", Year: 2019, Value: 3},
	})
	assert.Equal(t, Lookup{"NGA": 2}, lookup)
}

func TestReaders(t *testing.T) {
	shapes, err := Geometries(strings.NewReader("iso_code,geometry\nNGA,\"POLYGON ((3 4, 5 6))\"\n,POINT (1 1)\n"))
	require.NoError(t, err)
	assert.Equal(t, Labels{"NGA": "POLYGON ((3 4, 5 6))"}, shapes)

	_, err = Geometries(strings.NewReader("iso,geometry\n"))
	assert.Error(t, err)

	levels, err := IncomeLevelsCSV(strings.NewReader("Code,Income group\nNGA,Lower middle income\nWLD,\n"))
	require.NoError(t, err)
	assert.Equal(t, Labels{"NGA": "Lower middle income"}, levels)

	levels, err = IncomeLevelsCSV(strings.NewReader("Code,income_level\nEGY,Lower middle income\n"))
	require.NoError(t, err)
	assert.Equal(t, Labels{"EGY": "Lower middle income"}, levels)

	gdp, err := ValuesCSV(strings.NewReader("iso_code,value\nNGA,448120000000\nEGY,\n"), "iso_code", "value")
	require.NoError(t, err)
	assert.Equal(t, Lookup{"NGA": 448120000000}, gdp)
}

type fakeStore struct {
	indicators map[string][]model.IndicatorValue
	labels     []model.Label
}

func (f *fakeStore) ListIndicator(_ context.Context, indicator string) ([]model.IndicatorValue, error) {
	return f.indicators[indicator], nil
}

func (f *fakeStore) ListLabels(_ context.Context, kind string) ([]model.Label, error) {
	if kind != store.LabelIncomeLevel {
		return nil, nil
	}
	return f.labels, nil
}

type fakeProvider struct {
	calls  map[string]int
	values map[string][]model.IndicatorValue
	income map[string]string
	err    error
}

func (f *fakeProvider) Indicator(_ context.Context, code string) ([]model.IndicatorValue, error) {
	f.calls[code]++
	if f.err != nil {
		return nil, f.err
	}
	return f.values[code], nil
}

func (f *fakeProvider) IncomeLevels(context.Context) (map[string]string, error) {
	f.calls["income"]++
	return f.income, f.err
}

type fakeOutlook struct {
	records []weo.Record
	calls   int
}

func (f *fakeOutlook) Records(context.Context) ([]weo.Record, error) {
	f.calls++
	return f.records, nil
}

func TestSources(t *testing.T) {
	st := &fakeStore{
		indicators: map[string][]model.IndicatorValue{
			worldbank.Population: {{Indicator: worldbank.Population, ISO3: "NGA", Year: 2021, Value: 213e6}},
		},
	}
	provider := &fakeProvider{
		calls: map[string]int{},
		values: map[string][]model.IndicatorValue{
			worldbank.OfficialExchangeRate: {{ISO3: "NGA", Year: 2021, Value: 400}},
			worldbank.PPPConversionFactor:  {{ISO3: "NGA", Year: 2021, Value: 160}},
		},
		income: map[string]string{"nga": "Lower middle income"},
	}
	outlook := &fakeOutlook{records: []weo.Record{{ISO: "NGA", Subject: weo.SubjectGDP, Year: 2022, Value: 500}}}
	sources := NewSources(context.Background(), st, provider, outlook, nil)

	population, err := sources.Population()
	require.NoError(t, err)
	assert.Equal(t, Lookup{"NGA": 213e6}, population)
	assert.Zero(t, provider.calls[worldbank.Population])

	for i := 0; i < 2; i++ {
		factors, err := sources.PPPFactors()
		require.NoError(t, err)
		assert.Equal(t, Lookup{"NGA": 400}, factors.ExchangeRate)
	}
	assert.Equal(t, 1, provider.calls[worldbank.OfficialExchangeRate])

	income, err := sources.IncomeLevels()
	require.NoError(t, err)
	assert.Equal(t, Labels{"NGA": "Lower middle income"}, income)

	gdp, err := sources.GDP(2022)
	require.NoError(t, err)
	assert.InDelta(t, 500e9, gdp["NGA"], 1)
	_, err = sources.GDP(2021)
	require.NoError(t, err)
	assert.Equal(t, 1, outlook.calls)
}

func TestSourcesFallbacks(t *testing.T) {
	st := &fakeStore{
		indicators: map[string][]model.IndicatorValue{
			StoredGDP: GDPValues([]weo.Record{
				{ISO: "EGY", Subject: weo.SubjectGDP, Year: 2022, Value: 400},
				{ISO: "EGY", Subject: "LP", Year: 2022, Value: 104},
			}),
		},
		labels: []model.Label{{Kind: store.LabelIncomeLevel, ISO3: "EGY", Value: "Lower middle income"}},
	}
	sources := NewSources(context.Background(), st, nil, nil, nil)

	gdp, err := sources.GDP(2022)
	require.NoError(t, err)
	assert.Equal(t, Lookup{"EGY": 400e9}, gdp)

	income, err := sources.IncomeLevels()
	require.NoError(t, err)
	assert.Equal(t, Labels{"EGY": "Lower middle income"}, income)

	_, err = sources.Population()
	assert.ErrorIs(t, err, ErrNoSource)

	failing := &fakeProvider{calls: map[string]int{}, err: errors.New("offline")}
	sources = NewSources(context.Background(), nil, failing, nil, nil)
	_, err = sources.Population()
	assert.ErrorContains(t, err, "offline")
	_, err = sources.Population()
	assert.Error(t, err)
	assert.Equal(t, 2, failing.calls[worldbank.Population])
}
