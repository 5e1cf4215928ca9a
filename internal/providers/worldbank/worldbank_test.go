package worldbank

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeimpact/internal/model"
	"tradeimpact/internal/providers"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/country/all/indicator/SP.POP.TOTL", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("mrnev"))
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `[{"page":1,"pages":2,"per_page":2,"total":3},[
				{"indicator":{"id":"SP.POP.TOTL"},"country":{"id":"1A","value":"Arab World"},"countryiso3code":"ARB","date":"2021","value":446000000},
				{"indicator":{"id":"SP.POP.TOTL"},"country":{"id":"NG","value":"Nigeria"},"countryiso3code":"NGA","date":"2021","value":213401323}
			]]`)
		case "2":
			fmt.Fprint(w, `[{"page":2,"pages":2,"per_page":2,"total":3},[
				{"indicator":{"id":"SP.POP.TOTL"},"country":{"id":"XK","value":"Kosovo"},"countryiso3code":"","date":"2021","value":1786038},
				{"indicator":{"id":"SP.POP.TOTL"},"country":{"id":"EG","value":"Egypt"},"countryiso3code":"EGY","date":"2020","value":null}
			]]`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})
	mux.HandleFunc("/v2/country/all/indicator/BAD.CODE", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"message":[{"id":"120","key":"Invalid value","value":"The provided parameter value is not valid"}]}]`)
	})
	mux.HandleFunc("/v2/country/all/indicator/EMPTY", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"page":1,"pages":0,"per_page":50,"total":0},null]`)
	})
	mux.HandleFunc("/v2/country", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"page":1,"pages":1,"per_page":400,"total":3},[
			{"id":"NGA","name":"Nigeria","region":{"id":"SSF","value":"Sub-Saharan Africa "},"incomeLevel":{"id":"LMC","value":"Lower middle income"}},
			{"id":"AFE","name":"Africa Eastern and Southern","region":{"id":"NA","value":"Aggregates"},"incomeLevel":{"id":"NA","value":"Aggregates"}},
			{"id":"EGY","name":"Egypt, Arab Rep.","region":{"id":"MEA","value":"Middle East & North Africa"},"incomeLevel":{"id":"LMC","value":"Lower middle income"}}
		]]`)
	})
	mux.HandleFunc("/v2/country/all/indicator/DOWN", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newProvider(t *testing.T) *Provider {
	t.Helper()
	server := newServer(t)
	provider, err := NewWithConfig(Config{BaseURL: server.URL + "/v2", PerPage: 2})
	require.NoError(t, err)
	return provider
}

func TestIndicator(t *testing.T) {
	provider := newProvider(t)

	values, err := provider.Indicator(context.Background(), Population)
	require.NoError(t, err)
	assert.Equal(t, []model.IndicatorValue{
		{Indicator: Population, ISO3: "ARB", Year: 2021, Value: 446000000},
		{Indicator: Population, ISO3: "NGA", Year: 2021, Value: 213401323},
	}, values)
}

func TestIndicatorErrors(t *testing.T) {
	provider := newProvider(t)

	tests := []struct {
		name string
		code string
		want error
	}{
		{name: "api message", code: "BAD.CODE", want: providers.ErrFetch},
		{name: "no rows", code: "EMPTY", want: ErrNoRecords},
		{name: "http status", code: "DOWN", want: providers.ErrFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.Indicator(context.Background(), tt.code)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := provider.Indicator(context.Background(), " ")
	assert.Error(t, err)
}

func TestIncomeLevels(t *testing.T) {
	provider := newProvider(t)

	levels, err := provider.IncomeLevels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"NGA": "Lower middle income",
		"EGY": "Lower middle income",
	}, levels)

	again, err := provider.IncomeLevels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, levels, again)
}

func TestClose(t *testing.T) {
	provider := newProvider(t)
	require.NoError(t, provider.Close())

	_, err := provider.Indicator(context.Background(), Population)
	assert.ErrorIs(t, err, providers.ErrClosed)
}
