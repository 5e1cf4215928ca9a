package calc

import (
	"database/sql"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeDiv(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{name: "plain", a: 10, b: 4, want: 2.5},
		{name: "zero divisor", a: 10, b: 0, want: 0},
		{name: "zero over zero", a: 0, b: 0, want: 0},
		{name: "infinite numerator", a: math.Inf(1), b: 2, want: 0},
		{name: "nan", a: math.NaN(), b: 2, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeDiv(tt.a, tt.b))
		})
	}

	assert.InDelta(t, 25, Percent(1, 4), 1e-12)
	assert.Equal(t, 0.0, Percent(1, 0))
}

func TestNullable(t *testing.T) {
	null := sql.NullFloat64{}
	assert.Equal(t, Null(6), Mul(Null(2), Null(3)))
	assert.False(t, Mul(Null(2), null).Valid)
	assert.Equal(t, Null(-1), Sub(Null(2), Null(3)))
	assert.False(t, Sub(null, Null(3)).Valid)

	m := map[string]float64{"NGA": 1.5}
	assert.Equal(t, Null(1.5), Lookup(m, "NGA"))
	assert.False(t, Lookup(m, "EGY").Valid)
}

func TestSumAndYearSpan(t *testing.T) {
	assert.Equal(t, 0.0, Sum(nil))
	assert.InDelta(t, 6, Sum([]float64{1, 2, 3}), 1e-12)

	assert.Equal(t, "2018-2020", YearSpan([]int{2020, 2018, 2019}))
	assert.Equal(t, "2019-2019", YearSpan([]int{2019}))
	assert.Equal(t, "", YearSpan(nil))
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int32
		want   float64
	}{
		{v: 2.345, places: 2, want: 2.35},
		{v: -2.345, places: 2, want: -2.35},
		{v: 0.5, places: 0, want: 1},
		{v: 12.34567, places: 4, want: 12.3457},
		{v: 1234.5, places: -1, want: 1230},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.v, tt.places))
	}
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
}
