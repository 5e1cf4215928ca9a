// Package calc holds the small numeric helpers shared by the analyzers.
package calc

import (
	"database/sql"
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

// SafeDiv divides a by b, giving 0 when b is 0 or the result is not finite.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	q := a / b
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0
	}
	return q
}

// Percent is 100·a/b with the SafeDiv zero policy.
func Percent(a, b float64) float64 {
	return 100 * SafeDiv(a, b)
}

func Sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}

// Null wraps v as a valid NullFloat64.
func Null(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Mul multiplies two nullable values; the result is null when either side is.
func Mul(a, b sql.NullFloat64) sql.NullFloat64 {
	if !a.Valid || !b.Valid {
		return sql.NullFloat64{}
	}
	return Null(a.Float64 * b.Float64)
}

// Sub is a-b, null when either side is.
func Sub(a, b sql.NullFloat64) sql.NullFloat64 {
	if !a.Valid || !b.Valid {
		return sql.NullFloat64{}
	}
	return Null(a.Float64 - b.Float64)
}

// Lookup returns m[key] as a nullable value.
func Lookup[K comparable](m map[K]float64, key K) sql.NullFloat64 {
	v, ok := m[key]
	if !ok {
		return sql.NullFloat64{}
	}
	return Null(v)
}

// YearSpan labels a set of years "<min>-<max>".
func YearSpan(years []int) string {
	if len(years) == 0 {
		return ""
	}
	sorted := append([]int(nil), years...)
	sort.Ints(sorted)
	return strconv.Itoa(sorted[0]) + "-" + strconv.Itoa(sorted[len(sorted)-1])
}

// Round rounds v to places decimals, half away from zero. NaN and infinities are
// returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
