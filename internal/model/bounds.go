package model

import (
	"math"

	"github.com/shopspring/decimal"
)

// Interval is a symmetric confidence band around a prediction, floored at zero.
type Interval struct {
	Lower float64
	Upper float64
}

// Uncertainty returns the relative band width: 0.10 + 0.20*(1 - clamped R²).
func Uncertainty(r2 float64) float64 {
	return 0.10 + 0.20*(1-ClampR2(r2))
}

// Bounds computes the confidence interval for each value.
func Bounds(values []float64, r2 float64) []Interval {
	u := Uncertainty(r2)
	out := make([]Interval, len(values))
	for i, v := range values {
		margin := v * u
		out[i] = Interval{
			Lower: math.Max(0, v-margin),
			Upper: v + margin,
		}
	}
	return out
}

// Round rounds v half away from zero to places decimals.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
