package model

import (
	"fmt"
	"math"
	"time"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/features"
)

// Clamp limits relative to the clamp base.
const (
	ClampLow  = 0.2
	ClampHigh = 2.0

	minClampBase  = 0.1
	zeroClampBase = 1.0
	zeroEpsilon   = 1e-9
)

var rollingIdx = features.Index(features.RollingMean7)

// ClampBase returns max(rollingMean, 0.1), or 1.0 when rollingMean is zero.
func ClampBase(rollingMean float64) float64 {
	if math.Abs(rollingMean) < zeroEpsilon {
		return zeroClampBase
	}
	return math.Max(rollingMean, minClampBase)
}

// Clamp bounds v to [0.2*base, 2.0*base] for base = ClampBase(rollingMean).
func Clamp(v, rollingMean float64) float64 {
	base := ClampBase(rollingMean)
	return math.Min(math.Max(v, ClampLow*base), ClampHigh*base)
}

// ForecastRecursive projects horizon days starting at start.
//
// Each step rebuilds features from a working buffer seeded with history,
// predicts, clamps against the buffer's rolling mean, and appends the clamped
// value so the next step sees it as lag_1. history is not modified.
func (m *Linear) ForecastRecursive(history []float64, start time.Time, horizon int) ([]float64, error) {
	if len(history) < features.Warmup {
		return nil, fmt.Errorf("%w: recursion needs %d seed values, have %d",
			domain.ErrInsufficientHistory, features.Warmup, len(history))
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidHorizon, horizon)
	}

	buf := make([]float64, len(history), len(history)+horizon)
	copy(buf, history)

	out := make([]float64, 0, horizon)
	for i := 0; i < horizon; i++ {
		date := start.AddDate(0, 0, i)

		row, err := features.Row(buf, date)
		if err != nil {
			return nil, err
		}

		v := Clamp(m.Predict(row), row[rollingIdx])
		out = append(out, v)
		buf = append(buf, v)
	}

	return out, nil
}
