package features

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"inventory-analytics/internal/domain"
)

// ErrShortHistory is returned by Row when fewer than Warmup values precede the target day.
var ErrShortHistory = errors.New("history shorter than lag window")

// Observation is one day of the target series.
type Observation struct {
	Date  time.Time
	Value float64
}

// Matrix is the feature matrix and aligned target vector.
// Rows[i] follows Schema; Target[i] is the actual value on Dates[i].
type Matrix struct {
	Dates  []time.Time
	Rows   [][]float64
	Target []float64
}

// Len returns the number of trainable rows.
func (m *Matrix) Len() int {
	return len(m.Rows)
}

// FromFacts converts daily facts to observations of total_units_sold.
func FromFacts(facts []*domain.DailyFact) []Observation {
	obs := make([]Observation, len(facts))
	for i, f := range facts {
		obs[i] = Observation{Date: f.Date, Value: float64(f.TotalUnitsSold)}
	}
	return obs
}

// Sorted returns a copy of obs ordered by date ASC. Equal dates keep input order.
func Sorted(obs []Observation) []Observation {
	out := make([]Observation, len(obs))
	copy(out, obs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Values extracts the value column.
func Values(obs []Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Value
	}
	return out
}

// Build computes the feature matrix for a series.
// Input is sorted internally; the first Warmup rows are dropped.
//
// For row t (t >= Warmup):
//   - lag_k = value[t-k] for k in {1, 7, 14}
//   - rolling_mean_7 = mean(value[t-7 .. t-1])
//   - trend_index = (lag_1 - lag_7) / 7
//   - is_weekend, is_holiday from date[t]
func Build(obs []Observation) *Matrix {
	sorted := Sorted(obs)
	values := Values(sorted)

	m := &Matrix{}
	for t := Warmup; t < len(sorted); t++ {
		row, err := Row(values[:t], sorted[t].Date)
		if err != nil {
			// unreachable: prefix length is at least Warmup
			continue
		}
		m.Dates = append(m.Dates, sorted[t].Date)
		m.Rows = append(m.Rows, row)
		m.Target = append(m.Target, values[t])
	}
	return m
}

// Row builds the feature vector for the day following history, dated date.
// Only history is read, so the target day's own value can never leak in.
func Row(history []float64, date time.Time) ([]float64, error) {
	n := len(history)
	if n < Warmup {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrShortHistory, n, Warmup)
	}

	lag1 := history[n-1]
	lag7 := history[n-7]
	lag14 := history[n-14]

	var sum float64
	for _, v := range history[n-RollingWindow:] {
		sum += v
	}
	rolling := sum / RollingWindow

	return []float64{
		lag1,
		lag7,
		lag14,
		rolling,
		(lag1 - lag7) / 7,
		boolFeature(IsWeekendDay(date)),
		boolFeature(IsHolidayDay(date)),
	}, nil
}
