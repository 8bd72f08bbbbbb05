package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	ts := time.Date(2025, 3, 9, 22, 30, 0, 0, loc) // 2025-03-10 03:30 UTC

	day := Day(ts)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), day)
	assert.Equal(t, "2025-03-10", DateKey(ts))
}

func TestLineRevenue(t *testing.T) {
	tests := []struct {
		price float64
		qty   int64
		want  float64
	}{
		{price: 19.99, qty: 3, want: 59.97},
		{price: 0.1, qty: 3, want: 0.3},
		{price: 5, qty: 0, want: 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LineRevenue(tt.price, tt.qty))
	}
}

func TestForecastSlice(t *testing.T) {
	f := &Forecast{Points: []ForecastPoint{{Date: "a"}, {Date: "b"}, {Date: "c"}}}

	assert.Len(t, f.Slice(2), 2)
	assert.Len(t, f.Slice(10), 3)
	assert.Empty(t, f.Slice(0))

	s := f.Slice(1)
	s[0].Date = "changed"
	assert.Equal(t, "a", f.Points[0].Date)
}
