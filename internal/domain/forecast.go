package domain

import "time"

// DefaultModelVersion identifies the fixed-feature linear model.
const DefaultModelVersion = "v1.0_linear"

// ForecastPoint is the prediction for a single future day.
type ForecastPoint struct {
	Date           string  // YYYY-MM-DD
	PredictedUnits float64 // clamped model output, 2 dp
	UpperBound     float64
	LowerBound     float64 // never negative
}

// Forecast is the cached forecast document for one SKU.
// Corresponds to demand_forecasts; one document per SKU, replaced on regeneration.
type Forecast struct {
	ProductSKU        string
	ModelVersion      string
	GeneratedAt       time.Time
	Horizon           int     // days generated; >= any slice served from cache
	ConfidenceScoreR2 float64 // clamped in-sample R², 4 dp
	Points            []ForecastPoint
}

// Slice returns at most days leading points.
func (f *Forecast) Slice(days int) []ForecastPoint {
	if days < 0 {
		days = 0
	}
	if days > len(f.Points) {
		days = len(f.Points)
	}
	out := make([]ForecastPoint, days)
	copy(out, f.Points[:days])
	return out
}
