// Package features turns an ordered daily sales series into model-ready rows.
//
// Training rows and recursive forecast rows are both produced by Row, which only
// reads values strictly before the target day. Column order is fixed by Schema.
package features

// Column names, in model order.
const (
	Lag1         = "lag_1"
	Lag7         = "lag_7"
	Lag14        = "lag_14"
	RollingMean7 = "rolling_mean_7"
	TrendIndex   = "trend_index"
	IsWeekend    = "is_weekend"
	IsHoliday    = "is_holiday"
)

// Schema is the ordered feature vector layout shared with the model.
var Schema = []string{Lag1, Lag7, Lag14, RollingMean7, TrendIndex, IsWeekend, IsHoliday}

// Warmup is the number of leading days without a resolvable lag_14.
const Warmup = 14

// RollingWindow is the rolling mean window, excluding the current day.
const RollingWindow = 7

// Index returns the column position of name, or -1.
func Index(name string) int {
	for i, n := range Schema {
		if n == name {
			return i
		}
	}
	return -1
}
