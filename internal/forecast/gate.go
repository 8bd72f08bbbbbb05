package forecast

import (
	"context"
	"fmt"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

// Reason explains a freshness decision.
type Reason string

const (
	ReasonFresh   Reason = "fresh"    // cache reusable
	ReasonMissing Reason = "missing"  // no cached forecast
	ReasonHorizon Reason = "horizon"  // cached horizon shorter than requested
	ReasonNewData Reason = "new_data" // a fact changed after the cache was built
)

// Gate decides whether a cached forecast may be served.
type Gate struct {
	facts storage.DailyFactStore
}

// NewGate creates a freshness gate over the daily fact store.
func NewGate(facts storage.DailyFactStore) *Gate {
	return &Gate{facts: facts}
}

// NeedsRegeneration reports whether cached must be rebuilt to serve requestedDays.
func (g *Gate) NeedsRegeneration(ctx context.Context, sku string, cached *domain.Forecast, requestedDays int) (bool, Reason, error) {
	if cached == nil {
		return true, ReasonMissing, nil
	}
	if cached.Horizon < requestedDays {
		return true, ReasonHorizon, nil
	}

	newer, err := g.facts.HasNewerThan(ctx, sku, cached.GeneratedAt)
	if err != nil {
		return false, "", fmt.Errorf("check fact freshness: %w", err)
	}
	if newer {
		return true, ReasonNewData, nil
	}

	return false, ReasonFresh, nil
}
