package database

import (
	"context"
	"time"

	"spreadwatch/internal/model"
)

// Repository defines the standard interface for database operations. The
// core treats each call as an independent transaction-scoped operation and
// holds no cross-request locks.
type Repository interface {
	// ActiveExchanges returns all exchanges flagged active.
	ActiveExchanges(ctx context.Context) ([]model.Exchange, error)

	// TrackedPairs returns the deduplicated universe of currency pairs to
	// price, derived from the distinct active exchange pairs.
	TrackedPairs(ctx context.Context) ([]model.TrackedPair, error)

	// FindOrCreatePair returns the price record for (exchange, base, quote),
	// creating it atomically when absent. Concurrent polling cycles may race
	// on creation; the upsert-on-unique-key guarantees a single row.
	FindOrCreatePair(ctx context.Context, exchangeID int64, base, quote, nativeSymbol string) (model.ExchangePair, error)

	// UpdatePairPrices stores a fresh observation for the price record.
	UpdatePairPrices(ctx context.Context, pairID int64, bid, ask float64, volume24h *float64) error

	// ActivePairsWithExchange returns all active price records joined with
	// their owning active exchange.
	ActivePairsWithExchange(ctx context.Context) ([]model.ExchangePair, error)

	// UpsertOpportunity inserts the opportunity or, when an active row for
	// the same directed pair exists, updates it in place preserving its id
	// and alert state. Returns the row id.
	UpsertOpportunity(ctx context.Context, opp model.ArbitrageOpportunity) (int64, error)

	// OpportunitiesForAlert returns active opportunities above the profit
	// and volume thresholds, detected within the last 30 minutes and outside
	// the alert cooldown, ranked by net profit, capped at 20.
	OpportunitiesForAlert(ctx context.Context, minProfit, minVolume float64, cooldown time.Duration) ([]model.ArbitrageOpportunity, error)

	// MarkOpportunityAlerted records that an alert went out for the row.
	MarkOpportunityAlerted(ctx context.Context, id int64) error

	// LoadSettings returns the full settings table as key/value pairs.
	LoadSettings(ctx context.Context) (map[string]float64, error)
}
