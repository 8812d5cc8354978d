package exchange

import (
	"context"
)

// Ticker holds one normalized price observation. Volume24h is nil when the
// exchange does not report it.
type Ticker struct {
	Bid       float64
	Ask       float64
	Volume24h *float64
}

// Client defines the standard interface for all exchange API clients.
type Client interface {
	Name() string

	// NormalizeSymbol converts a pair symbol into the exchange's native
	// format. It is pure, deterministic and idempotent.
	NormalizeSymbol(symbol string) string

	// Ticker fetches the current bid/ask for one pair. It returns a
	// MalformedResponseError when the payload lacks required price fields,
	// regardless of HTTP status.
	Ticker(ctx context.Context, symbol string) (Ticker, error)

	// AllSymbols returns every tradable native symbol. Some exchanges do not
	// offer discovery and return an empty slice, which callers must treat as
	// "unknown", not "no symbols exist".
	AllSymbols(ctx context.Context) ([]string, error)

	// BatchTickers fetches tickers for several pairs, keyed by normalized
	// symbol. Per-symbol failures are dropped silently.
	BatchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error)
}
