package exchange

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// parsePrice converts a string price field, reporting a malformed payload
// when the value does not parse.
func parsePrice(exchange, field, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &MalformedResponseError{Exchange: exchange, Reason: "unparsable " + field}
	}
	return v, nil
}

// optVolume parses an optional volume field. Empty or zero values come back
// as nil, matching exchanges that omit 24h volume.
func optVolume(value string) *float64 {
	if value == "" {
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v == 0 {
		return nil
	}
	return &v
}

// fanOutTickers is the default batch implementation: one concurrent request
// per symbol, collecting successes and silently dropping per-symbol failures.
func fanOutTickers(ctx context.Context, c Client, symbols []string) (map[string]Ticker, error) {
	var mu sync.Mutex
	result := make(map[string]Ticker, len(symbols))

	g, ctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		g.Go(func() error {
			ticker, err := c.Ticker(ctx, symbol)
			if err != nil {
				return nil
			}
			mu.Lock()
			result[c.NormalizeSymbol(symbol)] = ticker
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
