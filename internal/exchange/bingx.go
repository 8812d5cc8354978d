package exchange

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// BingX implements the Client interface for BingX's spot API.
type BingX struct {
	spotAPIURL string
	tr         *transport
}

func newBingX(cfg clientConfig) Client {
	return &BingX{spotAPIURL: cfg.spotAPIURL, tr: cfg.transport}
}

func (b *BingX) Name() string { return "BingX" }

// NormalizeSymbol uses a dash separator: BTC/USDT -> BTC-USDT.
func (b *BingX) NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", "-"))
}

type bingxTickerResponse struct {
	Data []struct {
		AskPrice    float64 `json:"askPrice"`
		BidPrice    float64 `json:"bidPrice"`
		QuoteVolume float64 `json:"quoteVolume"`
	} `json:"data"`
}

func (b *BingX) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	// BingX requires a millisecond timestamp on every request.
	params := url.Values{
		"symbol":    {b.NormalizeSymbol(symbol)},
		"timestamp": {strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}

	var resp bingxTickerResponse
	if err := b.tr.getJSON(ctx, b.spotAPIURL, params, &resp); err != nil {
		return Ticker{}, err
	}
	if len(resp.Data) == 0 {
		return Ticker{}, &MalformedResponseError{Exchange: b.Name(), Reason: "empty ticker data"}
	}

	row := resp.Data[0]
	if row.AskPrice == 0 || row.BidPrice == 0 {
		return Ticker{}, &MalformedResponseError{Exchange: b.Name(), Reason: "missing ask/bid prices"}
	}

	var volume *float64
	if row.QuoteVolume > 0 {
		v := row.QuoteVolume
		volume = &v
	}

	return Ticker{Bid: row.BidPrice, Ask: row.AskPrice, Volume24h: volume}, nil
}

// AllSymbols returns an empty slice: BingX offers no simple discovery
// endpoint. Callers treat this as "unknown" and probe candidate symbols
// directly.
func (b *BingX) AllSymbols(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (b *BingX) BatchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	return fanOutTickers(ctx, b, symbols)
}
