package exchange

import (
	"context"
	"net/url"
	"strings"
)

const coinexMarketInfoURL = "https://api.coinex.com/v1/market/info"

// CoinEx implements the Client interface for CoinEx's v1 market API.
type CoinEx struct {
	spotAPIURL string
	tr         *transport
}

func newCoinEx(cfg clientConfig) Client {
	return &CoinEx{spotAPIURL: cfg.spotAPIURL, tr: cfg.transport}
}

func (c *CoinEx) Name() string { return "CoinEx" }

// NormalizeSymbol strips the separator: BTC/USDT -> BTCUSDT.
func (c *CoinEx) NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

type coinexTickerResponse struct {
	Data *struct {
		Ticker *struct {
			Sell string `json:"sell"`
			Buy  string `json:"buy"`
			Vol  string `json:"vol"`
		} `json:"ticker"`
	} `json:"data"`
}

func (c *CoinEx) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	params := url.Values{"market": {c.NormalizeSymbol(symbol)}}

	var resp coinexTickerResponse
	if err := c.tr.getJSON(ctx, c.spotAPIURL, params, &resp); err != nil {
		return Ticker{}, err
	}
	if resp.Data == nil || resp.Data.Ticker == nil {
		return Ticker{}, &MalformedResponseError{Exchange: c.Name(), Reason: "missing ticker data"}
	}

	row := resp.Data.Ticker
	if row.Sell == "" || row.Buy == "" {
		return Ticker{}, &MalformedResponseError{Exchange: c.Name(), Reason: "missing ask/bid prices"}
	}
	ask, err := parsePrice(c.Name(), "sell", row.Sell)
	if err != nil {
		return Ticker{}, err
	}
	bid, err := parsePrice(c.Name(), "buy", row.Buy)
	if err != nil {
		return Ticker{}, err
	}

	return Ticker{Bid: bid, Ask: ask, Volume24h: optVolume(row.Vol)}, nil
}

type coinexMarketInfo struct {
	Data map[string]struct {
		Name string `json:"name"`
	} `json:"data"`
}

func (c *CoinEx) AllSymbols(ctx context.Context) ([]string, error) {
	var resp coinexMarketInfo
	if err := c.tr.getJSON(ctx, coinexMarketInfoURL, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &MalformedResponseError{Exchange: c.Name(), Reason: "empty market info"}
	}

	symbols := make([]string, 0, len(resp.Data))
	for _, info := range resp.Data {
		if info.Name != "" {
			symbols = append(symbols, info.Name)
		}
	}
	return symbols, nil
}

func (c *CoinEx) BatchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	return fanOutTickers(ctx, c, symbols)
}
