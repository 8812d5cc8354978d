package exchange

import (
	"context"
	"net/url"
	"strings"
)

const kucoinSymbolsURL = "https://api.kucoin.com/api/v1/symbols"

// Kucoin implements the Client interface for KuCoin's v1 market API.
type Kucoin struct {
	spotAPIURL string
	tr         *transport
}

func newKucoin(cfg clientConfig) Client {
	return &Kucoin{spotAPIURL: cfg.spotAPIURL, tr: cfg.transport}
}

func (k *Kucoin) Name() string { return "Kucoin" }

// NormalizeSymbol uses a dash separator: BTC/USDT -> BTC-USDT.
func (k *Kucoin) NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", "-"))
}

type kucoinTickerResponse struct {
	Data *struct {
		BestAsk  string `json:"bestAsk"`
		BestBid  string `json:"bestBid"`
		Vol      string `json:"vol"`
		VolValue string `json:"volValue"`
	} `json:"data"`
}

func (k *Kucoin) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	params := url.Values{"symbol": {k.NormalizeSymbol(symbol)}}

	var resp kucoinTickerResponse
	if err := k.tr.getJSON(ctx, k.spotAPIURL, params, &resp); err != nil {
		return Ticker{}, err
	}
	if resp.Data == nil {
		return Ticker{}, &MalformedResponseError{Exchange: k.Name(), Reason: "missing ticker data"}
	}
	if resp.Data.BestAsk == "" || resp.Data.BestBid == "" {
		return Ticker{}, &MalformedResponseError{Exchange: k.Name(), Reason: "missing ask/bid prices"}
	}
	ask, err := parsePrice(k.Name(), "bestAsk", resp.Data.BestAsk)
	if err != nil {
		return Ticker{}, err
	}
	bid, err := parsePrice(k.Name(), "bestBid", resp.Data.BestBid)
	if err != nil {
		return Ticker{}, err
	}

	// volValue is quote-denominated; fall back to base volume.
	volume := optVolume(resp.Data.VolValue)
	if volume == nil {
		volume = optVolume(resp.Data.Vol)
	}

	return Ticker{Bid: bid, Ask: ask, Volume24h: volume}, nil
}

type kucoinSymbolsResponse struct {
	Data []struct {
		Symbol        string `json:"symbol"`
		EnableTrading bool   `json:"enableTrading"`
	} `json:"data"`
}

func (k *Kucoin) AllSymbols(ctx context.Context) ([]string, error) {
	var resp kucoinSymbolsResponse
	if err := k.tr.getJSON(ctx, kucoinSymbolsURL, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &MalformedResponseError{Exchange: k.Name(), Reason: "empty symbols data"}
	}

	symbols := make([]string, 0, len(resp.Data))
	for _, row := range resp.Data {
		if row.Symbol != "" && row.EnableTrading {
			symbols = append(symbols, row.Symbol)
		}
	}
	return symbols, nil
}

// BatchTickers falls back to concurrent per-symbol requests; KuCoin has no
// multi-symbol ticker endpoint.
func (k *Kucoin) BatchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	return fanOutTickers(ctx, k, symbols)
}
