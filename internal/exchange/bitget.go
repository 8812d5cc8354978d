package exchange

import (
	"context"
	"net/url"
	"strings"
)

const bitgetProductsURL = "https://api.bitget.com/api/spot/v1/public/products"

// Bitget implements the Client interface for Bitget's spot API.
type Bitget struct {
	spotAPIURL string
	tr         *transport
}

func newBitget(cfg clientConfig) Client {
	return &Bitget{spotAPIURL: cfg.spotAPIURL, tr: cfg.transport}
}

func (b *Bitget) Name() string { return "Bitget" }

// NormalizeSymbol uses a dash separator: BTC/USDT -> BTC-USDT.
func (b *Bitget) NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", "-"))
}

// bitgetTicker covers the field names Bitget has used across API versions.
type bitgetTicker struct {
	SellOne  string `json:"sellOne"`
	BestAsk  string `json:"bestAsk"`
	AskPx    string `json:"askPx"`
	BuyOne   string `json:"buyOne"`
	BestBid  string `json:"bestBid"`
	BidPx    string `json:"bidPx"`
	QuoteVol string `json:"quoteVol"`
	BaseVol  string `json:"baseVol"`
}

func (t bitgetTicker) ask() string {
	for _, v := range []string{t.SellOne, t.BestAsk, t.AskPx} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (t bitgetTicker) bid() string {
	for _, v := range []string{t.BuyOne, t.BestBid, t.BidPx} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (t bitgetTicker) volume() string {
	if t.QuoteVol != "" {
		return t.QuoteVol
	}
	return t.BaseVol
}

type bitgetTickerResponse struct {
	Data []bitgetTicker `json:"data"`
}

func (b *Bitget) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	params := url.Values{"symbol": {b.NormalizeSymbol(symbol)}}

	var resp bitgetTickerResponse
	if err := b.tr.getJSON(ctx, b.spotAPIURL, params, &resp); err != nil {
		return Ticker{}, err
	}
	if len(resp.Data) == 0 {
		return Ticker{}, &MalformedResponseError{Exchange: b.Name(), Reason: "missing ticker data"}
	}

	row := resp.Data[0]
	askStr, bidStr := row.ask(), row.bid()
	if askStr == "" || bidStr == "" {
		return Ticker{}, &MalformedResponseError{Exchange: b.Name(), Reason: "missing ask/bid prices"}
	}
	ask, err := parsePrice(b.Name(), "ask", askStr)
	if err != nil {
		return Ticker{}, err
	}
	bid, err := parsePrice(b.Name(), "bid", bidStr)
	if err != nil {
		return Ticker{}, err
	}

	return Ticker{Bid: bid, Ask: ask, Volume24h: optVolume(row.volume())}, nil
}

type bitgetProductsResponse struct {
	Data []struct {
		Symbol string `json:"symbol"`
		Status string `json:"status"`
	} `json:"data"`
}

func (b *Bitget) AllSymbols(ctx context.Context) ([]string, error) {
	var resp bitgetProductsResponse
	if err := b.tr.getJSON(ctx, bitgetProductsURL, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &MalformedResponseError{Exchange: b.Name(), Reason: "empty products data"}
	}

	symbols := make([]string, 0, len(resp.Data))
	for _, row := range resp.Data {
		if row.Symbol != "" && (row.Status == "" || row.Status == "online") {
			symbols = append(symbols, row.Symbol)
		}
	}
	return symbols, nil
}

func (b *Bitget) BatchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	return fanOutTickers(ctx, b, symbols)
}
