package exchange

import (
	"context"
	"strings"
)

const poloniexMarketsURL = "https://api.poloniex.com/markets"

// Poloniex implements the Client interface for Poloniex's markets API. The
// ticker24h endpoint reports no separate ask/bid, so the close price stands
// in for both sides.
type Poloniex struct {
	tr *transport
}

func newPoloniex(cfg clientConfig) Client {
	return &Poloniex{tr: cfg.transport}
}

func (p *Poloniex) Name() string { return "Poloniex" }

// NormalizeSymbol uses an underscore separator: BTC/USDT -> BTC_USDT.
func (p *Poloniex) NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", "_"))
}

type poloniexTickerResponse struct {
	Close  string `json:"close"`
	Amount string `json:"amount"`
}

func (p *Poloniex) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	// Poloniex addresses the market in the URL path rather than a query
	// parameter.
	reqURL := poloniexMarketsURL + "/" + p.NormalizeSymbol(symbol) + "/ticker24h"

	var resp poloniexTickerResponse
	if err := p.tr.getJSON(ctx, reqURL, nil, &resp); err != nil {
		return Ticker{}, err
	}
	if resp.Close == "" {
		return Ticker{}, &MalformedResponseError{Exchange: p.Name(), Reason: "missing close price"}
	}
	close, err := parsePrice(p.Name(), "close", resp.Close)
	if err != nil {
		return Ticker{}, err
	}

	return Ticker{Bid: close, Ask: close, Volume24h: optVolume(resp.Amount)}, nil
}

type poloniexMarket struct {
	Symbol string `json:"symbol"`
	State  string `json:"state"`
}

func (p *Poloniex) AllSymbols(ctx context.Context) ([]string, error) {
	var resp []poloniexMarket
	if err := p.tr.getJSON(ctx, poloniexMarketsURL, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, &MalformedResponseError{Exchange: p.Name(), Reason: "empty markets data"}
	}

	symbols := make([]string, 0, len(resp))
	for _, row := range resp {
		if row.Symbol != "" && (row.State == "" || row.State == "NORMAL") {
			symbols = append(symbols, row.Symbol)
		}
	}
	return symbols, nil
}

func (p *Poloniex) BatchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	return fanOutTickers(ctx, p, symbols)
}
