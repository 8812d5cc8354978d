package exchange

import (
	"context"
	"net/url"
	"strings"
)

const mexcExchangeInfoURL = "https://api.mexc.com/api/v3/exchangeInfo"

// MEXC implements the Client interface for MEXC's v3 spot API.
type MEXC struct {
	spotAPIURL string
	tr         *transport
}

func newMEXC(cfg clientConfig) Client {
	return &MEXC{spotAPIURL: cfg.spotAPIURL, tr: cfg.transport}
}

func (m *MEXC) Name() string { return "MEXC" }

// NormalizeSymbol strips the separator: BTC/USDT -> BTCUSDT.
func (m *MEXC) NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

type mexcTickerResponse struct {
	AskPrice string `json:"askPrice"`
	BidPrice string `json:"bidPrice"`
	Volume   string `json:"volume"`
}

func (m *MEXC) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	params := url.Values{"symbol": {m.NormalizeSymbol(symbol)}}

	var resp mexcTickerResponse
	if err := m.tr.getJSON(ctx, m.spotAPIURL, params, &resp); err != nil {
		return Ticker{}, err
	}
	if resp.AskPrice == "" || resp.BidPrice == "" {
		return Ticker{}, &MalformedResponseError{Exchange: m.Name(), Reason: "missing ask/bid prices"}
	}
	ask, err := parsePrice(m.Name(), "askPrice", resp.AskPrice)
	if err != nil {
		return Ticker{}, err
	}
	bid, err := parsePrice(m.Name(), "bidPrice", resp.BidPrice)
	if err != nil {
		return Ticker{}, err
	}

	return Ticker{Bid: bid, Ask: ask, Volume24h: optVolume(resp.Volume)}, nil
}

type mexcExchangeInfo struct {
	Symbols []struct {
		Symbol string `json:"symbol"`
		Status string `json:"status"`
	} `json:"symbols"`
}

func (m *MEXC) AllSymbols(ctx context.Context) ([]string, error) {
	var resp mexcExchangeInfo
	if err := m.tr.getJSON(ctx, mexcExchangeInfoURL, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Symbols) == 0 {
		return nil, &MalformedResponseError{Exchange: m.Name(), Reason: "empty symbols data"}
	}

	symbols := make([]string, 0, len(resp.Symbols))
	for _, row := range resp.Symbols {
		if row.Symbol != "" && row.Status == "TRADING" {
			symbols = append(symbols, row.Symbol)
		}
	}
	return symbols, nil
}

func (m *MEXC) BatchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	return fanOutTickers(ctx, m, symbols)
}
