package exchange

import (
	"context"
	"net/url"
	"strings"
)

const htxSymbolsURL = "https://api.huobi.pro/v1/common/symbols"

// HTX implements the Client interface for HTX (Huobi). The merged ticker
// endpoint reports no separate ask/bid, so the close price stands in for
// both sides.
type HTX struct {
	spotAPIURL string
	tr         *transport
}

func newHTX(cfg clientConfig) Client {
	return &HTX{spotAPIURL: cfg.spotAPIURL, tr: cfg.transport}
}

func (h *HTX) Name() string { return "HTX" }

// NormalizeSymbol lower-cases and strips the separator: BTC/USDT -> btcusdt.
func (h *HTX) NormalizeSymbol(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "/", ""))
}

type htxTickerResponse struct {
	Tick *struct {
		Close  *float64 `json:"close"`
		Amount *float64 `json:"amount"`
		Vol    *float64 `json:"vol"`
	} `json:"tick"`
}

func (h *HTX) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	params := url.Values{"symbol": {h.NormalizeSymbol(symbol)}}

	var resp htxTickerResponse
	if err := h.tr.getJSON(ctx, h.spotAPIURL, params, &resp); err != nil {
		return Ticker{}, err
	}
	if resp.Tick == nil {
		return Ticker{}, &MalformedResponseError{Exchange: h.Name(), Reason: "missing tick data"}
	}
	if resp.Tick.Close == nil {
		return Ticker{}, &MalformedResponseError{Exchange: h.Name(), Reason: "missing close price"}
	}

	close := *resp.Tick.Close
	volume := resp.Tick.Amount
	if volume == nil {
		volume = resp.Tick.Vol
	}

	return Ticker{Bid: close, Ask: close, Volume24h: volume}, nil
}

type htxSymbolsResponse struct {
	Data []struct {
		BaseCurrency  string `json:"base-currency"`
		QuoteCurrency string `json:"quote-currency"`
		State         string `json:"state"`
	} `json:"data"`
}

func (h *HTX) AllSymbols(ctx context.Context) ([]string, error) {
	var resp htxSymbolsResponse
	if err := h.tr.getJSON(ctx, htxSymbolsURL, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &MalformedResponseError{Exchange: h.Name(), Reason: "empty symbols data"}
	}

	symbols := make([]string, 0, len(resp.Data))
	for _, row := range resp.Data {
		if row.BaseCurrency != "" && row.QuoteCurrency != "" && row.State == "online" {
			symbols = append(symbols, strings.ToUpper(row.BaseCurrency+row.QuoteCurrency))
		}
	}
	return symbols, nil
}

func (h *HTX) BatchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	return fanOutTickers(ctx, h, symbols)
}
