package exchange

import (
	"context"
	"net/url"
	"strings"
)

// okxInstrumentsURL is the public spot instrument list used for symbol
// discovery.
const okxInstrumentsURL = "https://www.okx.com/api/v5/public/instruments"

// OKX implements the Client interface for OKX's v5 market API.
type OKX struct {
	spotAPIURL string
	tr         *transport
}

func newOKX(cfg clientConfig) Client {
	return &OKX{spotAPIURL: cfg.spotAPIURL, tr: cfg.transport}
}

func (o *OKX) Name() string { return "OKX" }

// NormalizeSymbol uses a dash separator: BTC/USDT -> BTC-USDT.
func (o *OKX) NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", "-"))
}

type okxTickerResponse struct {
	Data []struct {
		InstID    string `json:"instId"`
		AskPx     string `json:"askPx"`
		BidPx     string `json:"bidPx"`
		Vol24h    string `json:"vol24h"`
		VolCcy24h string `json:"volCcy24h"`
	} `json:"data"`
}

func (o *OKX) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	params := url.Values{"instId": {o.NormalizeSymbol(symbol)}}

	var resp okxTickerResponse
	if err := o.tr.getJSON(ctx, o.spotAPIURL, params, &resp); err != nil {
		return Ticker{}, err
	}
	if len(resp.Data) == 0 {
		return Ticker{}, &MalformedResponseError{Exchange: o.Name(), Reason: "empty ticker data"}
	}

	row := resp.Data[0]
	if row.AskPx == "" || row.BidPx == "" {
		return Ticker{}, &MalformedResponseError{Exchange: o.Name(), Reason: "missing ask/bid prices"}
	}
	ask, err := parsePrice(o.Name(), "askPx", row.AskPx)
	if err != nil {
		return Ticker{}, err
	}
	bid, err := parsePrice(o.Name(), "bidPx", row.BidPx)
	if err != nil {
		return Ticker{}, err
	}

	// Prefer quote-denominated volume when reported.
	volume := optVolume(row.VolCcy24h)
	if volume == nil {
		volume = optVolume(row.Vol24h)
	}

	return Ticker{Bid: bid, Ask: ask, Volume24h: volume}, nil
}

func (o *OKX) AllSymbols(ctx context.Context) ([]string, error) {
	params := url.Values{"instType": {"SPOT"}}

	var resp okxTickerResponse
	if err := o.tr.getJSON(ctx, okxInstrumentsURL, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &MalformedResponseError{Exchange: o.Name(), Reason: "empty instruments data"}
	}

	symbols := make([]string, 0, len(resp.Data))
	for _, row := range resp.Data {
		if row.InstID != "" {
			symbols = append(symbols, row.InstID)
		}
	}
	return symbols, nil
}

// BatchTickers falls back to concurrent per-symbol requests; OKX has no
// batch ticker endpoint.
func (o *OKX) BatchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	return fanOutTickers(ctx, o, symbols)
}
