package exchange

import (
	"context"
	"net/url"
	"strings"
)

// Bybit implements the Client interface for Bybit's v5 spot API.
type Bybit struct {
	spotAPIURL string
	tr         *transport
}

func newBybit(cfg clientConfig) Client {
	return &Bybit{spotAPIURL: cfg.spotAPIURL, tr: cfg.transport}
}

func (b *Bybit) Name() string { return "Bybit" }

// NormalizeSymbol strips the separator: BTC/USDT -> BTCUSDT.
func (b *Bybit) NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

type bybitTickerResponse struct {
	Result struct {
		List []struct {
			Symbol    string `json:"symbol"`
			Ask1Price string `json:"ask1Price"`
			Bid1Price string `json:"bid1Price"`
			Volume24h string `json:"volume24h"`
		} `json:"list"`
	} `json:"result"`
}

func (b *Bybit) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	params := url.Values{
		"category": {"spot"},
		"symbol":   {b.NormalizeSymbol(symbol)},
	}

	var resp bybitTickerResponse
	if err := b.tr.getJSON(ctx, b.spotAPIURL, params, &resp); err != nil {
		return Ticker{}, err
	}
	if len(resp.Result.List) == 0 {
		return Ticker{}, &MalformedResponseError{Exchange: b.Name(), Reason: "empty ticker list"}
	}

	row := resp.Result.List[0]
	if row.Ask1Price == "" || row.Bid1Price == "" {
		return Ticker{}, &MalformedResponseError{Exchange: b.Name(), Reason: "missing ask/bid prices"}
	}
	ask, err := parsePrice(b.Name(), "ask1Price", row.Ask1Price)
	if err != nil {
		return Ticker{}, err
	}
	bid, err := parsePrice(b.Name(), "bid1Price", row.Bid1Price)
	if err != nil {
		return Ticker{}, err
	}

	return Ticker{Bid: bid, Ask: ask, Volume24h: optVolume(row.Volume24h)}, nil
}

func (b *Bybit) AllSymbols(ctx context.Context) ([]string, error) {
	params := url.Values{"category": {"spot"}}

	var resp bybitTickerResponse
	if err := b.tr.getJSON(ctx, b.spotAPIURL, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result.List) == 0 {
		return nil, &MalformedResponseError{Exchange: b.Name(), Reason: "empty symbols list"}
	}

	symbols := make([]string, 0, len(resp.Result.List))
	for _, row := range resp.Result.List {
		if row.Symbol != "" {
			symbols = append(symbols, row.Symbol)
		}
	}
	return symbols, nil
}

// bybitBatchSize is the maximum number of symbols Bybit accepts per ticker
// request.
const bybitBatchSize = 10

// BatchTickers uses Bybit's comma-separated multi-symbol endpoint, chunked,
// falling back to per-symbol requests only for chunks where the batch call
// itself fails.
func (b *Bybit) BatchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error) {
	normalized := make([]string, len(symbols))
	for i, s := range symbols {
		normalized[i] = b.NormalizeSymbol(s)
	}

	all := make(map[string]Ticker, len(symbols))
	for start := 0; start < len(normalized); start += bybitBatchSize {
		end := min(start+bybitBatchSize, len(normalized))
		chunk := normalized[start:end]

		params := url.Values{
			"category": {"spot"},
			"symbol":   {strings.Join(chunk, ",")},
		}

		var resp bybitTickerResponse
		err := b.tr.getJSON(ctx, b.spotAPIURL, params, &resp)
		if err != nil || len(resp.Result.List) == 0 {
			for _, symbol := range chunk {
				ticker, err := b.Ticker(ctx, symbol)
				if err != nil {
					continue
				}
				all[symbol] = ticker
			}
			continue
		}

		for _, row := range resp.Result.List {
			if row.Symbol == "" || row.Ask1Price == "" || row.Bid1Price == "" {
				continue
			}
			ask, err := parsePrice(b.Name(), "ask1Price", row.Ask1Price)
			if err != nil {
				continue
			}
			bid, err := parsePrice(b.Name(), "bid1Price", row.Bid1Price)
			if err != nil {
				continue
			}
			all[row.Symbol] = Ticker{Bid: bid, Ask: ask, Volume24h: optVolume(row.Volume24h)}
		}
	}
	return all, nil
}
