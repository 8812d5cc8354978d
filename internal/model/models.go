package model

import (
	"strings"
	"time"
)

// Exchange represents one supported exchange and its public API endpoints.
// Rows are immutable during a polling cycle; the coordinator loads them once
// at cycle start.
type Exchange struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	SpotAPIURL  string `db:"spot_api_url"`
	KlineAPIURL string `db:"kline_api_url"`
	IsActive    bool   `db:"is_active"`
}

// TrackedPair is a currency pair the system wants priced on every exchange.
// It carries no exchange affinity; the universe of tracked pairs is derived
// from the distinct active exchange pairs.
type TrackedPair struct {
	BaseCurrency  string `db:"base_currency"`
	QuoteCurrency string `db:"quote_currency"`
}

// Symbol returns the concatenated pair symbol, e.g. BTCUSDT.
func (p TrackedPair) Symbol() string {
	return strings.ToUpper(p.BaseCurrency + p.QuoteCurrency)
}

// ExchangePair is the latest known price observation for one pair on one
// exchange. Created lazily the first time a tracked pair is confirmed to
// exist on the exchange and updated in place on every successful poll.
type ExchangePair struct {
	ID               int64      `db:"id"`
	ExchangeID       int64      `db:"exchange_id"`
	BaseCurrency     string     `db:"base_currency"`
	QuoteCurrency    string     `db:"quote_currency"`
	SymbolOnExchange string     `db:"symbol_on_exchange"`
	IsActive         bool       `db:"is_active"`
	LastBidPrice     *float64   `db:"last_bid_price"`
	LastAskPrice     *float64   `db:"last_ask_price"`
	LastPriceUpdate  *time.Time `db:"last_price_update"`
	Volume24h        *float64   `db:"volume_24h"`
	TakerFee         *float64   `db:"taker_fee"`

	// Exchange is populated by joined reads; nil otherwise.
	Exchange *Exchange `db:"-"`
}

// Symbol returns the concatenated pair symbol, e.g. BTCUSDT.
func (p ExchangePair) Symbol() string {
	return strings.ToUpper(p.BaseCurrency + p.QuoteCurrency)
}

// ArbitrageOpportunity is a directed buy-exchange to sell-exchange edge for
// one currency pair. The reverse direction is a separate opportunity. While
// active it is upserted in place, keyed on the directed exchange tuple plus
// the pair, so its identity and alert state survive across analysis cycles.
type ArbitrageOpportunity struct {
	ID               int64      `db:"id"`
	BuyExchangeID    int64      `db:"buy_exchange_id"`
	SellExchangeID   int64      `db:"sell_exchange_id"`
	BaseCurrency     string     `db:"base_currency"`
	QuoteCurrency    string     `db:"quote_currency"`
	BuyPrice         float64    `db:"buy_price"`
	SellPrice        float64    `db:"sell_price"`
	ProfitPercent    float64    `db:"profit_percent"`
	ProfitUSD        float64    `db:"profit_usd"`
	NetProfitPercent float64    `db:"net_profit_percent"`
	Volume24hBuy     float64    `db:"volume_24h_buy"`
	Volume24hSell    float64    `db:"volume_24h_sell"`
	MinVolumeUSD     float64    `db:"min_volume_usd"`
	BuyCommission    float64    `db:"buy_commission"`
	SellCommission   float64    `db:"sell_commission"`
	TotalCommission  float64    `db:"total_commission"`
	IsActive         bool       `db:"is_active"`
	DetectedAt       time.Time  `db:"detected_at"`
	AlertedAt        *time.Time `db:"alerted_at"`
}

// Symbol returns the concatenated pair symbol, e.g. BTCUSDT.
func (o ArbitrageOpportunity) Symbol() string {
	return strings.ToUpper(o.BaseCurrency + o.QuoteCurrency)
}
