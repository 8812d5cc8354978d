package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spreadwatch/internal/model"
)

// alertWindow bounds how old a detection may be and still alert.
const alertWindow = 30 * time.Minute

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

// Migrate creates the schema when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS exchanges (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE,
		spot_api_url TEXT NOT NULL DEFAULT '',
		kline_api_url TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS exchange_pairs (
		id BIGSERIAL PRIMARY KEY,
		exchange_id BIGINT NOT NULL REFERENCES exchanges(id),
		base_currency VARCHAR(20) NOT NULL,
		quote_currency VARCHAR(20) NOT NULL,
		symbol_on_exchange VARCHAR(40) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_bid_price NUMERIC(30, 12),
		last_ask_price NUMERIC(30, 12),
		last_price_update TIMESTAMPTZ,
		volume_24h NUMERIC(30, 8),
		taker_fee NUMERIC(10, 6),
		UNIQUE (exchange_id, base_currency, quote_currency)
	);

	CREATE TABLE IF NOT EXISTS arbitrage_opportunities (
		id BIGSERIAL PRIMARY KEY,
		buy_exchange_id BIGINT NOT NULL REFERENCES exchanges(id),
		sell_exchange_id BIGINT NOT NULL REFERENCES exchanges(id),
		base_currency VARCHAR(20) NOT NULL,
		quote_currency VARCHAR(20) NOT NULL,
		buy_price NUMERIC(30, 12) NOT NULL,
		sell_price NUMERIC(30, 12) NOT NULL,
		profit_percent NUMERIC(12, 6) NOT NULL,
		profit_usd NUMERIC(14, 4) NOT NULL,
		net_profit_percent NUMERIC(12, 6) NOT NULL,
		volume_24h_buy NUMERIC(30, 8) NOT NULL,
		volume_24h_sell NUMERIC(30, 8) NOT NULL,
		min_volume_usd NUMERIC(14, 4) NOT NULL,
		buy_commission NUMERIC(10, 6) NOT NULL,
		sell_commission NUMERIC(10, 6) NOT NULL,
		total_commission NUMERIC(10, 6) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		alerted_at TIMESTAMPTZ,
		CHECK (buy_exchange_id <> sell_exchange_id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS arbitrage_opportunities_active_key
		ON arbitrage_opportunities (buy_exchange_id, sell_exchange_id, base_currency, quote_currency)
		WHERE is_active;

	CREATE TABLE IF NOT EXISTS settings (
		key VARCHAR(64) PRIMARY KEY,
		value DOUBLE PRECISION NOT NULL
	);`

	if _, err := r.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ActiveExchanges(ctx context.Context) ([]model.Exchange, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, name, spot_api_url, kline_api_url, is_active
		FROM exchanges
		WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("load active exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []model.Exchange
	for rows.Next() {
		var ex model.Exchange
		if err := rows.Scan(&ex.ID, &ex.Name, &ex.SpotAPIURL, &ex.KlineAPIURL, &ex.IsActive); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}

func (r *PostgresRepository) TrackedPairs(ctx context.Context) ([]model.TrackedPair, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT DISTINCT base_currency, quote_currency
		FROM exchange_pairs
		WHERE is_active
		ORDER BY base_currency, quote_currency`)
	if err != nil {
		return nil, fmt.Errorf("load tracked pairs: %w", err)
	}
	defer rows.Close()

	var pairs []model.TrackedPair
	for rows.Next() {
		var p model.TrackedPair
		if err := rows.Scan(&p.BaseCurrency, &p.QuoteCurrency); err != nil {
			return nil, fmt.Errorf("scan tracked pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (r *PostgresRepository) FindOrCreatePair(ctx context.Context, exchangeID int64, base, quote, nativeSymbol string) (model.ExchangePair, error) {
	// The no-op DO UPDATE makes RETURNING yield the existing row on
	// conflict, so concurrent creators converge on a single record.
	row := r.Pool.QueryRow(ctx, `
		INSERT INTO exchange_pairs (exchange_id, base_currency, quote_currency, symbol_on_exchange, is_active)
		VALUES ($1, UPPER($2), UPPER($3), $4, TRUE)
		ON CONFLICT (exchange_id, base_currency, quote_currency)
			DO UPDATE SET symbol_on_exchange = EXCLUDED.symbol_on_exchange
		RETURNING id, exchange_id, base_currency, quote_currency, symbol_on_exchange, is_active,
			last_bid_price, last_ask_price, last_price_update, volume_24h, taker_fee`,
		exchangeID, base, quote, nativeSymbol)

	var p model.ExchangePair
	err := row.Scan(&p.ID, &p.ExchangeID, &p.BaseCurrency, &p.QuoteCurrency, &p.SymbolOnExchange,
		&p.IsActive, &p.LastBidPrice, &p.LastAskPrice, &p.LastPriceUpdate, &p.Volume24h, &p.TakerFee)
	if err != nil {
		return model.ExchangePair{}, fmt.Errorf("find or create pair: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) UpdatePairPrices(ctx context.Context, pairID int64, bid, ask float64, volume24h *float64) error {
	_, err := r.Pool.Exec(ctx, `
		UPDATE exchange_pairs
		SET last_bid_price = $1, last_ask_price = $2, volume_24h = $3, last_price_update = NOW()
		WHERE id = $4`,
		bid, ask, volume24h, pairID)
	if err != nil {
		return fmt.Errorf("update pair prices: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ActivePairsWithExchange(ctx context.Context) ([]model.ExchangePair, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT ep.id, ep.exchange_id, ep.base_currency, ep.quote_currency, ep.symbol_on_exchange,
			ep.is_active, ep.last_bid_price, ep.last_ask_price, ep.last_price_update,
			ep.volume_24h, ep.taker_fee,
			e.id, e.name, e.spot_api_url, e.kline_api_url, e.is_active
		FROM exchange_pairs ep
		INNER JOIN exchanges e ON e.id = ep.exchange_id
		WHERE ep.is_active AND e.is_active`)
	if err != nil {
		return nil, fmt.Errorf("load active pairs: %w", err)
	}
	defer rows.Close()

	var pairs []model.ExchangePair
	for rows.Next() {
		var p model.ExchangePair
		var ex model.Exchange
		err := rows.Scan(&p.ID, &p.ExchangeID, &p.BaseCurrency, &p.QuoteCurrency, &p.SymbolOnExchange,
			&p.IsActive, &p.LastBidPrice, &p.LastAskPrice, &p.LastPriceUpdate,
			&p.Volume24h, &p.TakerFee,
			&ex.ID, &ex.Name, &ex.SpotAPIURL, &ex.KlineAPIURL, &ex.IsActive)
		if err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		p.Exchange = &ex
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (r *PostgresRepository) UpsertOpportunity(ctx context.Context, opp model.ArbitrageOpportunity) (int64, error) {
	row := r.Pool.QueryRow(ctx, `
		INSERT INTO arbitrage_opportunities
			(buy_exchange_id, sell_exchange_id, base_currency, quote_currency,
			 buy_price, sell_price, profit_percent, profit_usd, net_profit_percent,
			 volume_24h_buy, volume_24h_sell, min_volume_usd,
			 buy_commission, sell_commission, total_commission,
			 is_active, detected_at)
		VALUES ($1, $2, UPPER($3), UPPER($4), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (buy_exchange_id, sell_exchange_id, base_currency, quote_currency)
			WHERE is_active
			DO UPDATE SET
				buy_price = EXCLUDED.buy_price,
				sell_price = EXCLUDED.sell_price,
				profit_percent = EXCLUDED.profit_percent,
				profit_usd = EXCLUDED.profit_usd,
				net_profit_percent = EXCLUDED.net_profit_percent,
				volume_24h_buy = EXCLUDED.volume_24h_buy,
				volume_24h_sell = EXCLUDED.volume_24h_sell,
				min_volume_usd = EXCLUDED.min_volume_usd,
				buy_commission = EXCLUDED.buy_commission,
				sell_commission = EXCLUDED.sell_commission,
				total_commission = EXCLUDED.total_commission,
				detected_at = EXCLUDED.detected_at
		RETURNING id`,
		opp.BuyExchangeID, opp.SellExchangeID, opp.BaseCurrency, opp.QuoteCurrency,
		opp.BuyPrice, opp.SellPrice, opp.ProfitPercent, opp.ProfitUSD, opp.NetProfitPercent,
		opp.Volume24hBuy, opp.Volume24hSell, opp.MinVolumeUSD,
		opp.BuyCommission, opp.SellCommission, opp.TotalCommission,
		opp.IsActive, opp.DetectedAt)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert opportunity: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) OpportunitiesForAlert(ctx context.Context, minProfit, minVolume float64, cooldown time.Duration) ([]model.ArbitrageOpportunity, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, buy_exchange_id, sell_exchange_id, base_currency, quote_currency,
			buy_price, sell_price, profit_percent, profit_usd, net_profit_percent,
			volume_24h_buy, volume_24h_sell, min_volume_usd,
			buy_commission, sell_commission, total_commission,
			is_active, detected_at, alerted_at
		FROM arbitrage_opportunities
		WHERE is_active
			AND net_profit_percent >= $1
			AND volume_24h_buy >= $2
			AND volume_24h_sell >= $2
			AND detected_at >= NOW() - ($3 * interval '1 minute')
			AND (alerted_at IS NULL OR alerted_at < NOW() - ($4 * interval '1 minute'))
		ORDER BY net_profit_percent DESC
		LIMIT 20`,
		minProfit, minVolume, alertWindow.Minutes(), cooldown.Minutes())
	if err != nil {
		return nil, fmt.Errorf("load opportunities for alert: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

func (r *PostgresRepository) MarkOpportunityAlerted(ctx context.Context, id int64) error {
	_, err := r.Pool.Exec(ctx, `
		UPDATE arbitrage_opportunities SET alerted_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark opportunity alerted: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LoadSettings(ctx context.Context) (map[string]float64, error) {
	rows, err := r.Pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]float64)
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func scanOpportunities(rows pgx.Rows) ([]model.ArbitrageOpportunity, error) {
	var opps []model.ArbitrageOpportunity
	for rows.Next() {
		var o model.ArbitrageOpportunity
		err := rows.Scan(&o.ID, &o.BuyExchangeID, &o.SellExchangeID, &o.BaseCurrency, &o.QuoteCurrency,
			&o.BuyPrice, &o.SellPrice, &o.ProfitPercent, &o.ProfitUSD, &o.NetProfitPercent,
			&o.Volume24hBuy, &o.Volume24hSell, &o.MinVolumeUSD,
			&o.BuyCommission, &o.SellCommission, &o.TotalCommission,
			&o.IsActive, &o.DetectedAt, &o.AlertedAt)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}
