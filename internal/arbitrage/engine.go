package arbitrage

import (
	"context"
	"log/slog"
	"time"

	"spreadwatch/internal/database"
	"spreadwatch/internal/model"
	"spreadwatch/internal/settings"
)

// notionalUSD is the fixed position size profit_usd is quoted against. It is
// a display estimate, not a real position size.
const notionalUSD = 1000.0

// Engine turns the current price snapshot into ranked, fee-adjusted
// arbitrage opportunities.
type Engine struct {
	logger   *slog.Logger
	repo     database.Repository
	settings *settings.Store
	now      func() time.Time
}

// NewEngine creates a new instance of the Engine.
func NewEngine(logger *slog.Logger, repo database.Repository, store *settings.Store) *Engine {
	return &Engine{
		logger:   logger.With(slog.String("component", "arbitrage")),
		repo:     repo,
		settings: store,
		now:      time.Now,
	}
}

// quote is one exchange's entry in a pair's price matrix.
type quote struct {
	bid       float64
	ask       float64
	volume24h float64
	pair      model.ExchangePair
}

// Analyze loads the latest price records, groups them by currency pair and
// evaluates every directed exchange combination. It returns the surviving
// opportunity records unsaved.
func (e *Engine) Analyze(ctx context.Context) ([]model.ArbitrageOpportunity, error) {
	pairs, err := e.repo.ActivePairsWithExchange(ctx)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		e.logger.Info("no active pairs to analyze")
		return nil, nil
	}

	bySymbol := make(map[string][]model.ExchangePair)
	for _, p := range pairs {
		bySymbol[p.Symbol()] = append(bySymbol[p.Symbol()], p)
	}

	minProfit, err := e.settings.Float(ctx, settings.KeyMinProfitPercent, settings.DefaultMinProfitPercent)
	if err != nil {
		return nil, err
	}
	minVolume, err := e.settings.Float(ctx, settings.KeyMinVolumeUSD, settings.DefaultMinVolumeUSD)
	if err != nil {
		return nil, err
	}
	lifetimeMinutes, err := e.settings.Float(ctx, settings.KeyDataLifetimeMinutes, settings.DefaultDataLifetimeMinutes)
	if err != nil {
		return nil, err
	}
	cutoff := e.now().Add(-time.Duration(lifetimeMinutes * float64(time.Minute)))

	var opportunities []model.ArbitrageOpportunity
	analyzed := 0
	for symbol, group := range bySymbol {
		// No arbitrage possible on a single exchange.
		if len(group) < 2 {
			continue
		}

		matrix := e.buildMatrix(group, cutoff, minVolume)
		if len(matrix) < 2 {
			e.logger.Debug("not enough fresh prices for pair", slog.String("symbol", symbol))
			continue
		}

		opportunities = append(opportunities, e.evaluateMatrix(ctx, matrix, minProfit, minVolume)...)
		analyzed++
	}

	e.logger.Info("analysis finished",
		slog.Int("pairs_analyzed", analyzed),
		slog.Int("opportunities", len(opportunities)),
	)
	return opportunities, nil
}

// buildMatrix keeps one fresh, complete quote per exchange. Observations
// older than the cutoff or missing bid/ask never participate.
func (e *Engine) buildMatrix(group []model.ExchangePair, cutoff time.Time, minVolume float64) []quote {
	seen := make(map[int64]bool, len(group))
	matrix := make([]quote, 0, len(group))

	for _, p := range group {
		if seen[p.ExchangeID] {
			continue
		}
		if p.LastPriceUpdate == nil || p.LastPriceUpdate.Before(cutoff) {
			continue
		}
		if p.LastBidPrice == nil || p.LastAskPrice == nil {
			continue
		}

		volume := minVolume
		if p.Volume24h != nil && *p.Volume24h > 0 {
			volume = *p.Volume24h
		}

		seen[p.ExchangeID] = true
		matrix = append(matrix, quote{
			bid:       *p.LastBidPrice,
			ask:       *p.LastAskPrice,
			volume24h: volume,
			pair:      p,
		})
	}
	return matrix
}

// evaluateMatrix checks both directions of every unordered exchange
// combination. A loss in one direction does not preclude profit in the
// other.
func (e *Engine) evaluateMatrix(ctx context.Context, matrix []quote, minProfit, minVolume float64) []model.ArbitrageOpportunity {
	var opportunities []model.ArbitrageOpportunity
	for i := 0; i < len(matrix); i++ {
		for j := i + 1; j < len(matrix); j++ {
			if opp, ok := e.evaluateDirection(ctx, matrix[i], matrix[j], minProfit, minVolume); ok {
				opportunities = append(opportunities, opp)
			}
			if opp, ok := e.evaluateDirection(ctx, matrix[j], matrix[i], minProfit, minVolume); ok {
				opportunities = append(opportunities, opp)
			}
		}
	}
	return opportunities
}

// evaluateDirection prices buying on buy's ask and selling on sell's bid.
func (e *Engine) evaluateDirection(ctx context.Context, buy, sell quote, minProfit, minVolume float64) (model.ArbitrageOpportunity, bool) {
	grossPercent := (sell.bid - buy.ask) / buy.ask * 100

	// Not an opportunity, not an error.
	if grossPercent <= 0 {
		return model.ArbitrageOpportunity{}, false
	}

	buyCommission := e.commission(ctx, buy.pair)
	sellCommission := e.commission(ctx, sell.pair)
	totalCommission := buyCommission + sellCommission

	netPercent := grossPercent - totalCommission*100
	if netPercent < minProfit {
		e.logger.Debug("net profit below threshold",
			slog.String("symbol", buy.pair.Symbol()),
			slog.Float64("net_profit_percent", netPercent),
			slog.Float64("min_profit_percent", minProfit),
		)
		return model.ArbitrageOpportunity{}, false
	}

	e.logger.Info("opportunity found",
		slog.String("symbol", buy.pair.Symbol()),
		slog.String("buy_exchange", exchangeName(buy.pair)),
		slog.String("sell_exchange", exchangeName(sell.pair)),
		slog.Float64("gross_profit_percent", grossPercent),
		slog.Float64("net_profit_percent", netPercent),
	)

	return model.ArbitrageOpportunity{
		BuyExchangeID:    buy.pair.ExchangeID,
		SellExchangeID:   sell.pair.ExchangeID,
		BaseCurrency:     buy.pair.BaseCurrency,
		QuoteCurrency:    buy.pair.QuoteCurrency,
		BuyPrice:         buy.ask,
		SellPrice:        sell.bid,
		ProfitPercent:    grossPercent,
		ProfitUSD:        netPercent / 100 * notionalUSD,
		NetProfitPercent: netPercent,
		Volume24hBuy:     max(buy.volume24h, minVolume),
		Volume24hSell:    max(sell.volume24h, minVolume),
		MinVolumeUSD:     minVolume,
		BuyCommission:    buyCommission,
		SellCommission:   sellCommission,
		TotalCommission:  totalCommission,
		IsActive:         true,
		DetectedAt:       e.now(),
	}, true
}

// commission resolves the taker fee for one side: the pair's configured fee
// when present, otherwise the exchange's default from settings.
func (e *Engine) commission(ctx context.Context, pair model.ExchangePair) float64 {
	if pair.TakerFee != nil && *pair.TakerFee > 0 {
		return *pair.TakerFee
	}
	fee, err := e.settings.DefaultCommission(ctx, exchangeName(pair))
	if err != nil {
		e.logger.Warn("failed to load default commission",
			slog.String("exchange", exchangeName(pair)),
			slog.String("error", err.Error()),
		)
		return 0.001
	}
	return fee
}

// SaveOpportunities upserts each opportunity. Individual failures are logged
// and do not abort the batch; the count saved is returned.
func (e *Engine) SaveOpportunities(ctx context.Context, opportunities []model.ArbitrageOpportunity) int {
	saved := 0
	for _, opp := range opportunities {
		if _, err := e.repo.UpsertOpportunity(ctx, opp); err != nil {
			e.logger.Error("failed to save opportunity",
				slog.String("symbol", opp.Symbol()),
				slog.Int64("buy_exchange_id", opp.BuyExchangeID),
				slog.Int64("sell_exchange_id", opp.SellExchangeID),
				slog.String("error", err.Error()),
			)
			continue
		}
		saved++
	}
	return saved
}

// OpportunitiesForAlert returns the cooldown-filtered alert-eligible subset,
// ranked by net profit.
func (e *Engine) OpportunitiesForAlert(ctx context.Context) ([]model.ArbitrageOpportunity, error) {
	minProfit, err := e.settings.Float(ctx, settings.KeyMinProfitPercent, settings.DefaultMinProfitPercent)
	if err != nil {
		return nil, err
	}
	minVolume, err := e.settings.Float(ctx, settings.KeyMinVolumeUSD, settings.DefaultMinVolumeUSD)
	if err != nil {
		return nil, err
	}
	cooldownMinutes, err := e.settings.Float(ctx, settings.KeyAlertCooldownMinutes, settings.DefaultAlertCooldownMinutes)
	if err != nil {
		return nil, err
	}

	cooldown := time.Duration(cooldownMinutes * float64(time.Minute))
	return e.repo.OpportunitiesForAlert(ctx, minProfit, minVolume, cooldown)
}

func exchangeName(pair model.ExchangePair) string {
	if pair.Exchange != nil {
		return pair.Exchange.Name
	}
	return ""
}
