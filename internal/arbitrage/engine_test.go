package arbitrage

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"spreadwatch/internal/model"
	"spreadwatch/internal/settings"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ActiveExchanges(ctx context.Context) ([]model.Exchange, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Exchange), args.Error(1)
}

func (m *MockRepository) TrackedPairs(ctx context.Context) ([]model.TrackedPair, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.TrackedPair), args.Error(1)
}

func (m *MockRepository) FindOrCreatePair(ctx context.Context, exchangeID int64, base, quote, nativeSymbol string) (model.ExchangePair, error) {
	args := m.Called(ctx, exchangeID, base, quote, nativeSymbol)
	return args.Get(0).(model.ExchangePair), args.Error(1)
}

func (m *MockRepository) UpdatePairPrices(ctx context.Context, pairID int64, bid, ask float64, volume24h *float64) error {
	args := m.Called(ctx, pairID, bid, ask, volume24h)
	return args.Error(0)
}

func (m *MockRepository) ActivePairsWithExchange(ctx context.Context) ([]model.ExchangePair, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.ExchangePair), args.Error(1)
}

func (m *MockRepository) UpsertOpportunity(ctx context.Context, opp model.ArbitrageOpportunity) (int64, error) {
	args := m.Called(ctx, opp)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) OpportunitiesForAlert(ctx context.Context, minProfit, minVolume float64, cooldown time.Duration) ([]model.ArbitrageOpportunity, error) {
	args := m.Called(ctx, minProfit, minVolume, cooldown)
	return args.Get(0).([]model.ArbitrageOpportunity), args.Error(1)
}

func (m *MockRepository) MarkOpportunityAlerted(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) LoadSettings(ctx context.Context) (map[string]float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]float64), args.Error(1)
}

func floatPtr(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

// pairOn builds a fresh price record for one exchange.
func pairOn(ex model.Exchange, bid, ask float64, updated time.Time) model.ExchangePair {
	return model.ExchangePair{
		ID:              ex.ID * 100,
		ExchangeID:      ex.ID,
		BaseCurrency:    "BTC",
		QuoteCurrency:   "USDT",
		IsActive:        true,
		LastBidPrice:    floatPtr(bid),
		LastAskPrice:    floatPtr(ask),
		LastPriceUpdate: timePtr(updated),
		Exchange:        &ex,
	}
}

func newTestEngine(repo *MockRepository) *Engine {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return NewEngine(logger, repo, settings.NewStore(repo))
}

func TestEngine_Analyze(t *testing.T) {
	mexc := model.Exchange{ID: 1, Name: "MEXC", IsActive: true}
	bybit := model.Exchange{ID: 2, Name: "Bybit", IsActive: true}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("profitable opportunity with exact fee math", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("LoadSettings", mock.Anything).Return(map[string]float64{}, nil)
		mockRepo.On("ActivePairsWithExchange", mock.Anything).Return([]model.ExchangePair{
			pairOn(mexc, 99.5, 100, now),
			pairOn(bybit, 103, 103.5, now),
		}, nil)

		engine := newTestEngine(mockRepo)
		engine.now = func() time.Time { return now }

		opps, err := engine.Analyze(context.Background())
		require.NoError(t, err)
		require.Len(t, opps, 1)

		opp := opps[0]
		assert.Equal(t, mexc.ID, opp.BuyExchangeID)
		assert.Equal(t, bybit.ID, opp.SellExchangeID)
		assert.InDelta(t, 3.0, opp.ProfitPercent, 1e-9)
		assert.InDelta(t, 2.8, opp.NetProfitPercent, 1e-9)
		assert.InDelta(t, 28.0, opp.ProfitUSD, 1e-9)
		assert.InDelta(t, opp.ProfitPercent-(opp.BuyCommission+opp.SellCommission)*100, opp.NetProfitPercent, 1e-12)
		// Missing 24h volumes are clamped to the floor, not disqualifying.
		assert.Equal(t, 100.0, opp.Volume24hBuy)
		assert.Equal(t, 100.0, opp.Volume24hSell)
	})

	t.Run("spread below minimum profit excluded", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("LoadSettings", mock.Anything).Return(map[string]float64{}, nil)
		mockRepo.On("ActivePairsWithExchange", mock.Anything).Return([]model.ExchangePair{
			pairOn(mexc, 99.5, 100, now),
			pairOn(bybit, 100.5, 101, now),
		}, nil)

		engine := newTestEngine(mockRepo)
		engine.now = func() time.Time { return now }

		opps, err := engine.Analyze(context.Background())
		require.NoError(t, err)
		assert.Empty(t, opps)
	})

	t.Run("both directions evaluated independently", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("LoadSettings", mock.Anything).Return(map[string]float64{}, nil)
		// Crossed books: each side's bid exceeds the other's ask.
		mockRepo.On("ActivePairsWithExchange", mock.Anything).Return([]model.ExchangePair{
			pairOn(mexc, 103, 100, now),
			pairOn(bybit, 103, 100, now),
		}, nil)

		engine := newTestEngine(mockRepo)
		engine.now = func() time.Time { return now }

		opps, err := engine.Analyze(context.Background())
		require.NoError(t, err)
		require.Len(t, opps, 2)

		assert.NotEqual(t, opps[0].BuyExchangeID, opps[0].SellExchangeID)
		assert.Equal(t, opps[0].BuyExchangeID, opps[1].SellExchangeID)
		assert.Equal(t, opps[0].SellExchangeID, opps[1].BuyExchangeID)
	})

	t.Run("stale observation excluded from matrix", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("LoadSettings", mock.Anything).Return(map[string]float64{}, nil)
		stale := now.Add(-10 * time.Minute)
		mockRepo.On("ActivePairsWithExchange", mock.Anything).Return([]model.ExchangePair{
			pairOn(mexc, 99.5, 100, now),
			pairOn(bybit, 103, 103.5, stale),
		}, nil)

		engine := newTestEngine(mockRepo)
		engine.now = func() time.Time { return now }

		opps, err := engine.Analyze(context.Background())
		require.NoError(t, err)
		assert.Empty(t, opps)
	})

	t.Run("pair on single exchange skipped", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("LoadSettings", mock.Anything).Return(map[string]float64{}, nil)
		mockRepo.On("ActivePairsWithExchange", mock.Anything).Return([]model.ExchangePair{
			pairOn(mexc, 99.5, 100, now),
		}, nil)

		engine := newTestEngine(mockRepo)
		engine.now = func() time.Time { return now }

		opps, err := engine.Analyze(context.Background())
		require.NoError(t, err)
		assert.Empty(t, opps)
	})

	t.Run("pair-specific taker fee preferred over default", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("LoadSettings", mock.Anything).Return(map[string]float64{}, nil)
		buy := pairOn(mexc, 99.5, 100, now)
		buy.TakerFee = floatPtr(0.005)
		sell := pairOn(bybit, 103, 103.5, now)
		mockRepo.On("ActivePairsWithExchange", mock.Anything).Return([]model.ExchangePair{buy, sell}, nil)

		engine := newTestEngine(mockRepo)
		engine.now = func() time.Time { return now }

		opps, err := engine.Analyze(context.Background())
		require.NoError(t, err)
		require.Len(t, opps, 1)
		assert.Equal(t, 0.005, opps[0].BuyCommission)
		assert.InDelta(t, 3.0-(0.005+0.001)*100, opps[0].NetProfitPercent, 1e-9)
	})
}

func TestEngine_SaveOpportunities(t *testing.T) {
	mockRepo := new(MockRepository)
	engine := newTestEngine(mockRepo)

	opps := []model.ArbitrageOpportunity{
		{BuyExchangeID: 1, SellExchangeID: 2, BaseCurrency: "BTC", QuoteCurrency: "USDT"},
		{BuyExchangeID: 2, SellExchangeID: 1, BaseCurrency: "BTC", QuoteCurrency: "USDT"},
	}

	mockRepo.On("UpsertOpportunity", mock.Anything, opps[0]).Return(int64(1), nil).Once()
	mockRepo.On("UpsertOpportunity", mock.Anything, opps[1]).Return(int64(0), assert.AnError).Once()

	// One rejected record must not abort the batch.
	saved := engine.SaveOpportunities(context.Background(), opps)
	assert.Equal(t, 1, saved)
	mockRepo.AssertExpectations(t)
}

func TestEngine_OpportunitiesForAlert(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("LoadSettings", mock.Anything).Return(map[string]float64{
		"min_profit_percent":     1.5,
		"min_volume_usd":         500.0,
		"alert_cooldown_minutes": 15.0,
	}, nil)
	mockRepo.On("OpportunitiesForAlert", mock.Anything, 1.5, 500.0, 15*time.Minute).
		Return([]model.ArbitrageOpportunity{{ID: 7}}, nil).Once()

	engine := newTestEngine(mockRepo)

	opps, err := engine.OpportunitiesForAlert(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, int64(7), opps[0].ID)
	mockRepo.AssertExpectations(t)
}
