package database

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"spreadwatch/internal/model"
)

var (
	pool *pgxpool.Pool
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Fatalf("could not start postgres container: %s", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Fatalf("could not stop postgres container: %s", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	if err != nil {
		log.Fatalf("could not get container host: %s", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("could not get mapped port: %s", err)
	}

	connStr := "postgres://testuser:testpassword@" + host + ":" + port.Port() + "/testdb"

	pool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("could not connect to database: %s", err)
	}
	defer pool.Close()

	if err := NewPostgresRepository(pool).Migrate(ctx); err != nil {
		log.Fatalf("could not migrate schema: %s", err)
	}

	code := m.Run()

	os.Exit(code)
}

// createExchange inserts an exchange row for tests and returns its id.
func createExchange(t *testing.T, name string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO exchanges (name, spot_api_url, kline_api_url, is_active)
		VALUES ($1, 'http://spot.test', 'http://kline.test', TRUE)
		ON CONFLICT (name) DO UPDATE SET is_active = TRUE
		RETURNING id`, name).Scan(&id)
	require.NoError(t, err)
	return id
}

func testOpportunity(buyID, sellID int64, base string) model.ArbitrageOpportunity {
	return model.ArbitrageOpportunity{
		BuyExchangeID:    buyID,
		SellExchangeID:   sellID,
		BaseCurrency:     base,
		QuoteCurrency:    "USDT",
		BuyPrice:         100,
		SellPrice:        103,
		ProfitPercent:    3.0,
		ProfitUSD:        28.0,
		NetProfitPercent: 2.8,
		Volume24hBuy:     1000,
		Volume24hSell:    1000,
		MinVolumeUSD:     100,
		BuyCommission:    0.001,
		SellCommission:   0.001,
		TotalCommission:  0.002,
		IsActive:         true,
		DetectedAt:       time.Now(),
	}
}

func TestPostgresRepository_ActiveExchanges(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresRepository(pool)

	createExchange(t, "MEXC")
	inactiveID := createExchange(t, "Ghost")
	_, err := pool.Exec(ctx, `UPDATE exchanges SET is_active = FALSE WHERE id = $1`, inactiveID)
	require.NoError(t, err)

	exchanges, err := repo.ActiveExchanges(ctx)
	require.NoError(t, err)

	names := make(map[string]bool, len(exchanges))
	for _, ex := range exchanges {
		names[ex.Name] = true
	}
	assert.True(t, names["MEXC"])
	assert.False(t, names["Ghost"])
}

func TestPostgresRepository_FindOrCreatePair(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresRepository(pool)
	exID := createExchange(t, "Bybit")

	first, err := repo.FindOrCreatePair(ctx, exID, "btc", "usdt", "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC", first.BaseCurrency)
	assert.Equal(t, "USDT", first.QuoteCurrency)
	assert.Equal(t, "BTCUSDT", first.SymbolOnExchange)
	assert.True(t, first.IsActive)
	assert.Nil(t, first.LastBidPrice)

	// A second call must resolve to the same row.
	second, err := repo.FindOrCreatePair(ctx, exID, "BTC", "USDT", "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestPostgresRepository_UpdatePairPrices(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresRepository(pool)
	exID := createExchange(t, "OKX")

	pair, err := repo.FindOrCreatePair(ctx, exID, "ETH", "USDT", "ETH-USDT")
	require.NoError(t, err)

	volume := 42000.5
	err = repo.UpdatePairPrices(ctx, pair.ID, 3000.5, 3001.5, &volume)
	require.NoError(t, err)

	pairs, err := repo.ActivePairsWithExchange(ctx)
	require.NoError(t, err)

	var updated *model.ExchangePair
	for i := range pairs {
		if pairs[i].ID == pair.ID {
			updated = &pairs[i]
		}
	}
	require.NotNil(t, updated)
	require.NotNil(t, updated.LastBidPrice)
	assert.Equal(t, 3000.5, *updated.LastBidPrice)
	require.NotNil(t, updated.LastAskPrice)
	assert.Equal(t, 3001.5, *updated.LastAskPrice)
	require.NotNil(t, updated.Volume24h)
	assert.Equal(t, 42000.5, *updated.Volume24h)
	require.NotNil(t, updated.LastPriceUpdate)
	assert.WithinDuration(t, time.Now(), *updated.LastPriceUpdate, time.Minute)
	require.NotNil(t, updated.Exchange)
	assert.Equal(t, "OKX", updated.Exchange.Name)
}

func TestPostgresRepository_TrackedPairs(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresRepository(pool)
	firstID := createExchange(t, "Kucoin")
	secondID := createExchange(t, "CoinEx")

	_, err := repo.FindOrCreatePair(ctx, firstID, "SOL", "USDT", "SOL-USDT")
	require.NoError(t, err)
	_, err = repo.FindOrCreatePair(ctx, secondID, "SOL", "USDT", "SOLUSDT")
	require.NoError(t, err)

	pairs, err := repo.TrackedPairs(ctx)
	require.NoError(t, err)

	// The same pair on two exchanges is one tracked pair.
	count := 0
	for _, p := range pairs {
		if p.BaseCurrency == "SOL" && p.QuoteCurrency == "USDT" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPostgresRepository_UpsertOpportunity(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresRepository(pool)
	buyID := createExchange(t, "Bitget")
	sellID := createExchange(t, "Poloniex")

	opp := testOpportunity(buyID, sellID, "XRP")
	firstID, err := repo.UpsertOpportunity(ctx, opp)
	require.NoError(t, err)
	require.NotZero(t, firstID)

	// Mark it alerted, then upsert again with fresher prices.
	require.NoError(t, repo.MarkOpportunityAlerted(ctx, firstID))

	opp.SellPrice = 104
	opp.NetProfitPercent = 3.8
	opp.DetectedAt = time.Now()
	secondID, err := repo.UpsertOpportunity(ctx, opp)
	require.NoError(t, err)

	// The active row is updated in place; identity and alert state survive.
	assert.Equal(t, firstID, secondID)

	var netProfit float64
	var alertedAt *time.Time
	err = pool.QueryRow(ctx, `
		SELECT net_profit_percent, alerted_at FROM arbitrage_opportunities WHERE id = $1`,
		firstID).Scan(&netProfit, &alertedAt)
	require.NoError(t, err)
	assert.Equal(t, 3.8, netProfit)
	assert.NotNil(t, alertedAt)

	// The reverse direction is a distinct opportunity.
	reverse := testOpportunity(sellID, buyID, "XRP")
	reverseID, err := repo.UpsertOpportunity(ctx, reverse)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, reverseID)
}

func TestPostgresRepository_OpportunitiesForAlert(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresRepository(pool)
	buyID := createExchange(t, "HTX")
	sellID := createExchange(t, "BingX")

	fresh := testOpportunity(buyID, sellID, "ADA")
	freshID, err := repo.UpsertOpportunity(ctx, fresh)
	require.NoError(t, err)

	thin := testOpportunity(buyID, sellID, "DOGE")
	thin.Volume24hSell = 10
	_, err = repo.UpsertOpportunity(ctx, thin)
	require.NoError(t, err)

	weak := testOpportunity(buyID, sellID, "TRX")
	weak.NetProfitPercent = 0.5
	_, err = repo.UpsertOpportunity(ctx, weak)
	require.NoError(t, err)

	opps, err := repo.OpportunitiesForAlert(ctx, 2.0, 100.0, 30*time.Minute)
	require.NoError(t, err)

	ids := make(map[int64]bool, len(opps))
	for _, o := range opps {
		ids[o.ID] = true
		assert.GreaterOrEqual(t, o.NetProfitPercent, 2.0)
	}
	assert.True(t, ids[freshID])

	// Once alerted, the row stays quiet until the cooldown passes.
	require.NoError(t, repo.MarkOpportunityAlerted(ctx, freshID))

	opps, err = repo.OpportunitiesForAlert(ctx, 2.0, 100.0, 30*time.Minute)
	require.NoError(t, err)
	for _, o := range opps {
		assert.NotEqual(t, freshID, o.ID)
	}

	// A zero cooldown lets it alert again immediately.
	opps, err = repo.OpportunitiesForAlert(ctx, 2.0, 100.0, 0)
	require.NoError(t, err)
	found := false
	for _, o := range opps {
		if o.ID == freshID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPostgresRepository_LoadSettings(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresRepository(pool)

	_, err := pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ('min_profit_percent', 1.25)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`)
	require.NoError(t, err)

	settings, err := repo.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.25, settings["min_profit_percent"])
}
