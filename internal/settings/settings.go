// Package settings serves process-wide tunables from the settings table,
// cached for the lifetime of the process. Keys missing from the table fall
// back to the built-in defaults.
package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"spreadwatch/internal/database"
)

// Setting keys used by the core.
const (
	KeyMinProfitPercent     = "min_profit_percent"
	KeyMinVolumeUSD         = "min_volume_usd"
	KeyDataLifetimeMinutes  = "data_lifetime_minutes"
	KeyAlertCooldownMinutes = "alert_cooldown_minutes"
)

// Default thresholds applied when the settings table lacks a key.
const (
	DefaultMinProfitPercent     = 2.0
	DefaultMinVolumeUSD         = 100.0
	DefaultDataLifetimeMinutes  = 5.0
	DefaultAlertCooldownMinutes = 30.0

	// defaultCommission is the taker fee assumed for exchanges with no
	// configured commission, as a fraction (0.001 = 0.1%).
	defaultCommission = 0.001
)

// defaults mirrors the seed settings row, including the per-exchange
// commission table.
var defaults = map[string]float64{
	KeyMinProfitPercent:     DefaultMinProfitPercent,
	KeyMinVolumeUSD:         DefaultMinVolumeUSD,
	KeyDataLifetimeMinutes:  DefaultDataLifetimeMinutes,
	KeyAlertCooldownMinutes: DefaultAlertCooldownMinutes,
	"mexc_commission":       0.001,
	"bybit_commission":      0.001,
	"bingx_commission":      0.001,
	"coinex_commission":     0.001,
	"okx_commission":        0.0008,
	"htx_commission":        0.002,
	"kucoin_commission":     0.001,
	"poloniex_commission":   0.0015,
	"bitget_commission":     0.001,
}

// Store caches the settings table. Safe for concurrent use; the table is
// loaded at most once per process until Flush.
type Store struct {
	repo database.Repository

	mu     sync.Mutex
	cached map[string]float64
}

// NewStore creates a settings store reading through the repository.
func NewStore(repo database.Repository) *Store {
	return &Store{repo: repo}
}

// Float returns the setting value, the built-in default for the key, or def
// when neither exists.
func (s *Store) Float(ctx context.Context, key string, def float64) (float64, error) {
	all, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	if v, ok := all[key]; ok {
		return v, nil
	}
	if v, ok := defaults[key]; ok {
		return v, nil
	}
	return def, nil
}

// DefaultCommission returns the taker fee fraction for an exchange with no
// pair-specific fee, keyed as "<name>_commission".
func (s *Store) DefaultCommission(ctx context.Context, exchangeName string) (float64, error) {
	key := strings.ToLower(exchangeName) + "_commission"
	return s.Float(ctx, key, defaultCommission)
}

// Flush drops the cache so the next read reloads the table. Long-lived
// processes call this to pick up operator changes.
func (s *Store) Flush() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *Store) load(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, nil
	}
	all, err := s.repo.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if all == nil {
		all = map[string]float64{}
	}
	s.cached = all
	return s.cached, nil
}
