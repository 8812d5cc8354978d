// Package poller refreshes price records by querying every active exchange
// for the tracked pair universe.
package poller

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"spreadwatch/internal/database"
	"spreadwatch/internal/exchange"
	"spreadwatch/internal/model"
)

// Stats aggregates the outcome of polling one exchange.
type Stats struct {
	Successful int
	Errors     int
	Total      int
	NotFound   int
}

// Factory creates exchange clients; implemented by exchange.Registry.
type Factory interface {
	Has(name string) bool
	New(ex model.Exchange) (exchange.Client, error)
}

// symbolSet holds an exchange's normalized tradable symbols. A nil set means
// symbol discovery is unavailable for the exchange, which is distinct from
// an exchange with no cache entry yet.
type symbolSet map[string]struct{}

// Service polls all active exchanges and persists fresh prices. The symbol
// cache lives for the process run; a duplicate first-population race costs a
// redundant fetch, never incorrect data.
type Service struct {
	logger  *slog.Logger
	repo    database.Repository
	clients Factory

	mu      sync.Mutex
	symbols map[int64]symbolSet
}

// New creates a polling service.
func New(logger *slog.Logger, repo database.Repository, clients Factory) *Service {
	return &Service{
		logger:  logger.With(slog.String("component", "poller")),
		repo:    repo,
		clients: clients,
		symbols: make(map[int64]symbolSet),
	}
}

// PollAll polls every active exchange concurrently for all tracked pairs and
// returns per-exchange outcome counts. One exchange's failure never prevents
// the others from completing.
func (s *Service) PollAll(ctx context.Context) (map[string]Stats, error) {
	exchanges, err := s.repo.ActiveExchanges(ctx)
	if err != nil {
		return nil, err
	}
	pairs, err := s.repo.TrackedPairs(ctx)
	if err != nil {
		return nil, err
	}

	if len(exchanges) == 0 {
		s.logger.Warn("no active exchanges to poll")
		return map[string]Stats{}, nil
	}
	if len(pairs) == 0 {
		s.logger.Warn("no tracked pairs")
		return map[string]Stats{}, nil
	}

	s.logger.Info("polling exchanges",
		slog.Int("exchanges", len(exchanges)),
		slog.Int("tracked_pairs", len(pairs)),
	)

	var mu sync.Mutex
	results := make(map[string]Stats, len(exchanges))

	var g errgroup.Group
	for _, ex := range exchanges {
		g.Go(func() error {
			stats := s.pollExchange(ctx, ex, pairs)
			mu.Lock()
			results[ex.Name] = stats
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results, nil
}

// candidate is a tracked pair resolved to a native symbol on one exchange.
type candidate struct {
	pair   model.TrackedPair
	symbol string
}

func (s *Service) pollExchange(ctx context.Context, ex model.Exchange, pairs []model.TrackedPair) Stats {
	if !s.clients.Has(ex.Name) {
		s.logger.Warn("no client registered for exchange", slog.String("exchange", ex.Name))
		return Stats{}
	}

	client, err := s.clients.New(ex)
	if err != nil {
		s.logger.Error("failed to construct exchange client",
			slog.String("exchange", ex.Name),
			slog.String("error", err.Error()),
		)
		return Stats{Errors: len(pairs), Total: len(pairs)}
	}

	known := s.exchangeSymbols(ctx, ex, client)

	var resolved []candidate
	var notFound atomic.Int64
	for _, pair := range pairs {
		symbol, ok := resolveSymbol(client, ex.Name, pair, known)
		if !ok {
			notFound.Add(1)
			continue
		}
		resolved = append(resolved, candidate{pair: pair, symbol: symbol})
	}

	s.logger.Info("resolved pairs on exchange",
		slog.String("exchange", ex.Name),
		slog.Int("resolved", len(resolved)),
		slog.Int("tracked", len(pairs)),
		slog.Int64("skipped", notFound.Load()),
	)

	if len(resolved) == 0 {
		return Stats{Total: len(pairs), NotFound: int(notFound.Load())}
	}

	var successful, failed atomic.Int64
	var g errgroup.Group
	for _, cand := range resolved {
		g.Go(func() error {
			err := s.pollPair(ctx, ex, client, cand)
			switch {
			case err == nil:
				successful.Add(1)
			case exchange.IsNotFound(err):
				// The pair simply is not listed there.
				notFound.Add(1)
			default:
				failed.Add(1)
				s.logger.Warn("failed to fetch ticker",
					slog.String("exchange", ex.Name),
					slog.String("symbol", cand.symbol),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	g.Wait()

	stats := Stats{
		Successful: int(successful.Load()),
		Errors:     int(failed.Load()),
		Total:      len(pairs),
		NotFound:   int(notFound.Load()),
	}

	s.logger.Info("exchange poll finished",
		slog.String("exchange", ex.Name),
		slog.Int("successful", stats.Successful),
		slog.Int("errors", stats.Errors),
		slog.Int("not_found", stats.NotFound),
	)
	return stats
}

// exchangeSymbols returns the cached normalized symbol universe for the
// exchange, populating the cache on first use. The fetch happens outside the
// lock; a concurrent duplicate fetch is benign since results are
// deterministic for a given exchange at a given instant.
func (s *Service) exchangeSymbols(ctx context.Context, ex model.Exchange, client exchange.Client) symbolSet {
	s.mu.Lock()
	if set, ok := s.symbols[ex.ID]; ok {
		s.mu.Unlock()
		return set
	}
	s.mu.Unlock()

	var set symbolSet
	raw, err := client.AllSymbols(ctx)
	switch {
	case err != nil:
		s.logger.Warn("symbol discovery failed, probing pairs directly",
			slog.String("exchange", ex.Name),
			slog.String("error", err.Error()),
		)
	case len(raw) == 0:
		s.logger.Debug("symbol discovery not offered, probing pairs directly",
			slog.String("exchange", ex.Name),
		)
	default:
		set = make(symbolSet, len(raw))
		for _, symbol := range raw {
			set[client.NormalizeSymbol(symbol)] = struct{}{}
		}
		s.logger.Debug("cached exchange symbols",
			slog.String("exchange", ex.Name),
			slog.Int("count", len(set)),
		)
	}

	s.mu.Lock()
	s.symbols[ex.ID] = set
	s.mu.Unlock()
	return set
}

// resolveSymbol finds the native symbol for a tracked pair. With a symbol
// cache it tries the common format variants; without one it falls back to
// the most likely format for the exchange and lets the fetch itself decide.
func resolveSymbol(client exchange.Client, exchangeName string, pair model.TrackedPair, known symbolSet) (string, bool) {
	base, quote := pair.BaseCurrency, pair.QuoteCurrency

	if known != nil {
		variants := []string{
			pair.Symbol(),        // BTCUSDT
			base + "/" + quote,   // BTC/USDT
			base + "-" + quote,   // BTC-USDT
			base + "_" + quote,   // BTC_USDT
		}
		for _, variant := range variants {
			normalized := client.NormalizeSymbol(variant)
			if _, ok := known[normalized]; ok {
				return normalized, true
			}
		}
		return "", false
	}

	var guess string
	switch exchangeName {
	case "BingX", "Kucoin":
		guess = base + "-" + quote
	case "HTX":
		guess = strings.ToLower(pair.Symbol())
	default:
		guess = pair.Symbol()
	}
	return client.NormalizeSymbol(guess), true
}

func (s *Service) pollPair(ctx context.Context, ex model.Exchange, client exchange.Client, cand candidate) error {
	ticker, err := client.Ticker(ctx, cand.symbol)
	if err != nil {
		return err
	}

	pair, err := s.repo.FindOrCreatePair(ctx, ex.ID, cand.pair.BaseCurrency, cand.pair.QuoteCurrency, cand.symbol)
	if err != nil {
		return err
	}
	return s.repo.UpdatePairPrices(ctx, pair.ID, ticker.Bid, ticker.Ask, ticker.Volume24h)
}
