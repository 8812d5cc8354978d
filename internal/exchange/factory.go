package exchange

import (
	"fmt"
	"log/slog"
	"net/http"

	"spreadwatch/internal/model"
)

// clientConfig carries everything a concrete client constructor needs.
type clientConfig struct {
	spotAPIURL  string
	klineAPIURL string
	transport   *transport
}

// constructors maps an exchange name to its client constructor.
var constructors = map[string]func(clientConfig) Client{
	"MEXC":     newMEXC,
	"Bybit":    newBybit,
	"BingX":    newBingX,
	"CoinEx":   newCoinEx,
	"OKX":      newOKX,
	"HTX":      newHTX,
	"Kucoin":   newKucoin,
	"Poloniex": newPoloniex,
	"Bitget":   newBitget,
}

// Registry creates exchange clients by name. Construction is side-effect-free:
// no network call happens until the client is used.
type Registry struct {
	httpClient *http.Client
	policy     RetryPolicy
	logger     *slog.Logger
}

// NewRegistry creates a Registry whose clients share the given HTTP client
// and retry policy.
func NewRegistry(httpClient *http.Client, policy RetryPolicy, logger *slog.Logger) *Registry {
	return &Registry{httpClient: httpClient, policy: policy, logger: logger}
}

// Has reports whether a client is registered for the exchange name.
func (r *Registry) Has(name string) bool {
	_, ok := constructors[name]
	return ok
}

// New constructs the client for the given exchange record.
func (r *Registry) New(ex model.Exchange) (Client, error) {
	construct, ok := constructors[ex.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExchange, ex.Name)
	}
	if ex.SpotAPIURL == "" || ex.KlineAPIURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrMisconfiguredExchange, ex.Name)
	}

	return construct(clientConfig{
		spotAPIURL:  ex.SpotAPIURL,
		klineAPIURL: ex.KlineAPIURL,
		transport:   newTransport(ex.Name, r.httpClient, r.policy, r.logger),
	}), nil
}
