package exchange

import (
	"errors"
	"fmt"
	"strings"
)

// Registry-level construction failures. Fatal for the exchange's polling
// cycle only, never for sibling exchanges.
var (
	ErrUnsupportedExchange   = errors.New("no client registered for exchange")
	ErrMisconfiguredExchange = errors.New("exchange is missing required API URLs")
)

// FetchError is the terminal error after exhausting retries on transport
// failures, timeouts or 5xx responses.
type FetchError struct {
	Exchange string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: request failed after %d attempts: %v", e.Exchange, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// InvalidSymbolError reports a 4xx response. The request itself is invalid,
// typically because the symbol is not listed, so it is never retried.
type InvalidSymbolError struct {
	Exchange string
	Symbol   string
	Status   int
}

func (e *InvalidSymbolError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s: symbol not found (status %d)", e.Exchange, e.Status)
	}
	return fmt.Sprintf("%s: symbol %s not found (status %d)", e.Exchange, e.Symbol, e.Status)
}

// MalformedResponseError reports an otherwise-successful call whose payload
// is missing required price fields. Not retried.
type MalformedResponseError struct {
	Exchange string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Exchange, e.Reason)
}

// IsNotFound reports whether err means the symbol simply is not listed on
// the exchange. Callers count these as not_found, not as errors. Besides the
// typed check, the message heuristic covers exchanges that signal a missing
// symbol inside a 200 payload.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var invalid *InvalidSymbolError
	if errors.As(err, &invalid) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"not found", "invalid symbol", "400", "bad request", "symbol"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
