package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

// RetryPolicy bounds the retry loop applied to every outbound request.
// Transport errors, timeouts and 5xx responses are retried with exponential
// backoff; 4xx and malformed payloads are terminal immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy returns the standard 3-attempt policy with a 1s base
// delay doubling per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}
}

// NewHTTPClient builds the HTTP client shared by all exchange clients, with
// a total request timeout and a separate connect timeout.
func NewHTTPClient(timeout, connectTimeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
		},
	}
}

// transport performs HTTP GETs with the retry policy on behalf of one
// exchange client.
type transport struct {
	exchange string
	client   *http.Client
	policy   RetryPolicy
	logger   *slog.Logger
}

func newTransport(exchange string, client *http.Client, policy RetryPolicy, logger *slog.Logger) *transport {
	if client == nil {
		client = NewHTTPClient(10*time.Second, 5*time.Second)
	}
	if policy.MaxAttempts < 1 {
		policy = DefaultRetryPolicy()
	}
	return &transport{
		exchange: exchange,
		client:   client,
		policy:   policy,
		logger:   logger.With(slog.String("exchange", exchange)),
	}
}

// getJSON issues a GET and decodes the JSON body into out. Retries are
// sequential delays local to this request; they never block other in-flight
// requests.
func (t *transport) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	reqURL := rawURL
	if len(params) > 0 {
		reqURL = rawURL + "?" + params.Encode()
	}

	delay := t.policy.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= t.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			t.logger.Warn("request failed, retrying",
				slog.Duration("wait", delay),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * t.policy.Multiplier)
		}

		retryable, err := t.do(ctx, reqURL, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}

	return &FetchError{Exchange: t.exchange, Attempts: t.policy.MaxAttempts, Err: lastErr}
}

// do performs a single request. The bool result reports whether the failure
// is transient and eligible for another attempt.
func (t *transport) do(ctx context.Context, reqURL string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("%s: build request: %w", t.exchange, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("%s: %w", t.exchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return true, fmt.Errorf("%s: server error: status %d", t.exchange, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return false, &InvalidSymbolError{Exchange: t.exchange, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("%s: read body: %w", t.exchange, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, &MalformedResponseError{Exchange: t.exchange, Reason: "invalid JSON payload"}
	}
	return false, nil
}
