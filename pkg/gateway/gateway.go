// Package gateway hosts one adapter per exchange behind a single quote-fetch
// capability. Adapters own symbol-format translation and response parsing,
// and convert every failure into a failed Quote rather than an error: retry
// policy belongs to the aggregator, not here.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"cexquery/pkg/quote"
)

const defaultRequestTimeout = 7 * time.Second

// Gateway fetches one exchange's quote for a canonical symbol (e.g. "BTC").
// Implementations are stateless across calls apart from an exclusively owned
// HTTP connection pool, and never return errors: failures settle as failed
// quotes with a specific reason.
type Gateway interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) quote.Quote
}

// statusError carries a non-2xx response so callers can classify it.
type statusError struct {
	code int
	body []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.code, string(e.body))
}

// getJSON performs one bounded-time GET and returns the raw body. Non-2xx
// responses come back as *statusError with the body preserved for adapters
// that need to inspect exchange error payloads.
func getJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: body}
	}
	return body, nil
}

// classifyTransport maps a transport-level error onto a failure reason.
// Exchange-payload errors (unknown symbol, malformed body) are classified by
// the individual adapters, which know each exchange's error shape.
func classifyTransport(ctx context.Context, err error) quote.FailureReason {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return quote.ReasonCancelled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return quote.ReasonTimeout
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		if statusErr.code == http.StatusTooManyRequests {
			return quote.ReasonRateLimited
		}
		return quote.ReasonExchangeUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return quote.ReasonTimeout
	}
	return quote.ReasonExchangeUnavailable
}

// isStatus reports whether err is a *statusError with the given code.
func isStatus(err error, code int) bool {
	var statusErr *statusError
	return errors.As(err, &statusErr) && statusErr.code == code
}
