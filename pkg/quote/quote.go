// Package quote defines the normalized price observation model shared by the
// gateway, aggregation and ranking layers.
package quote

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status reports whether a gateway call produced a usable price.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// FailureReason classifies why a gateway call produced no usable price.
type FailureReason string

const (
	ReasonNone                FailureReason = ""
	ReasonExchangeUnavailable FailureReason = "exchange_unavailable"
	ReasonUnknownSymbol       FailureReason = "unknown_symbol"
	ReasonMalformedResponse   FailureReason = "malformed_response"
	ReasonRateLimited         FailureReason = "rate_limited"
	ReasonTimeout             FailureReason = "timeout"
	ReasonCancelled           FailureReason = "cancelled"
)

// Quote is one exchange's price observation for a canonical symbol.
// Values are constructed once and never mutated afterwards.
type Quote struct {
	ExchangeID    string          `json:"exchange_id"`
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Timestamp     time.Time       `json:"timestamp"`
	Status        Status          `json:"status"`
	FailureReason FailureReason   `json:"failure_reason,omitempty"`
}

// OK reports whether the quote carries a usable price.
func (q Quote) OK() bool {
	return q.Status == StatusSuccess
}

// Success constructs a successful quote observed now.
func Success(exchangeID, symbol string, price decimal.Decimal) Quote {
	return Quote{
		ExchangeID: exchangeID,
		Symbol:     symbol,
		Price:      price,
		Timestamp:  time.Now().UTC(),
		Status:     StatusSuccess,
	}
}

// Failure constructs a failed quote with the supplied reason.
func Failure(exchangeID, symbol string, reason FailureReason) Quote {
	return Quote{
		ExchangeID:    exchangeID,
		Symbol:        symbol,
		Timestamp:     time.Now().UTC(),
		Status:        StatusFailed,
		FailureReason: reason,
	}
}

// AggregateResult is the merged outcome of one fan-out over a set of
// exchanges. Quotes preserve the caller's request order regardless of
// completion order so downstream tie-breaks stay deterministic.
type AggregateResult struct {
	Symbol      string    `json:"symbol"`
	Quotes      []Quote   `json:"quotes"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Successful returns the quotes that carry a usable price, in request order.
func (r *AggregateResult) Successful() []Quote {
	out := make([]Quote, 0, len(r.Quotes))
	for _, q := range r.Quotes {
		if q.OK() {
			out = append(out, q)
		}
	}
	return out
}

// Failed returns the quotes that settled without a price, in request order.
func (r *AggregateResult) Failed() []Quote {
	out := make([]Quote, 0, len(r.Quotes))
	for _, q := range r.Quotes {
		if !q.OK() {
			out = append(out, q)
		}
	}
	return out
}

// PartialFailure reports whether some, but not all, exchanges failed.
func (r *AggregateResult) PartialFailure() bool {
	failed := len(r.Failed())
	return failed > 0 && failed < len(r.Quotes)
}

// TotalFailureError is returned when every requested exchange failed. It is
// the only gateway-level condition that escapes the aggregator as an error.
type TotalFailureError struct {
	Symbol  string
	Reasons map[string]FailureReason // keyed by exchange id
}

func (e *TotalFailureError) Error() string {
	parts := make([]string, 0, len(e.Reasons))
	for id, reason := range e.Reasons {
		parts = append(parts, fmt.Sprintf("%s=%s", id, reason))
	}
	sort.Strings(parts)
	return fmt.Sprintf("aggregate %s: all exchanges failed: %s", e.Symbol, strings.Join(parts, " "))
}
