// Package aggregate fans one symbol out to a set of exchange gateways
// concurrently, tolerates partial failure and merges the settled quotes into
// a single result at one join point.
package aggregate

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"

	"cexquery/pkg/gateway"
	"cexquery/pkg/quote"
)

const (
	defaultMaxWorkers     = 16
	defaultOverallTimeout = 10 * time.Second
	defaultRetryBackoff   = 250 * time.Millisecond
)

// ErrNoExchanges is returned when the request names no known exchange.
var ErrNoExchanges = errors.New("aggregate: no exchanges requested")

// Aggregator coordinates concurrent quote fetches across a gateway pool.
type Aggregator struct {
	gateways     map[string]gateway.Gateway
	maxWorkers   int
	retryFailed  bool
	retryBackoff time.Duration
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithMaxWorkers caps the number of concurrent gateway calls.
func WithMaxWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxWorkers = n
		}
	}
}

// WithRetry toggles the single bounded retry pass over failed exchanges.
func WithRetry(enabled bool) Option {
	return func(a *Aggregator) {
		a.retryFailed = enabled
	}
}

// WithRetryBackoff sets the pause before retrying rate-limited exchanges.
func WithRetryBackoff(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.retryBackoff = d
		}
	}
}

// New constructs an Aggregator over the supplied gateway pool.
func New(gateways map[string]gateway.Gateway, opts ...Option) *Aggregator {
	a := &Aggregator{
		gateways:     gateways,
		maxWorkers:   defaultMaxWorkers,
		retryFailed:  true,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ExchangeIDs lists the pool members in the caller's canonical (sorted) order.
func (a *Aggregator) ExchangeIDs() []string {
	ids := make([]string, 0, len(a.gateways))
	for id := range a.gateways {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aggregate fetches symbol from every requested exchange concurrently and
// merges the outcome once all calls settle. Quote order follows the request
// order after de-duplication. At least one success makes the result non-fatal;
// if every exchange fails the error is a *quote.TotalFailureError.
func (a *Aggregator) Aggregate(ctx context.Context, symbol string, exchangeIDs []string, overallTimeout time.Duration) (*quote.AggregateResult, error) {
	ids := dedupe(exchangeIDs)
	if len(ids) == 0 {
		return nil, ErrNoExchanges
	}
	if overallTimeout <= 0 {
		overallTimeout = defaultOverallTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, overallTimeout)
	defer cancel()

	quotes := make([]quote.Quote, len(ids))
	a.fanOut(ctx, symbol, ids, quotes, nil)

	if a.retryFailed && ctx.Err() == nil {
		a.retryPass(ctx, symbol, ids, quotes)
	}

	result := &quote.AggregateResult{
		Symbol:      symbol,
		Quotes:      quotes,
		GeneratedAt: time.Now().UTC(),
	}

	successes := len(result.Successful())
	if successes == 0 {
		reasons := make(map[string]quote.FailureReason, len(quotes))
		for _, q := range quotes {
			reasons[q.ExchangeID] = q.FailureReason
		}
		return nil, &quote.TotalFailureError{Symbol: symbol, Reasons: reasons}
	}
	if result.PartialFailure() {
		logx.WithContext(ctx).Infof("aggregate %s: partial result, %d/%d exchanges succeeded", symbol, successes, len(quotes))
	}
	return result, nil
}

// fanOut issues one concurrent call per selected index and writes each
// settled quote into its slot. Indices not in selected (when non-nil) keep
// their current value. Every worker owns a distinct slot, so the slice needs
// no locking; the caller reads it only after Wait returns.
func (a *Aggregator) fanOut(ctx context.Context, symbol string, ids []string, quotes []quote.Quote, selected []int) {
	indices := selected
	if indices == nil {
		indices = make([]int, len(ids))
		for i := range ids {
			indices[i] = i
		}
	}

	limit := len(indices)
	if limit > a.maxWorkers {
		limit = a.maxWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, idx := range indices {
		idx := idx
		id := ids[idx]
		g.Go(func() error {
			gw, ok := a.gateways[id]
			if !ok {
				quotes[idx] = quote.Failure(id, symbol, quote.ReasonExchangeUnavailable)
				return nil
			}
			quotes[idx] = gw.FetchQuote(gctx, symbol)
			return nil
		})
	}
	_ = g.Wait()

	// A worker that never got scheduled before cancellation leaves a zero
	// quote behind; settle it explicitly so the merge is complete.
	for _, idx := range indices {
		if quotes[idx].Status == "" {
			reason := quote.ReasonTimeout
			if errors.Is(ctx.Err(), context.Canceled) {
				reason = quote.ReasonCancelled
			}
			quotes[idx] = quote.Failure(ids[idx], symbol, reason)
		}
	}
}

// retryPass reissues exactly one bounded, non-recursive pass for exchanges
// that failed with a recoverable reason, provided budget remains.
func (a *Aggregator) retryPass(ctx context.Context, symbol string, ids []string, quotes []quote.Quote) {
	var retry []int
	rateLimited := false
	for i, q := range quotes {
		switch q.FailureReason {
		case quote.ReasonExchangeUnavailable, quote.ReasonTimeout, quote.ReasonMalformedResponse:
			retry = append(retry, i)
		case quote.ReasonRateLimited:
			retry = append(retry, i)
			rateLimited = true
		}
	}
	if len(retry) == 0 {
		return
	}

	if rateLimited {
		select {
		case <-time.After(a.retryBackoff):
		case <-ctx.Done():
			return
		}
	}

	logx.WithContext(ctx).Infof("aggregate %s: retrying %d failed exchanges", symbol, len(retry))
	a.fanOut(ctx, symbol, ids, quotes, retry)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
