package aggregate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cexquery/pkg/gateway"
	"cexquery/pkg/quote"
)

// fakeGateway settles with a canned quote after an optional delay, counting
// calls so retry behaviour is observable.
type fakeGateway struct {
	name   string
	price  string
	reason quote.FailureReason // non-empty means fail
	delay  time.Duration
	calls  atomic.Int32

	mu         sync.Mutex
	failFirstN int // fail this many calls before succeeding
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) FetchQuote(ctx context.Context, symbol string) quote.Quote {
	g.calls.Add(1)
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			if ctx.Err() == context.Canceled {
				return quote.Failure(g.name, symbol, quote.ReasonCancelled)
			}
			return quote.Failure(g.name, symbol, quote.ReasonTimeout)
		}
	}

	g.mu.Lock()
	if g.failFirstN > 0 {
		g.failFirstN--
		g.mu.Unlock()
		return quote.Failure(g.name, symbol, quote.ReasonExchangeUnavailable)
	}
	g.mu.Unlock()

	if g.reason != "" {
		return quote.Failure(g.name, symbol, g.reason)
	}
	return quote.Success(g.name, symbol, decimal.RequireFromString(g.price))
}

func pool(gws ...*fakeGateway) map[string]gateway.Gateway {
	out := make(map[string]gateway.Gateway, len(gws))
	for _, g := range gws {
		out[g.name] = g
	}
	return out
}

func TestAggregatePreservesRequestOrder(t *testing.T) {
	agg := New(pool(
		&fakeGateway{name: "binance", price: "100", delay: 50 * time.Millisecond},
		&fakeGateway{name: "bybit", price: "101"},
		&fakeGateway{name: "kucoin", price: "99", delay: 20 * time.Millisecond},
	), WithRetry(false))

	result, err := agg.Aggregate(context.Background(), "BTC", []string{"kucoin", "binance", "bybit"}, time.Second)
	require.NoError(t, err)
	require.Len(t, result.Quotes, 3)
	// Completion order differs; request order must hold.
	assert.Equal(t, "kucoin", result.Quotes[0].ExchangeID)
	assert.Equal(t, "binance", result.Quotes[1].ExchangeID)
	assert.Equal(t, "bybit", result.Quotes[2].ExchangeID)
}

func TestAggregateTimeoutsBecomeFailedQuotes(t *testing.T) {
	agg := New(pool(
		&fakeGateway{name: "a", price: "100"},
		&fakeGateway{name: "b", price: "101"},
		&fakeGateway{name: "c", price: "102"},
		&fakeGateway{name: "d", price: "103", delay: 500 * time.Millisecond},
		&fakeGateway{name: "e", price: "104", delay: 500 * time.Millisecond},
	), WithRetry(false))

	start := time.Now()
	result, err := agg.Aggregate(context.Background(), "BTC", []string{"a", "b", "c", "d", "e"}, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 450*time.Millisecond)

	assert.Len(t, result.Successful(), 3)
	failed := result.Failed()
	require.Len(t, failed, 2)
	for _, q := range failed {
		assert.Equal(t, quote.ReasonTimeout, q.FailureReason)
	}
	assert.True(t, result.PartialFailure())
}

func TestAggregateTotalFailure(t *testing.T) {
	agg := New(pool(
		&fakeGateway{name: "a", reason: quote.ReasonUnknownSymbol},
		&fakeGateway{name: "b", reason: quote.ReasonUnknownSymbol},
	), WithRetry(false))

	result, err := agg.Aggregate(context.Background(), "NOPE", []string{"a", "b"}, time.Second)
	assert.Nil(t, result)

	var total *quote.TotalFailureError
	require.ErrorAs(t, err, &total)
	assert.Equal(t, "NOPE", total.Symbol)
	assert.Equal(t, quote.ReasonUnknownSymbol, total.Reasons["a"])
	assert.Equal(t, quote.ReasonUnknownSymbol, total.Reasons["b"])
}

func TestAggregateDeduplicatesRequest(t *testing.T) {
	gw := &fakeGateway{name: "binance", price: "100"}
	agg := New(pool(gw), WithRetry(false))

	result, err := agg.Aggregate(context.Background(), "BTC", []string{"binance", "binance", "", "binance"}, time.Second)
	require.NoError(t, err)
	assert.Len(t, result.Quotes, 1)
	assert.Equal(t, int32(1), gw.calls.Load())
}

func TestAggregateRetryPassRecoversTransientFailure(t *testing.T) {
	flaky := &fakeGateway{name: "bybit", price: "101", failFirstN: 1}
	agg := New(pool(
		&fakeGateway{name: "binance", price: "100"},
		flaky,
	), WithRetry(true), WithRetryBackoff(time.Millisecond))

	result, err := agg.Aggregate(context.Background(), "BTC", []string{"binance", "bybit"}, time.Second)
	require.NoError(t, err)
	assert.Len(t, result.Successful(), 2)
	assert.Equal(t, int32(2), flaky.calls.Load())
}

func TestAggregateRetrySkipsUnknownSymbol(t *testing.T) {
	unknown := &fakeGateway{name: "kraken", reason: quote.ReasonUnknownSymbol}
	agg := New(pool(
		&fakeGateway{name: "binance", price: "100"},
		unknown,
	), WithRetry(true))

	result, err := agg.Aggregate(context.Background(), "WAT", []string{"binance", "kraken"}, time.Second)
	require.NoError(t, err)
	// No second attempt for a symbol the exchange rejected.
	assert.Equal(t, int32(1), unknown.calls.Load())
	assert.Len(t, result.Failed(), 1)
}

func TestAggregateRetryIsSinglePass(t *testing.T) {
	broken := &fakeGateway{name: "okx", reason: quote.ReasonExchangeUnavailable}
	agg := New(pool(
		&fakeGateway{name: "binance", price: "100"},
		broken,
	), WithRetry(true), WithRetryBackoff(time.Millisecond))

	_, err := agg.Aggregate(context.Background(), "BTC", []string{"binance", "okx"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int32(2), broken.calls.Load())
}

func TestAggregateCancellation(t *testing.T) {
	agg := New(pool(
		&fakeGateway{name: "fast", price: "100"},
		&fakeGateway{name: "slow", price: "101", delay: time.Second},
	), WithRetry(false))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result, err := agg.Aggregate(ctx, "BTC", []string{"fast", "slow"}, 5*time.Second)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	require.Len(t, result.Quotes, 2)
	assert.True(t, result.Quotes[0].OK())
	assert.Equal(t, quote.ReasonCancelled, result.Quotes[1].FailureReason)
}

func TestAggregateUnknownExchangeID(t *testing.T) {
	agg := New(pool(&fakeGateway{name: "binance", price: "100"}), WithRetry(false))

	result, err := agg.Aggregate(context.Background(), "BTC", []string{"binance", "ghost"}, time.Second)
	require.NoError(t, err)
	require.Len(t, result.Quotes, 2)
	assert.Equal(t, quote.ReasonExchangeUnavailable, result.Quotes[1].FailureReason)
}

func TestAggregateNoExchanges(t *testing.T) {
	agg := New(pool(), WithRetry(false))
	_, err := agg.Aggregate(context.Background(), "BTC", nil, time.Second)
	assert.ErrorIs(t, err, ErrNoExchanges)
}

func TestAggregateWorkerCap(t *testing.T) {
	var inFlight, peak atomic.Int32
	gws := make(map[string]gateway.Gateway)
	ids := make([]string, 0, 8)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		ids = append(ids, name)
		gws[name] = &countingGateway{name: name, inFlight: &inFlight, peak: &peak}
	}

	agg := New(gws, WithMaxWorkers(2), WithRetry(false))
	result, err := agg.Aggregate(context.Background(), "BTC", ids, time.Second)
	require.NoError(t, err)
	assert.Len(t, result.Successful(), 8)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

type countingGateway struct {
	name     string
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (g *countingGateway) Name() string { return g.name }

func (g *countingGateway) FetchQuote(ctx context.Context, symbol string) quote.Quote {
	cur := g.inFlight.Add(1)
	for {
		old := g.peak.Load()
		if cur <= old || g.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	g.inFlight.Add(-1)
	return quote.Success(g.name, symbol, decimal.NewFromInt(100))
}
