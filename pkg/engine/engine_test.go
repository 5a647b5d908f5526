package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cexquery/pkg/aggregate"
	"cexquery/pkg/gateway"
	"cexquery/pkg/intent"
	"cexquery/pkg/quote"
)

type staticGateway struct {
	name   string
	price  string
	reason quote.FailureReason
}

func (g *staticGateway) Name() string { return g.name }

func (g *staticGateway) FetchQuote(ctx context.Context, symbol string) quote.Quote {
	if g.reason != "" {
		return quote.Failure(g.name, symbol, g.reason)
	}
	return quote.Success(g.name, symbol, decimal.RequireFromString(g.price))
}

func testEngine(opts ...Option) *Engine {
	gws := map[string]gateway.Gateway{
		"binance": &staticGateway{name: "binance", price: "100"},
		"bybit":   &staticGateway{name: "bybit", price: "101"},
		"kucoin":  &staticGateway{name: "kucoin", price: "99"},
		"kraken":  &staticGateway{name: "kraken", reason: quote.ReasonExchangeUnavailable},
	}
	agg := aggregate.New(gws, aggregate.WithRetry(false))
	return New(agg, opts...)
}

func TestQueryFindCheapest(t *testing.T) {
	e := testEngine()

	out, err := e.Query(context.Background(), "cheapest exchange for BTC", nil)
	require.NoError(t, err)

	assert.Equal(t, intent.ActionFindCheapest, out.Intent.Action)
	require.Len(t, out.Ranking.Quotes, 1)
	assert.Equal(t, "kucoin", out.Ranking.Quotes[0].ExchangeID)
	// The raw aggregate still carries every requested exchange.
	assert.Len(t, out.Aggregate.Quotes, 4)
}

func TestQueryTopNDefaultsCount(t *testing.T) {
	e := testEngine(WithTopCount(2))

	out, err := e.Query(context.Background(), "harga bitcoin terbaik", nil)
	require.NoError(t, err)
	assert.Equal(t, intent.ActionTopExchanges, out.Intent.Action)
	require.Len(t, out.Ranking.Quotes, 2)
	assert.Equal(t, "kucoin", out.Ranking.Quotes[0].ExchangeID)
	assert.Equal(t, "binance", out.Ranking.Quotes[1].ExchangeID)
}

func TestQuerySpecificExchanges(t *testing.T) {
	e := testEngine()

	out, err := e.Query(context.Background(), "compare BTC on binance vs bybit", nil)
	require.NoError(t, err)
	assert.Equal(t, intent.ActionCompareSpecific, out.Intent.Action)
	assert.Len(t, out.Aggregate.Quotes, 2)
}

func TestQueryMostExpensive(t *testing.T) {
	e := testEngine()

	out, err := e.Query(context.Background(), "highest BTC price", nil)
	require.NoError(t, err)
	require.Len(t, out.Ranking.Quotes, 1)
	assert.Equal(t, "bybit", out.Ranking.Quotes[0].ExchangeID)
}

func TestQueryArbitrage(t *testing.T) {
	e := testEngine(WithFeeRate(decimal.Zero))

	out, err := e.Query(context.Background(), "arbitrage opportunities for BTC", nil)
	require.NoError(t, err)
	assert.Equal(t, intent.ActionArbitrage, out.Intent.Action)
	require.NotEmpty(t, out.Ranking.Opportunities)
	best := out.Ranking.Opportunities[0]
	assert.Equal(t, "kucoin", best.BuyExchange)
	assert.Equal(t, "bybit", best.SellExchange)
}

func TestQueryUnresolvedWithoutFallback(t *testing.T) {
	e := testEngine()

	_, err := e.Query(context.Background(), "tell me a joke", nil)
	assert.ErrorIs(t, err, ErrIntentUnresolved)
}

type fallbackFunc func(ctx context.Context, text string, history []string) (intent.Intent, error)

func (f fallbackFunc) Resolve(ctx context.Context, text string, history []string) (intent.Intent, error) {
	return f(ctx, text, history)
}

func TestQueryFallbackConsultedOnlyWhenRulesFail(t *testing.T) {
	var calls int
	fb := fallbackFunc(func(ctx context.Context, text string, history []string) (intent.Intent, error) {
		calls++
		return intent.Intent{Action: intent.ActionAllExchanges, Symbols: []string{"BTC"}}, nil
	})
	e := testEngine(WithFallback(fb))

	// Rules handle this one; the fallback must stay untouched.
	_, err := e.Query(context.Background(), "cheapest exchange for BTC", nil)
	require.NoError(t, err)
	assert.Zero(t, calls)

	out, err := e.Query(context.Background(), "how is my favourite coin doing", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, intent.ActionAllExchanges, out.Intent.Action)
}

func TestQueryFallbackErrorDegradesToUnresolved(t *testing.T) {
	fb := fallbackFunc(func(ctx context.Context, text string, history []string) (intent.Intent, error) {
		return intent.Intent{}, errors.New("service down")
	})
	e := testEngine(WithFallback(fb))

	_, err := e.Query(context.Background(), "mystery question", nil)
	assert.ErrorIs(t, err, ErrIntentUnresolved)
}

func TestQueryTotalFailureSurfaces(t *testing.T) {
	gws := map[string]gateway.Gateway{
		"a": &staticGateway{name: "a", reason: quote.ReasonUnknownSymbol},
		"b": &staticGateway{name: "b", reason: quote.ReasonUnknownSymbol},
	}
	e := New(aggregate.New(gws, aggregate.WithRetry(false)))

	_, err := e.Query(context.Background(), "harga bitcoin", nil)
	var total *quote.TotalFailureError
	require.ErrorAs(t, err, &total)
}

func TestCompareIsDeterministic(t *testing.T) {
	e := testEngine()

	first, err := e.Compare(context.Background(), "BTC", nil, 0)
	require.NoError(t, err)
	second, err := e.Compare(context.Background(), "BTC", nil, 0)
	require.NoError(t, err)

	require.Equal(t, len(first.Quotes), len(second.Quotes))
	for i := range first.Quotes {
		assert.Equal(t, first.Quotes[i].ExchangeID, second.Quotes[i].ExchangeID)
		assert.True(t, first.Quotes[i].Price.Equal(second.Quotes[i].Price))
	}
	require.NotNil(t, first.Spread)
	assert.Equal(t, "kucoin", first.Spread.BestBuy)
	assert.Equal(t, "bybit", first.Spread.BestSell)
}

func TestCompareHonoursCount(t *testing.T) {
	e := testEngine()

	res, err := e.Compare(context.Background(), "BTC", []string{"binance", "bybit", "kucoin"}, 2)
	require.NoError(t, err)
	require.Len(t, res.Quotes, 2)
	assert.Equal(t, "kucoin", res.Quotes[0].ExchangeID)
}
