package engine

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"cexquery/pkg/aggregate"
	"cexquery/pkg/intent"
	"cexquery/pkg/quote"
	"cexquery/pkg/rank"
)

// ErrIntentUnresolved signals that neither the lexical rules nor the
// fallback resolver produced an actionable intent.
var ErrIntentUnresolved = errors.New("engine: query intent could not be resolved")

const (
	defaultTopCount = 5
	defaultTimeout  = 10 * time.Second
)

// defaultFeeRate is 0.1% taker fee per leg.
var defaultFeeRate = decimal.New(1, -3)

// FallbackResolver interprets queries the lexical rules gave up on.
type FallbackResolver interface {
	Resolve(ctx context.Context, text string, history []string) (intent.Intent, error)
}

// Engine orchestrates a query end to end: resolve the intent, fan out to
// the exchanges, rank the merged quotes.
type Engine struct {
	aggregator *aggregate.Aggregator
	rules      *intent.Resolver
	fallback   FallbackResolver
	feeRate    decimal.Decimal
	topCount   int
	timeout    time.Duration
}

// Option configures optional engine behaviour.
type Option func(*Engine)

// WithFallback installs an external resolver consulted only when the
// lexical rules return unknown.
func WithFallback(r FallbackResolver) Option {
	return func(e *Engine) { e.fallback = r }
}

// WithRules replaces the built-in lexical resolver.
func WithRules(r *intent.Resolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.rules = r
		}
	}
}

// WithFeeRate sets the per-leg taker fee used for arbitrage analysis.
func WithFeeRate(rate decimal.Decimal) Option {
	return func(e *Engine) {
		if rate.IsNegative() {
			return
		}
		e.feeRate = rate
	}
}

// WithTopCount sets the default N for top-N comparisons when the query
// names none.
func WithTopCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.topCount = n
		}
	}
}

// WithTimeout bounds each aggregation pass.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New builds an engine over the given aggregator.
func New(agg *aggregate.Aggregator, opts ...Option) *Engine {
	e := &Engine{
		aggregator: agg,
		rules:      intent.NewResolver(nil),
		feeRate:    defaultFeeRate,
		topCount:   defaultTopCount,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is the full answer to one query.
type Outcome struct {
	Intent    intent.Intent          `json:"intent"`
	Aggregate *quote.AggregateResult `json:"aggregate"`
	Ranking   *rank.RankingResult    `json:"ranking"`
}

// Query resolves text (with bounded conversation history) into an intent
// and executes it. Lexical rules run first; the fallback resolver is
// consulted only when they return unknown. A fallback failure degrades to
// ErrIntentUnresolved rather than surfacing transport errors to callers.
func (e *Engine) Query(ctx context.Context, text string, history []string) (*Outcome, error) {
	in := e.rules.Resolve(text, history)
	if in.Unknown() && e.fallback != nil {
		fb, err := e.fallback.Resolve(ctx, text, history)
		if err != nil {
			logx.WithContext(ctx).Errorf("fallback resolver failed: %v", err)
		} else {
			in = fb
		}
	}
	if in.Unknown() {
		return nil, ErrIntentUnresolved
	}

	ranking, result, err := e.execute(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Outcome{Intent: in, Aggregate: result, Ranking: ranking}, nil
}

// Compare ranks symbol across the named exchanges (all when empty),
// bypassing intent resolution. For a fixed quote source it is
// deterministic: identical inputs produce identical rankings.
func (e *Engine) Compare(ctx context.Context, symbol string, exchangeIDs []string, count int) (*rank.RankingResult, error) {
	if len(exchangeIDs) == 0 {
		exchangeIDs = e.aggregator.ExchangeIDs()
	}
	result, err := e.aggregator.Aggregate(ctx, symbol, exchangeIDs, e.timeout)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = len(result.Quotes)
	}
	return rank.Rank(symbol, result.Quotes, count, rank.Ascending, e.feeRate), nil
}

func (e *Engine) execute(ctx context.Context, in intent.Intent) (*rank.RankingResult, *quote.AggregateResult, error) {
	symbol := in.Symbol()
	exchanges := in.Exchanges
	if len(exchanges) == 0 {
		exchanges = e.aggregator.ExchangeIDs()
	}

	result, err := e.aggregator.Aggregate(ctx, symbol, exchanges, e.timeout)
	if err != nil {
		return nil, nil, err
	}

	n := len(result.Quotes)
	direction := rank.Ascending
	switch in.Action {
	case intent.ActionTopExchanges:
		n = in.Count
		if n <= 0 {
			n = e.topCount
		}
	case intent.ActionFindCheapest:
		n = 1
	case intent.ActionFindMostExpensive:
		n = 1
		direction = rank.Descending
	}

	return rank.Rank(symbol, result.Quotes, n, direction, e.feeRate), result, nil
}
