// Package rank provides pure, deterministic comparisons over quote sets:
// top-N ordering, spread analysis and arbitrage detection. Only successful
// quotes participate; all arithmetic stays in exact decimals.
package rank

import (
	"sort"

	"github.com/shopspring/decimal"

	"cexquery/pkg/quote"
)

// Direction selects the sort order for price rankings.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Opportunity is a buy/sell exchange pair that nets positive profit after fees.
type Opportunity struct {
	BuyExchange  string          `json:"buy_exchange"`
	SellExchange string          `json:"sell_exchange"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	ProfitAbs    decimal.Decimal `json:"profit_abs"`
	ProfitPct    decimal.Decimal `json:"profit_pct"`
}

// Spread describes the gap between the cheapest and most expensive quote.
type Spread struct {
	Abs      decimal.Decimal `json:"abs"`
	Pct      decimal.Decimal `json:"pct"`
	BestBuy  string          `json:"best_buy"`  // exchange with the minimum price
	BestSell string          `json:"best_sell"` // exchange with the maximum price
}

// RankingResult is the derived view handed back to callers.
type RankingResult struct {
	Symbol        string        `json:"symbol"`
	Quotes        []quote.Quote `json:"quotes"`
	Spread        *Spread       `json:"spread,omitempty"`
	Opportunities []Opportunity `json:"opportunities,omitempty"`
}

// TopN returns the first min(n, successful) quotes sorted by price in the
// requested direction. Equal prices are broken by ascending exchange id so
// identical inputs always rank identically.
func TopN(quotes []quote.Quote, n int, direction Direction) []quote.Quote {
	ranked := sortByPrice(successful(quotes), direction)
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// FindCheapest returns the lowest-priced successful quote, if any.
func FindCheapest(quotes []quote.Quote) (quote.Quote, bool) {
	top := TopN(quotes, 1, Ascending)
	if len(top) == 0 {
		return quote.Quote{}, false
	}
	return top[0], true
}

// FindMostExpensive returns the highest-priced successful quote, if any.
func FindMostExpensive(quotes []quote.Quote) (quote.Quote, bool) {
	top := TopN(quotes, 1, Descending)
	if len(top) == 0 {
		return quote.Quote{}, false
	}
	return top[0], true
}

// SpreadAnalysis computes the absolute and percentage spread across the
// successful quotes. Fewer than two successes yields nil, not zeros.
func SpreadAnalysis(quotes []quote.Quote) *Spread {
	ranked := sortByPrice(successful(quotes), Ascending)
	if len(ranked) < 2 {
		return nil
	}
	low, high := ranked[0], ranked[len(ranked)-1]
	abs := high.Price.Sub(low.Price)
	return &Spread{
		Abs:      abs,
		Pct:      abs.Div(low.Price).Mul(decimal.NewFromInt(100)),
		BestBuy:  low.ExchangeID,
		BestSell: high.ExchangeID,
	}
}

// ArbitrageAnalysis reports every ordered (buy, sell) pair whose profit after
// fees is positive. profit = sell - buy - feeRate*(buy+sell). Results are
// ordered by profit descending, then buy id, then sell id.
func ArbitrageAnalysis(quotes []quote.Quote, feeRate decimal.Decimal) []Opportunity {
	ok := sortByPrice(successful(quotes), Ascending)
	if len(ok) < 2 {
		return nil
	}

	var out []Opportunity
	for _, buy := range ok {
		for _, sell := range ok {
			if buy.ExchangeID == sell.ExchangeID || !buy.Price.LessThan(sell.Price) {
				continue
			}
			fee := feeRate.Mul(buy.Price.Add(sell.Price))
			profit := sell.Price.Sub(buy.Price).Sub(fee)
			if !profit.IsPositive() {
				continue
			}
			out = append(out, Opportunity{
				BuyExchange:  buy.ExchangeID,
				SellExchange: sell.ExchangeID,
				BuyPrice:     buy.Price,
				SellPrice:    sell.Price,
				ProfitAbs:    profit,
				ProfitPct:    profit.Div(buy.Price).Mul(decimal.NewFromInt(100)),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		switch out[i].ProfitAbs.Cmp(out[j].ProfitAbs) {
		case 1:
			return true
		case -1:
			return false
		}
		if out[i].BuyExchange != out[j].BuyExchange {
			return out[i].BuyExchange < out[j].BuyExchange
		}
		return out[i].SellExchange < out[j].SellExchange
	})
	return out
}

// Rank assembles the full derived view for a quote set.
func Rank(symbol string, quotes []quote.Quote, n int, direction Direction, feeRate decimal.Decimal) *RankingResult {
	return &RankingResult{
		Symbol:        symbol,
		Quotes:        TopN(quotes, n, direction),
		Spread:        SpreadAnalysis(quotes),
		Opportunities: ArbitrageAnalysis(quotes, feeRate),
	}
}

func successful(quotes []quote.Quote) []quote.Quote {
	out := make([]quote.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.OK() {
			out = append(out, q)
		}
	}
	return out
}

func sortByPrice(quotes []quote.Quote, direction Direction) []quote.Quote {
	ranked := make([]quote.Quote, len(quotes))
	copy(ranked, quotes)
	sort.SliceStable(ranked, func(i, j int) bool {
		cmp := ranked[i].Price.Cmp(ranked[j].Price)
		if cmp == 0 {
			return ranked[i].ExchangeID < ranked[j].ExchangeID
		}
		if direction == Descending {
			return cmp > 0
		}
		return cmp < 0
	})
	return ranked
}
