package intent

// Action names the operation a query asks for. The set mirrors the
// vocabulary the fallback resolver is prompted with, so both resolution
// paths produce interchangeable intents.
type Action string

const (
	ActionTopExchanges      Action = "top_exchanges_comparison"
	ActionCompareSpecific   Action = "specific_exchange_comparison"
	ActionArbitrage         Action = "arbitrage_analysis"
	ActionFindCheapest      Action = "find_cheapest"
	ActionFindMostExpensive Action = "find_most_expensive"
	ActionAllExchanges      Action = "all_exchanges"
	ActionPriceLookup       Action = "price_lookup"
	ActionUnknown           Action = "unknown"
)

// Intent is the canonical, resolution-path-independent description of a
// query. Empty Exchanges means "all configured exchanges". Count is only
// meaningful for top-N comparisons; zero means "caller default".
type Intent struct {
	Action    Action   `json:"action"`
	Symbols   []string `json:"symbols"`
	Exchanges []string `json:"exchanges,omitempty"`
	Count     int      `json:"count,omitempty"`
}

// Unknown reports whether resolution failed to classify the query.
func (in Intent) Unknown() bool { return in.Action == ActionUnknown || in.Action == "" }

// Symbol returns the primary symbol, or "" when none was resolved.
func (in Intent) Symbol() string {
	if len(in.Symbols) == 0 {
		return ""
	}
	return in.Symbols[0]
}

// Tables holds the lexical alias maps the rule-based resolver matches
// against. A Tables value is built once and read concurrently; it is never
// mutated after construction.
type Tables struct {
	symbols   map[string]string // token -> canonical ticker
	exchanges map[string]string // token -> exchange id
	phrases   [][2]string       // multi-word alias -> folded token, applied pre-tokenize

	arbitrage map[string]struct{}
	cheapest  map[string]struct{}
	expensive map[string]struct{}
	compare   map[string]struct{}
	best      map[string]struct{}
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// DefaultTables returns the built-in English + Indonesian alias tables.
func DefaultTables() *Tables {
	return &Tables{
		symbols: map[string]string{
			"btc": "BTC", "bitcoin": "BTC", "xbt": "BTC",
			"eth": "ETH", "ethereum": "ETH", "ether": "ETH",
			"sol": "SOL", "solana": "SOL",
			"xrp": "XRP", "ripple": "XRP",
			"doge": "DOGE", "dogecoin": "DOGE",
			"ada": "ADA", "cardano": "ADA",
			"bnb": "BNB",
			"ltc": "LTC", "litecoin": "LTC",
			"ton": "TON",
			"dot": "DOT", "polkadot": "DOT",
		},
		exchanges: map[string]string{
			"binance": "binance",
			"bybit":   "bybit",
			"kucoin":  "kucoin",
			"okx":     "okx", "okex": "okx",
			"gateio": "gateio",
			"kraken": "kraken",
			"mexc":   "mexc",
		},
		phrases: [][2]string{
			{"ku coin", "kucoin"},
			{"gate io", "gateio"},
		},
		arbitrage: set("arbitrage", "arbitrase", "arb", "opportunity", "opportunities", "peluang"),
		cheapest:  set("cheapest", "lowest", "termurah", "murah"),
		expensive: set("expensive", "highest", "termahal", "mahal"),
		compare:   set("compare", "comparison", "vs", "versus", "bandingkan", "perbandingan", "banding"),
		best:      set("best", "top", "terbaik"),
	}
}
