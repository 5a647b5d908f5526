package nlu

import (
	"context"
	"fmt"
	"strings"

	"cexquery/pkg/intent"
)

// understanding is the strict JSON contract the model must fill in.
type understanding struct {
	Action    string   `json:"action" description:"The operation the user asks for." enum:"top_exchanges_comparison,specific_exchange_comparison,arbitrage_analysis,find_cheapest,find_most_expensive,all_exchanges,price_lookup,unknown"`
	Symbols   []string `json:"symbols" description:"Cryptocurrency tickers mentioned or implied, e.g. BTC, ETH."`
	Exchanges []string `json:"exchanges,omitempty" description:"Exchange ids from the available list; empty means all."`
	Count     int      `json:"count,omitempty" description:"How many exchanges to compare, only for top-N requests."`
}

// Resolver classifies queries the lexical rules could not, by asking an
// OpenAI-compatible model for a structured interpretation. Queries are
// understood in English and Indonesian.
type Resolver struct {
	client    ChatClient
	exchanges []string
}

// NewResolver builds a fallback resolver over the given chat client.
// exchanges is the set of exchange ids the model may reference.
func NewResolver(client ChatClient, exchanges []string) *Resolver {
	return &Resolver{client: client, exchanges: exchanges}
}

const systemPromptFormat = `You are the intent resolver of a cryptocurrency price query engine.

Available exchanges: %s

Classify the user's query into exactly one action:
- top_exchanges_comparison: compare a coin's price across the best N exchanges ("top 5 CEX prices for BTC", "harga Bitcoin terbaik")
- specific_exchange_comparison: compare between explicitly named exchanges ("ETH on binance vs kraken")
- arbitrage_analysis: find arbitrage opportunities ("arbitrage for Bitcoin", "peluang arbitrase BTC")
- find_cheapest: where is the coin cheapest ("cheapest exchange for ETH", "termurah")
- find_most_expensive: where is the coin priciest ("highest BTC price", "termahal")
- price_lookup: price on a single named exchange ("BTC price on binance")
- all_exchanges: plain price question with no exchange named ("harga bitcoin sekarang")
- unknown: anything not about cryptocurrency prices

Rules:
- symbols are uppercase tickers (BTC, ETH, SOL); resolve names like "bitcoin" to tickers
- only reference exchanges from the available list; never invent one
- when the query omits the coin, take it from the conversation history
- count is only set for top-N requests`

func (r *Resolver) systemPrompt() string {
	return fmt.Sprintf(systemPromptFormat, strings.Join(r.exchanges, ", "))
}

// Resolve asks the model to interpret text (with bounded prior turns as
// context) and maps the structured answer onto the canonical Intent. A
// model answer that is off-vocabulary degrades to ActionUnknown rather
// than erroring.
func (r *Resolver) Resolve(ctx context.Context, text string, history []string) (intent.Intent, error) {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: r.systemPrompt()})
	for _, turn := range history {
		messages = append(messages, Message{Role: "user", Content: turn})
	}
	messages = append(messages, Message{Role: "user", Content: text})

	var u understanding
	if err := r.client.ChatStructured(ctx, &ChatRequest{Messages: messages}, &u); err != nil {
		return intent.Intent{}, fmt.Errorf("nlu resolve: %w", err)
	}
	return r.sanitize(u), nil
}

// sanitize maps the model output onto the canonical vocabulary, dropping
// anything the engine cannot act on.
func (r *Resolver) sanitize(u understanding) intent.Intent {
	in := intent.Intent{Action: intent.ActionUnknown}

	switch intent.Action(u.Action) {
	case intent.ActionTopExchanges, intent.ActionCompareSpecific, intent.ActionArbitrage,
		intent.ActionFindCheapest, intent.ActionFindMostExpensive,
		intent.ActionAllExchanges, intent.ActionPriceLookup:
		in.Action = intent.Action(u.Action)
	default:
		return in
	}

	for _, sym := range u.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			in.Symbols = append(in.Symbols, sym)
		}
	}

	known := make(map[string]bool, len(r.exchanges))
	for _, ex := range r.exchanges {
		known[ex] = true
	}
	for _, ex := range u.Exchanges {
		ex = strings.ToLower(strings.TrimSpace(ex))
		if known[ex] {
			in.Exchanges = append(in.Exchanges, ex)
		}
	}

	if u.Count > 0 && u.Count <= 50 {
		in.Count = u.Count
	}

	if len(in.Symbols) == 0 {
		return intent.Intent{Action: intent.ActionUnknown}
	}
	return in
}
