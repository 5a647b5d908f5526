package intent

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxHistory bounds how many prior turns are scanned for symbol inheritance.
const maxHistory = 6

// maxCount bounds an explicit "top N" request.
const maxCount = 50

// Resolver classifies free-form queries with lexical rules only. It never
// errors and never guesses: tokens that match no alias table are dropped,
// and an unclassifiable query comes back as ActionUnknown so the caller can
// escalate to an external resolver.
type Resolver struct {
	tables *Tables
}

// NewResolver builds a rule-based resolver. A nil tables uses the built-in
// English + Indonesian aliases.
func NewResolver(tables *Tables) *Resolver {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Resolver{tables: tables}
}

// deaccent strips combining marks so "harga" and "hárga" tokenize alike.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalize(s string) string {
	lowered := strings.ToLower(s)
	if out, _, err := transform.String(deaccent, lowered); err == nil {
		lowered = out
	}
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// Resolve maps a query (plus bounded conversation history) to an Intent.
// Classification follows a fixed precedence: an explicit exchange pair wins
// over arbitrage keywords, which win over cheapest/most-expensive
// superlatives, then top-N comparison, then a single named exchange
// (price lookup), then a bare symbol (all exchanges). Anything else is
// ActionUnknown.
func (r *Resolver) Resolve(text string, history []string) Intent {
	t := r.tables

	s := normalize(text)
	for _, p := range t.phrases {
		s = strings.ReplaceAll(s, p[0], p[1])
	}
	tokens := strings.Fields(s)

	var (
		symbols   []string
		exchanges []string
		seenSym   = map[string]bool{}
		seenEx    = map[string]bool{}
		count     int

		hasArbitrage, hasCheapest, hasExpensive, hasCompare, hasBest bool
	)

	for i, tok := range tokens {
		if sym, ok := t.symbols[tok]; ok {
			if !seenSym[sym] {
				seenSym[sym] = true
				symbols = append(symbols, sym)
			}
			continue
		}
		if ex, ok := t.exchanges[tok]; ok {
			if !seenEx[ex] {
				seenEx[ex] = true
				exchanges = append(exchanges, ex)
			}
			continue
		}
		if _, ok := t.arbitrage[tok]; ok {
			hasArbitrage = true
			continue
		}
		if _, ok := t.cheapest[tok]; ok {
			hasCheapest = true
			continue
		}
		if _, ok := t.expensive[tok]; ok {
			hasExpensive = true
			continue
		}
		if _, ok := t.compare[tok]; ok {
			hasCompare = true
			continue
		}
		if _, ok := t.best[tok]; ok {
			hasBest = true
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil && n > 0 && n <= maxCount {
			// A bare number only counts when anchored to a superlative or
			// an exchange-set word: "top 5", "5 cex", "3 exchanges".
			prevBest := false
			if i > 0 {
				_, prevBest = t.best[tokens[i-1]]
			}
			nextSet := i+1 < len(tokens) &&
				(tokens[i+1] == "cex" || tokens[i+1] == "bursa" || strings.HasPrefix(tokens[i+1], "exchange"))
			if prevBest || nextSet {
				count = n
			}
		}
	}

	if len(symbols) == 0 {
		symbols = r.inheritSymbol(history)
	}

	in := Intent{Symbols: symbols, Exchanges: exchanges, Count: count}
	switch {
	case len(exchanges) >= 2:
		in.Action = ActionCompareSpecific
	case hasArbitrage:
		in.Action = ActionArbitrage
	case hasCheapest:
		in.Action = ActionFindCheapest
	case hasExpensive:
		in.Action = ActionFindMostExpensive
	case count > 0 || hasBest || hasCompare:
		in.Action = ActionTopExchanges
	case len(exchanges) == 1:
		in.Action = ActionPriceLookup
	case len(symbols) > 0:
		in.Action = ActionAllExchanges
	default:
		in.Action = ActionUnknown
	}

	// Every concrete action operates on a symbol; without one the query is
	// not actionable locally.
	if in.Action != ActionUnknown && len(in.Symbols) == 0 {
		in = Intent{Action: ActionUnknown}
	}
	return in
}

// inheritSymbol walks recent history newest-first and reuses the last
// symbol mentioned, so "what about on okx?" keeps the prior turn's coin.
func (r *Resolver) inheritSymbol(history []string) []string {
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	for i := len(history) - 1; i >= 0; i-- {
		for _, tok := range strings.Fields(normalize(history[i])) {
			if sym, ok := r.tables.symbols[tok]; ok {
				return []string{sym}
			}
		}
	}
	return nil
}
