package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"cexquery/pkg/quote"
)

const krakenDefaultBaseURL = "https://api.kraken.com"

func init() {
	Register("kraken", func(name string, cfg *GatewayConfig) (Gateway, error) {
		return &krakenGateway{
			name:    name,
			baseURL: baseURLOr(cfg, krakenDefaultBaseURL),
			client:  newHTTPClient(cfg),
		}, nil
	})
}

// krakenGateway quotes USD pairs and renames BTC to XBT. The payload keys
// the result by Kraken's internal pair name (e.g. XXBTZUSD), so the single
// entry is taken positionally; "c" holds [lastPrice, lastLotVolume].
type krakenGateway struct {
	name    string
	baseURL string
	client  *http.Client
}

type krakenTickerResponse struct {
	Error  []string `json:"error"`
	Result map[string]struct {
		Close []string `json:"c"`
	} `json:"result"`
}

func (g *krakenGateway) Name() string { return g.name }

func (g *krakenGateway) nativePair(symbol string) string {
	if strings.EqualFold(symbol, "BTC") {
		symbol = "XBT"
	}
	return symbol + "USD"
}

func (g *krakenGateway) FetchQuote(ctx context.Context, symbol string) quote.Quote {
	url := fmt.Sprintf("%s/0/public/Ticker?pair=%s", g.baseURL, g.nativePair(symbol))
	body, err := getJSON(ctx, g.client, url)
	if err != nil {
		return quote.Failure(g.name, symbol, classifyTransport(ctx, err))
	}

	var resp krakenTickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	if len(resp.Error) > 0 {
		// Kraken reports unknown pairs as EQuery:Unknown asset pair.
		for _, msg := range resp.Error {
			if strings.Contains(msg, "Unknown asset") {
				return quote.Failure(g.name, symbol, quote.ReasonUnknownSymbol)
			}
		}
		return quote.Failure(g.name, symbol, quote.ReasonExchangeUnavailable)
	}
	for _, ticker := range resp.Result {
		if len(ticker.Close) == 0 {
			break
		}
		price, err := decimal.NewFromString(ticker.Close[0])
		if err != nil {
			return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
		}
		return quote.Success(g.name, symbol, price)
	}
	return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
}
