package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"cexquery/pkg/quote"
)

const gateioDefaultBaseURL = "https://api.gateio.ws"

func init() {
	Register("gateio", func(name string, cfg *GatewayConfig) (Gateway, error) {
		return &gateioGateway{
			name:    name,
			baseURL: baseURLOr(cfg, gateioDefaultBaseURL),
			client:  newHTTPClient(cfg),
		}, nil
	})
}

// Gate.io pairs are underscore separated (BTC_USDT); an unknown pair is a
// 400 with label INVALID_CURRENCY_PAIR.
type gateioGateway struct {
	name    string
	baseURL string
	client  *http.Client
}

type gateioTicker struct {
	CurrencyPair string `json:"currency_pair"`
	Last         string `json:"last"`
}

func (g *gateioGateway) Name() string { return g.name }

func (g *gateioGateway) FetchQuote(ctx context.Context, symbol string) quote.Quote {
	url := fmt.Sprintf("%s/api/v4/spot/tickers?currency_pair=%s_USDT", g.baseURL, symbol)
	body, err := getJSON(ctx, g.client, url)
	if err != nil {
		if isStatus(err, http.StatusBadRequest) {
			return quote.Failure(g.name, symbol, quote.ReasonUnknownSymbol)
		}
		return quote.Failure(g.name, symbol, classifyTransport(ctx, err))
	}

	var tickers []gateioTicker
	if err := json.Unmarshal(body, &tickers); err != nil {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	if len(tickers) == 0 {
		return quote.Failure(g.name, symbol, quote.ReasonUnknownSymbol)
	}
	price, err := decimal.NewFromString(tickers[0].Last)
	if err != nil {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	return quote.Success(g.name, symbol, price)
}
