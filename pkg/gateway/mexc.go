package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"cexquery/pkg/quote"
)

const mexcDefaultBaseURL = "https://api.mexc.com"

func init() {
	Register("mexc", func(name string, cfg *GatewayConfig) (Gateway, error) {
		return &mexcGateway{
			name:    name,
			baseURL: baseURLOr(cfg, mexcDefaultBaseURL),
			client:  newHTTPClient(cfg),
		}, nil
	})
}

// MEXC mirrors Binance's v3 ticker shape but uses its own error codes.
type mexcGateway struct {
	name    string
	baseURL string
	client  *http.Client
}

type mexcTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (g *mexcGateway) Name() string { return g.name }

func (g *mexcGateway) FetchQuote(ctx context.Context, symbol string) quote.Quote {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%sUSDT", g.baseURL, symbol)
	body, err := getJSON(ctx, g.client, url)
	if err != nil {
		if isStatus(err, http.StatusBadRequest) || isStatus(err, http.StatusNotFound) {
			return quote.Failure(g.name, symbol, quote.ReasonUnknownSymbol)
		}
		return quote.Failure(g.name, symbol, classifyTransport(ctx, err))
	}

	var ticker mexcTicker
	if err := json.Unmarshal(body, &ticker); err != nil || ticker.Price == "" {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	return quote.Success(g.name, symbol, price)
}
