package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"cexquery/pkg/quote"
)

const binanceDefaultBaseURL = "https://api.binance.com"

func init() {
	Register("binance", func(name string, cfg *GatewayConfig) (Gateway, error) {
		return &binanceGateway{
			name:    name,
			baseURL: baseURLOr(cfg, binanceDefaultBaseURL),
			client:  newHTTPClient(cfg),
		}, nil
	})
}

// binanceGateway reads the spot ticker endpoint. Binance quotes USDT pairs in
// the concatenated BTCUSDT format and signals unknown symbols with HTTP 400
// and code -1121.
type binanceGateway struct {
	name    string
	baseURL string
	client  *http.Client
}

type binanceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type binanceAPIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (g *binanceGateway) Name() string { return g.name }

func (g *binanceGateway) FetchQuote(ctx context.Context, symbol string) quote.Quote {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%sUSDT", g.baseURL, symbol)
	body, err := getJSON(ctx, g.client, url)
	if err != nil {
		if isStatus(err, http.StatusBadRequest) || isStatus(err, http.StatusNotFound) {
			return quote.Failure(g.name, symbol, quote.ReasonUnknownSymbol)
		}
		return quote.Failure(g.name, symbol, classifyTransport(ctx, err))
	}

	var ticker binanceTicker
	if err := json.Unmarshal(body, &ticker); err != nil || ticker.Price == "" {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	return quote.Success(g.name, symbol, price)
}
