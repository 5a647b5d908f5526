package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"cexquery/pkg/quote"
)

const bybitDefaultBaseURL = "https://api.bybit.com"

func init() {
	Register("bybit", func(name string, cfg *GatewayConfig) (Gateway, error) {
		return &bybitGateway{
			name:    name,
			baseURL: baseURLOr(cfg, bybitDefaultBaseURL),
			client:  newHTTPClient(cfg),
		}, nil
	})
}

type bybitGateway struct {
	name    string
	baseURL string
	client  *http.Client
}

// Bybit wraps every v5 response in retCode/retMsg; retCode 0 means success
// and an empty result list means the instrument is not traded.
type bybitTickersResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	} `json:"result"`
}

func (g *bybitGateway) Name() string { return g.name }

func (g *bybitGateway) FetchQuote(ctx context.Context, symbol string) quote.Quote {
	url := fmt.Sprintf("%s/v5/market/tickers?category=spot&symbol=%sUSDT", g.baseURL, symbol)
	body, err := getJSON(ctx, g.client, url)
	if err != nil {
		return quote.Failure(g.name, symbol, classifyTransport(ctx, err))
	}

	var resp bybitTickersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	if resp.RetCode != 0 || len(resp.Result.List) == 0 {
		return quote.Failure(g.name, symbol, quote.ReasonUnknownSymbol)
	}
	price, err := decimal.NewFromString(resp.Result.List[0].LastPrice)
	if err != nil {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	return quote.Success(g.name, symbol, price)
}
