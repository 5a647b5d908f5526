package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"cexquery/pkg/quote"
)

const okxDefaultBaseURL = "https://www.okx.com"

func init() {
	Register("okx", func(name string, cfg *GatewayConfig) (Gateway, error) {
		return &okxGateway{
			name:    name,
			baseURL: baseURLOr(cfg, okxDefaultBaseURL),
			client:  newHTTPClient(cfg),
		}, nil
	})
}

type okxGateway struct {
	name    string
	baseURL string
	client  *http.Client
}

// OKX responds 200 even for unknown instruments; code "0" is the only
// success signal and data carries at most one ticker.
type okxTickerResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
	} `json:"data"`
}

func (g *okxGateway) Name() string { return g.name }

func (g *okxGateway) FetchQuote(ctx context.Context, symbol string) quote.Quote {
	url := fmt.Sprintf("%s/api/v5/market/ticker?instId=%s-USDT", g.baseURL, symbol)
	body, err := getJSON(ctx, g.client, url)
	if err != nil {
		return quote.Failure(g.name, symbol, classifyTransport(ctx, err))
	}

	var resp okxTickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	if resp.Code != "0" || len(resp.Data) == 0 {
		return quote.Failure(g.name, symbol, quote.ReasonUnknownSymbol)
	}
	price, err := decimal.NewFromString(resp.Data[0].Last)
	if err != nil {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	return quote.Success(g.name, symbol, price)
}
