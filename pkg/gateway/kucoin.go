package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"cexquery/pkg/quote"
)

const kucoinDefaultBaseURL = "https://api.kucoin.com"

func init() {
	Register("kucoin", func(name string, cfg *GatewayConfig) (Gateway, error) {
		return &kucoinGateway{
			name:    name,
			baseURL: baseURLOr(cfg, kucoinDefaultBaseURL),
			client:  newHTTPClient(cfg),
		}, nil
	})
}

// kucoinGateway uses the level-1 orderbook endpoint. KuCoin pairs are dash
// separated (BTC-USDT) and an unknown pair comes back as code 200000 with a
// null data payload.
type kucoinGateway struct {
	name    string
	baseURL string
	client  *http.Client
}

type kucoinLevel1Response struct {
	Code string `json:"code"`
	Data *struct {
		Price string `json:"price"`
	} `json:"data"`
}

func (g *kucoinGateway) Name() string { return g.name }

func (g *kucoinGateway) FetchQuote(ctx context.Context, symbol string) quote.Quote {
	url := fmt.Sprintf("%s/api/v1/market/orderbook/level1?symbol=%s-USDT", g.baseURL, symbol)
	body, err := getJSON(ctx, g.client, url)
	if err != nil {
		if isStatus(err, http.StatusBadRequest) {
			return quote.Failure(g.name, symbol, quote.ReasonUnknownSymbol)
		}
		return quote.Failure(g.name, symbol, classifyTransport(ctx, err))
	}

	var resp kucoinLevel1Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	if resp.Code != "200000" || resp.Data == nil {
		return quote.Failure(g.name, symbol, quote.ReasonUnknownSymbol)
	}
	price, err := decimal.NewFromString(resp.Data.Price)
	if err != nil {
		return quote.Failure(g.name, symbol, quote.ReasonMalformedResponse)
	}
	return quote.Success(g.name, symbol, price)
}
