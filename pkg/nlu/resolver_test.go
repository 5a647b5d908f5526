package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cexquery/pkg/intent"
)

type scriptedClient struct {
	answer  string
	err     error
	lastReq *ChatRequest
}

func (c *scriptedClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return nil, errors.New("unexpected plain chat")
}

func (c *scriptedClient) ChatStructured(ctx context.Context, req *ChatRequest, target interface{}) error {
	c.lastReq = req
	if c.err != nil {
		return c.err
	}
	return json.Unmarshal([]byte(c.answer), target)
}

func (c *scriptedClient) Close() error { return nil }

var testExchanges = []string{"binance", "bybit", "kucoin", "okx", "gateio", "kraken", "mexc"}

func TestResolverMapsStructuredAnswer(t *testing.T) {
	client := &scriptedClient{
		answer: `{"action":"top_exchanges_comparison","symbols":["btc"],"count":5}`,
	}
	r := NewResolver(client, testExchanges)

	got, err := r.Resolve(context.Background(), "show me BTC on the best venues", nil)
	require.NoError(t, err)
	assert.Equal(t, intent.Intent{
		Action:  intent.ActionTopExchanges,
		Symbols: []string{"BTC"},
		Count:   5,
	}, got)
}

func TestResolverPromptCarriesExchangesAndHistory(t *testing.T) {
	client := &scriptedClient{
		answer: `{"action":"price_lookup","symbols":["BTC"],"exchanges":["okx"]}`,
	}
	r := NewResolver(client, testExchanges)

	_, err := r.Resolve(context.Background(), "what about on okx?", []string{"harga bitcoin?"})
	require.NoError(t, err)

	require.NotNil(t, client.lastReq)
	require.Len(t, client.lastReq.Messages, 3)
	assert.Equal(t, "system", client.lastReq.Messages[0].Role)
	assert.True(t, strings.Contains(client.lastReq.Messages[0].Content, "binance, bybit, kucoin"))
	assert.Equal(t, "harga bitcoin?", client.lastReq.Messages[1].Content)
	assert.Equal(t, "what about on okx?", client.lastReq.Messages[2].Content)
}

func TestResolverDropsUnknownExchanges(t *testing.T) {
	client := &scriptedClient{
		answer: `{"action":"specific_exchange_comparison","symbols":["ETH"],"exchanges":["binance","hallucinated"]}`,
	}
	r := NewResolver(client, testExchanges)

	got, err := r.Resolve(context.Background(), "compare eth", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"binance"}, got.Exchanges)
}

func TestResolverOffVocabularyActionIsUnknown(t *testing.T) {
	client := &scriptedClient{
		answer: `{"action":"place_order","symbols":["BTC"]}`,
	}
	r := NewResolver(client, testExchanges)

	got, err := r.Resolve(context.Background(), "buy btc now", nil)
	require.NoError(t, err)
	assert.True(t, got.Unknown())
}

func TestResolverActionWithoutSymbolIsUnknown(t *testing.T) {
	client := &scriptedClient{
		answer: `{"action":"find_cheapest","symbols":[]}`,
	}
	r := NewResolver(client, testExchanges)

	got, err := r.Resolve(context.Background(), "cheapest please", nil)
	require.NoError(t, err)
	assert.True(t, got.Unknown())
}

func TestResolverPropagatesClientError(t *testing.T) {
	client := &scriptedClient{err: errors.New("upstream down")}
	r := NewResolver(client, testExchanges)

	_, err := r.Resolve(context.Background(), "harga btc", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nlu resolve")
}
