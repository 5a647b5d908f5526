package svc

import (
	"fmt"

	"cexquery/internal/config"
	"cexquery/pkg/aggregate"
	"cexquery/pkg/engine"
	"cexquery/pkg/gateway"
	"cexquery/pkg/nlu"
)

// ServiceContext wires the application from configuration: the exchange
// gateway pool, the aggregator over it, and the query engine with an
// optional NLU fallback resolver.
type ServiceContext struct {
	Config     *config.Config
	Gateways   map[string]gateway.Gateway
	Aggregator *aggregate.Aggregator
	Engine     *engine.Engine

	nluClient *nlu.Client
}

// NewServiceContext builds the full dependency graph from cfg.
func NewServiceContext(cfg *config.Config) (*ServiceContext, error) {
	gateways, err := cfg.GatewayConfig().Build()
	if err != nil {
		return nil, fmt.Errorf("build gateway pool: %w", err)
	}

	agg := aggregate.New(gateways, aggregate.WithRetry(cfg.Retry))

	engineOpts := []engine.Option{
		engine.WithFeeRate(cfg.Fee()),
		engine.WithTopCount(cfg.TopCount),
		engine.WithTimeout(cfg.QueryTimeoutDuration()),
	}

	svc := &ServiceContext{
		Config:     cfg,
		Gateways:   gateways,
		Aggregator: agg,
	}

	if nluCfg := cfg.NLUConfig(); nluCfg != nil {
		client, err := nlu.NewClient(nluCfg)
		if err != nil {
			return nil, fmt.Errorf("build nlu client: %w", err)
		}
		svc.nluClient = client
		engineOpts = append(engineOpts, engine.WithFallback(nlu.NewResolver(client, agg.ExchangeIDs())))
	}

	svc.Engine = engine.New(agg, engineOpts...)
	return svc, nil
}

// Close releases resources held by the context.
func (s *ServiceContext) Close() error {
	if s.nluClient != nil {
		return s.nluClient.Close()
	}
	return nil
}
