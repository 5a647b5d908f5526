package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"

	"cexquery/pkg/confkit"
	gatewaypkg "cexquery/pkg/gateway"
	nlupkg "cexquery/pkg/nlu"
)

// Config is the top-level application configuration. Gateway and NLU
// settings live in their own files referenced by section; each section is
// optional so a CLI invocation without a fallback resolver needs no NLU
// file at all.
type Config struct {
	Log logx.LogConf `json:",optional"`

	// Env indicates the running environment: test | dev | prod.
	Env string `json:",default=dev"`

	// FeeRate is the per-leg taker fee used for arbitrage analysis,
	// expressed as a decimal string ("0.001" = 0.1%).
	FeeRate string `json:",default=0.001"`

	// TopCount is the default N for top-N comparisons.
	TopCount int `json:",default=5"`

	// QueryTimeout bounds one aggregation pass across all exchanges.
	QueryTimeout string `json:",default=10s"`

	// Retry enables the single bounded retry pass for transient failures.
	Retry bool `json:",default=true"`

	Gateway confkit.Section[gatewaypkg.Config] `json:",optional"`
	NLU     confkit.Section[nlupkg.Config]     `json:",optional"`

	mainPath     string
	baseDir      string
	feeRate      decimal.Decimal
	queryTimeout time.Duration
}

// MustLoad loads the configuration at path and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads, validates and hydrates the configuration at path.
func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}

	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.hydrateSections(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalises and checks top-level fields.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "":
		c.Env = "dev"
	case "test", "dev", "prod":
		c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	default:
		return errors.New("config: env must be one of test|dev|prod")
	}

	if c.TopCount <= 0 {
		return errors.New("config: topCount must be positive")
	}

	fee, err := decimal.NewFromString(strings.TrimSpace(c.FeeRate))
	if err != nil {
		return fmt.Errorf("config: invalid feeRate %q: %w", c.FeeRate, err)
	}
	if fee.IsNegative() {
		return errors.New("config: feeRate cannot be negative")
	}
	c.feeRate = fee

	d, err := time.ParseDuration(strings.TrimSpace(c.QueryTimeout))
	if err != nil {
		return fmt.Errorf("config: invalid queryTimeout %q: %w", c.QueryTimeout, err)
	}
	if d <= 0 {
		return errors.New("config: queryTimeout must be positive")
	}
	c.queryTimeout = d

	return nil
}

func (c *Config) hydrateSections() error {
	if err := c.Gateway.Hydrate(c.baseDir, gatewaypkg.LoadConfig); err != nil {
		return fmt.Errorf("load gateway config: %w", err)
	}
	if err := c.NLU.Hydrate(c.baseDir, nlupkg.LoadConfig); err != nil {
		return fmt.Errorf("load nlu config: %w", err)
	}
	return nil
}

// GatewayConfig returns the hydrated gateway section, or the built-in
// defaults covering every registered exchange when no file was named.
func (c *Config) GatewayConfig() *gatewaypkg.Config {
	if c.Gateway.Value != nil {
		return c.Gateway.Value
	}
	return gatewaypkg.DefaultConfig()
}

// NLUConfig returns the hydrated NLU section, or nil when none was named.
func (c *Config) NLUConfig() *nlupkg.Config {
	return c.NLU.Value
}

// Fee returns the parsed arbitrage fee rate.
func (c *Config) Fee() decimal.Decimal { return c.feeRate }

// QueryTimeoutDuration returns the parsed per-query timeout.
func (c *Config) QueryTimeoutDuration() time.Duration { return c.queryTimeout }

// MainPath returns the absolute path of the loaded config file.
func (c *Config) MainPath() string { return c.mainPath }

// BaseDir returns the directory of the loaded config file.
func (c *Config) BaseDir() string { return c.baseDir }

func (c *Config) IsTestEnv() bool { return c.Env == "test" }
