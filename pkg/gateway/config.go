package gateway

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures configuration for one or more exchange gateways.
type Config struct {
	Gateways map[string]*GatewayConfig `yaml:"gateways"`
}

// GatewayConfig describes how to construct a specific gateway instance.
// BaseURL and timeout default per adapter when left empty.
type GatewayConfig struct {
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

// Builder constructs a Gateway from configuration. The name is the exchange
// id the pool will route by.
type Builder func(name string, cfg *GatewayConfig) (Gateway, error)

var (
	builderRegistry   = make(map[string]Builder)
	builderRegistryMu sync.RWMutex
)

// Register associates a builder with a gateway type. Adapters call this from
// init so a blank import is enough to make an exchange available.
func Register(typeName string, builder Builder) {
	builderRegistryMu.Lock()
	defer builderRegistryMu.Unlock()
	builderRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

// RegisteredTypes lists the gateway types linked into the binary.
func RegisteredTypes() []string {
	builderRegistryMu.RLock()
	defer builderRegistryMu.RUnlock()
	out := make([]string, 0, len(builderRegistry))
	for name := range builderRegistry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func lookupBuilder(typeName string) (Builder, bool) {
	builderRegistryMu.RLock()
	defer builderRegistryMu.RUnlock()
	builder, ok := builderRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads gateway configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gateway config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gateway config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal gateway config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns a pool entry for every registered gateway type, each
// on its adapter defaults. Used when no gateway config file is supplied.
func DefaultConfig() *Config {
	cfg := &Config{Gateways: make(map[string]*GatewayConfig)}
	for _, typeName := range RegisteredTypes() {
		cfg.Gateways[typeName] = &GatewayConfig{Type: typeName}
	}
	return cfg
}

func (c *Config) normalise() error {
	if c.Gateways == nil {
		c.Gateways = make(map[string]*GatewayConfig)
	}
	for name, gw := range c.Gateways {
		if gw == nil {
			gw = &GatewayConfig{}
			c.Gateways[name] = gw
		}
		gw.Type = strings.TrimSpace(os.ExpandEnv(gw.Type))
		gw.BaseURL = strings.TrimSpace(os.ExpandEnv(gw.BaseURL))
		gw.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(gw.TimeoutRaw))
		if gw.Type == "" {
			gw.Type = name
		}
		if err := gw.parseTimeout(name); err != nil {
			return err
		}
	}
	return nil
}

func (g *GatewayConfig) parseTimeout(name string) error {
	if g.TimeoutRaw == "" {
		g.Timeout = defaultRequestTimeout
		return nil
	}
	d, err := time.ParseDuration(g.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("gateway %s: invalid timeout %q: %w", name, g.TimeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("gateway %s: timeout must be positive, got %s", name, d)
	}
	g.Timeout = d
	return nil
}

// Validate ensures every configured gateway maps to a registered adapter.
func (c *Config) Validate() error {
	if len(c.Gateways) == 0 {
		return fmt.Errorf("gateway config: gateways cannot be empty")
	}
	for name, gw := range c.Gateways {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("gateway config: gateway name cannot be empty")
		}
		if _, ok := lookupBuilder(gw.Type); !ok {
			return fmt.Errorf("gateway config: gateway %s has unsupported type %q", name, gw.Type)
		}
	}
	return nil
}

// Build instantiates every configured gateway keyed by exchange id.
func (c *Config) Build() (map[string]Gateway, error) {
	result := make(map[string]Gateway, len(c.Gateways))
	for name, gwCfg := range c.Gateways {
		builder, ok := lookupBuilder(gwCfg.Type)
		if !ok {
			return nil, fmt.Errorf("gateway %s: unsupported type %q", name, gwCfg.Type)
		}
		gw, err := builder(name, gwCfg)
		if err != nil {
			return nil, fmt.Errorf("gateway %s: %w", name, err)
		}
		result[name] = gw
	}
	return result, nil
}

// newHTTPClient builds the per-gateway HTTP client. Each gateway owns its
// client exclusively so no connection state is shared across adapters.
func newHTTPClient(cfg *GatewayConfig) *http.Client {
	timeout := defaultRequestTimeout
	if cfg != nil && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	return &http.Client{Timeout: timeout}
}

func baseURLOr(cfg *GatewayConfig, fallback string) string {
	if cfg != nil && cfg.BaseURL != "" {
		return strings.TrimRight(cfg.BaseURL, "/")
	}
	return fallback
}
