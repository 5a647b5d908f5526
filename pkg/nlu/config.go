package nlu

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "gpt-4o-mini"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultLogLevel   = "info"

	envAPIKey     = "NLU_API_KEY"
	envBaseURL    = "NLU_BASE_URL"
	envModel      = "NLU_MODEL"
	envTimeout    = "NLU_TIMEOUT"
	envMaxRetries = "NLU_MAX_RETRIES"
)

// Config holds runtime settings for the NLU client. Any OpenAI-compatible
// chat completions endpoint works.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"-"`
	MaxRetries int           `yaml:"max_retries"`
	LogLevel   string        `yaml:"log_level"`

	timeoutRaw string `yaml:"timeout"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open nlu config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader. Values may
// reference environment variables with ${VAR} syntax; dedicated NLU_*
// variables override the file outright.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	var raw struct {
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		Model      string `yaml:"model"`
		Timeout    string `yaml:"timeout"`
		MaxRetries int    `yaml:"max_retries"`
		LogLevel   string `yaml:"log_level"`
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read nlu config: %w", err)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal nlu config: %w", err)
	}

	cfg := &Config{
		BaseURL:    raw.BaseURL,
		APIKey:     raw.APIKey,
		Model:      raw.Model,
		MaxRetries: raw.MaxRetries,
		LogLevel:   raw.LogLevel,
		timeoutRaw: raw.Timeout,
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.parseTimeout(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("nlu config: api_key is required")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("nlu config: base_url is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("nlu config: model is required")
	}
	if c.Timeout <= 0 {
		return errors.New("nlu config: timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("nlu config: max_retries cannot be negative")
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = defaultModel
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
}

func (c *Config) applyEnvOverrides() {
	c.BaseURL = expandAndOverride(c.BaseURL, envBaseURL)
	c.APIKey = expandAndOverride(c.APIKey, envAPIKey)
	c.Model = expandAndOverride(c.Model, envModel)

	if raw := os.Getenv(envTimeout); raw != "" {
		c.timeoutRaw = raw
	} else {
		c.timeoutRaw = os.ExpandEnv(c.timeoutRaw)
	}

	if raw := os.Getenv(envMaxRetries); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			c.MaxRetries = v
		}
	}
}

func (c *Config) parseTimeout() error {
	if strings.TrimSpace(c.timeoutRaw) == "" {
		c.Timeout = defaultTimeout
		return nil
	}

	d, err := time.ParseDuration(c.timeoutRaw)
	if err != nil {
		return fmt.Errorf("nlu config: invalid timeout %q: %w", c.timeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("nlu config: timeout must be positive, got %s", d)
	}
	c.Timeout = d
	return nil
}

func expandAndOverride(current, envKey string) string {
	current = os.ExpandEnv(current)
	if envVal := os.Getenv(envKey); envVal != "" {
		return envVal
	}
	return current
}
