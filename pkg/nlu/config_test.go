package nlu

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromReader(t *testing.T) {
	t.Setenv(envAPIKey, "override-key")
	t.Setenv(envTimeout, "45s")
	t.Setenv(envMaxRetries, "5")

	data := `
base_url: "https://example.com/v1"
api_key: "${NLU_API_KEY}"
model: "gpt-4o-mini"
timeout: "30s"
max_retries: 2
log_level: "debug"
`

	cfg, err := LoadConfigFromReader(strings.NewReader(data))
	require.NoError(t, err)

	require.Equal(t, "https://example.com/v1", cfg.BaseURL)
	require.Equal(t, "override-key", cfg.APIKey)
	require.Equal(t, "gpt-4o-mini", cfg.Model)
	require.Equal(t, 5, cfg.MaxRetries)
	require.Equal(t, 45*time.Second, cfg.Timeout)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(envAPIKey, "")
	t.Setenv(envTimeout, "")
	t.Setenv(envMaxRetries, "")

	cfg, err := LoadConfigFromReader(strings.NewReader(`api_key: "k"`))
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, cfg.BaseURL)
	require.Equal(t, defaultModel, cfg.Model)
	require.Equal(t, defaultTimeout, cfg.Timeout)
	require.Equal(t, defaultMaxRetries, cfg.MaxRetries)
}

func TestLoadConfigRejectsMissingAPIKey(t *testing.T) {
	t.Setenv(envAPIKey, "")

	_, err := LoadConfigFromReader(strings.NewReader(`model: "gpt-4o-mini"`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "api_key")
}

func TestLoadConfigRejectsBadTimeout(t *testing.T) {
	t.Setenv(envAPIKey, "")
	t.Setenv(envTimeout, "")

	_, err := LoadConfigFromReader(strings.NewReader(`
api_key: "k"
timeout: "soon"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid timeout")
}
