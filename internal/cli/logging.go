package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"cexquery/internal/config"
	"cexquery/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	gw := cfg.GatewayConfig()
	ids := make([]string, 0, len(gw.Gateways))
	for id := range gw.Gateways {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Exchanges: %s", strings.Join(ids, ", ")),
		fmt.Sprintf("Fee rate: %s", cfg.Fee()),
		fmt.Sprintf("Top count: %d", cfg.TopCount),
		fmt.Sprintf("Query timeout: %s", cfg.QueryTimeoutDuration()),
		fmt.Sprintf("Retry pass: %s", presence(cfg.Retry)),
		sectionLine("Gateway config", cfg.Gateway),
		sectionLine("NLU config", cfg.NLU),
	}
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	logx.Info("configuration summary")
	for _, line := range ConfigSummaryLines(cfg) {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: defaults", name)
	}
}
