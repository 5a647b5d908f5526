package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"cexquery/internal/cli"
	"cexquery/internal/config"
	"cexquery/internal/svc"
	"cexquery/pkg/engine"
	"cexquery/pkg/quote"
	"cexquery/pkg/rank"
)

func fatalf(format string, args ...interface{}) {
	logx.Errorf(format, args...)
	os.Exit(1)
}

func parseList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, strings.ToLower(f))
		}
	}
	return out
}

func parseHistory(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printRanking(r *rank.RankingResult) {
	fmt.Printf("%s\n", r.Symbol)
	for i, q := range r.Quotes {
		fmt.Printf("  %d. %-10s %s\n", i+1, q.ExchangeID, q.Price)
	}
	if r.Spread != nil {
		fmt.Printf("  spread: %s (%s%%), buy on %s, sell on %s\n",
			r.Spread.Abs, r.Spread.Pct.Round(4), r.Spread.BestBuy, r.Spread.BestSell)
	}
	for _, opp := range r.Opportunities {
		fmt.Printf("  arbitrage: buy %s @ %s, sell %s @ %s, profit %s (%s%%)\n",
			opp.BuyExchange, opp.BuyPrice, opp.SellExchange, opp.SellPrice,
			opp.ProfitAbs, opp.ProfitPct.Round(4))
	}
}

func printFailures(result *quote.AggregateResult) {
	for _, q := range result.Failed() {
		fmt.Printf("  ! %-10s %s\n", q.ExchangeID, q.FailureReason)
	}
}

func main() {
	var (
		configPath   = flag.String("config", "etc/config.yaml", "path to application configuration")
		compareSym   = flag.String("compare", "", "compare this symbol programmatically instead of running a query")
		exchangesRaw = flag.String("exchanges", "", "comma-separated exchange ids for -compare (empty = all)")
		count        = flag.Int("count", 0, "limit ranked results for -compare (0 = all)")
		historyRaw   = flag.String("history", "", "prior conversation turns separated by ';'")
		verbose      = flag.Bool("v", false, "log the loaded configuration")
	)
	flag.Parse()
	logx.MustSetup(logx.LogConf{Mode: "console", Encoding: "plain"})
	logx.DisableStat()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	if *verbose {
		cli.LogConfigSummary(cfg)
	}

	app, err := svc.NewServiceContext(cfg)
	if err != nil {
		fatalf("build service context: %v", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *compareSym != "" {
		ranking, err := app.Engine.Compare(ctx, strings.ToUpper(*compareSym), parseList(*exchangesRaw), *count)
		if err != nil {
			fatalf("compare: %v", err)
		}
		printRanking(ranking)
		return
	}

	queryText := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if queryText == "" {
		fatalf("usage: query [flags] <natural language query> (or -compare SYMBOL)")
	}

	out, err := app.Engine.Query(ctx, queryText, parseHistory(*historyRaw))
	switch {
	case errors.Is(err, engine.ErrIntentUnresolved):
		fatalf("could not understand the query; try naming a coin, e.g. \"cheapest exchange for BTC\"")
	case err != nil:
		var total *quote.TotalFailureError
		if errors.As(err, &total) {
			fatalf("every exchange failed for %s: %v", total.Symbol, err)
		}
		fatalf("query: %v", err)
	}

	fmt.Printf("action: %s\n", out.Intent.Action)
	printRanking(out.Ranking)
	if out.Aggregate.PartialFailure() {
		printFailures(out.Aggregate)
	}
}
