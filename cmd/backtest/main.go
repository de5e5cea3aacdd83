package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"equity-quant-lab/internal/backtest"
	"equity-quant-lab/internal/marketdata"
	"equity-quant-lab/internal/marketdata/stub"
	"equity-quant-lab/internal/notify"
	"equity-quant-lab/internal/storage"
	chstore "equity-quant-lab/internal/storage/clickhouse"
	"equity-quant-lab/internal/storage/memory"
	"equity-quant-lab/internal/storage/migrations"
	pgstore "equity-quant-lab/internal/storage/postgres"
)

func main() {
	symbols := flag.String("symbols", "", "Comma-separated symbols to backtest (required)")
	runID := flag.String("run-id", "", "Run identifier (default run-<unix>)")
	startStr := flag.String("start", "", "Start date YYYY-MM-DD (default end minus 3 years)")
	endStr := flag.String("end", "", "End date YYYY-MM-DD (default today)")
	capital := flag.Float64("capital", backtest.DefaultInitialCapital, "Total initial capital")
	slotFraction := flag.Float64("slot-fraction", backtest.DefaultSlotFraction, "Share of capital per symbol slot")
	shockThreshold := flag.Float64("shock-threshold", backtest.DefaultShockThreshold, "Single-bar equity drop that raises a shock event")

	barsEndpoint := flag.String("bars-endpoint", os.Getenv("BARS_ENDPOINT"), "Market data HTTP endpoint")
	useStub := flag.Bool("use-stub", false, "Use the deterministic synthetic data provider")

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (trade log)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (capital series)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	telegramToken := flag.String("telegram-token", os.Getenv("TELEGRAM_TOKEN"), "Telegram bot token (optional)")
	tradeChatID := flag.Int64("telegram-trade-chat", 0, "Telegram chat ID for trades and summaries")
	guardianChatID := flag.Int64("telegram-guardian-chat", 0, "Telegram chat ID for operational alerts")

	outputJSON := flag.Bool("json", false, "Output the run result as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	symbolList := splitSymbols(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("--symbols is required")
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	if *endStr != "" {
		var err error
		end, err = time.Parse("2006-01-02", *endStr)
		if err != nil {
			logger.Fatalf("invalid --end: %v", err)
		}
	}
	start := end.AddDate(-3, 0, 0)
	if *startStr != "" {
		var err error
		start, err = time.Parse("2006-01-02", *startStr)
		if err != nil {
			logger.Fatalf("invalid --start: %v", err)
		}
	}
	if !start.Before(end) {
		logger.Fatal("--start must be before --end")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	provider, err := buildProvider(*useStub, *barsEndpoint)
	if err != nil {
		logger.Fatal(err)
	}

	var tradeStore storage.TradeLogStore = memory.NewTradeLogStore()
	var capitalStore storage.CapitalSeriesStore = memory.NewCapitalSeriesStore()
	if !*useMemory {
		if *postgresDSN == "" || *clickhouseDSN == "" {
			logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
		}

		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		tradeStore = pgstore.NewTradeLogStore(pool)

		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse migrations: %v", err)
		}
		defer conn.Close()
		capitalStore = chstore.NewCapitalSeriesStore(conn)
	}

	notifier, err := buildNotifier(*telegramToken, *tradeChatID, *guardianChatID)
	if err != nil {
		logger.Fatalf("telegram notifier: %v", err)
	}

	engine := backtest.NewEngine()
	engine.SetShockThreshold(*shockThreshold)
	runner := backtest.NewRunner(provider, engine, tradeStore, capitalStore, notifier, logger)

	result, err := runner.Run(ctx, backtest.RunConfig{
		RunID:          *runID,
		Symbols:        symbolList,
		Start:          start,
		End:            end,
		InitialCapital: *capital,
		SlotFraction:   *slotFraction,
	})
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	if *outputJSON {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return
	}
	printResult(result)
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToUpper(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func buildProvider(useStub bool, endpoint string) (marketdata.Provider, error) {
	if useStub {
		return stub.NewProvider(), nil
	}
	if endpoint == "" {
		return nil, fmt.Errorf("--bars-endpoint is required (or pass --use-stub)")
	}
	return marketdata.NewHTTPProvider(endpoint), nil
}

func buildNotifier(token string, tradeChatID, guardianChatID int64) (notify.Notifier, error) {
	if token == "" {
		return notify.Nop{}, nil
	}
	return notify.NewTelegram(token, tradeChatID, guardianChatID)
}

// printResult outputs a human-readable run summary.
func printResult(r *backtest.RunResult) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:          %s\n", r.RunID)
	fmt.Printf("Symbols run:     %d\n", len(r.Results))
	if len(r.Skipped) > 0 {
		fmt.Printf("Skipped:         %s\n", strings.Join(r.Skipped, ", "))
	}
	if len(r.Faulted) > 0 {
		fmt.Printf("Faulted:         %s\n", strings.Join(r.Faulted, ", "))
	}
	fmt.Println()

	fmt.Println("Portfolio:")
	fmt.Printf("  Initial:       %.2f\n", r.Portfolio.InitialCapital)
	fmt.Printf("  Final:         %.2f\n", r.Portfolio.FinalCapital)
	if r.Portfolio.CAGRKnown {
		fmt.Printf("  CAGR:          %.2f%%\n", r.Portfolio.CAGR*100)
	}
	fmt.Printf("  Max drawdown:  %.2f%%\n", r.Portfolio.MaxDrawdown*100)
	fmt.Printf("  Win rate:      %.2f%% (%d closed)\n", r.Portfolio.WinRate*100, r.Portfolio.ClosedTrades)
	fmt.Println()

	fmt.Println("Per symbol:")
	for _, sr := range r.Results {
		s := r.Summaries[sr.Symbol]
		cagr := "n/a"
		if s.CAGRKnown {
			cagr = fmt.Sprintf("%.2f%%", s.CAGR*100)
		}
		fmt.Printf("  %-8s trades=%d closed=%d win=%.0f%% cagr=%s dd=%.1f%% equity=%.2f\n",
			sr.Symbol, s.TotalTrades, s.ClosedTrades, s.WinRate*100, cagr, s.MaxDrawdown*100, sr.FinalEquity)
	}
}
