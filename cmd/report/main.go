package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"equity-quant-lab/internal/reporting"
	"equity-quant-lab/internal/storage"
	chstore "equity-quant-lab/internal/storage/clickhouse"
	"equity-quant-lab/internal/storage/memory"
	pgstore "equity-quant-lab/internal/storage/postgres"
)

func main() {
	runID := flag.String("run-id", "", "Run identifier to report on (required)")
	symbols := flag.String("symbols", "", "Comma-separated symbols (default: every symbol in the trade log)")
	window := flag.Int("window", 0, "Rolling window in bars (default one trading year)")
	outputDir := flag.String("output-dir", "output", "Output directory for report files")

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (empty report, for dry runs)")

	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *runID == "" {
		logger.Fatal("--run-id is required")
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

	var tradeStore storage.TradeLogStore = memory.NewTradeLogStore()
	var capitalStore storage.CapitalSeriesStore = memory.NewCapitalSeriesStore()
	var scoreStore storage.ScoreHistoryStore = memory.NewScoreHistoryStore()
	if !*useMemory {
		if *postgresDSN == "" || *clickhouseDSN == "" {
			logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for a dry run)")
		}

		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		tradeStore = pgstore.NewTradeLogStore(pool)
		scoreStore = pgstore.NewScoreHistoryStore(pool)

		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		capitalStore = chstore.NewCapitalSeriesStore(conn)
	}

	symbolList := splitSymbols(*symbols)
	if len(symbolList) == 0 {
		var err error
		symbolList, err = symbolsFromTradeLog(ctx, tradeStore)
		if err != nil {
			logger.Fatalf("derive symbols from trade log: %v", err)
		}
	}
	if len(symbolList) == 0 {
		logger.Fatal("no symbols to report on: pass --symbols or populate the trade log")
	}

	generator := reporting.NewGenerator(tradeStore, capitalStore, scoreStore)
	if *window > 0 {
		generator = generator.WithRollingWindow(*window)
	}

	report, err := generator.Generate(ctx, *runID, symbolList)
	if err != nil {
		logger.Fatalf("generate report: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		logger.Fatalf("create output directory: %v", err)
	}

	mdPath := filepath.Join(*outputDir, "report.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		logger.Fatalf("write %s: %v", mdPath, err)
	}

	csvPath := filepath.Join(*outputDir, "symbols.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderSymbolCSV(report.SymbolRows)), 0644); err != nil {
		logger.Fatalf("write %s: %v", csvPath, err)
	}

	written := []string{mdPath, csvPath}
	for _, symbol := range symbolList {
		stats, err := generator.RollingSeries(ctx, *runID, symbol)
		if err != nil {
			logger.Fatalf("rolling series for %s: %v", symbol, err)
		}
		if len(stats.CAGR) == 0 {
			continue
		}
		path := filepath.Join(*outputDir, fmt.Sprintf("rolling_%s.csv", strings.ToLower(symbol)))
		if err := os.WriteFile(path, []byte(reporting.RenderRollingCSV(symbol, stats)), 0644); err != nil {
			logger.Fatalf("write %s: %v", path, err)
		}
		written = append(written, path)
	}

	logger.Printf("report for run %s written: %s", *runID, strings.Join(written, ", "))
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

// symbolsFromTradeLog collects the distinct symbols present in the
// trade log.
func symbolsFromTradeLog(ctx context.Context, store storage.TradeLogStore) ([]string, error) {
	trades, err := store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range trades {
		if !seen[t.Symbol] {
			seen[t.Symbol] = true
			out = append(out, t.Symbol)
		}
	}
	sort.Strings(out)
	return out, nil
}
