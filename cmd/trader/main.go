package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"equity-quant-lab/internal/marketdata"
	"equity-quant-lab/internal/marketdata/stub"
	"equity-quant-lab/internal/notify"
	"equity-quant-lab/internal/observability"
	"equity-quant-lab/internal/storage"
	chstore "equity-quant-lab/internal/storage/clickhouse"
	"equity-quant-lab/internal/storage/memory"
	"equity-quant-lab/internal/storage/migrations"
	pgstore "equity-quant-lab/internal/storage/postgres"
	"equity-quant-lab/internal/worker"
)

// stores groups the persistence handles the trader needs.
type stores struct {
	history storage.ScoreHistoryStore
	trades  storage.TradeLogStore
	capital storage.CapitalSeriesStore
}

func main() {
	symbols := flag.String("symbols", os.Getenv("UNIVERSE_SYMBOLS"), "Comma-separated universe symbols (required)")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("QUOTES_WS_ENDPOINT"), "Quote stream WebSocket endpoint (required)")
	barsEndpoint := flag.String("bars-endpoint", os.Getenv("BARS_ENDPOINT"), "Market data HTTP endpoint")
	useStub := flag.Bool("use-stub", false, "Use the deterministic synthetic data provider for bars")

	interval := flag.Duration("interval", worker.TraderInterval, "Poll-cycle period")
	topN := flag.Int("top-n", worker.TraderTopN, "Number of instruments to hold")
	capital := flag.Float64("capital", worker.TraderInitialCapital, "Virtual starting cash")
	seriesID := flag.String("series-id", "live", "Capital-trend series identifier")

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (trades, score history)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (capital series)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	telegramToken := flag.String("telegram-token", os.Getenv("TELEGRAM_TOKEN"), "Telegram bot token (optional)")
	tradeChatID := flag.Int64("telegram-trade-chat", 0, "Telegram chat ID for trades and summaries")
	guardianChatID := flag.Int64("telegram-guardian-chat", 0, "Telegram chat ID for operational alerts")

	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	logger := log.New(os.Stdout, "[trader] ", log.LstdFlags|log.Lshortfile)

	symbolList := splitSymbols(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("--symbols is required")
	}
	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		cancel()
		sig = <-sigCh
		logger.Printf("received second signal %v, forcing exit", sig)
		os.Exit(1)
	}()

	var provider marketdata.Provider = stub.NewProvider()
	if !*useStub {
		if *barsEndpoint == "" {
			logger.Fatal("--bars-endpoint is required (or pass --use-stub)")
		}
		provider = marketdata.NewHTTPProvider(*barsEndpoint)
	}

	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	var notifier notify.Notifier = notify.Nop{}
	if *telegramToken != "" {
		notifier, err = notify.NewTelegram(*telegramToken, *tradeChatID, *guardianChatID)
		if err != nil {
			logger.Fatalf("telegram notifier: %v", err)
		}
	}

	trader := worker.NewTrader(provider, st.history, st.trades, st.capital, notifier, symbolList, logger)
	trader.SetInterval(*interval)
	trader.SetTopN(*topN)
	trader.SetCapital(*capital)
	trader.SetSeriesID(*seriesID)

	ws, err := marketdata.NewWSQuoteClient(ctx, *wsEndpoint, nil)
	if err != nil {
		logger.Fatalf("connect quote stream: %v", err)
	}
	defer ws.Close()
	if err := ws.Subscribe(ctx, symbolList...); err != nil {
		logger.Fatalf("subscribe quotes: %v", err)
	}
	go trader.ConsumeQuotes(ctx, ws.Quotes())

	go serveMetrics(*metricsAddr, logger)

	err = trader.Run(ctx)
	if err != nil && err != context.Canceled {
		logger.Fatalf("trader error: %v", err)
	}
	logger.Println("shutdown complete")
}

// createStores wires postgres and clickhouse stores, or their memory
// equivalents, and runs migrations on the real databases.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*stores, func(), error) {
	if useMemory {
		st := &stores{
			history: memory.NewScoreHistoryStore(),
			trades:  memory.NewTradeLogStore(),
			capital: memory.NewCapitalSeriesStore(),
		}
		return st, func() {}, nil
	}
	if postgresDSN == "" || clickhouseDSN == "" {
		return nil, nil, fmt.Errorf("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	st := &stores{
		history: pgstore.NewScoreHistoryStore(pool),
		trades:  pgstore.NewTradeLogStore(pool),
		capital: chstore.NewCapitalSeriesStore(conn),
	}
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return st, cleanup, nil
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

func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("metrics listening on %s", addr)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("metrics server error: %v", err)
	}
}
