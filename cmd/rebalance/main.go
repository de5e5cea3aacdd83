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
	"equity-quant-lab/internal/storage/memory"
	"equity-quant-lab/internal/storage/migrations"
	pgstore "equity-quant-lab/internal/storage/postgres"
	"equity-quant-lab/internal/universe"
	"equity-quant-lab/internal/worker"
)

func main() {
	symbols := flag.String("symbols", os.Getenv("UNIVERSE_SYMBOLS"), "Comma-separated universe symbols (required)")
	weightsName := flag.String("weights", "plain", "Score weights preset: plain, fundflow")
	requireFundFlow := flag.Bool("require-fund-flow", false, "Demand a trailing fund-flow surge in the screen")
	topN := flag.Int("top-n", universe.DefaultTopN, "Number of candidates to select")
	weightCap := flag.Float64("weight-cap", universe.DefaultWeightCap, "Ceiling on any single-symbol portfolio weight")
	once := flag.Bool("once", false, "Run a single cycle and exit")

	barsEndpoint := flag.String("bars-endpoint", os.Getenv("BARS_ENDPOINT"), "Market data HTTP endpoint")
	useStub := flag.Bool("use-stub", false, "Use the deterministic synthetic data provider")

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (score history)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	telegramToken := flag.String("telegram-token", os.Getenv("TELEGRAM_TOKEN"), "Telegram bot token (optional)")
	tradeChatID := flag.Int64("telegram-trade-chat", 0, "Telegram chat ID for trades and summaries")
	guardianChatID := flag.Int64("telegram-guardian-chat", 0, "Telegram chat ID for operational alerts")

	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	logger := log.New(os.Stdout, "[rebalance] ", log.LstdFlags|log.Lshortfile)

	symbolList := splitSymbols(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("--symbols is required")
	}

	weights, ok := weightsPreset(*weightsName)
	if !ok {
		logger.Fatalf("invalid --weights: %s (want plain or fundflow)", *weightsName)
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

	var history storage.ScoreHistoryStore = memory.NewScoreHistoryStore()
	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		history = pgstore.NewScoreHistoryStore(pool)
	}

	var notifier notify.Notifier = notify.Nop{}
	if *telegramToken != "" {
		var err error
		notifier, err = notify.NewTelegram(*telegramToken, *tradeChatID, *guardianChatID)
		if err != nil {
			logger.Fatalf("telegram notifier: %v", err)
		}
	}

	rebalancer := universe.NewRebalancer(provider, history, weights, universe.ScreenConfig{RequireFundFlow: *requireFundFlow}, logger)
	rebalancer.SetSelection(*topN, *weightCap)

	w := worker.NewRebalanceWorker(rebalancer, symbolList, notifier, logger)

	if *once {
		if err := w.RunOnce(ctx); err != nil {
			logger.Fatalf("rebalance cycle failed: %v", err)
		}
		logger.Println("cycle complete")
		return
	}

	go serveMetrics(*metricsAddr, logger)

	err := w.Run(ctx)
	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		logger.Fatalf("worker error: %v", err)
	}
	logger.Println("shutdown complete")
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

func weightsPreset(name string) (universe.ScoreWeights, bool) {
	switch strings.ToLower(name) {
	case "plain":
		return universe.PlainWeights, true
	case "fundflow":
		return universe.FundFlowWeights, true
	default:
		return universe.ScoreWeights{}, false
	}
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
