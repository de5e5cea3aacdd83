// Package main runs the unified service: a scheduled backtest over the
// configured universe, the monthly rebalance worker, and the dashboard
// HTTP API with Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"equity-quant-lab/internal/backtest"
	"equity-quant-lab/internal/marketdata"
	"equity-quant-lab/internal/marketdata/stub"
	"equity-quant-lab/internal/notify"
	httpserver "equity-quant-lab/internal/server"
	"equity-quant-lab/internal/storage"
	chstore "equity-quant-lab/internal/storage/clickhouse"
	"equity-quant-lab/internal/storage/memory"
	"equity-quant-lab/internal/storage/migrations"
	pgstore "equity-quant-lab/internal/storage/postgres"
	"equity-quant-lab/internal/universe"
	"equity-quant-lab/internal/worker"
)

// Server holds the scheduled components and their shared state.
type Server struct {
	runID            string
	symbols          []string
	lookbackYears    int
	backtestInterval time.Duration

	runner *backtest.Runner
	worker *worker.RebalanceWorker
	logger *log.Logger

	mu              sync.Mutex
	started         time.Time
	lastBacktestRun time.Time
	backtestRuns    int
	backtestRunning bool
}

// allStores holds the storage handles shared by every component.
type allStores struct {
	trades  storage.TradeLogStore
	capital storage.CapitalSeriesStore
	history storage.ScoreHistoryStore
}

func main() {
	loadEnvFile()

	symbols := flag.String("symbols", os.Getenv("UNIVERSE_SYMBOLS"), "Comma-separated universe symbols (required)")
	runID := flag.String("run-id", "scheduled", "Run identifier for the scheduled backtest")
	lookbackYears := flag.Int("lookback-years", 3, "Backtest history window in years")
	backtestInterval := flag.Duration("backtest-interval", 24*time.Hour, "Scheduled backtest interval")

	barsEndpoint := flag.String("bars-endpoint", os.Getenv("BARS_ENDPOINT"), "Market data HTTP endpoint")
	useStub := flag.Bool("use-stub", false, "Use the deterministic synthetic data provider")

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	telegramToken := flag.String("telegram-token", os.Getenv("TELEGRAM_TOKEN"), "Telegram bot token (optional)")
	tradeChatID := flag.Int64("telegram-trade-chat", 0, "Telegram chat ID for trades and summaries")
	guardianChatID := flag.Int64("telegram-guardian-chat", 0, "Telegram chat ID for operational alerts")

	httpAddr := flag.String("http-addr", ":8080", "Dashboard and metrics HTTP address")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	symbolList := splitSymbols(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("--symbols is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	var provider marketdata.Provider = stub.NewProvider()
	if !*useStub {
		if *barsEndpoint == "" {
			logger.Fatal("--bars-endpoint is required (or pass --use-stub)")
		}
		provider = marketdata.NewHTTPProvider(*barsEndpoint)
	}

	var notifier notify.Notifier = notify.Nop{}
	if *telegramToken != "" {
		notifier, err = notify.NewTelegram(*telegramToken, *tradeChatID, *guardianChatID)
		if err != nil {
			logger.Fatalf("telegram notifier: %v", err)
		}
	}

	rebalancer := universe.NewRebalancer(provider, stores.history, universe.PlainWeights, universe.ScreenConfig{}, logger)

	server := &Server{
		runID:            *runID,
		symbols:          symbolList,
		lookbackYears:    *lookbackYears,
		backtestInterval: *backtestInterval,
		runner:           backtest.NewRunner(provider, backtest.NewEngine(), stores.trades, stores.capital, notifier, logger),
		worker:           worker.NewRebalanceWorker(rebalancer, symbolList, notifier, logger),
		logger:           logger,
		started:          time.Now(),
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, initiating graceful shutdown", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	dashboard := httpserver.NewDashboard(stores.trades, stores.capital, stores.history, *runID, symbolList, logger)
	go server.startHTTPServer(*httpAddr, dashboard)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("server error: %v", err)
	}
	logger.Println("shutdown complete")
}

// Run starts the schedulers and blocks until cancellation or a fatal
// component error.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Printf("starting: %d symbols, backtest every %v", len(s.symbols), s.backtestInterval)

	errCh := make(chan error, 2)

	go func() {
		err := s.runBacktestScheduler(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("backtest scheduler: %w", err)
		}
	}()

	go func() {
		err := s.worker.Run(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("rebalance worker: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runBacktestScheduler runs a backtest immediately, then on every
// interval tick.
func (s *Server) runBacktestScheduler(ctx context.Context) error {
	s.runBacktest(ctx)

	ticker := time.NewTicker(s.backtestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runBacktest(ctx)
		}
	}
}

func (s *Server) runBacktest(ctx context.Context) {
	s.mu.Lock()
	if s.backtestRunning {
		s.mu.Unlock()
		s.logger.Println("backtest already running, skipping")
		return
	}
	s.backtestRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.backtestRunning = false
		s.lastBacktestRun = time.Now()
		s.backtestRuns++
		s.mu.Unlock()
	}()

	end := time.Now().UTC().Truncate(24 * time.Hour)
	result, err := s.runner.Run(ctx, backtest.RunConfig{
		RunID:   s.runID,
		Symbols: s.symbols,
		Start:   end.AddDate(-s.lookbackYears, 0, 0),
		End:     end,
	})
	if err != nil {
		s.logger.Printf("scheduled backtest error: %v", err)
		return
	}
	s.logger.Printf("scheduled backtest done: %d run, %d skipped, %d faulted",
		len(result.Results), len(result.Skipped), len(result.Faulted))
}

// startHTTPServer serves the dashboard API plus the status endpoint.
func (s *Server) startHTTPServer(addr string, dashboard *httpserver.Dashboard) {
	mux := http.NewServeMux()
	mux.Handle("/", dashboard.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("http listening on %s", addr)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("http server error: %v", err)
	}
}

// StatusResponse is the JSON shape of /status.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	RunID           string    `json:"run_id"`
	Symbols         int       `json:"symbols"`
	LastBacktestRun time.Time `json:"last_backtest_run,omitempty"`
	BacktestRuns    int       `json:"backtest_runs"`
	BacktestRunning bool      `json:"backtest_running"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		RunID:           s.runID,
		Symbols:         len(s.symbols),
		LastBacktestRun: s.lastBacktestRun,
		BacktestRuns:    s.backtestRuns,
		BacktestRunning: s.backtestRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// createStores wires postgres and clickhouse stores, or their memory
// equivalents, and runs migrations on the real databases.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			trades:  memory.NewTradeLogStore(),
			capital: memory.NewCapitalSeriesStore(),
			history: memory.NewScoreHistoryStore(),
		}
		return stores, func() {}, nil
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

	stores := &allStores{
		trades:  pgstore.NewTradeLogStore(pool),
		capital: chstore.NewCapitalSeriesStore(conn),
		history: pgstore.NewScoreHistoryStore(pool),
	}
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
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

// loadEnvFile loads environment variables from a .env file if present.
// Existing variables win.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
