// Package server exposes the read-only dashboard API over stored run
// artifacts. It never mutates engine state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/observability"
	"equity-quant-lab/internal/reporting"
	"equity-quant-lab/internal/storage"
)

// Dashboard serves run results: capital history, the trade log, and
// per-symbol plus portfolio performance.
type Dashboard struct {
	tradeStore   storage.TradeLogStore
	capitalStore storage.CapitalSeriesStore
	scoreStore   storage.ScoreHistoryStore
	generator    *reporting.Generator

	runID   string
	symbols []string
	logger  *log.Logger
}

// NewDashboard creates the dashboard over one run's artifacts.
func NewDashboard(tradeStore storage.TradeLogStore, capitalStore storage.CapitalSeriesStore, scoreStore storage.ScoreHistoryStore, runID string, symbols []string, logger *log.Logger) *Dashboard {
	return &Dashboard{
		tradeStore:   tradeStore,
		capitalStore: capitalStore,
		scoreStore:   scoreStore,
		generator:    reporting.NewGenerator(tradeStore, capitalStore, scoreStore),
		runID:        runID,
		symbols:      symbols,
		logger:       logger,
	}
}

// Handler returns the HTTP mux with all dashboard routes.
func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/api/dashboard", d.handleDashboard)
	mux.HandleFunc("/api/trades", d.handleTrades)
	mux.HandleFunc("/api/capital", d.handleCapital)
	return mux
}

// DashboardResponse is the JSON payload for /api/dashboard.
type DashboardResponse struct {
	RunID     string       `json:"run_id"`
	Portfolio SummaryJSON  `json:"portfolio"`
	Symbols   []SymbolJSON `json:"symbols"`
	Scores    []ScoreJSON  `json:"scores,omitempty"`
	Generated time.Time    `json:"generated_at"`
}

// SummaryJSON mirrors domain.PerformanceSummary with n/a handling.
type SummaryJSON struct {
	InitialCapital float64  `json:"initial_capital"`
	FinalCapital   float64  `json:"final_capital"`
	CAGR           *float64 `json:"cagr"` // null when not computable
	WinRate        float64  `json:"win_rate"`
	MaxDrawdown    float64  `json:"max_drawdown"`
	TotalTrades    int      `json:"total_trades"`
	ClosedTrades   int      `json:"closed_trades"`
}

// SymbolJSON is one symbol's performance line.
type SymbolJSON struct {
	Symbol      string   `json:"symbol"`
	Trades      int      `json:"trades"`
	Closed      int      `json:"closed"`
	WinRate     float64  `json:"win_rate"`
	CAGR        *float64 `json:"cagr"`
	MaxDrawdown float64  `json:"max_drawdown"`
	FinalEquity float64  `json:"final_equity"`
}

// ScoreJSON is one symbol's latest composite score.
type ScoreJSON struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
}

// TradeJSON is one trade log row.
type TradeJSON struct {
	TradeID string    `json:"trade_id"`
	Date    time.Time `json:"date"`
	Symbol  string    `json:"symbol"`
	Action  string    `json:"action"`
	Price   float64   `json:"price"`
	Shares  int       `json:"shares"`
	Side    string    `json:"side"`
}

// CapitalJSON is one equity sample.
type CapitalJSON struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

func (d *Dashboard) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := d.generator.Generate(r.Context(), d.runID, d.symbols)
	if err != nil {
		d.logger.Printf("[server] dashboard: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := DashboardResponse{
		RunID:     d.runID,
		Generated: report.GeneratedAt,
		Portfolio: SummaryJSON{
			InitialCapital: report.Portfolio.InitialCapital,
			FinalCapital:   report.Portfolio.FinalCapital,
			CAGR:           optional(report.Portfolio.CAGR, report.Portfolio.CAGRKnown),
			WinRate:        report.Portfolio.WinRate,
			MaxDrawdown:    report.Portfolio.MaxDrawdown,
			TotalTrades:    report.Portfolio.TotalTrades,
			ClosedTrades:   report.Portfolio.ClosedTrades,
		},
	}
	for _, row := range report.SymbolRows {
		resp.Symbols = append(resp.Symbols, SymbolJSON{
			Symbol:      row.Symbol,
			Trades:      row.TradeCount,
			Closed:      row.ClosedTrades,
			WinRate:     row.WinRate,
			CAGR:        optional(row.CAGR, row.CAGRKnown),
			MaxDrawdown: row.MaxDrawdown,
			FinalEquity: row.FinalEquity,
		})
	}
	for _, s := range report.Scores {
		resp.Scores = append(resp.Scores, ScoreJSON{Symbol: s.Symbol, Score: s.Score})
	}

	writeJSON(w, resp)
}

func (d *Dashboard) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbol := r.URL.Query().Get("symbol")
	trades, err := d.loadTrades(r.Context(), symbol)
	if err != nil {
		d.logger.Printf("[server] trades: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]TradeJSON, len(trades))
	for i, t := range trades {
		out[i] = TradeJSON{
			TradeID: t.TradeID,
			Date:    t.Date,
			Symbol:  t.Symbol,
			Action:  t.Action,
			Price:   t.Price,
			Shares:  t.Shares,
			Side:    string(t.Side),
		}
	}
	writeJSON(w, out)
}

func (d *Dashboard) loadTrades(ctx context.Context, symbol string) ([]*domain.TradeRecord, error) {
	if symbol == "" {
		return d.tradeStore.GetAll(ctx)
	}
	return d.tradeStore.GetBySymbol(ctx, symbol)
}

func (d *Dashboard) handleCapital(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol query parameter is required", http.StatusBadRequest)
		return
	}

	points, err := d.capitalStore.GetBySeriesID(r.Context(), d.runID+":"+symbol)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		d.logger.Printf("[server] capital: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]CapitalJSON, len(points))
	for i, p := range points {
		out[i] = CapitalJSON{Date: p.Date, Equity: p.Equity}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	writeJSON(w, out)
}

func optional(v float64, known bool) *float64 {
	if !known {
		return nil
	}
	return &v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
