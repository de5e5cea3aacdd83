package storage

import (
	"context"
	"time"

	"equity-quant-lab/internal/domain"
)

// TradeLogStore provides access to trade_log storage.
type TradeLogStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetBySymbol retrieves all trades for a symbol, ordered by date ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.TradeRecord, error)

	// GetAll retrieves all trades, ordered by date ASC.
	GetAll(ctx context.Context) ([]*domain.TradeRecord, error)
}

// ScoreHistoryStore provides access to score snapshots taken at each
// rebalance cycle.
type ScoreHistoryStore interface {
	// Save records the scores produced by one cycle. Returns
	// ErrDuplicateKey if a snapshot at recordedAt already exists.
	Save(ctx context.Context, recordedAt time.Time, scores domain.ScoreHistory) error

	// Latest retrieves the most recent snapshot. Returns ErrNotFound
	// when no snapshot has been saved yet.
	Latest(ctx context.Context) (domain.ScoreHistory, error)

	// GetBySymbol retrieves the score history of one symbol, ordered by
	// recorded_at ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.ScorePoint, error)
}

// CapitalSeriesStore provides access to capital_series storage.
type CapitalSeriesStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (series_id, date).
	InsertBulk(ctx context.Context, points []*domain.CapitalPoint) error

	// GetBySeriesID retrieves all points for a series, ordered by date ASC.
	GetBySeriesID(ctx context.Context, seriesID string) ([]*domain.CapitalPoint, error)

	// GetByTimeRange retrieves points for a series within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, seriesID string, start, end time.Time) ([]*domain.CapitalPoint, error)
}
