package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/storage"
)

// TradeLogStore implements storage.TradeLogStore using PostgreSQL.
type TradeLogStore struct {
	pool *Pool
}

// NewTradeLogStore creates a new TradeLogStore.
func NewTradeLogStore(pool *Pool) *TradeLogStore {
	return &TradeLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeLogStore = (*TradeLogStore)(nil)

const tradeLogColumns = `trade_id, trade_date, symbol, action, price, shares, side`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeLogStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	query := `
		INSERT INTO trade_log (` + tradeLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.Date, t.Symbol, t.Action, t.Price, t.Shares, t.Side,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeLogStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trade_log (` + tradeLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, t := range trades {
		_, err := tx.Exec(ctx, query,
			t.TradeID, t.Date, t.Symbol, t.Action, t.Price, t.Shares, t.Side,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeLogStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeLogColumns + `
		FROM trade_log
		WHERE trade_id = $1
	`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetBySymbol retrieves all trades for a symbol, ordered by date ASC.
func (s *TradeLogStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeLogColumns + `
		FROM trade_log
		WHERE symbol = $1
		ORDER BY trade_date ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get trades by symbol: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetAll retrieves all trades, ordered by date ASC.
func (s *TradeLogStore) GetAll(ctx context.Context) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeLogColumns + `
		FROM trade_log
		ORDER BY trade_date ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrade scans a single row into a TradeRecord.
func scanTrade(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	var side string

	err := row.Scan(&t.TradeID, &t.Date, &t.Symbol, &t.Action, &t.Price, &t.Shares, &side)
	if err != nil {
		return nil, err
	}
	t.Side = domain.Side(side)

	return &t, nil
}

// scanTrades scans multiple rows into a slice of TradeRecord.
func scanTrades(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		var t domain.TradeRecord
		var side string

		err := rows.Scan(&t.TradeID, &t.Date, &t.Symbol, &t.Action, &t.Price, &t.Shares, &side)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.Side = domain.Side(side)

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
