package postgres

import (
	"context"
	"fmt"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/storage"
)

// ScoreHistoryStore implements storage.ScoreHistoryStore using PostgreSQL.
type ScoreHistoryStore struct {
	pool *Pool
}

// NewScoreHistoryStore creates a new ScoreHistoryStore.
func NewScoreHistoryStore(pool *Pool) *ScoreHistoryStore {
	return &ScoreHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScoreHistoryStore = (*ScoreHistoryStore)(nil)

// Save records the scores produced by one cycle. The whole snapshot is
// written in one transaction so a cycle is either fully persisted or
// not at all.
func (s *ScoreHistoryStore) Save(ctx context.Context, recordedAt time.Time, scores domain.ScoreHistory) error {
	if scores == nil {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO score_history (recorded_at, symbol, score)
		VALUES ($1, $2, $3)
	`

	for symbol, score := range scores {
		if _, err := tx.Exec(ctx, query, recordedAt, symbol, score); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert score for %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Latest retrieves the most recent snapshot. Returns ErrNotFound when
// no snapshot has been saved yet.
func (s *ScoreHistoryStore) Latest(ctx context.Context) (domain.ScoreHistory, error) {
	query := `
		SELECT symbol, score
		FROM score_history
		WHERE recorded_at = (SELECT max(recorded_at) FROM score_history)
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get latest scores: %w", err)
	}
	defer rows.Close()

	scores := make(domain.ScoreHistory)
	for rows.Next() {
		var symbol string
		var score float64
		if err := rows.Scan(&symbol, &score); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		scores[symbol] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score rows: %w", err)
	}

	if len(scores) == 0 {
		return nil, storage.ErrNotFound
	}
	return scores, nil
}

// GetBySymbol retrieves the score history of one symbol, ordered by
// recorded_at ASC.
func (s *ScoreHistoryStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.ScorePoint, error) {
	query := `
		SELECT symbol, score, recorded_at
		FROM score_history
		WHERE symbol = $1
		ORDER BY recorded_at ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get scores by symbol: %w", err)
	}
	defer rows.Close()

	var points []*domain.ScorePoint
	for rows.Next() {
		var p domain.ScorePoint
		if err := rows.Scan(&p.Symbol, &p.Score, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan score point row: %w", err)
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score point rows: %w", err)
	}

	return points, nil
}
