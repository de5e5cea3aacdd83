package clickhouse

import (
	"context"
	"fmt"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/storage"
)

// CapitalSeriesStore implements storage.CapitalSeriesStore using ClickHouse.
type CapitalSeriesStore struct {
	conn *Conn
}

// NewCapitalSeriesStore creates a new CapitalSeriesStore.
func NewCapitalSeriesStore(conn *Conn) *CapitalSeriesStore {
	return &CapitalSeriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CapitalSeriesStore = (*CapitalSeriesStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (series_id, date).
func (s *CapitalSeriesStore) InsertBulk(ctx context.Context, points []*domain.CapitalPoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		seriesID string
		date     int64
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		k := key{p.SeriesID, p.Date.Unix()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows. MergeTree does not
	// enforce uniqueness at insert time.
	for _, p := range points {
		exists, err := s.exists(ctx, p.SeriesID, p.Date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO capital_series (series_id, date, equity)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.SeriesID, p.Date, p.Equity); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySeriesID retrieves all points for a series, ordered by date ASC.
func (s *CapitalSeriesStore) GetBySeriesID(ctx context.Context, seriesID string) ([]*domain.CapitalPoint, error) {
	query := `
		SELECT series_id, date, equity
		FROM capital_series
		WHERE series_id = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query by series id: %w", err)
	}
	defer rows.Close()

	return scanCapitalPoints(rows)
}

// GetByTimeRange retrieves points for a series within [start, end] (inclusive).
func (s *CapitalSeriesStore) GetByTimeRange(ctx context.Context, seriesID string, start, end time.Time) ([]*domain.CapitalPoint, error) {
	query := `
		SELECT series_id, date, equity
		FROM capital_series
		WHERE series_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, seriesID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanCapitalPoints(rows)
}

// exists checks if a point with the given key exists.
func (s *CapitalSeriesStore) exists(ctx context.Context, seriesID string, date time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM capital_series
		WHERE series_id = ? AND date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, seriesID, date).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanCapitalPoints scans multiple rows.
func scanCapitalPoints(rows chRows) ([]*domain.CapitalPoint, error) {
	var points []*domain.CapitalPoint

	for rows.Next() {
		var p domain.CapitalPoint

		if err := rows.Scan(&p.SeriesID, &p.Date, &p.Equity); err != nil {
			return nil, fmt.Errorf("scan capital point row: %w", err)
		}

		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate capital point rows: %w", err)
	}

	return points, nil
}
