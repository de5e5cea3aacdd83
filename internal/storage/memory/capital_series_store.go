package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/storage"
)

// CapitalSeriesStore is an in-memory implementation of storage.CapitalSeriesStore.
type CapitalSeriesStore struct {
	mu   sync.RWMutex
	data map[capitalKey]*domain.CapitalPoint
}

type capitalKey struct {
	seriesID string
	date     int64
}

// NewCapitalSeriesStore creates a new in-memory capital series store.
func NewCapitalSeriesStore() *CapitalSeriesStore {
	return &CapitalSeriesStore{
		data: make(map[capitalKey]*domain.CapitalPoint),
	}
}

var _ storage.CapitalSeriesStore = (*CapitalSeriesStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (series_id, date).
func (s *CapitalSeriesStore) InsertBulk(_ context.Context, points []*domain.CapitalPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[capitalKey]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.SeriesID == "" {
			return storage.ErrInvalidInput
		}
		k := capitalKey{p.SeriesID, p.Date.Unix()}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, p := range points {
		copy := *p
		s.data[capitalKey{p.SeriesID, p.Date.Unix()}] = &copy
	}

	return nil
}

// GetBySeriesID retrieves all points for a series, ordered by date ASC.
func (s *CapitalSeriesStore) GetBySeriesID(_ context.Context, seriesID string) ([]*domain.CapitalPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CapitalPoint
	for _, p := range s.data {
		if p.SeriesID == seriesID {
			copy := *p
			result = append(result, &copy)
		}
	}

	sortCapitalPoints(result)
	return result, nil
}

// GetByTimeRange retrieves points for a series within [start, end] (inclusive).
func (s *CapitalSeriesStore) GetByTimeRange(_ context.Context, seriesID string, start, end time.Time) ([]*domain.CapitalPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CapitalPoint
	for _, p := range s.data {
		if p.SeriesID != seriesID {
			continue
		}
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		copy := *p
		result = append(result, &copy)
	}

	sortCapitalPoints(result)
	return result, nil
}

func sortCapitalPoints(points []*domain.CapitalPoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
}
