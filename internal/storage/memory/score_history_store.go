package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/storage"
)

// ScoreHistoryStore is an in-memory implementation of storage.ScoreHistoryStore.
type ScoreHistoryStore struct {
	mu        sync.RWMutex
	snapshots map[int64]domain.ScoreHistory // keyed by recorded_at unix
	order     []time.Time
}

// NewScoreHistoryStore creates a new in-memory score history store.
func NewScoreHistoryStore() *ScoreHistoryStore {
	return &ScoreHistoryStore{
		snapshots: make(map[int64]domain.ScoreHistory),
	}
}

var _ storage.ScoreHistoryStore = (*ScoreHistoryStore)(nil)

// Save records the scores produced by one cycle.
func (s *ScoreHistoryStore) Save(_ context.Context, recordedAt time.Time, scores domain.ScoreHistory) error {
	if scores == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordedAt.Unix()
	if _, exists := s.snapshots[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := make(domain.ScoreHistory, len(scores))
	for sym, score := range scores {
		copy[sym] = score
	}
	s.snapshots[key] = copy
	s.order = append(s.order, recordedAt)
	sort.Slice(s.order, func(i, j int) bool { return s.order[i].Before(s.order[j]) })
	return nil
}

// Latest retrieves the most recent snapshot.
func (s *ScoreHistoryStore) Latest(_ context.Context) (domain.ScoreHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return nil, storage.ErrNotFound
	}

	last := s.snapshots[s.order[len(s.order)-1].Unix()]
	out := make(domain.ScoreHistory, len(last))
	for sym, score := range last {
		out[sym] = score
	}
	return out, nil
}

// GetBySymbol retrieves the score history of one symbol, ordered by
// recorded_at ASC.
func (s *ScoreHistoryStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.ScorePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScorePoint
	for _, at := range s.order {
		snap := s.snapshots[at.Unix()]
		if score, ok := snap[symbol]; ok {
			result = append(result, &domain.ScorePoint{
				Symbol:     symbol,
				Score:      score,
				RecordedAt: at,
			})
		}
	}
	return result, nil
}
