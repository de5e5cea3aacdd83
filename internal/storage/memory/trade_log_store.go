// Package memory provides in-memory store implementations used by
// single-run backtests and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/storage"
)

// TradeLogStore is an in-memory implementation of storage.TradeLogStore.
type TradeLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeRecord // keyed by trade_id
}

// NewTradeLogStore creates a new in-memory trade log store.
func NewTradeLogStore() *TradeLogStore {
	return &TradeLogStore{
		data: make(map[string]*domain.TradeRecord),
	}
}

var _ storage.TradeLogStore = (*TradeLogStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeLogStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TradeID] = &copy
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeLogStore) InsertBulk(_ context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(trades))

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		copy := *t
		s.data[t.TradeID] = &copy
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeLogStore) GetByID(_ context.Context, tradeID string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// GetBySymbol retrieves all trades for a symbol, ordered by date ASC.
func (s *TradeLogStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if t.Symbol == symbol {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTrades(result)
	return result, nil
}

// GetAll retrieves all trades, ordered by date ASC.
func (s *TradeLogStore) GetAll(_ context.Context) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeRecord, 0, len(s.data))
	for _, t := range s.data {
		copy := *t
		result = append(result, &copy)
	}

	sortTrades(result)
	return result, nil
}

func sortTrades(trades []*domain.TradeRecord) {
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].Date.Equal(trades[j].Date) {
			return trades[i].Date.Before(trades[j].Date)
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}
