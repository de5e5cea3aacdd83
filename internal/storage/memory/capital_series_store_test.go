package memory

import (
	"context"
	"errors"
	"testing"

	"equity-quant-lab/internal/domain"
	"equity-quant-lab/internal/storage"
)

func TestCapitalSeriesStore_InsertBulkAndGet(t *testing.T) {
	store := NewCapitalSeriesStore()
	ctx := context.Background()

	points := []*domain.CapitalPoint{
		{SeriesID: "run1", Date: day(2), Equity: 10200},
		{SeriesID: "run1", Date: day(0), Equity: 10000},
		{SeriesID: "run1", Date: day(1), Equity: 10100},
		{SeriesID: "run2", Date: day(0), Equity: 50000},
	}

	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetBySeriesID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetBySeriesID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d points, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Date.Before(got[i].Date) {
			t.Errorf("points not ordered by date at %d", i)
		}
	}
	if got[0].Equity != 10000 {
		t.Errorf("first equity = %f, want 10000", got[0].Equity)
	}
}

func TestCapitalSeriesStore_DuplicateKey(t *testing.T) {
	store := NewCapitalSeriesStore()
	ctx := context.Background()

	p := &domain.CapitalPoint{SeriesID: "run1", Date: day(0), Equity: 10000}
	if err := store.InsertBulk(ctx, []*domain.CapitalPoint{p}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.CapitalPoint{p})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestCapitalSeriesStore_IntraBatchDuplicate(t *testing.T) {
	store := NewCapitalSeriesStore()
	ctx := context.Background()

	points := []*domain.CapitalPoint{
		{SeriesID: "run1", Date: day(0), Equity: 10000},
		{SeriesID: "run1", Date: day(0), Equity: 10001},
	}

	err := store.InsertBulk(ctx, points)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetBySeriesID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetBySeriesID failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("failed batch partially applied: %d points", len(got))
	}
}

func TestCapitalSeriesStore_GetByTimeRange(t *testing.T) {
	store := NewCapitalSeriesStore()
	ctx := context.Background()

	var points []*domain.CapitalPoint
	for i := 0; i < 10; i++ {
		points = append(points, &domain.CapitalPoint{
			SeriesID: "run1",
			Date:     day(i),
			Equity:   10000 + float64(i)*100,
		})
	}
	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "run1", day(3), day(6))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d points, want 4", len(got))
	}
	if !got[0].Date.Equal(day(3)) || !got[3].Date.Equal(day(6)) {
		t.Errorf("range bounds wrong: %v .. %v", got[0].Date, got[3].Date)
	}
}
