package stub

import (
	"context"
	"errors"
	"testing"
	"time"

	"equity-quant-lab/internal/marketdata"
)

func TestGetBarsDeterministic(t *testing.T) {
	p := NewProvider()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 199)

	a, err := p.GetBars(context.Background(), "ACME", start, end, "1d")
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	b, err := p.GetBars(context.Background(), "ACME", start, end, "1d")
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}

	if len(a) != 200 {
		t.Fatalf("got %d bars, want 200", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGetBarsVariesBySymbol(t *testing.T) {
	p := NewProvider()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 9)

	a, err := p.GetBars(context.Background(), "AAA", start, end, "1d")
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	b, err := p.GetBars(context.Background(), "BBB", start, end, "1d")
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if a[0].Close == b[0].Close {
		t.Error("different symbols produced identical series")
	}
}

func TestGetBarsShape(t *testing.T) {
	p := NewProvider()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	bars, err := p.GetBars(context.Background(), "ACME", start, start.AddDate(0, 0, 49), "1d")
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	for i, b := range bars {
		if b.High < b.Low {
			t.Fatalf("bar %d: high %v below low %v", i, b.High, b.Low)
		}
		if b.Close <= 0 || b.Volume <= 0 {
			t.Fatalf("bar %d: non-positive close or volume: %+v", i, b)
		}
		if i > 0 && !bars[i-1].Date.Before(b.Date) {
			t.Fatalf("bar %d: dates not ascending", i)
		}
	}
}

func TestGetBarsEmptyRange(t *testing.T) {
	p := NewProvider()
	start := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := p.GetBars(context.Background(), "ACME", start, start.AddDate(0, 0, -1), "1d")
	if !errors.Is(err, marketdata.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}
