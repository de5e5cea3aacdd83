package idhash

import (
	"testing"
	"time"
)

func TestComputeTradeID(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		symbol  string
		action  string
		date    time.Time
		price   float64
		wantLen int // hash length should be 64
	}{
		{
			name:    "long entry",
			symbol:  "NVDA",
			action:  "BUY",
			date:    date,
			price:   822.79,
			wantLen: 64,
		},
		{
			name:    "stop loss exit",
			symbol:  "TSLA",
			action:  "SELL_STOP_LOSS",
			date:    date.AddDate(0, 0, 7),
			price:   180.74,
			wantLen: 64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.symbol, tt.action, tt.date, tt.price)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestComputeTradeID_Deterministic(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	a := ComputeTradeID("NVDA", "BUY", date, 822.79)
	b := ComputeTradeID("NVDA", "BUY", date, 822.79)

	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
}

func TestComputeTradeID_DistinctInputs(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	base := ComputeTradeID("NVDA", "BUY", date, 822.79)

	variants := []string{
		ComputeTradeID("TSLA", "BUY", date, 822.79),
		ComputeTradeID("NVDA", "SELL_TAKE_PROFIT", date, 822.79),
		ComputeTradeID("NVDA", "BUY", date.AddDate(0, 0, 1), 822.79),
		ComputeTradeID("NVDA", "BUY", date, 822.80),
	}

	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base ID", i)
		}
	}
}

func TestComputeTradeID_TimezoneNormalized(t *testing.T) {
	utc := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	est := utc.In(time.FixedZone("EST", -5*3600))

	if ComputeTradeID("AAPL", "BUY", utc, 100) != ComputeTradeID("AAPL", "BUY", est, 100) {
		t.Error("equivalent instants in different zones produced different IDs")
	}
}
