package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(symbol|action|date|price)
// Returns hex-encoded hash (64 characters).
//
// The same (symbol, action, date, price) tuple always hashes to the same
// ID, which lets append-only stores reject accidental re-inserts of a
// trade without coordinating a sequence.
func ComputeTradeID(symbol, action string, date time.Time, price float64) string {
	data := fmt.Sprintf("%s|%s|%s|%.8f",
		symbol,
		action,
		date.UTC().Format("2006-01-02T15:04:05"),
		price,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
