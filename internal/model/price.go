package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceEntry struct {
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// ValidAt reports whether the entry is still fresh at now for the given ttl.
func (e PriceEntry) ValidAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}
