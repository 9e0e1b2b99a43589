package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Holding struct {
	ID        int64
	UserID    int64
	Ticker    string
	BuyDate   time.Time
	Quantity  decimal.Decimal
	BuyPrice  decimal.Decimal
	Brokerage decimal.Decimal
}

// MinBuyDate is the earliest buy date a holding may carry.
var MinBuyDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// CostBasis is buy price times quantity plus brokerage.
func (h Holding) CostBasis() decimal.Decimal {
	return h.BuyPrice.Mul(h.Quantity).Add(h.Brokerage)
}

// PricedHolding pairs a holding with the price it is valued at.
type PricedHolding struct {
	Holding
	CurrentPrice decimal.Decimal
	// false when CurrentPrice came from UnknownPriceFallback
	PriceKnown bool
}

func (p PricedHolding) MarketValue() decimal.Decimal {
	return p.CurrentPrice.Mul(p.Quantity)
}

// UnknownPriceFallback is the price a holding is valued at when no current
// price could be resolved: its own buy price, so the holding shows zero P&L
// apart from brokerage.
func UnknownPriceFallback(h Holding) decimal.Decimal {
	return h.BuyPrice
}

// NormalizeTicker returns the canonical form of a ticker.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// DistinctTickers returns the canonical tickers of holdings in first-seen order.
func DistinctTickers(holdings []Holding) []string {
	tickers := make([]string, 0, len(holdings))
	for _, h := range holdings {
		tickers = append(tickers, h.Ticker)
	}
	return CanonicalTickers(tickers)
}

// CanonicalTickers normalizes tickers, dropping blanks and duplicates while
// keeping first-seen order.
func CanonicalTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	res := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = NormalizeTicker(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		res = append(res, t)
	}
	return res
}

// PriceHoldings attaches the current price from prices to every holding,
// applying UnknownPriceFallback where prices has no entry for the ticker.
func PriceHoldings(holdings []Holding, prices map[string]decimal.Decimal) []PricedHolding {
	res := make([]PricedHolding, 0, len(holdings))
	for _, h := range holdings {
		price, ok := prices[NormalizeTicker(h.Ticker)]
		if !ok {
			price = UnknownPriceFallback(h)
		}
		res = append(res, PricedHolding{Holding: h, CurrentPrice: price, PriceKnown: ok})
	}
	return res
}
