package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type HoldingValuation struct {
	HoldingID         int64
	Ticker            string
	BuyDate           time.Time
	Quantity          decimal.Decimal
	BuyPrice          decimal.Decimal
	Brokerage         decimal.Decimal
	CurrentPrice      decimal.Decimal
	PriceKnown        bool
	CostBasis         decimal.Decimal
	MarketValue       decimal.Decimal
	PnL               decimal.Decimal
	PnLPercent        decimal.Decimal
	AllocationPercent decimal.Decimal
}

type PortfolioValuation struct {
	TotalValue      decimal.Decimal
	TotalCost       decimal.Decimal
	TotalPnL        decimal.Decimal
	TotalPnLPercent decimal.Decimal
	Holdings        []HoldingValuation
}
