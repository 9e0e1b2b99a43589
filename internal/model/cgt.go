package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type HoldingCgt struct {
	HoldingID           int64
	Ticker              string
	BuyDate             time.Time
	Quantity            decimal.Decimal
	CurrentPrice        decimal.Decimal
	CostBasis           decimal.Decimal
	MarketValue         decimal.Decimal
	CapitalGain         decimal.Decimal
	DaysHeld            int
	EligibleForDiscount bool
	DiscountedGain      decimal.Decimal
	CgtDaysRemaining    int
}

type CgtReport struct {
	TotalGains  decimal.Decimal
	TotalLosses decimal.Decimal
	NetGain     decimal.Decimal
	// discounted gains of profitable holdings less all losses, never negative
	DiscountedGain decimal.Decimal
	Holdings       []HoldingCgt
}

// PortfolioReport is everything an exported report file is built from.
type PortfolioReport struct {
	GeneratedAt time.Time
	Valuation   PortfolioValuation
	Cgt         CgtReport
}
