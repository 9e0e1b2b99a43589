// Package cgtEngine computes Australian capital gains tax exposure for
// unrealised positions.
//
// A gain on an asset held for more than DiscountThresholdDays qualifies for
// the 50% CGT discount. Losses are never discounted. When aggregating, losses
// offset the discounted gains dollar for dollar and the reported discounted
// total never goes below zero.
package cgtEngine

import (
	"time"

	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/shopspring/decimal"
)

const (
	// a holding must be held strictly longer than this to be discounted
	DiscountThresholdDays = 365

	day = 24 * time.Hour
)

var DiscountRate = decimal.RequireFromString("0.5")

// Calculate returns the CGT report for holdings valued at their attached
// prices as of now. Holdings keep their input order.
func Calculate(holdings []model.PricedHolding, now time.Time) model.CgtReport {
	res := model.CgtReport{
		TotalGains:     decimal.Zero,
		TotalLosses:    decimal.Zero,
		NetGain:        decimal.Zero,
		DiscountedGain: decimal.Zero,
		Holdings:       make([]model.HoldingCgt, 0, len(holdings)),
	}

	discountedPool := decimal.Zero

	for _, h := range holdings {
		item := calculateHolding(h, now)
		res.Holdings = append(res.Holdings, item)

		if item.CapitalGain.IsPositive() {
			res.TotalGains = res.TotalGains.Add(item.CapitalGain)
			discountedPool = discountedPool.Add(item.DiscountedGain)
		} else {
			res.TotalLosses = res.TotalLosses.Add(item.CapitalGain.Abs())
		}
	}

	res.NetGain = res.TotalGains.Sub(res.TotalLosses)
	res.DiscountedGain = decimal.Max(decimal.Zero, discountedPool.Sub(res.TotalLosses))

	return res
}

func calculateHolding(h model.PricedHolding, now time.Time) model.HoldingCgt {
	costBasis := h.CostBasis()
	marketValue := h.MarketValue()
	gain := marketValue.Sub(costBasis)
	daysHeld := DaysHeld(h.BuyDate, now)
	eligible := daysHeld > DiscountThresholdDays

	discounted := decimal.Zero
	if gain.IsPositive() {
		discounted = gain
		if eligible {
			discounted = gain.Mul(DiscountRate)
		}
	}

	return model.HoldingCgt{
		HoldingID:           h.ID,
		Ticker:              model.NormalizeTicker(h.Ticker),
		BuyDate:             h.BuyDate,
		Quantity:            h.Quantity,
		CurrentPrice:        h.CurrentPrice,
		CostBasis:           costBasis,
		MarketValue:         marketValue,
		CapitalGain:         gain,
		DaysHeld:            daysHeld,
		EligibleForDiscount: eligible,
		DiscountedGain:      discounted,
		CgtDaysRemaining:    max(0, DiscountThresholdDays-daysHeld),
	}
}

// DaysHeld is the number of whole days between buyDate and now, rounded
// towards negative infinity.
func DaysHeld(buyDate, now time.Time) int {
	d := now.Sub(buyDate)
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}
