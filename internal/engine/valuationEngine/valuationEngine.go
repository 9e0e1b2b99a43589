package valuationEngine

import (
	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/shopspring/decimal"
)

// percentage values are reported with this many decimal places
const percentPlaces = 2

var hundred = decimal.NewFromInt(100)

// Summarize values every holding at prices (falling back to
// model.UnknownPriceFallback for unpriced tickers) and returns the portfolio
// totals together with the per holding breakdown in input order.
func Summarize(holdings []model.Holding, prices map[string]decimal.Decimal) model.PortfolioValuation {
	res := model.PortfolioValuation{
		TotalValue:      decimal.Zero,
		TotalCost:       decimal.Zero,
		TotalPnL:        decimal.Zero,
		TotalPnLPercent: decimal.Zero,
		Holdings:        make([]model.HoldingValuation, 0, len(holdings)),
	}

	for _, h := range model.PriceHoldings(holdings, prices) {
		costBasis := h.CostBasis()
		marketValue := h.MarketValue()
		pnl := marketValue.Sub(costBasis)

		res.Holdings = append(res.Holdings, model.HoldingValuation{
			HoldingID:         h.ID,
			Ticker:            model.NormalizeTicker(h.Ticker),
			BuyDate:           h.BuyDate,
			Quantity:          h.Quantity,
			BuyPrice:          h.BuyPrice,
			Brokerage:         h.Brokerage,
			CurrentPrice:      h.CurrentPrice,
			PriceKnown:        h.PriceKnown,
			CostBasis:         costBasis,
			MarketValue:       marketValue,
			PnL:               pnl,
			PnLPercent:        percentOf(pnl, costBasis),
			AllocationPercent: decimal.Zero,
		})

		res.TotalValue = res.TotalValue.Add(marketValue)
		res.TotalCost = res.TotalCost.Add(costBasis)
	}

	res.TotalPnL = res.TotalValue.Sub(res.TotalCost)
	res.TotalPnLPercent = percentOf(res.TotalPnL, res.TotalCost)

	// allocation needs the final total value
	for i := range res.Holdings {
		res.Holdings[i].AllocationPercent = percentOf(res.Holdings[i].MarketValue, res.TotalValue)
	}

	return res
}

// percentOf returns part/whole*100, or zero when whole is zero.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole).Round(percentPlaces)
}
