package telebotConverter

import (
	"testing"
	"time"

	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.March, 14, 21, 45, 0, 0, time.UTC)

func TestParseAddHoldingArgs(t *testing.T) {
	h, err := ParseAddHoldingArgs([]string{"cba", "10", "40.5", "9.95", "2024-01-02"}, now)

	require.NoError(t, err)
	assert.Equal(t, "CBA", h.Ticker)
	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, h.BuyPrice.Equal(decimal.RequireFromString("40.5")))
	assert.True(t, h.Brokerage.Equal(decimal.RequireFromString("9.95")))
	assert.Equal(t, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), h.BuyDate)
}

func TestParseAddHoldingArgs_Defaults(t *testing.T) {
	h, err := ParseAddHoldingArgs([]string{"BHP", "5", "45"}, now)

	require.NoError(t, err)
	assert.True(t, h.Brokerage.IsZero())
	assert.Equal(t, time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC), h.BuyDate)
}

func TestParseAddHoldingArgs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "too few", args: []string{"CBA", "10"}},
		{name: "too many", args: []string{"CBA", "10", "40", "0", "2024-01-02", "x"}},
		{name: "bad quantity", args: []string{"CBA", "ten", "40"}},
		{name: "bad price", args: []string{"CBA", "10", "$40"}},
		{name: "bad brokerage", args: []string{"CBA", "10", "40", "free"}},
		{name: "bad date", args: []string{"CBA", "10", "40", "0", "02/01/2024"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAddHoldingArgs(tt.args, now)
			assert.ErrorIs(t, err, ErrInvalidArgs)
		})
	}
}

func TestParseHoldingID(t *testing.T) {
	id, err := ParseHoldingID([]string{"42"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, args := range [][]string{nil, {"0"}, {"-3"}, {"abc"}, {"1", "2"}} {
		_, err := ParseHoldingID(args)
		assert.ErrorIs(t, err, ErrInvalidArgs, "args %v", args)
	}
}

func TestSigned(t *testing.T) {
	assert.Equal(t, "+$90.05", signed(decimal.RequireFromString("90.05")))
	assert.Equal(t, "-$110.00", signed(decimal.RequireFromString("-110")))
	assert.Equal(t, "$0.00", signed(decimal.Zero))
}

func TestSummaryResponse(t *testing.T) {
	v := model.PortfolioValuation{
		TotalValue:      decimal.NewFromInt(900),
		TotalCost:       decimal.RequireFromString("919.95"),
		TotalPnL:        decimal.RequireFromString("-19.95"),
		TotalPnLPercent: decimal.RequireFromString("-2.17"),
		Holdings: []model.HoldingValuation{
			{
				HoldingID:         7,
				Ticker:            "XYZ",
				Quantity:          decimal.NewFromInt(10),
				CurrentPrice:      decimal.NewFromInt(20),
				PriceKnown:        false,
				MarketValue:       decimal.NewFromInt(200),
				CostBasis:         decimal.NewFromInt(200),
				PnL:               decimal.Zero,
				PnLPercent:        decimal.Zero,
				AllocationPercent: decimal.RequireFromString("22.22"),
			},
		},
	}

	resp := SummaryResponse(v)

	assert.Contains(t, resp, "Value: $900.00")
	assert.Contains(t, resp, "P&L: -$19.95 (-2.17%)")
	assert.Contains(t, resp, "#7 XYZ")
	assert.Contains(t, resp, "price unavailable")
	assert.Contains(t, resp, "Allocation: 22.22%")
}

func TestCgtResponse(t *testing.T) {
	r := model.CgtReport{
		TotalGains:     decimal.NewFromInt(200),
		NetGain:        decimal.NewFromInt(200),
		DiscountedGain: decimal.NewFromInt(100),
		Holdings: []model.HoldingCgt{
			{HoldingID: 1, Ticker: "CBA", CapitalGain: decimal.NewFromInt(200), DaysHeld: 400, EligibleForDiscount: true, DiscountedGain: decimal.NewFromInt(100)},
			{HoldingID: 2, Ticker: "BHP", CapitalGain: decimal.NewFromInt(10), DaysHeld: 100, CgtDaysRemaining: 265, DiscountedGain: decimal.NewFromInt(10)},
		},
	}

	resp := CgtResponse(r)

	assert.Contains(t, resp, "Taxable after discount: $100.00")
	assert.Contains(t, resp, "50% discount applies: $100.00")
	assert.Contains(t, resp, "discount in 265 days")
}

func TestHoldingsResponse_Empty(t *testing.T) {
	assert.Contains(t, HoldingsResponse(nil), AddHoldingUsage)
}
