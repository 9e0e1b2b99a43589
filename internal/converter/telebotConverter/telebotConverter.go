package telebotConverter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

const AddHoldingUsage = "usage: /add TICKER QUANTITY PRICE [BROKERAGE] [YYYY-MM-DD]"

var ErrInvalidArgs = errors.New("invalid command arguments")

// ParseAddHoldingArgs turns the arguments of /add into a holding. Brokerage
// defaults to zero and the buy date to the current day.
func ParseAddHoldingArgs(args []string, now time.Time) (model.Holding, error) {
	if len(args) < 3 || len(args) > 5 {
		return model.Holding{}, fmt.Errorf("%w: expected 3 to 5 arguments, got %d", ErrInvalidArgs, len(args))
	}

	holding := model.Holding{
		Ticker:    model.NormalizeTicker(args[0]),
		Brokerage: decimal.Zero,
		BuyDate:   truncateToDay(now),
	}

	var err error
	if holding.Quantity, err = decimal.NewFromString(args[1]); err != nil {
		return model.Holding{}, fmt.Errorf("%w: quantity %q", ErrInvalidArgs, args[1])
	}

	if holding.BuyPrice, err = decimal.NewFromString(args[2]); err != nil {
		return model.Holding{}, fmt.Errorf("%w: price %q", ErrInvalidArgs, args[2])
	}

	if len(args) > 3 {
		if holding.Brokerage, err = decimal.NewFromString(args[3]); err != nil {
			return model.Holding{}, fmt.Errorf("%w: brokerage %q", ErrInvalidArgs, args[3])
		}
	}

	if len(args) > 4 {
		if holding.BuyDate, err = time.ParseInLocation(DateLayout, args[4], time.UTC); err != nil {
			return model.Holding{}, fmt.Errorf("%w: date %q", ErrInvalidArgs, args[4])
		}
	}

	return holding, nil
}

func ParseHoldingID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected holding id", ErrInvalidArgs)
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: holding id %q", ErrInvalidArgs, args[0])
	}

	return id, nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func percent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + money(d)
	}
	if d.IsNegative() {
		return "-" + money(d.Abs())
	}
	return money(d)
}

func HoldingAddedResponse(h model.Holding) string {
	return fmt.Sprintf(
		"✅ Added #%d: %s %s @ %s (brokerage %s) on %s",
		h.ID, h.Quantity.String(), h.Ticker, money(h.BuyPrice), money(h.Brokerage), h.BuyDate.Format(DateLayout),
	)
}

func HoldingsResponse(holdings []model.Holding) string {
	if len(holdings) == 0 {
		return "You have no holdings yet. " + AddHoldingUsage
	}

	var sb strings.Builder
	sb.WriteString("📋 Holdings:\n\n")
	for _, h := range holdings {
		sb.WriteString(fmt.Sprintf(
			"#%d %s ▸ %s @ %s + %s, bought %s\n",
			h.ID, h.Ticker, h.Quantity.String(), money(h.BuyPrice), money(h.Brokerage), h.BuyDate.Format(DateLayout),
		))
	}
	return sb.String()
}

func SummaryResponse(v model.PortfolioValuation) string {
	var sb strings.Builder

	sb.WriteString("📊 Portfolio\n")
	sb.WriteString(fmt.Sprintf("💰 Value: %s\n", money(v.TotalValue)))
	sb.WriteString(fmt.Sprintf(" - Cost: %s\n", money(v.TotalCost)))
	sb.WriteString(fmt.Sprintf(" - P&L: %s (%s)\n\n", signed(v.TotalPnL), percent(v.TotalPnLPercent)))

	if len(v.Holdings) == 0 {
		sb.WriteString("No holdings yet.")
		return sb.String()
	}

	for _, h := range v.Holdings {
		price := money(h.CurrentPrice)
		if !h.PriceKnown {
			price += " (price unavailable, at cost)"
		}
		sb.WriteString(fmt.Sprintf("#%d %s\n", h.HoldingID, h.Ticker))
		sb.WriteString(fmt.Sprintf("   ▸ Qty: %s @ %s\n", h.Quantity.String(), price))
		sb.WriteString(fmt.Sprintf("   ▸ Value: %s, cost %s\n", money(h.MarketValue), money(h.CostBasis)))
		sb.WriteString(fmt.Sprintf("   ▸ P&L: %s (%s)\n", signed(h.PnL), percent(h.PnLPercent)))
		sb.WriteString(fmt.Sprintf("   ▸ Allocation: %s\n\n", percent(h.AllocationPercent)))
	}

	return sb.String()
}

func CgtResponse(r model.CgtReport) string {
	var sb strings.Builder

	sb.WriteString("🧾 Capital gains (unrealised)\n")
	sb.WriteString(fmt.Sprintf(" - Gains: %s\n", money(r.TotalGains)))
	sb.WriteString(fmt.Sprintf(" - Losses: %s\n", money(r.TotalLosses)))
	sb.WriteString(fmt.Sprintf(" - Net: %s\n", signed(r.NetGain)))
	sb.WriteString(fmt.Sprintf(" - Taxable after discount: %s\n\n", money(r.DiscountedGain)))

	for _, h := range r.Holdings {
		sb.WriteString(fmt.Sprintf("#%d %s ▸ %s, held %d days\n", h.HoldingID, h.Ticker, signed(h.CapitalGain), h.DaysHeld))
		switch {
		case h.EligibleForDiscount:
			sb.WriteString(fmt.Sprintf("   ▸ 50%% discount applies: %s\n", money(h.DiscountedGain)))
		case h.CapitalGain.IsPositive():
			sb.WriteString(fmt.Sprintf("   ▸ discount in %d days\n", h.CgtDaysRemaining))
		}
	}

	return sb.String()
}
