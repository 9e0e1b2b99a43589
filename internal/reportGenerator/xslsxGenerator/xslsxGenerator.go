package xslsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/nthewara88agent/stock-tracker/utils"
	"github.com/xuri/excelize/v2"
)

const (
	ValuationSheet = "Valuation"
	CgtSheet       = "CGT"

	dateLayout = "2006-01-02"
)

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

func (g *XSLSXGenerator) Generate(ctx context.Context, report model.PortfolioReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	if report.Valuation.Holdings == nil || report.Cgt.Holdings == nil {
		return nil, "", errors.New("report without holdings")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err = g.fillValuationSheet(f, report); err != nil {
		slog.Error("got error while filling valuation sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err = g.fillCgtSheet(f, report); err != nil {
		slog.Error("got error while filling cgt sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	// the default sheet is left empty
	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XSLSXGenerator) fillValuationSheet(f *excelize.File, report model.PortfolioReport) error {
	if _, err := f.NewSheet(ValuationSheet); err != nil {
		return err
	}

	title := fmt.Sprintf("Portfolio valuation at %s", report.GeneratedAt.Format("2006-01-02 15:04 MST"))
	if err := g.writeTitle(f, ValuationSheet, "A1", "L1", title, "#cfe2f3"); err != nil {
		return err
	}

	headers := []string{"id", "ticker", "buy date", "quantity", "buy price", "brokerage", "current price", "cost basis", "market value", "P&L", "P&L %", "allocation %"}
	if err := f.SetSheetRow(ValuationSheet, "A2", &headers); err != nil {
		return err
	}

	row := 3
	for _, h := range report.Valuation.Holdings {
		values := []any{
			h.HoldingID,
			h.Ticker,
			h.BuyDate.Format(dateLayout),
			h.Quantity.InexactFloat64(),
			h.BuyPrice.InexactFloat64(),
			h.Brokerage.InexactFloat64(),
			h.CurrentPrice.InexactFloat64(),
			h.CostBasis.InexactFloat64(),
			h.MarketValue.InexactFloat64(),
			h.PnL.InexactFloat64(),
			h.PnLPercent.InexactFloat64(),
			h.AllocationPercent.InexactFloat64(),
		}
		if err := f.SetSheetRow(ValuationSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		if !h.PriceKnown {
			_ = f.AddComment(ValuationSheet, excelize.Comment{
				Cell:   fmt.Sprintf("G%d", row),
				Author: "stock-tracker",
				Text:   "price unavailable, valued at buy price",
			})
		}
		row++
	}

	row++
	totals := [][]any{
		{"total value", report.Valuation.TotalValue.InexactFloat64()},
		{"total cost", report.Valuation.TotalCost.InexactFloat64()},
		{"total P&L", report.Valuation.TotalPnL.InexactFloat64()},
		{"total P&L %", report.Valuation.TotalPnLPercent.InexactFloat64()},
	}
	for _, values := range totals {
		if err := f.SetSheetRow(ValuationSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		row++
	}

	return nil
}

func (g *XSLSXGenerator) fillCgtSheet(f *excelize.File, report model.PortfolioReport) error {
	if _, err := f.NewSheet(CgtSheet); err != nil {
		return err
	}

	if err := g.writeTitle(f, CgtSheet, "A1", "J1", "Capital gains tax", "#d9ead3"); err != nil {
		return err
	}

	headers := []string{"id", "ticker", "buy date", "days held", "cost basis", "market value", "capital gain", "discount eligible", "discounted gain", "days to discount"}
	if err := f.SetSheetRow(CgtSheet, "A2", &headers); err != nil {
		return err
	}

	row := 3
	for _, h := range report.Cgt.Holdings {
		eligible := "no"
		if h.EligibleForDiscount {
			eligible = "yes"
		}
		values := []any{
			h.HoldingID,
			h.Ticker,
			h.BuyDate.Format(dateLayout),
			h.DaysHeld,
			h.CostBasis.InexactFloat64(),
			h.MarketValue.InexactFloat64(),
			h.CapitalGain.InexactFloat64(),
			eligible,
			h.DiscountedGain.InexactFloat64(),
			h.CgtDaysRemaining,
		}
		if err := f.SetSheetRow(CgtSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		row++
	}

	row++
	totals := [][]any{
		{"total gains", report.Cgt.TotalGains.InexactFloat64()},
		{"total losses", report.Cgt.TotalLosses.InexactFloat64()},
		{"net gain", report.Cgt.NetGain.InexactFloat64()},
		{"discounted gain", report.Cgt.DiscountedGain.InexactFloat64()},
	}
	for _, values := range totals {
		if err := f.SetSheetRow(CgtSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		row++
	}

	return nil
}

func (g *XSLSXGenerator) writeTitle(f *excelize.File, sheet, from, to, title, color string) error {
	if err := f.MergeCell(sheet, from, to); err != nil {
		return err
	}

	if err := f.SetCellStr(sheet, from, title); err != nil {
		return err
	}

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheet, from, from, styleID); err != nil {
		return fmt.Errorf("apply title style: %w", err)
	}

	return nil
}
