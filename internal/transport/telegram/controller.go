package telegram

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/nthewara88agent/stock-tracker/internal/converter/telebotConverter"
	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/nthewara88agent/stock-tracker/internal/service"
	"github.com/nthewara88agent/stock-tracker/utils"
	tele "gopkg.in/telebot.v4"
)

const (
	internalErrMsg      = "something went wrong, please try again later"
	notRegisteredErrMsg = "send /start first"
)

type PortfolioService interface {
	RegUser(ctx context.Context, chatID int64) error
	AddHolding(ctx context.Context, chatID int64, holding model.Holding) (model.Holding, error)
	RemoveHolding(ctx context.Context, chatID, holdingID int64) error
	GetHoldings(ctx context.Context, chatID int64) ([]model.Holding, error)
	GetPortfolioSummary(ctx context.Context, chatID int64) (model.PortfolioValuation, error)
	GetCgtReport(ctx context.Context, chatID int64) (model.CgtReport, error)
	ExportReport(ctx context.Context, chatID int64) (downloadLink string, err error)
}

type Controller struct {
	portfolioService PortfolioService
	clock            clockwork.Clock
}

func NewController(portfolioService PortfolioService, clock clockwork.Clock) *Controller {
	return &Controller{
		portfolioService: portfolioService,
		clock:            clock,
	}
}

// replyErr maps service errors to user facing replies.
func (ctrl *Controller) replyErr(ctx context.Context, c tele.Context, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrUserNotRegistered):
		return c.Send(notRegisteredErrMsg)
	case errors.Is(err, service.ErrInvalidHolding), errors.Is(err, telebotConverter.ErrInvalidArgs):
		return c.Send(err.Error())
	case errors.Is(err, service.ErrNotFound):
		return c.Send("holding not found")
	case errors.Is(err, service.ErrEmptyPortfolio):
		return c.Send("nothing to export, add a holding first")
	}

	slog.Error("request failed", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("op", op), slog.String("err", err.Error()))
	return c.Send(internalErrMsg)
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	if err := ctrl.portfolioService.RegUser(ctx, c.Chat().ID); err != nil {
		return ctrl.replyErr(ctx, c, "Controller.Start", err)
	}
	return c.Send("Hello! Track your shares with " + telebotConverter.AddHoldingUsage +
		"\nthen use /summary, /cgt, /holdings, /remove ID or /report.")
}

func (ctrl *Controller) AddHolding(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	op := "Controller.AddHolding"

	holding, err := telebotConverter.ParseAddHoldingArgs(c.Args(), ctrl.clock.Now())
	if err != nil {
		return c.Send(err.Error() + "\n" + telebotConverter.AddHoldingUsage)
	}

	holding, err = ctrl.portfolioService.AddHolding(ctx, c.Chat().ID, holding)
	if err != nil {
		return ctrl.replyErr(ctx, c, op, err)
	}

	return c.Send(telebotConverter.HoldingAddedResponse(holding))
}

func (ctrl *Controller) RemoveHolding(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	op := "Controller.RemoveHolding"

	holdingID, err := telebotConverter.ParseHoldingID(c.Args())
	if err != nil {
		return ctrl.replyErr(ctx, c, op, err)
	}

	if err = ctrl.portfolioService.RemoveHolding(ctx, c.Chat().ID, holdingID); err != nil {
		return ctrl.replyErr(ctx, c, op, err)
	}

	return c.Send("🗑 removed")
}

func (ctrl *Controller) Holdings(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	holdings, err := ctrl.portfolioService.GetHoldings(ctx, c.Chat().ID)
	if err != nil {
		return ctrl.replyErr(ctx, c, "Controller.Holdings", err)
	}

	return c.Send(telebotConverter.HoldingsResponse(holdings))
}

func (ctrl *Controller) Summary(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	summary, err := ctrl.portfolioService.GetPortfolioSummary(ctx, c.Chat().ID)
	if err != nil {
		return ctrl.replyErr(ctx, c, "Controller.Summary", err)
	}

	return c.Send(telebotConverter.SummaryResponse(summary))
}

func (ctrl *Controller) Cgt(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	report, err := ctrl.portfolioService.GetCgtReport(ctx, c.Chat().ID)
	if err != nil {
		return ctrl.replyErr(ctx, c, "Controller.Cgt", err)
	}

	return c.Send(telebotConverter.CgtResponse(report))
}

func (ctrl *Controller) Report(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	_ = c.Notify(tele.UploadingDocument)

	link, err := ctrl.portfolioService.ExportReport(ctx, c.Chat().ID)
	if err != nil {
		return ctrl.replyErr(ctx, c, "Controller.Report", err)
	}

	return c.Send("📎 Your report: " + link)
}
