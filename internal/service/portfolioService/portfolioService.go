package portfolioService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nthewara88agent/stock-tracker/data/repository"
	"github.com/nthewara88agent/stock-tracker/internal/engine/cgtEngine"
	"github.com/nthewara88agent/stock-tracker/internal/engine/valuationEngine"
	"github.com/nthewara88agent/stock-tracker/internal/metrics"
	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/nthewara88agent/stock-tracker/internal/service"
	"github.com/nthewara88agent/stock-tracker/utils"
	"github.com/shopspring/decimal"
)

const snapshotPersistTimeout = 5 * time.Second

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
	InsertUser(ctx context.Context, chatID int64) (userID int64, err error)
	GetUserID(ctx context.Context, chatID int64) (userID int64, err error)
	InsertHolding(ctx context.Context, userID int64, holding model.Holding) (holdingID int64, err error)
	DeleteHolding(ctx context.Context, userID, holdingID int64) error
	GetHoldings(ctx context.Context, userID int64) ([]model.Holding, error)
	GetDistinctTickers(ctx context.Context) ([]string, error)
}

type PriceCache interface {
	Resolve(ctx context.Context, tickers []string) map[string]decimal.Decimal
	Refresh(ctx context.Context, tickers []string) (map[string]model.PriceEntry, error)
	Load(entries map[string]model.PriceEntry) int
}

type PriceSnapshot interface {
	SetPrices(ctx context.Context, entries map[string]model.PriceEntry) error
	GetPrices(ctx context.Context, tickers []string) (map[string]model.PriceEntry, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.PortfolioReport) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

type PortfolioService struct {
	repo            Repository
	priceCache      PriceCache
	snapshot        PriceSnapshot
	reportGenerator ReportGenerator
	cloudStorage    CloudStorage
	clock           clockwork.Clock
}

func New(
	repo Repository,
	priceCache PriceCache,
	snapshot PriceSnapshot,
	reportGenerator ReportGenerator,
	cloudStorage CloudStorage,
	clock clockwork.Clock,
) *PortfolioService {
	return &PortfolioService{
		repo:            repo,
		priceCache:      priceCache,
		snapshot:        snapshot,
		reportGenerator: reportGenerator,
		cloudStorage:    cloudStorage,
		clock:           clock,
	}
}

func (s *PortfolioService) RegUser(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RegUser"

	slog.Debug("RegUser start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("RegUser finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	_, err := s.repo.InsertUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil
		}
		slog.Error("got error from repo.InsertUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *PortfolioService) getUserID(ctx context.Context, chatID int64) (int64, error) {
	userID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, service.ErrUserNotRegistered
		}
		return 0, err
	}
	return userID, nil
}

func (s *PortfolioService) validateHolding(holding model.Holding) error {
	switch {
	case holding.Ticker == "":
		return fmt.Errorf("%w: empty ticker", service.ErrInvalidHolding)
	case !holding.Quantity.IsPositive():
		return fmt.Errorf("%w: quantity must be positive", service.ErrInvalidHolding)
	case holding.BuyPrice.IsNegative():
		return fmt.Errorf("%w: buy price must not be negative", service.ErrInvalidHolding)
	case holding.Brokerage.IsNegative():
		return fmt.Errorf("%w: brokerage must not be negative", service.ErrInvalidHolding)
	case holding.BuyDate.IsZero():
		return fmt.Errorf("%w: buy date is required", service.ErrInvalidHolding)
	case holding.BuyDate.Before(model.MinBuyDate):
		return fmt.Errorf("%w: buy date is before %s", service.ErrInvalidHolding, model.MinBuyDate.Format(time.DateOnly))
	case holding.BuyDate.After(s.clock.Now()):
		return fmt.Errorf("%w: buy date is in the future", service.ErrInvalidHolding)
	}
	return nil
}

func (s *PortfolioService) AddHolding(ctx context.Context, chatID int64, holding model.Holding) (model.Holding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.AddHolding"

	holding.Ticker = model.NormalizeTicker(holding.Ticker)

	slog.Debug("AddHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", holding.Ticker))
	defer func() {
		slog.Debug("AddHolding finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", holding.Ticker))
	}()

	if err := s.validateHolding(holding); err != nil {
		return model.Holding{}, err
	}

	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		userID, err := s.getUserID(ctx, chatID)
		if err != nil {
			return err
		}

		holding.UserID = userID
		holding.ID, err = s.repo.InsertHolding(ctx, userID, holding)
		if errors.Is(err, repository.ErrConstraint) {
			return fmt.Errorf("%w: %w", service.ErrInvalidHolding, err)
		}
		return err
	})
	if err != nil {
		slog.Error("can't add holding", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Holding{}, err
	}

	return holding, nil
}

func (s *PortfolioService) RemoveHolding(ctx context.Context, chatID, holdingID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RemoveHolding"

	slog.Debug("RemoveHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("holdingID", holdingID))
	defer func() {
		slog.Debug("RemoveHolding finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("holdingID", holdingID))
	}()

	userID, err := s.getUserID(ctx, chatID)
	if err != nil {
		return err
	}

	err = s.repo.DeleteHolding(ctx, userID, holdingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from repo.DeleteHolding", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *PortfolioService) GetHoldings(ctx context.Context, chatID int64) ([]model.Holding, error) {
	userID, err := s.getUserID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	return s.repo.GetHoldings(ctx, userID)
}

// pricedPortfolio loads the holdings of chatID and resolves a price for
// every ticker it can. Unresolved tickers are simply absent from prices.
func (s *PortfolioService) pricedPortfolio(ctx context.Context, chatID int64) ([]model.Holding, map[string]decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.pricedPortfolio"

	holdings, err := s.GetHoldings(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}

	tickers := model.DistinctTickers(holdings)
	prices := s.priceCache.Resolve(ctx, tickers)

	if len(prices) < len(tickers) {
		slog.Warn(
			"some prices are unknown, falling back to buy price",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.Int("tickers", len(tickers)),
			slog.Int("resolved", len(prices)),
		)
	}

	return holdings, prices, nil
}

func (s *PortfolioService) GetPortfolioSummary(ctx context.Context, chatID int64) (model.PortfolioValuation, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetPortfolioSummary"

	slog.Debug("GetPortfolioSummary start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GetPortfolioSummary finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	holdings, prices, err := s.pricedPortfolio(ctx, chatID)
	if err != nil {
		return model.PortfolioValuation{}, err
	}

	return valuationEngine.Summarize(holdings, prices), nil
}

func (s *PortfolioService) GetCgtReport(ctx context.Context, chatID int64) (model.CgtReport, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetCgtReport"

	slog.Debug("GetCgtReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GetCgtReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	holdings, prices, err := s.pricedPortfolio(ctx, chatID)
	if err != nil {
		return model.CgtReport{}, err
	}

	return cgtEngine.Calculate(model.PriceHoldings(holdings, prices), s.clock.Now()), nil
}

// ExportReport builds the valuation and CGT workbook for chatID, uploads it
// and returns a link to it.
func (s *PortfolioService) ExportReport(ctx context.Context, chatID int64) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ExportReport"

	slog.Debug("ExportReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("ExportReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	holdings, prices, err := s.pricedPortfolio(ctx, chatID)
	if err != nil {
		return "", err
	}

	if len(holdings) == 0 {
		return "", service.ErrEmptyPortfolio
	}

	now := s.clock.Now()
	report := model.PortfolioReport{
		GeneratedAt: now,
		Valuation:   valuationEngine.Summarize(holdings, prices),
		Cgt:         cgtEngine.Calculate(model.PriceHoldings(holdings, prices), now),
	}

	fileBytes, ext, err := s.reportGenerator.Generate(ctx, report)
	if err != nil {
		slog.Error("got error from reportGenerator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	filename := fmt.Sprintf("portfolio_%d_%s%s", chatID, now.Format("20060102_150405"), ext)

	downloadLink, err = s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	return downloadLink, nil
}

// RefreshPrices is the body of the background refresh loop: it re-fetches
// every held ticker and persists what it got. Individual fetch failures are
// logged, only a failure to list the tickers is returned.
func (s *PortfolioService) RefreshPrices(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RefreshPrices"

	tickers, err := s.repo.GetDistinctTickers(ctx)
	if err != nil {
		metrics.PriceRefreshCycles.WithLabelValues(metrics.ResultFailure).Inc()
		return fmt.Errorf("get distinct tickers: %w", err)
	}

	entries, err := s.priceCache.Refresh(ctx, tickers)
	switch {
	case err != nil && ctx.Err() != nil:
		slog.Info("price refresh cancelled", slog.String("rqID", rqID), slog.String("op", op), slog.Int("refreshed", len(entries)))
	case err != nil:
		metrics.PriceRefreshCycles.WithLabelValues(metrics.ResultFailure).Inc()
		slog.Warn("price refresh partially failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	default:
		metrics.PriceRefreshCycles.WithLabelValues(metrics.ResultSuccess).Inc()
	}

	if len(entries) > 0 {
		// entries fetched before a cancel are already cached in memory, keep the snapshot in step
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotPersistTimeout)
		defer cancel()
		if err = s.snapshot.SetPrices(persistCtx, entries); err != nil {
			slog.Error("can't persist price snapshot", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}

	slog.Info("prices refreshed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("tickers", len(tickers)), slog.Int("refreshed", len(entries)))

	return nil
}

// WarmPriceCache seeds the price cache from the persisted snapshot so the
// first requests after a restart do not all go upstream.
func (s *PortfolioService) WarmPriceCache(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.WarmPriceCache"

	tickers, err := s.repo.GetDistinctTickers(ctx)
	if err != nil {
		return fmt.Errorf("get distinct tickers: %w", err)
	}

	entries, err := s.snapshot.GetPrices(ctx, tickers)
	if err != nil {
		return fmt.Errorf("get price snapshot: %w", err)
	}

	loaded := s.priceCache.Load(entries)

	slog.Info("price cache warmed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("tickers", len(tickers)), slog.Int("loaded", loaded))

	return nil
}

func (s *PortfolioService) DeleteOldReports(ctx context.Context) error {
	return s.cloudStorage.DeleteOldFiles(ctx)
}
