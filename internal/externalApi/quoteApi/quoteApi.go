package quoteApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/nthewara88agent/stock-tracker/config"
	"github.com/nthewara88agent/stock-tracker/internal/externalApi"
	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/nthewara88agent/stock-tracker/internal/model/quoteModel"
	"github.com/nthewara88agent/stock-tracker/utils"
	"github.com/shopspring/decimal"
)

const chartUrl = "/v8/finance/chart/{symbol}"

type QuoteApi struct {
	client       *resty.Client
	tickerSuffix string
}

func New(cfg *config.Config) *QuoteApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.QuoteApi.Url).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; stock-tracker/1.0)")
	return &QuoteApi{client: client, tickerSuffix: cfg.API.QuoteApi.TickerSuffix}
}

// FetchLatest returns the latest market price for ticker. Every failure
// wraps externalApi.ErrPriceUnavailable.
func (a *QuoteApi) FetchLatest(ctx context.Context, ticker string) (decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "QuoteApi.FetchLatest"
	symbol := model.NormalizeTicker(ticker) + a.tickerSuffix

	slog.Debug("start QuoteApi.FetchLatest request", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{
			"interval": "1d",
			"range":    "1d",
		}).
		Get(chartUrl)

	if err != nil {
		slog.Error("error while dialing QuoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Decimal{}, fmt.Errorf("%w: %w", externalApi.ErrPriceUnavailable, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		slog.Warn("symbol not found in QuoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
		return decimal.Decimal{}, fmt.Errorf("%w: %w: %s", externalApi.ErrPriceUnavailable, externalApi.ErrNotFound, symbol)
	}

	if resp.IsError() {
		slog.Error("unexpected status from QuoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		return decimal.Decimal{}, fmt.Errorf("%w: status %d", externalApi.ErrPriceUnavailable, resp.StatusCode())
	}

	chart := quoteModel.ChartResponse{}
	err = json.Unmarshal(resp.Body(), &chart)
	if err != nil {
		slog.Error("can't unmarshall response into quoteModel.ChartResponse", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Decimal{}, fmt.Errorf("%w: %w", externalApi.ErrPriceUnavailable, err)
	}

	price, err := a.parseChart(chart)
	if err != nil {
		slog.Error("can't parse chart", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Decimal{}, fmt.Errorf("%w: %w", externalApi.ErrPriceUnavailable, err)
	}

	slog.Debug("QuoteApi.FetchLatest request complete", slog.String("rqID", rqID), slog.String("op", op), slog.String("price", price.String()))

	return price, nil
}

func (a *QuoteApi) parseChart(chart quoteModel.ChartResponse) (decimal.Decimal, error) {
	if chart.Chart.Error != nil {
		return decimal.Decimal{}, fmt.Errorf("chart error %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}

	if len(chart.Chart.Result) == 0 {
		return decimal.Decimal{}, errors.New("empty chart result")
	}

	price := chart.Chart.Result[0].Meta.RegularMarketPrice
	if price == nil {
		return decimal.Decimal{}, errors.New("regularMarketPrice is missing")
	}

	if !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("invalid regularMarketPrice %s", price.String())
	}

	return *price, nil
}
