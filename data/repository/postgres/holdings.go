package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/nthewara88agent/stock-tracker/data/repository"
	"github.com/nthewara88agent/stock-tracker/internal/converter/dbConverter"
	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/nthewara88agent/stock-tracker/internal/model/dbModel"
	"github.com/nthewara88agent/stock-tracker/utils"
)

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

func (r *Postgres) InsertUser(ctx context.Context, chatID int64) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO users(chat_id) VALUES($1) RETURNING user_id`

	slog.Debug("InsertUser start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
			slog.Error("InsertUser failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertUser completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, chatID).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, repository.ErrAlreadyExists
		}
		return 0, err
	}

	return userID, nil
}

func (r *Postgres) GetUserID(ctx context.Context, chatID int64) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT user_id FROM users WHERE chat_id = $1`

	slog.Debug("GetUserID start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetUserID failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetUserID completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).GetContext(ctx, &userID, query, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}

	return userID, nil
}

func (r *Postgres) InsertHolding(ctx context.Context, userID int64, holding model.Holding) (holdingID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO holdings(user_id, ticker, buy_date, quantity, buy_price, brokerage)
		VALUES($1, $2, $3, $4, $5, $6)
		RETURNING holding_id
		`

	slog.Debug("InsertHolding start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertHolding failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertHolding completed", slog.String("rqID", rqID), slog.Int64("holdingID", holdingID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(
		ctx,
		query,
		userID,
		model.NormalizeTicker(holding.Ticker),
		holding.BuyDate,
		holding.Quantity,
		holding.BuyPrice,
		holding.Brokerage,
	).Scan(&holdingID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
			return 0, fmt.Errorf("%w: %s", repository.ErrConstraint, pgErr.ConstraintName)
		}
		return 0, err
	}

	return holdingID, nil
}

func (r *Postgres) DeleteHolding(ctx context.Context, userID, holdingID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `DELETE FROM holdings WHERE user_id = $1 AND holding_id = $2`

	slog.Debug("DeleteHolding start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("DeleteHolding failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteHolding completed", slog.String("rqID", rqID))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, userID, holdingID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *Postgres) GetHoldings(ctx context.Context, userID int64) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT holding_id, user_id, ticker, buy_date, quantity, buy_price, brokerage, dt_create
		FROM holdings
		WHERE user_id = $1
		ORDER BY ticker, buy_date, holding_id
		`

	slog.Debug("GetHoldings start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetHoldings failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHoldings completed", slog.String("rqID", rqID), slog.Int("count", len(holdings)))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var holding dbModel.Holding
		err = rows.StructScan(&holding)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, dbConverter.ConvertHolding(holding))
	}

	return holdings, rows.Err()
}

// GetDistinctTickers returns every ticker held by any user.
func (r *Postgres) GetDistinctTickers(ctx context.Context) (tickers []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT DISTINCT ticker FROM holdings ORDER BY ticker`

	slog.Debug("GetDistinctTickers start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetDistinctTickers failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetDistinctTickers completed", slog.String("rqID", rqID), slog.Int("count", len(tickers)))
		}
	}()

	err = r.txOrDb(ctx).SelectContext(ctx, &tickers, query)
	if err != nil {
		return nil, err
	}

	return tickers, nil
}
