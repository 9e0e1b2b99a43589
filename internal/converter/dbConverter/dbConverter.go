package dbConverter

import (
	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/nthewara88agent/stock-tracker/internal/model/dbModel"
)

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	return model.Holding{
		ID:        dbHolding.HoldingID,
		UserID:    dbHolding.UserID,
		Ticker:    model.NormalizeTicker(dbHolding.Ticker),
		BuyDate:   dbHolding.BuyDate,
		Quantity:  dbHolding.Quantity,
		BuyPrice:  dbHolding.BuyPrice,
		Brokerage: dbHolding.Brokerage,
	}
}
