package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Holding struct {
	HoldingID int64           `db:"holding_id"`
	UserID    int64           `db:"user_id"`
	Ticker    string          `db:"ticker"`
	BuyDate   time.Time       `db:"buy_date"`
	Quantity  decimal.Decimal `db:"quantity"`
	BuyPrice  decimal.Decimal `db:"buy_price"`
	Brokerage decimal.Decimal `db:"brokerage"`
	DtCreate  time.Time       `db:"dt_create"`
}
