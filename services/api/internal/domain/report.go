package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyRevenue is the revenue of non-cancelled orders created on Date (UTC day).
type DailyRevenue struct {
	Date    time.Time
	Revenue decimal.Decimal
}
