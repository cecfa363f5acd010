package repoargs

import (
	"time"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/shopspring/decimal"
)

type OrderCreate struct {
	OrderNo   string
	UserID    int64
	ProductID string
	Amount    decimal.Decimal
	Channel   domain.PaymentChannel
}

type OrderMarkPaid struct {
	OrderNo string
	TradeNo string
	PaidAt  time.Time
}
