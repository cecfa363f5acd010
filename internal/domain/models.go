package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    int64
	OrderNo   string
	ProductID string
	Amount    decimal.Decimal
	Channel   PaymentChannel
	Status    OrderStatusType
	TradeNo   string
	PaidAt    *time.Time
}

type CreditAccount struct {
	UserID      int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Balance     int64
	TotalEarned int64
	TotalSpent  int64
}

type CreditTransaction struct {
	ID          int64
	CreatedAt   time.Time
	UserID      int64
	Amount      int64
	Type        TransactionType
	Description string
	ReferenceID string
}

type ReferralEdge struct {
	ID             int64
	CreatedAt      time.Time
	ReferrerID     int64
	RefereeID      int64
	Code           string
	ReferrerReward int64
	RefereeReward  int64
	Status         ReferralStatusType
	CompletedAt    *time.Time
}

type ReferralCode struct {
	UserID    int64
	CreatedAt time.Time
	Code      string
}

// PaymentNotification нормализованное уведомление платежного канала. Живет только на время
// обработки вебхука и в БД не сохраняется.
type PaymentNotification struct {
	OrderNo string
	TradeNo string
	// Succeeded платеж прошел; Failed канал явно сообщил об отказе/закрытии. Статусы ожидания
	// не выставляют ни того ни другого — такие уведомления подтверждаются без побочных эффектов.
	Succeeded  bool
	Failed     bool
	PaidAmount decimal.Decimal
}
