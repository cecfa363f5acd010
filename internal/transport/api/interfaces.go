package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/groph-pay/internal/domain"
)

type OrderServicer interface {
	Checkout(ctx context.Context, userID int64, productID string, channel domain.PaymentChannel) (*domain.Order, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Order, error)
}

type PaymentServicer interface {
	HandleNotification(ctx context.Context, channel domain.PaymentChannel, params map[string]string) (string, error)
}

type BalanceServicer interface {
	Balance(ctx context.Context, userID int64) (*domain.CreditAccount, error)
	Transactions(ctx context.Context, userID int64) ([]domain.CreditTransaction, error)
}

type ReferralServicer interface {
	EnsureCode(ctx context.Context, userID int64) (*domain.ReferralCode, error)
	Process(ctx context.Context, newUserID int64, code string) (*domain.ReferralEdge, error)
}

type MeterServicer interface {
	WithCredits(ctx context.Context, userID int64, cost int64, callID string, fn func(context.Context) error) error
}

// Generator внешний сервис генерации; ledger только шлюзует его вызовы через баланс.
type Generator interface {
	Generate(ctx context.Context, userID int64, prompt string) (string, error)
}
