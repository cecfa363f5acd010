package service

import (
	"context"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/repository/repoargs"
	"github.com/fsdevblog/groph-pay/internal/service/paysign"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type OrderRepository interface {
	CreateOrder(ctx context.Context, args repoargs.OrderCreate) (*domain.Order, error)
	FindByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error)
	MarkPaid(ctx context.Context, args repoargs.OrderMarkPaid) (*domain.Order, bool, error)
	MarkFailed(ctx context.Context, orderNo string) (*domain.Order, bool, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Order, error)
	GetPaidUncredited(ctx context.Context, limit uint) ([]domain.Order, error)
}

type CreditRepository interface {
	CreateTransaction(ctx context.Context, args repoargs.TransactionCreate) (*domain.CreditTransaction, bool, error)
	Credit(ctx context.Context, userID int64, amount int64) (*domain.CreditAccount, error)
	Debit(ctx context.Context, userID int64, amount int64) (*domain.CreditAccount, error)
	GetAccount(ctx context.Context, userID int64) (*domain.CreditAccount, error)
	GetTransactions(ctx context.Context, userID int64) ([]domain.CreditTransaction, error)
}

type ReferralRepository interface {
	CreateCode(ctx context.Context, userID int64, code string) (*domain.ReferralCode, error)
	FindCodeByUserID(ctx context.Context, userID int64) (*domain.ReferralCode, error)
	FindCodeOwner(ctx context.Context, code string) (int64, error)
	CreateEdge(ctx context.Context, args repoargs.ReferralEdgeCreate) (*domain.ReferralEdge, bool, error)
	FindEdgeByRefereeID(ctx context.Context, refereeID int64) (*domain.ReferralEdge, error)
}

// Verifier реестр схем подписи платежных каналов.
type Verifier interface {
	Get(channel domain.PaymentChannel) (paysign.Scheme, error)
}

// Ledger операции журнала кредитов. Реализуется CreditService; интерфейс нужен потребителям
// (PaymentService, ReferralService, GateService) и их мокам.
type Ledger interface {
	Grant(ctx context.Context, args GrantArgs) error
	Spend(ctx context.Context, args SpendArgs) error
}
