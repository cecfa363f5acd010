package sweep

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/groph-pay/internal/domain"
)

type Servicer interface {
	PaidUncredited(ctx context.Context, limit uint) ([]domain.Order, error)
	GrantForOrder(ctx context.Context, order domain.Order) error
}
