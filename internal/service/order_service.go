package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/repository/repoargs"
	"github.com/fsdevblog/groph-pay/pkg/uow"
)

type OrderService struct {
	uow       uow.UOW
	orderRepo OrderRepository
}

func NewOrderService(u uow.UOW) (*OrderService, error) {
	orderRepo, err := uow.GetRepositoryAs[OrderRepository](u, uow.RepositoryName(repoargs.OrderRepoName))
	if err != nil {
		return nil, err
	}
	return &OrderService{
		uow:       u,
		orderRepo: orderRepo,
	}, nil
}

// Checkout создает заказ в статусе pending: это единственная точка входа заказа в систему,
// вебхук заказы не создает. Сумма берется из каталога продуктов.
func (o *OrderService) Checkout(
	ctx context.Context,
	userID int64,
	productID string,
	channel domain.PaymentChannel,
) (*domain.Order, error) {
	product, productErr := ProductByID(productID)
	if productErr != nil {
		return nil, productErr
	}

	order, createErr := o.orderRepo.CreateOrder(ctx, repoargs.OrderCreate{
		OrderNo:   newOrderNo(),
		UserID:    userID,
		ProductID: product.ID,
		Amount:    product.Price,
		Channel:   channel,
	})
	if createErr != nil {
		return nil, fmt.Errorf("checkout for user %d: %w", userID, createErr)
	}
	return order, nil
}

// GetByUserID возвращает заказы юзера, отсортированные по дате создания по убыванию.
func (o *OrderService) GetByUserID(ctx context.Context, userID int64) ([]domain.Order, error) {
	orders, err := o.orderRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return orders, nil
}

// newOrderNo генерирует человекочитаемый номер заказа: дата + случайный суффикс.
// Уникальность окончательно гарантирует индекс по order_no.
func newOrderNo() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	return time.Now().UTC().Format("20060102150405") + suffix
}
