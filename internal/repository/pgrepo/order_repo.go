package pgrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/repository/repoargs"
	"github.com/fsdevblog/groph-pay/pkg/uow"
)

const orderColumns = `id, created_at, updated_at, user_id, order_no, product_id, amount, channel, status, trade_no, paid_at`

type OrderRepository struct {
	conn uow.DBTX
}

func NewOrderRepository(conn uow.DBTX) *OrderRepository {
	return &OrderRepository{conn: conn}
}

func (o *OrderRepository) CreateOrder(ctx context.Context, args repoargs.OrderCreate) (*domain.Order, error) {
	row := o.conn.QueryRow(ctx, `
		INSERT INTO orders (order_no, user_id, product_id, amount, channel, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orderColumns,
		args.OrderNo, args.UserID, args.ProductID, args.Amount, args.Channel, domain.OrderStatusPending,
	)
	order, err := scanOrder(row)
	if err != nil {
		return nil, convertErr(err, "creating order with no `%s`", args.OrderNo)
	}
	return order, nil
}

func (o *OrderRepository) FindByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	row := o.conn.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_no = $1`, orderNo)
	order, err := scanOrder(row)
	if err != nil {
		return nil, convertErr(err, "finding order by no `%s`", orderNo)
	}
	return order, nil
}

// MarkPaid переводит заказ pending -> paid одним условным UPDATE. Возвращает итоговый заказ и
// признак того, что переход выполнен именно этим вызовом. Повторное уведомление по уже оплаченному
// заказу вернет (order, false, nil); перевод из статуса failed — domain.ErrInvalidStateTransition.
func (o *OrderRepository) MarkPaid(
	ctx context.Context,
	args repoargs.OrderMarkPaid,
) (*domain.Order, bool, error) {
	row := o.conn.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, trade_no = $3, paid_at = $4, updated_at = now()
		WHERE order_no = $1 AND status = $5
		RETURNING `+orderColumns,
		args.OrderNo, domain.OrderStatusPaid, args.TradeNo, args.PaidAt, domain.OrderStatusPending,
	)

	order, err := scanOrder(row)
	if err == nil {
		return order, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, convertErr(err, "marking order `%s` paid", args.OrderNo)
	}

	// Условие UPDATE не сработало: либо заказа нет, либо он уже в терминальном статусе.
	current, findErr := o.FindByOrderNo(ctx, args.OrderNo)
	if findErr != nil {
		return nil, false, findErr
	}
	if current.Status == domain.OrderStatusPaid {
		return current, false, nil
	}
	return nil, false, fmt.Errorf(
		"[repository/marking order `%s` paid] %w: current status %s",
		args.OrderNo, domain.ErrInvalidStateTransition, current.Status,
	)
}

// MarkFailed переводит заказ pending -> failed тем же условным UPDATE, что и MarkPaid.
func (o *OrderRepository) MarkFailed(ctx context.Context, orderNo string) (*domain.Order, bool, error) {
	row := o.conn.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE order_no = $1 AND status = $3
		RETURNING `+orderColumns,
		orderNo, domain.OrderStatusFailed, domain.OrderStatusPending,
	)

	order, err := scanOrder(row)
	if err == nil {
		return order, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, convertErr(err, "marking order `%s` failed", orderNo)
	}

	current, findErr := o.FindByOrderNo(ctx, orderNo)
	if findErr != nil {
		return nil, false, findErr
	}
	if current.Status == domain.OrderStatusFailed {
		return current, false, nil
	}
	return nil, false, fmt.Errorf(
		"[repository/marking order `%s` failed] %w: current status %s",
		orderNo, domain.ErrInvalidStateTransition, current.Status,
	)
}

// GetByUserID возвращает заказы юзера, отсортированные по дате создания по убыванию.
func (o *OrderRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := o.conn.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, convertErr(err, "getting orders by userID `%d`", userID)
	}
	return collectOrders(rows, "getting orders by userID %d", userID)
}

// GetPaidUncredited возвращает оплаченные заказы, по которым в журнале нет транзакции покупки.
// Это источник для фонового досчета: грант, упавший после оплаты, будет найден здесь.
func (o *OrderRepository) GetPaidUncredited(ctx context.Context, limit uint) ([]domain.Order, error) {
	rows, err := o.conn.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.status = $1
		  AND NOT EXISTS (
			SELECT 1 FROM credit_transactions t
			WHERE t.type = $2 AND t.reference_id = o.id::text
		  )
		ORDER BY o.paid_at
		LIMIT $3`,
		domain.OrderStatusPaid, domain.TransactionPurchase, int64(limit),
	)
	if err != nil {
		return nil, convertErr(err, "getting paid uncredited orders")
	}
	return collectOrders(rows, "getting paid uncredited orders")
}

func collectOrders(rows pgx.Rows, format string, formatArgs ...any) ([]domain.Order, error) {
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, format, formatArgs...)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, convertErr(err, format, formatArgs...)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.UserID,
		&order.OrderNo,
		&order.ProductID,
		&order.Amount,
		&order.Channel,
		&order.Status,
		&order.TradeNo,
		&order.PaidAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &order, nil
}
