package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/repository/repoargs"
	"github.com/fsdevblog/groph-pay/pkg/uow"
)

// PaymentService сводит недоверенное уведомление канала к начислению кредитов ровно один раз:
// проверка подписи -> условный переход заказа -> идемпотентное начисление.
type PaymentService struct {
	uow       uow.UOW
	orderRepo OrderRepository
	verifier  Verifier
	ledger    Ledger
	l         *logrus.Entry
}

func NewPaymentService(u uow.UOW, verifier Verifier, ledger Ledger, l *logrus.Logger) (*PaymentService, error) {
	orderRepo, err := uow.GetRepositoryAs[OrderRepository](u, uow.RepositoryName(repoargs.OrderRepoName))
	if err != nil {
		return nil, err
	}
	return &PaymentService{
		uow:       u,
		orderRepo: orderRepo,
		verifier:  verifier,
		ledger:    ledger,
		l: l.WithFields(logrus.Fields{
			"component": "payment",
			"module":    "service",
		}),
	}, nil
}

// HandleNotification обрабатывает вебхук платежного канала и возвращает тело подтверждения,
// которое канал ожидает в ответ.
//
// Алгоритм работы:
//  1. Проверка подписи. Отказ — никаких побочных эффектов.
//  2. Разбор уведомления. Статус не-успеха без признака отказа — подтверждаем без побочных
//     эффектов; явный отказ канала переводит заказ pending -> failed (условно, идемпотентно).
//  3. Переход pending -> paid одним условным UPDATE в своей транзакции. Неизвестный order_no —
//     отказ: заказы из недоверенного ввода не создаются. Повторное уведомление по оплаченному
//     заказу возвращает transitioned=false и просто подтверждается.
//  4. Расхождение оплаченной суммы с суммой заказа пишется в лог как аномалия, оплате верим
//     по фактической сумме.
//  5. Если переход выполнен — начисление кредитов по курсу от оплаченной суммы отдельной
//     транзакцией. Ошибка начисления не блокирует подтверждение: заказ уже оплачен, фоновый
//     досчет (sweep) повторит начисление по тому же ключу идемпотентности.
func (s *PaymentService) HandleNotification(
	ctx context.Context,
	channel domain.PaymentChannel,
	params map[string]string,
) (string, error) {
	scheme, schemeErr := s.verifier.Get(channel)
	if schemeErr != nil {
		return "", schemeErr //nolint:wrapcheck
	}

	if verifyErr := scheme.Verify(params); verifyErr != nil {
		return "", verifyErr //nolint:wrapcheck
	}

	notification, parseErr := scheme.Notification(params)
	if parseErr != nil {
		return "", parseErr //nolint:wrapcheck
	}
	if notification.OrderNo == "" {
		return "", fmt.Errorf("handling %s notification: %w", channel, domain.ErrRecordNotFound)
	}

	if !notification.Succeeded {
		if notification.Failed {
			if err := s.markFailed(ctx, notification.OrderNo); err != nil {
				return "", err
			}
		}
		return scheme.Ack(), nil
	}

	order, transitioned, paidErr := s.markPaid(ctx, notification)
	if paidErr != nil {
		if errors.Is(paidErr, domain.ErrInvalidStateTransition) {
			s.l.WithFields(logrus.Fields{
				"orderNo": notification.OrderNo,
				"channel": channel,
			}).WithError(paidErr).Error("invalid order state transition")
		}
		return "", paidErr
	}

	if !order.Amount.Equal(notification.PaidAmount) {
		mismatch := &domain.AmountMismatchError{
			OrderNo:    order.OrderNo,
			Expected:   order.Amount,
			PaidAmount: notification.PaidAmount,
		}
		s.l.WithFields(logrus.Fields{
			"orderNo":    order.OrderNo,
			"channel":    channel,
			"orderSum":   order.Amount.String(),
			"paidAmount": notification.PaidAmount.String(),
		}).Error(mismatch.Error())
	}

	if transitioned {
		if grantErr := s.grant(ctx, order, notification.PaidAmount); grantErr != nil {
			// Заказ оплачен и зафиксирован, подтверждение каналу уходит в любом случае:
			// недосчитанное начисление подберет фоновый sweep.
			s.l.WithFields(logrus.Fields{
				"orderNo": order.OrderNo,
				"userID":  order.UserID,
			}).WithError(grantErr).Error("order paid but credits grant failed, sweep will retry")
		}
	}

	return scheme.Ack(), nil
}

// PaidUncredited возвращает оплаченные заказы без транзакции покупки в журнале.
func (s *PaymentService) PaidUncredited(ctx context.Context, limit uint) ([]domain.Order, error) {
	orders, err := s.orderRepo.GetPaidUncredited(ctx, limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return orders, nil
}

// GrantForOrder повторяет начисление за оплаченный заказ. Используется фоновым досчетом;
// благодаря ключу идемпотентности безопасен наперегонки с живой обработкой вебхука.
func (s *PaymentService) GrantForOrder(ctx context.Context, order domain.Order) error {
	return s.grant(ctx, &order, order.Amount)
}

func (s *PaymentService) grant(ctx context.Context, order *domain.Order, paidAmount decimal.Decimal) error {
	return s.ledger.Grant(ctx, GrantArgs{
		UserID:      order.UserID,
		Amount:      CreditsForAmount(paidAmount),
		Type:        domain.TransactionPurchase,
		Description: fmt.Sprintf("purchase %s (order %s)", order.ProductID, order.OrderNo),
		ReferenceID: strconv.FormatInt(order.ID, 10),
	})
}

func (s *PaymentService) markPaid(
	ctx context.Context,
	notification *domain.PaymentNotification,
) (*domain.Order, bool, error) {
	var order *domain.Order
	var transitioned bool

	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[OrderRepository](tx, uow.RepositoryName(repoargs.OrderRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		var markErr error
		order, transitioned, markErr = repo.MarkPaid(c, repoargs.OrderMarkPaid{
			OrderNo: notification.OrderNo,
			TradeNo: notification.TradeNo,
			PaidAt:  time.Now().UTC(),
		})
		return markErr //nolint:wrapcheck
	})

	if txErr != nil {
		return nil, false, fmt.Errorf("marking order `%s` paid: %w", notification.OrderNo, txErr)
	}
	return order, transitioned, nil
}

func (s *PaymentService) markFailed(ctx context.Context, orderNo string) error {
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[OrderRepository](tx, uow.RepositoryName(repoargs.OrderRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		_, _, markErr := repo.MarkFailed(c, orderNo)
		return markErr //nolint:wrapcheck
	})

	if txErr != nil {
		return fmt.Errorf("marking order `%s` failed: %w", orderNo, txErr)
	}
	return nil
}
