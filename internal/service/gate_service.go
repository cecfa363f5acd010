package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fsdevblog/groph-pay/internal/domain"
)

// GateService шлюз вокруг метеризуемых внешних вызовов: списание до вызова, возврат при
// неудаче вызова. Порядок принципиален — сначала дебет, потом дорогая операция, иначе юзер
// может уйти в минус, пока вызов в полете.
type GateService struct {
	ledger Ledger
	l      *logrus.Entry
}

func NewGateService(ledger Ledger, l *logrus.Logger) *GateService {
	return &GateService{
		ledger: ledger,
		l: l.WithFields(logrus.Fields{
			"component": "gate",
			"module":    "service",
		}),
	}
}

// Charge списывает стоимость вызова до его выполнения. При нехватке кредитов возвращает
// domain.ErrNotEnoughCredits — вызов выполнять нельзя.
func (g *GateService) Charge(ctx context.Context, userID int64, cost int64, callID string) error {
	return g.ledger.Spend(ctx, SpendArgs{
		UserID:      userID,
		Amount:      cost,
		Description: fmt.Sprintf("metered call %s", callID),
		ReferenceID: callID,
	})
}

// RefundFailure возвращает списанную стоимость после неудачного вызова. Идемпотентен
// по callID: повторный возврат за тот же вызов не задвоится.
func (g *GateService) RefundFailure(ctx context.Context, userID int64, cost int64, callID string) error {
	return g.ledger.Grant(ctx, GrantArgs{
		UserID:      userID,
		Amount:      cost,
		Type:        domain.TransactionRefund,
		Description: fmt.Sprintf("refund for failed call %s", callID),
		ReferenceID: callID,
	})
}

// WithCredits выполняет fn под защитой баланса: дебет до вызова, возврат при ошибке вызова.
func (g *GateService) WithCredits(
	ctx context.Context,
	userID int64,
	cost int64,
	callID string,
	fn func(context.Context) error,
) error {
	if chargeErr := g.Charge(ctx, userID, cost, callID); chargeErr != nil {
		return chargeErr
	}

	if callErr := fn(ctx); callErr != nil {
		if refundErr := g.RefundFailure(ctx, userID, cost, callID); refundErr != nil {
			// Возврат не прошел: фиксируем в логе, повтор возможен по тому же callID.
			g.l.WithFields(logrus.Fields{
				"userID": userID,
				"callID": callID,
				"cost":   cost,
			}).WithError(refundErr).Error("refund after failed metered call did not go through")
		}
		return fmt.Errorf("metered call %s: %w", callID, callErr)
	}
	return nil
}
