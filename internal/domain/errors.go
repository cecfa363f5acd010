package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrUnknown        = errors.New("unknown error")

	ErrNotEnoughCredits = errors.New("not enough credits")
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrInvalidStateTransition возвращается при попытке перевести заказ из терминального
	// статуса. Появление этой ошибки в обработке вебхука означает либо подмену данных, либо баг.
	ErrInvalidStateTransition = errors.New("invalid order state transition")
)

// AmountMismatchError расхождение между суммой заказа и суммой, которую канал объявил оплаченной.
// Не прерывает обработку уведомления, но обязана попасть в лог как аномалия.
type AmountMismatchError struct {
	OrderNo    string
	Expected   decimal.Decimal
	PaidAmount decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf(
		"order %s: paid amount %s does not match order amount %s",
		e.OrderNo,
		e.PaidAmount.String(),
		e.Expected.String(),
	)
}
