// Package paysign проверяет подлинность входящих уведомлений платежных каналов.
// Каждый канал подписывает параметры по-своему, поэтому схема подписи и разбор полей
// уведомления вынесены за общий интерфейс Scheme, а каналы собраны в Registry.
package paysign

import (
	"errors"
	"fmt"

	"github.com/fsdevblog/groph-pay/internal/domain"
)

var ErrUnknownChannel = errors.New("[paysign] unknown payment channel")

// Scheme проверка подписи и нормализация уведомления одного платежного канала.
// Verify ничего не мутирует: при любом исходе состояние системы не меняется.
type Scheme interface {
	Verify(params map[string]string) error
	Notification(params map[string]string) (*domain.PaymentNotification, error)
	// Ack тело ответа, которое канал ожидает в подтверждение приема уведомления.
	Ack() string
}

type Registry struct {
	schemes map[domain.PaymentChannel]Scheme
}

func NewRegistry() *Registry {
	return &Registry{schemes: make(map[domain.PaymentChannel]Scheme)}
}

func (r *Registry) Register(channel domain.PaymentChannel, scheme Scheme) {
	r.schemes[channel] = scheme
}

func (r *Registry) Get(channel domain.PaymentChannel) (Scheme, error) {
	scheme, ok := r.schemes[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return scheme, nil
}
