package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fsdevblog/groph-pay/pkg/uow"
)

type AppServices struct {
	OrderService    *OrderService
	CreditService   *CreditService
	PaymentService  *PaymentService
	ReferralService *ReferralService
	GateService     *GateService
}

func Factory(unitOfWork uow.UOW, verifier Verifier, l *logrus.Logger) (*AppServices, error) {
	orderService, orderServiceErr := NewOrderService(unitOfWork)
	if orderServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", orderServiceErr.Error())
	}

	creditService, creditServiceErr := NewCreditService(unitOfWork)
	if creditServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", creditServiceErr.Error())
	}

	paymentService, paymentServiceErr := NewPaymentService(unitOfWork, verifier, creditService, l)
	if paymentServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", paymentServiceErr.Error())
	}

	referralService, referralServiceErr := NewReferralService(unitOfWork, creditService)
	if referralServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", referralServiceErr.Error())
	}

	return &AppServices{
		OrderService:    orderService,
		CreditService:   creditService,
		PaymentService:  paymentService,
		ReferralService: referralService,
		GateService:     NewGateService(creditService, l),
	}, nil
}
