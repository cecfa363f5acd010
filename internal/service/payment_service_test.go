package service_test

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/repository/repoargs"
	"github.com/fsdevblog/groph-pay/internal/service"
	"github.com/fsdevblog/groph-pay/internal/service/mocks"
	"github.com/fsdevblog/groph-pay/internal/service/paysign"
	"github.com/fsdevblog/groph-pay/pkg/uow"
	uowmocks "github.com/fsdevblog/groph-pay/pkg/uow/mocks"
)

const epaySecret = "epay-secret"
const wechatSecret = "wechat-secret"

type PaymentServiceTestSuite struct {
	suite.Suite
	mockCtrl       *gomock.Controller
	mockUOW        *uowmocks.MockUOW
	mockTX         *uowmocks.MockTX
	mockOrderRepo  *mocks.MockOrderRepository
	mockLedger     *mocks.MockLedger
	logHook        *logrustest.Hook
	epayScheme     *paysign.MD5Scheme
	wechatScheme   *paysign.MD5Scheme
	paymentService *service.PaymentService
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}

func (s *PaymentServiceTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockUOW = uowmocks.NewMockUOW(s.mockCtrl)
	s.mockTX = uowmocks.NewMockTX(s.mockCtrl)
	s.mockOrderRepo = mocks.NewMockOrderRepository(s.mockCtrl)
	s.mockLedger = mocks.NewMockLedger(s.mockCtrl)

	s.mockUOW.EXPECT().GetRepository(uow.RepositoryName(repoargs.OrderRepoName)).
		Return(s.mockOrderRepo, nil).AnyTimes()

	// Реальные схемы подписи: тест собирает уведомления так же, как это делает канал.
	s.epayScheme = paysign.NewEpayScheme(epaySecret)
	s.wechatScheme = paysign.NewWechatScheme(wechatSecret)
	registry := paysign.NewRegistry()
	registry.Register(domain.ChannelEpay, s.epayScheme)
	registry.Register(domain.ChannelWechat, s.wechatScheme)

	l, hook := logrustest.NewNullLogger()
	s.logHook = hook

	paymentService, servErr := service.NewPaymentService(s.mockUOW, registry, s.mockLedger, l)
	s.Require().NoError(servErr)
	s.paymentService = paymentService
}

func (s *PaymentServiceTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func (s *PaymentServiceTestSuite) expectDo() {
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OrderRepoName)).
		Return(s.mockOrderRepo, nil).MinTimes(1)
	s.mockUOW.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context, uow.TX) error) error {
			return fn(ctx, s.mockTX)
		}).MinTimes(1)
}

// signedEpayParams собирает подписанное epay-уведомление об успешной оплате.
func (s *PaymentServiceTestSuite) signedEpayParams(orderNo, money string) map[string]string {
	params := map[string]string{
		"out_trade_no": orderNo,
		"trade_no":     "EP-1",
		"trade_status": "TRADE_SUCCESS",
		"money":        money,
	}
	params["sign"] = s.epayScheme.Sign(params)
	return params
}

func (s *PaymentServiceTestSuite) pendingOrder() *domain.Order {
	return &domain.Order{
		ID:        42,
		UserID:    7,
		OrderNo:   "20240101120000ABCDEF",
		ProductID: "pack_l",
		Amount:    decimal.RequireFromString("68.00"),
		Channel:   domain.ChannelEpay,
		Status:    domain.OrderStatusPaid,
		TradeNo:   "EP-1",
	}
}

func (s *PaymentServiceTestSuite) TestHandleNotificationSuccess() {
	order := s.pendingOrder()
	s.expectDo()

	s.mockOrderRepo.EXPECT().
		MarkPaid(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args repoargs.OrderMarkPaid) (*domain.Order, bool, error) {
			s.Equal(order.OrderNo, args.OrderNo)
			s.Equal("EP-1", args.TradeNo)
			return order, true, nil
		})

	// 68.00 по курсу 100 кредитов за единицу -> 6800.
	s.mockLedger.EXPECT().
		Grant(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args service.GrantArgs) error {
			s.Equal(order.UserID, args.UserID)
			s.Equal(int64(6800), args.Amount)
			s.Equal(domain.TransactionPurchase, args.Type)
			s.Equal(strconv.FormatInt(order.ID, 10), args.ReferenceID)
			return nil
		})

	ack, err := s.paymentService.HandleNotification(
		context.Background(), domain.ChannelEpay, s.signedEpayParams(order.OrderNo, "68.00"))
	s.Require().NoError(err)
	s.Equal("success", ack)
}

func (s *PaymentServiceTestSuite) TestHandleNotificationReplay() {
	order := s.pendingOrder()
	s.expectDo()

	// Заказ уже оплачен: переход не выполнен, начисления быть не должно, подтверждение уходит.
	s.mockOrderRepo.EXPECT().
		MarkPaid(gomock.Any(), gomock.Any()).
		Return(order, false, nil)
	s.mockLedger.EXPECT().Grant(gomock.Any(), gomock.Any()).Times(0)

	ack, err := s.paymentService.HandleNotification(
		context.Background(), domain.ChannelEpay, s.signedEpayParams(order.OrderNo, "68.00"))
	s.Require().NoError(err)
	s.Equal("success", ack)
}

func (s *PaymentServiceTestSuite) TestHandleNotificationBadSignature() {
	params := s.signedEpayParams("20240101120000ABCDEF", "68.00")
	params["money"] = "0.01"

	s.mockUOW.EXPECT().Do(gomock.Any(), gomock.Any()).Times(0)
	s.mockLedger.EXPECT().Grant(gomock.Any(), gomock.Any()).Times(0)

	_, err := s.paymentService.HandleNotification(context.Background(), domain.ChannelEpay, params)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrSignatureInvalid)
}

func (s *PaymentServiceTestSuite) TestHandleNotificationUnknownChannel() {
	_, err := s.paymentService.HandleNotification(
		context.Background(), domain.ChannelAlipay, map[string]string{"sign": "x"})
	s.Require().Error(err)
	s.ErrorIs(err, paysign.ErrUnknownChannel)
}

func (s *PaymentServiceTestSuite) TestHandleNotificationUnknownOrder() {
	s.expectDo()

	// Заказы из недоверенного ввода не создаются: неизвестный order_no — отказ.
	s.mockOrderRepo.EXPECT().
		MarkPaid(gomock.Any(), gomock.Any()).
		Return(nil, false, domain.ErrRecordNotFound)
	s.mockLedger.EXPECT().Grant(gomock.Any(), gomock.Any()).Times(0)

	_, err := s.paymentService.HandleNotification(
		context.Background(), domain.ChannelEpay, s.signedEpayParams("UNKNOWN", "68.00"))
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *PaymentServiceTestSuite) TestHandleNotificationAmountMismatch() {
	order := s.pendingOrder()
	s.expectDo()

	s.mockOrderRepo.EXPECT().
		MarkPaid(gomock.Any(), gomock.Any()).
		Return(order, true, nil)

	// Верим фактически оплаченной сумме: 5.00 -> 500 кредитов.
	s.mockLedger.EXPECT().
		Grant(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args service.GrantArgs) error {
			s.Equal(int64(500), args.Amount)
			return nil
		})

	ack, err := s.paymentService.HandleNotification(
		context.Background(), domain.ChannelEpay, s.signedEpayParams(order.OrderNo, "5.00"))
	s.Require().NoError(err)
	s.Equal("success", ack)

	// Аномалия обязана попасть в лог.
	var logged bool
	for _, entry := range s.logHook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && strings.Contains(entry.Message, "does not match order amount") {
			logged = true
		}
	}
	s.True(logged, "amount mismatch must be logged as anomaly")
}

func (s *PaymentServiceTestSuite) TestHandleNotificationGrantFailure() {
	order := s.pendingOrder()
	s.expectDo()

	s.mockOrderRepo.EXPECT().
		MarkPaid(gomock.Any(), gomock.Any()).
		Return(order, true, nil)
	s.mockLedger.EXPECT().
		Grant(gomock.Any(), gomock.Any()).
		Return(domain.ErrUnknown)

	// Заказ уже переведен в paid: подтверждение уходит, недосчет подберет sweep.
	ack, err := s.paymentService.HandleNotification(
		context.Background(), domain.ChannelEpay, s.signedEpayParams(order.OrderNo, "68.00"))
	s.Require().NoError(err)
	s.Equal("success", ack)

	var logged bool
	for _, entry := range s.logHook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && strings.Contains(entry.Message, "sweep will retry") {
			logged = true
		}
	}
	s.True(logged)
}

func (s *PaymentServiceTestSuite) TestHandleNotificationExplicitFailure() {
	s.expectDo()

	params := map[string]string{
		"out_trade_no": "20240101120000ABCDEF",
		"trade_status": "TRADE_CLOSED",
		"money":        "68.00",
	}
	params["sign"] = s.epayScheme.Sign(params)

	s.mockOrderRepo.EXPECT().
		MarkFailed(gomock.Any(), "20240101120000ABCDEF").
		Return(&domain.Order{Status: domain.OrderStatusFailed}, true, nil)
	s.mockLedger.EXPECT().Grant(gomock.Any(), gomock.Any()).Times(0)

	ack, err := s.paymentService.HandleNotification(context.Background(), domain.ChannelEpay, params)
	s.Require().NoError(err)
	s.Equal("success", ack)
}

func (s *PaymentServiceTestSuite) TestHandleNotificationWaitStatus() {
	// Статус ожидания: подтверждаем без каких-либо побочных эффектов.
	params := map[string]string{
		"out_trade_no":   "20240101120000ABCDEF",
		"transaction_id": "WX-1",
		"result_code":    "NOTPAY",
		"total_fee":      "6800",
	}
	params["sign"] = s.wechatScheme.Sign(params)

	s.mockUOW.EXPECT().Do(gomock.Any(), gomock.Any()).Times(0)
	s.mockLedger.EXPECT().Grant(gomock.Any(), gomock.Any()).Times(0)

	ack, err := s.paymentService.HandleNotification(context.Background(), domain.ChannelWechat, params)
	s.Require().NoError(err)
	s.JSONEq(`{"code":"SUCCESS","message":"OK"}`, ack)
}

func (s *PaymentServiceTestSuite) TestGrantForOrder() {
	order := s.pendingOrder()

	s.mockLedger.EXPECT().
		Grant(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args service.GrantArgs) error {
			s.Equal(int64(6800), args.Amount)
			s.Equal(strconv.FormatInt(order.ID, 10), args.ReferenceID)
			return nil
		})

	s.NoError(s.paymentService.GrantForOrder(context.Background(), *order))
}

func (s *PaymentServiceTestSuite) TestPaidUncredited() {
	orders := []domain.Order{*s.pendingOrder()}
	s.mockOrderRepo.EXPECT().
		GetPaidUncredited(gomock.Any(), uint(50)).
		Return(orders, nil)

	got, err := s.paymentService.PaidUncredited(context.Background(), 50)
	s.Require().NoError(err)
	s.Equal(orders, got)
}
