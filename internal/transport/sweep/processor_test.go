package sweep

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/transport/sweep/mocks"
)

type ProcessorTestSuite struct {
	suite.Suite
	mockCtrl     *gomock.Controller
	mockServicer *mocks.MockServicer
	processor    *Processor
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorTestSuite))
}

func (s *ProcessorTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockServicer = mocks.NewMockServicer(s.mockCtrl)

	l, _ := logrustest.NewNullLogger()
	s.processor = New(s.mockServicer, l).
		SetLimitPerSweep(10).
		SetSweepWorkers(2)
}

func (s *ProcessorTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func paidOrders() []domain.Order {
	return []domain.Order{
		{ID: 1, UserID: 10, OrderNo: "A", ProductID: "pack_s", Amount: decimal.RequireFromString("6.00")},
		{ID: 2, UserID: 11, OrderNo: "B", ProductID: "pack_m", Amount: decimal.RequireFromString("30.00")},
		{ID: 3, UserID: 12, OrderNo: "C", ProductID: "pack_l", Amount: decimal.RequireFromString("68.00")},
	}
}

func (s *ProcessorTestSuite) TestSweep() {
	orders := paidOrders()

	s.mockServicer.EXPECT().
		PaidUncredited(gomock.Any(), uint(10)).
		Return(orders, nil)

	// каждый найденный заказ досчитывается ровно один раз
	seen := make(chan int64, len(orders))
	s.mockServicer.EXPECT().
		GrantForOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, order domain.Order) error {
			seen <- order.ID
			return nil
		}).
		Times(len(orders))

	s.Require().NoError(s.processor.Sweep(context.Background()))

	close(seen)
	got := make(map[int64]bool)
	for id := range seen {
		got[id] = true
	}
	s.Len(got, len(orders))
}

func (s *ProcessorTestSuite) TestSweepNoOrders() {
	s.mockServicer.EXPECT().
		PaidUncredited(gomock.Any(), uint(10)).
		Return([]domain.Order{}, nil)
	s.mockServicer.EXPECT().GrantForOrder(gomock.Any(), gomock.Any()).Times(0)

	err := s.processor.Sweep(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, ErrNoOrders)
}

func (s *ProcessorTestSuite) TestSweepGrantErrorDoesNotStopPass() {
	orders := paidOrders()

	s.mockServicer.EXPECT().
		PaidUncredited(gomock.Any(), uint(10)).
		Return(orders, nil)

	// Ошибка по одному заказу не мешает досчитать остальные: повтор будет в следующем проходе.
	s.mockServicer.EXPECT().
		GrantForOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, order domain.Order) error {
			if order.ID == 2 {
				return domain.ErrUnknown
			}
			return nil
		}).
		Times(len(orders))

	s.NoError(s.processor.Sweep(context.Background()))
}

func (s *ProcessorTestSuite) TestSweepProduceError() {
	s.mockServicer.EXPECT().
		PaidUncredited(gomock.Any(), uint(10)).
		Return(nil, domain.ErrUnknown)

	err := s.processor.Sweep(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrUnknown)
}
