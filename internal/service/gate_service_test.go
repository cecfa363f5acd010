package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/service"
	"github.com/fsdevblog/groph-pay/internal/service/mocks"
)

type GateServiceTestSuite struct {
	suite.Suite
	mockCtrl    *gomock.Controller
	mockLedger  *mocks.MockLedger
	gateService *service.GateService
}

func TestGateServiceSuite(t *testing.T) {
	suite.Run(t, new(GateServiceTestSuite))
}

func (s *GateServiceTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockLedger = mocks.NewMockLedger(s.mockCtrl)

	l, _ := logrustest.NewNullLogger()
	s.gateService = service.NewGateService(s.mockLedger, l)
}

func (s *GateServiceTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func (s *GateServiceTestSuite) TestWithCredits() {
	s.mockLedger.EXPECT().
		Spend(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args service.SpendArgs) error {
			s.Equal(int64(1), args.UserID)
			s.Equal(int64(10), args.Amount)
			s.Equal("call-1", args.ReferenceID)
			return nil
		})
	s.mockLedger.EXPECT().Grant(gomock.Any(), gomock.Any()).Times(0)

	var called bool
	err := s.gateService.WithCredits(context.Background(), 1, 10, "call-1",
		func(context.Context) error {
			called = true
			return nil
		})
	s.Require().NoError(err)
	s.True(called)
}

func (s *GateServiceTestSuite) TestWithCreditsNotEnough() {
	// Дебет до вызова: при нехватке кредитов дорогая операция не выполняется вовсе.
	s.mockLedger.EXPECT().
		Spend(gomock.Any(), gomock.Any()).
		Return(domain.ErrNotEnoughCredits)
	s.mockLedger.EXPECT().Grant(gomock.Any(), gomock.Any()).Times(0)

	var called bool
	err := s.gateService.WithCredits(context.Background(), 1, 10, "call-1",
		func(context.Context) error {
			called = true
			return nil
		})
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrNotEnoughCredits)
	s.False(called)
}

func (s *GateServiceTestSuite) TestWithCreditsRefundOnFailure() {
	callErr := errors.New("generation backend down")

	s.mockLedger.EXPECT().Spend(gomock.Any(), gomock.Any()).Return(nil)
	s.mockLedger.EXPECT().
		Grant(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args service.GrantArgs) error {
			s.Equal(int64(1), args.UserID)
			s.Equal(int64(10), args.Amount)
			s.Equal(domain.TransactionRefund, args.Type)
			s.Equal("call-1", args.ReferenceID)
			return nil
		})

	err := s.gateService.WithCredits(context.Background(), 1, 10, "call-1",
		func(context.Context) error {
			return callErr
		})
	s.Require().Error(err)
	s.ErrorIs(err, callErr)
}

func (s *GateServiceTestSuite) TestWithCreditsRefundFailureStillReturnsCallError() {
	callErr := errors.New("generation backend down")

	s.mockLedger.EXPECT().Spend(gomock.Any(), gomock.Any()).Return(nil)
	s.mockLedger.EXPECT().Grant(gomock.Any(), gomock.Any()).Return(domain.ErrUnknown)

	err := s.gateService.WithCredits(context.Background(), 1, 10, "call-1",
		func(context.Context) error {
			return callErr
		})
	s.Require().Error(err)
	s.ErrorIs(err, callErr)
}
