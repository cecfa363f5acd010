package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/repository/repoargs"
	"github.com/fsdevblog/groph-pay/internal/service"
	"github.com/fsdevblog/groph-pay/internal/service/mocks"
	"github.com/fsdevblog/groph-pay/pkg/uow"
	uowmocks "github.com/fsdevblog/groph-pay/pkg/uow/mocks"
)

type CreditServiceTestSuite struct {
	suite.Suite
	mockCtrl       *gomock.Controller
	mockUOW        *uowmocks.MockUOW
	mockTX         *uowmocks.MockTX
	mockCreditRepo *mocks.MockCreditRepository
	creditService  *service.CreditService
}

func TestCreditServiceSuite(t *testing.T) {
	suite.Run(t, new(CreditServiceTestSuite))
}

func (s *CreditServiceTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockUOW = uowmocks.NewMockUOW(s.mockCtrl)
	s.mockTX = uowmocks.NewMockTX(s.mockCtrl)
	s.mockCreditRepo = mocks.NewMockCreditRepository(s.mockCtrl)

	// Мок получения репозитория из uow. Выполняется в инициализации сервиса.
	s.mockUOW.EXPECT().GetRepository(uow.RepositoryName(repoargs.CreditRepoName)).
		Return(s.mockCreditRepo, nil).AnyTimes()

	creditService, servErr := service.NewCreditService(s.mockUOW)
	s.Require().NoError(servErr)
	s.creditService = creditService
}

func (s *CreditServiceTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

// expectDo настраивает выполнение транзакции uow через мок.
func (s *CreditServiceTestSuite) expectDo() {
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.CreditRepoName)).
		Return(s.mockCreditRepo, nil).MinTimes(1)
	s.mockUOW.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context, uow.TX) error) error {
			return fn(ctx, s.mockTX)
		}).MinTimes(1)
}

func (s *CreditServiceTestSuite) TestGrant() {
	s.expectDo()

	args := repoargs.TransactionCreate{
		UserID:      1,
		Amount:      6800,
		Type:        domain.TransactionPurchase,
		Description: "purchase pack_l (order X)",
		ReferenceID: "42",
	}

	s.mockCreditRepo.EXPECT().
		CreateTransaction(gomock.Any(), args).
		Return(&domain.CreditTransaction{ID: 1}, true, nil)
	s.mockCreditRepo.EXPECT().
		Credit(gomock.Any(), int64(1), int64(6800)).
		Return(&domain.CreditAccount{UserID: 1, Balance: 6800}, nil)

	err := s.creditService.Grant(context.Background(), service.GrantArgs{
		UserID:      1,
		Amount:      6800,
		Type:        domain.TransactionPurchase,
		Description: "purchase pack_l (order X)",
		ReferenceID: "42",
	})
	s.NoError(err)
}

func (s *CreditServiceTestSuite) TestGrantIdempotent() {
	s.expectDo()

	// Ключ (type, reference_id) уже в журнале: баланс трогать нельзя.
	s.mockCreditRepo.EXPECT().
		CreateTransaction(gomock.Any(), gomock.Any()).
		Return(nil, false, nil)
	s.mockCreditRepo.EXPECT().
		Credit(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(0)

	err := s.creditService.Grant(context.Background(), service.GrantArgs{
		UserID:      1,
		Amount:      6800,
		Type:        domain.TransactionPurchase,
		ReferenceID: "42",
	})
	s.NoError(err)
}

func (s *CreditServiceTestSuite) TestGrantInvalidAmount() {
	s.mockUOW.EXPECT().Do(gomock.Any(), gomock.Any()).Times(0)

	err := s.creditService.Grant(context.Background(), service.GrantArgs{
		UserID: 1,
		Amount: 0,
		Type:   domain.TransactionPurchase,
	})
	s.Require().Error(err)
	s.ErrorIs(err, service.ErrInvalidAmount)
}

func (s *CreditServiceTestSuite) TestSpend() {
	s.expectDo()

	s.mockCreditRepo.EXPECT().
		Debit(gomock.Any(), int64(1), int64(10)).
		Return(&domain.CreditAccount{UserID: 1, Balance: 90}, nil)
	s.mockCreditRepo.EXPECT().
		CreateTransaction(gomock.Any(), repoargs.TransactionCreate{
			UserID:      1,
			Amount:      -10,
			Type:        domain.TransactionSpend,
			Description: "metered call abc",
			ReferenceID: "abc",
		}).
		Return(&domain.CreditTransaction{ID: 2}, true, nil)

	err := s.creditService.Spend(context.Background(), service.SpendArgs{
		UserID:      1,
		Amount:      10,
		Description: "metered call abc",
		ReferenceID: "abc",
	})
	s.NoError(err)
}

func (s *CreditServiceTestSuite) TestSpendNotEnoughCredits() {
	s.expectDo()

	s.mockCreditRepo.EXPECT().
		Debit(gomock.Any(), int64(1), int64(1000)).
		Return(nil, domain.ErrNotEnoughCredits)
	s.mockCreditRepo.EXPECT().
		CreateTransaction(gomock.Any(), gomock.Any()).
		Times(0)

	err := s.creditService.Spend(context.Background(), service.SpendArgs{
		UserID:      1,
		Amount:      1000,
		ReferenceID: "abc",
	})
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrNotEnoughCredits)
}

func (s *CreditServiceTestSuite) TestSpendDuplicateReference() {
	s.expectDo()

	// Списание с таким reference_id уже было: транзакция откатывается ошибкой.
	s.mockCreditRepo.EXPECT().
		Debit(gomock.Any(), int64(1), int64(10)).
		Return(&domain.CreditAccount{UserID: 1, Balance: 90}, nil)
	s.mockCreditRepo.EXPECT().
		CreateTransaction(gomock.Any(), gomock.Any()).
		Return(nil, false, nil)

	err := s.creditService.Spend(context.Background(), service.SpendArgs{
		UserID:      1,
		Amount:      10,
		ReferenceID: "abc",
	})
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrDuplicateKey)
}

func (s *CreditServiceTestSuite) TestBalanceNewUser() {
	s.mockCreditRepo.EXPECT().
		GetAccount(gomock.Any(), int64(7)).
		Return(nil, domain.ErrRecordNotFound)

	account, err := s.creditService.Balance(context.Background(), 7)
	s.Require().NoError(err)
	s.Equal(int64(7), account.UserID)
	s.Zero(account.Balance)
	s.Zero(account.TotalEarned)
	s.Zero(account.TotalSpent)
}

// fakeCreditRepo потокобезопасный счет для конкурентных сценариев: условный дебет как в БД.
type fakeCreditRepo struct {
	mu      sync.Mutex
	balance int64
	seen    map[string]struct{}
}

func newFakeCreditRepo(balance int64) *fakeCreditRepo {
	return &fakeCreditRepo{balance: balance, seen: make(map[string]struct{})}
}

func (f *fakeCreditRepo) CreateTransaction(
	_ context.Context,
	args repoargs.TransactionCreate,
) (*domain.CreditTransaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(args.Type) + "/" + args.ReferenceID
	if _, ok := f.seen[key]; ok && args.ReferenceID != "" {
		return nil, false, nil
	}
	f.seen[key] = struct{}{}
	return &domain.CreditTransaction{UserID: args.UserID, Amount: args.Amount, Type: args.Type}, true, nil
}

func (f *fakeCreditRepo) Credit(_ context.Context, userID, amount int64) (*domain.CreditAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance += amount
	return &domain.CreditAccount{UserID: userID, Balance: f.balance}, nil
}

func (f *fakeCreditRepo) Debit(_ context.Context, userID, amount int64) (*domain.CreditAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balance < amount {
		return nil, domain.ErrNotEnoughCredits
	}
	f.balance -= amount
	return &domain.CreditAccount{UserID: userID, Balance: f.balance}, nil
}

func (f *fakeCreditRepo) GetAccount(_ context.Context, userID int64) (*domain.CreditAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &domain.CreditAccount{UserID: userID, Balance: f.balance}, nil
}

func (f *fakeCreditRepo) GetTransactions(_ context.Context, _ int64) ([]domain.CreditTransaction, error) {
	return nil, nil
}

// TestConcurrentSpend два конкурентных списания по 10 при остатке 15: пройти должно ровно одно.
func (s *CreditServiceTestSuite) TestConcurrentSpend() {
	fakeRepo := newFakeCreditRepo(15)

	mockUOW := uowmocks.NewMockUOW(s.mockCtrl)
	mockTX := uowmocks.NewMockTX(s.mockCtrl)

	mockUOW.EXPECT().GetRepository(uow.RepositoryName(repoargs.CreditRepoName)).
		Return(fakeRepo, nil).AnyTimes()
	mockTX.EXPECT().Get(uow.RepositoryName(repoargs.CreditRepoName)).
		Return(fakeRepo, nil).AnyTimes()
	mockUOW.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context, uow.TX) error) error {
			return fn(ctx, mockTX)
		}).AnyTimes()

	creditService, servErr := service.NewCreditService(mockUOW)
	s.Require().NoError(servErr)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		ref := []string{"call-1", "call-2"}[i]
		go func() {
			defer wg.Done()
			results <- creditService.Spend(context.Background(), service.SpendArgs{
				UserID:      1,
				Amount:      10,
				ReferenceID: ref,
			})
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		s.Require().ErrorIs(err, domain.ErrNotEnoughCredits)
		rejected++
	}
	s.Equal(1, succeeded)
	s.Equal(1, rejected)

	account, accErr := fakeRepo.GetAccount(context.Background(), 1)
	s.Require().NoError(accErr)
	s.Equal(int64(5), account.Balance)
}
