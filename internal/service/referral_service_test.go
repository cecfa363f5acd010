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

type ReferralServiceTestSuite struct {
	suite.Suite
	mockCtrl         *gomock.Controller
	mockUOW          *uowmocks.MockUOW
	mockReferralRepo *mocks.MockReferralRepository
	mockLedger       *mocks.MockLedger
	referralService  *service.ReferralService
}

func TestReferralServiceSuite(t *testing.T) {
	suite.Run(t, new(ReferralServiceTestSuite))
}

func (s *ReferralServiceTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockUOW = uowmocks.NewMockUOW(s.mockCtrl)
	s.mockReferralRepo = mocks.NewMockReferralRepository(s.mockCtrl)
	s.mockLedger = mocks.NewMockLedger(s.mockCtrl)

	s.mockUOW.EXPECT().GetRepository(uow.RepositoryName(repoargs.ReferralRepoName)).
		Return(s.mockReferralRepo, nil).AnyTimes()

	referralService, servErr := service.NewReferralService(s.mockUOW, s.mockLedger)
	s.Require().NoError(servErr)
	s.referralService = referralService
}

func (s *ReferralServiceTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func (s *ReferralServiceTestSuite) TestEnsureCode() {
	code := &domain.ReferralCode{UserID: 1, Code: "AB12CD34"}

	s.mockReferralRepo.EXPECT().
		CreateCode(gomock.Any(), int64(1), gomock.Any()).
		Return(code, nil)

	got, err := s.referralService.EnsureCode(context.Background(), 1)
	s.Require().NoError(err)
	s.Equal(code, got)
}

func (s *ReferralServiceTestSuite) TestProcess() {
	var referrerID int64 = 1
	var newUserID int64 = 2
	code := "AB12CD34"

	edge := &domain.ReferralEdge{
		ID:             10,
		ReferrerID:     referrerID,
		RefereeID:      newUserID,
		Code:           code,
		ReferrerReward: service.ReferrerReward,
		RefereeReward:  service.RefereeReward,
	}

	s.mockReferralRepo.EXPECT().
		FindCodeOwner(gomock.Any(), code).
		Return(referrerID, nil)
	s.mockReferralRepo.EXPECT().
		CreateEdge(gomock.Any(), repoargs.ReferralEdgeCreate{
			ReferrerID:     referrerID,
			RefereeID:      newUserID,
			Code:           code,
			ReferrerReward: service.ReferrerReward,
			RefereeReward:  service.RefereeReward,
		}).
		Return(edge, true, nil)

	// Два начисления с разными ключами идемпотентности.
	s.mockLedger.EXPECT().
		Grant(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args service.GrantArgs) error {
			s.Equal(referrerID, args.UserID)
			s.Equal(service.ReferrerReward, args.Amount)
			s.Equal(domain.TransactionReferral, args.Type)
			s.Equal("2", args.ReferenceID)
			return nil
		})
	s.mockLedger.EXPECT().
		Grant(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args service.GrantArgs) error {
			s.Equal(newUserID, args.UserID)
			s.Equal(service.RefereeReward, args.Amount)
			s.Equal(domain.TransactionReferral, args.Type)
			s.Equal("edge-10", args.ReferenceID)
			return nil
		})

	got, err := s.referralService.Process(context.Background(), newUserID, code)
	s.Require().NoError(err)
	s.Equal(edge, got)
}

func (s *ReferralServiceTestSuite) TestProcessUnknownCode() {
	s.mockReferralRepo.EXPECT().
		FindCodeOwner(gomock.Any(), "NOPE").
		Return(int64(0), domain.ErrRecordNotFound)
	s.mockLedger.EXPECT().Grant(gomock.Any(), gomock.Any()).Times(0)

	_, err := s.referralService.Process(context.Background(), 2, "NOPE")
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *ReferralServiceTestSuite) TestProcessSelfReferral() {
	s.mockReferralRepo.EXPECT().
		FindCodeOwner(gomock.Any(), "AB12CD34").
		Return(int64(2), nil)
	s.mockReferralRepo.EXPECT().CreateEdge(gomock.Any(), gomock.Any()).Times(0)
	s.mockLedger.EXPECT().Grant(gomock.Any(), gomock.Any()).Times(0)

	_, err := s.referralService.Process(context.Background(), 2, "AB12CD34")
	s.Require().Error(err)
	s.ErrorIs(err, service.ErrSelfReferral)
}

// fakeReferralRepo потокобезопасное хранилище связей: уникальность по referee_id как в БД.
type fakeReferralRepo struct {
	mu     sync.Mutex
	owners map[string]int64
	edges  map[int64]*domain.ReferralEdge
	nextID int64
}

func newFakeReferralRepo(owners map[string]int64) *fakeReferralRepo {
	return &fakeReferralRepo{owners: owners, edges: make(map[int64]*domain.ReferralEdge)}
}

func (f *fakeReferralRepo) CreateCode(_ context.Context, _ int64, _ string) (*domain.ReferralCode, error) {
	return nil, domain.ErrUnknown
}

func (f *fakeReferralRepo) FindCodeByUserID(_ context.Context, _ int64) (*domain.ReferralCode, error) {
	return nil, domain.ErrRecordNotFound
}

func (f *fakeReferralRepo) FindCodeOwner(_ context.Context, code string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[code]
	if !ok {
		return 0, domain.ErrRecordNotFound
	}
	return owner, nil
}

func (f *fakeReferralRepo) CreateEdge(
	_ context.Context,
	args repoargs.ReferralEdgeCreate,
) (*domain.ReferralEdge, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.edges[args.RefereeID]; ok {
		return nil, false, nil
	}
	f.nextID++
	edge := &domain.ReferralEdge{
		ID:             f.nextID,
		ReferrerID:     args.ReferrerID,
		RefereeID:      args.RefereeID,
		Code:           args.Code,
		ReferrerReward: args.ReferrerReward,
		RefereeReward:  args.RefereeReward,
	}
	f.edges[args.RefereeID] = edge
	return edge, true, nil
}

func (f *fakeReferralRepo) FindEdgeByRefereeID(_ context.Context, refereeID int64) (*domain.ReferralEdge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	edge, ok := f.edges[refereeID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return edge, nil
}

// countingLedger считает начисления под мьютексом, ключ идемпотентности как у журнала.
type countingLedger struct {
	mu     sync.Mutex
	grants int
	seen   map[string]struct{}
}

func newCountingLedger() *countingLedger {
	return &countingLedger{seen: make(map[string]struct{})}
}

func (l *countingLedger) Grant(_ context.Context, args service.GrantArgs) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := string(args.Type) + "/" + args.ReferenceID
	if _, ok := l.seen[key]; ok {
		return nil
	}
	l.seen[key] = struct{}{}
	l.grants++
	return nil
}

func (l *countingLedger) Spend(_ context.Context, _ service.SpendArgs) error {
	return domain.ErrUnknown
}

// TestConcurrentProcess две конкурентные активации одного кода одним юзером: ровно одна связь
// и ровно пара начислений.
func (s *ReferralServiceTestSuite) TestConcurrentProcess() {
	fakeRepo := newFakeReferralRepo(map[string]int64{"AB12CD34": 1})
	ledger := newCountingLedger()

	mockUOW := uowmocks.NewMockUOW(s.mockCtrl)
	mockUOW.EXPECT().GetRepository(uow.RepositoryName(repoargs.ReferralRepoName)).
		Return(fakeRepo, nil).AnyTimes()

	referralService, servErr := service.NewReferralService(mockUOW, ledger)
	s.Require().NoError(servErr)

	edges := make(chan *domain.ReferralEdge, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			edge, err := referralService.Process(context.Background(), 2, "AB12CD34")
			s.NoError(err)
			edges <- edge
		}()
	}
	wg.Wait()
	close(edges)

	// Обе активации видят одну и ту же связь.
	for edge := range edges {
		s.Require().NotNil(edge)
		s.Equal(int64(1), edge.ID)
		s.Equal(int64(2), edge.RefereeID)
	}
	s.Len(fakeRepo.edges, 1)
	s.Equal(2, ledger.grants)
}

func (s *ReferralServiceTestSuite) TestProcessRepeatedActivation() {
	existing := &domain.ReferralEdge{ID: 10, ReferrerID: 1, RefereeID: 2}

	s.mockReferralRepo.EXPECT().
		FindCodeOwner(gomock.Any(), "AB12CD34").
		Return(int64(1), nil)
	// Юзер уже приглашен: вставка под уникальным индексом не прошла, наград не будет.
	s.mockReferralRepo.EXPECT().
		CreateEdge(gomock.Any(), gomock.Any()).
		Return(nil, false, nil)
	s.mockReferralRepo.EXPECT().
		FindEdgeByRefereeID(gomock.Any(), int64(2)).
		Return(existing, nil)
	s.mockLedger.EXPECT().Grant(gomock.Any(), gomock.Any()).Times(0)

	got, err := s.referralService.Process(context.Background(), 2, "AB12CD34")
	s.Require().NoError(err)
	s.Equal(existing, got)
}
