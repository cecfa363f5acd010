package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/repository/repoargs"
	"github.com/fsdevblog/groph-pay/pkg/uow"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// CreditService владеет балансом и журналом транзакций. Все начисления и списания проходят
// только через него; каждая операция — одна транзакция БД с условной мутацией счета.
type CreditService struct {
	uow        uow.UOW
	creditRepo CreditRepository
}

func NewCreditService(u uow.UOW) (*CreditService, error) {
	creditRepo, err := uow.GetRepositoryAs[CreditRepository](u, uow.RepositoryName(repoargs.CreditRepoName))
	if err != nil {
		return nil, err
	}
	return &CreditService{
		uow:        u,
		creditRepo: creditRepo,
	}, nil
}

type GrantArgs struct {
	UserID      int64
	Amount      int64
	Type        domain.TransactionType
	Description string
	ReferenceID string
}

// Grant начисляет кредиты. Идемпотентен по паре (Type, ReferenceID): если транзакция с таким
// ключом уже записана, баланс не меняется и ошибки нет — повторная доставка уведомления или
// повторный запуск досчета безопасны.
//
// Алгоритм работы (одна транзакция БД):
//  1. Условная вставка в журнал; при конфликте по ключу идемпотентности — выход без изменений.
//  2. Увеличение баланса и total_earned счета одним upsert'ом.
func (s *CreditService) Grant(ctx context.Context, args GrantArgs) error {
	if args.Amount <= 0 {
		return fmt.Errorf("granting %d credits to user %d: %w", args.Amount, args.UserID, ErrInvalidAmount)
	}

	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[CreditRepository](tx, uow.RepositoryName(repoargs.CreditRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}

		_, created, transErr := repo.CreateTransaction(c, repoargs.TransactionCreate{
			UserID:      args.UserID,
			Amount:      args.Amount,
			Type:        args.Type,
			Description: args.Description,
			ReferenceID: args.ReferenceID,
		})
		if transErr != nil {
			return transErr //nolint:wrapcheck
		}
		if !created {
			// Ключ идемпотентности уже в журнале, начисление было выполнено раньше.
			return nil
		}

		if _, creditErr := repo.Credit(c, args.UserID, args.Amount); creditErr != nil {
			return creditErr //nolint:wrapcheck
		}
		return nil
	})

	if txErr != nil {
		return fmt.Errorf("granting %d credits to user %d: %w", args.Amount, args.UserID, txErr)
	}
	return nil
}

type SpendArgs struct {
	UserID      int64
	Amount      int64
	Description string
	ReferenceID string
}

// Spend списывает кредиты. Проверка остатка и списание выполняются одним условным UPDATE,
// поэтому два конкурентных списания не могут пройти по одному и тому же остатку. При нехватке
// кредитов возвращается domain.ErrNotEnoughCredits и состояние не меняется.
func (s *CreditService) Spend(ctx context.Context, args SpendArgs) error {
	if args.Amount <= 0 {
		return fmt.Errorf("spending %d credits of user %d: %w", args.Amount, args.UserID, ErrInvalidAmount)
	}

	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[CreditRepository](tx, uow.RepositoryName(repoargs.CreditRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}

		if _, debitErr := repo.Debit(c, args.UserID, args.Amount); debitErr != nil {
			return debitErr //nolint:wrapcheck
		}

		_, created, transErr := repo.CreateTransaction(c, repoargs.TransactionCreate{
			UserID:      args.UserID,
			Amount:      -args.Amount,
			Type:        domain.TransactionSpend,
			Description: args.Description,
			ReferenceID: args.ReferenceID,
		})
		if transErr != nil {
			return transErr //nolint:wrapcheck
		}
		if !created {
			// Списание с таким reference_id уже было: откатываем дебет возвратом ошибки.
			return domain.ErrDuplicateKey
		}
		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, domain.ErrNotEnoughCredits) {
			return domain.ErrNotEnoughCredits
		}
		return fmt.Errorf("spending %d credits of user %d: %w", args.Amount, args.UserID, txErr)
	}
	return nil
}

// Balance возвращает счет юзера. Для юзера без единой транзакции возвращается нулевой счет.
func (s *CreditService) Balance(ctx context.Context, userID int64) (*domain.CreditAccount, error) {
	account, err := s.creditRepo.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return &domain.CreditAccount{UserID: userID}, nil
		}
		return nil, err //nolint:wrapcheck
	}
	return account, nil
}

// Transactions возвращает журнал операций юзера — аудиторский след каждого изменения баланса.
func (s *CreditService) Transactions(ctx context.Context, userID int64) ([]domain.CreditTransaction, error) {
	transactions, err := s.creditRepo.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return transactions, nil
}
