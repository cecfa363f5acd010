package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/repository/repoargs"
	"github.com/fsdevblog/groph-pay/pkg/uow"
)

var ErrSelfReferral = errors.New("self referral is not allowed")

const referralCodeLength = 8

type ReferralService struct {
	uow          uow.UOW
	referralRepo ReferralRepository
	ledger       Ledger
}

func NewReferralService(u uow.UOW, ledger Ledger) (*ReferralService, error) {
	referralRepo, err := uow.GetRepositoryAs[ReferralRepository](u, uow.RepositoryName(repoargs.ReferralRepoName))
	if err != nil {
		return nil, err
	}
	return &ReferralService{
		uow:          u,
		referralRepo: referralRepo,
		ledger:       ledger,
	}, nil
}

// EnsureCode выдает юзеру реферальный код. Повторный вызов возвращает уже закрепленный код.
func (r *ReferralService) EnsureCode(ctx context.Context, userID int64) (*domain.ReferralCode, error) {
	code, err := r.referralRepo.CreateCode(ctx, userID, newReferralCode())
	if err != nil {
		return nil, fmt.Errorf("ensuring referral code for user %d: %w", userID, err)
	}
	return code, nil
}

// Process активирует реферальный код для нового юзера.
//
// Алгоритм работы:
//  1. Код резолвится во владельца; неизвестный код — domain.ErrRecordNotFound,
//     свой собственный код — ErrSelfReferral.
//  2. Связь вставляется под уникальным индексом по referee_id: юзер может быть приглашен
//     не более одного раза, в том числе при конкурентных повторных вызовах. Если связь уже
//     есть — no-op, возвращается существующая.
//  3. После успешной вставки — два начисления через журнал: пригласившему (ключ — id нового
//     юзера) и приглашенному (ключ — id связи). Идемпотентность начислений наследуется от
//     журнала, повтор после сбоя безопасен.
func (r *ReferralService) Process(ctx context.Context, newUserID int64, code string) (*domain.ReferralEdge, error) {
	referrerID, ownerErr := r.referralRepo.FindCodeOwner(ctx, code)
	if ownerErr != nil {
		return nil, fmt.Errorf("processing referral code `%s`: %w", code, ownerErr)
	}
	if referrerID == newUserID {
		return nil, ErrSelfReferral
	}

	edge, created, createErr := r.referralRepo.CreateEdge(ctx, repoargs.ReferralEdgeCreate{
		ReferrerID:     referrerID,
		RefereeID:      newUserID,
		Code:           code,
		ReferrerReward: ReferrerReward,
		RefereeReward:  RefereeReward,
	})
	if createErr != nil {
		return nil, fmt.Errorf("processing referral code `%s`: %w", code, createErr)
	}
	if !created {
		existing, findErr := r.referralRepo.FindEdgeByRefereeID(ctx, newUserID)
		if findErr != nil {
			return nil, fmt.Errorf("processing referral code `%s`: %w", code, findErr)
		}
		return existing, nil
	}

	referrerGrantErr := r.ledger.Grant(ctx, GrantArgs{
		UserID:      referrerID,
		Amount:      edge.ReferrerReward,
		Type:        domain.TransactionReferral,
		Description: fmt.Sprintf("referral reward for inviting user %d", newUserID),
		ReferenceID: strconv.FormatInt(newUserID, 10),
	})
	if referrerGrantErr != nil {
		return nil, fmt.Errorf("processing referral code `%s`: %w", code, referrerGrantErr)
	}

	refereeGrantErr := r.ledger.Grant(ctx, GrantArgs{
		UserID:      newUserID,
		Amount:      edge.RefereeReward,
		Type:        domain.TransactionReferral,
		Description: fmt.Sprintf("welcome reward for referral code %s", code),
		ReferenceID: "edge-" + strconv.FormatInt(edge.ID, 10),
	})
	if refereeGrantErr != nil {
		return nil, fmt.Errorf("processing referral code `%s`: %w", code, refereeGrantErr)
	}

	return edge, nil
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:referralCodeLength])
}
