package pgrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/repository/repoargs"
	"github.com/fsdevblog/groph-pay/pkg/uow"
)

const edgeColumns = `id, created_at, referrer_id, referee_id, code, referrer_reward, referee_reward, status, completed_at`

type ReferralRepository struct {
	conn uow.DBTX
}

func NewReferralRepository(conn uow.DBTX) *ReferralRepository {
	return &ReferralRepository{conn: conn}
}

// CreateCode закрепляет код за юзером. Если код у юзера уже есть, возвращается существующий.
func (r *ReferralRepository) CreateCode(ctx context.Context, userID int64, code string) (*domain.ReferralCode, error) {
	row := r.conn.QueryRow(ctx, `
		INSERT INTO referral_codes (user_id, code)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING user_id, created_at, code`,
		userID, code,
	)

	referralCode, err := scanCode(row)
	if err == nil {
		return referralCode, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, convertErr(err, "creating referral code for user %d", userID)
	}
	return r.FindCodeByUserID(ctx, userID)
}

func (r *ReferralRepository) FindCodeByUserID(ctx context.Context, userID int64) (*domain.ReferralCode, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT user_id, created_at, code FROM referral_codes WHERE user_id = $1`, userID)
	referralCode, err := scanCode(row)
	if err != nil {
		return nil, convertErr(err, "finding referral code of user %d", userID)
	}
	return referralCode, nil
}

// FindCodeOwner возвращает id владельца кода или domain.ErrRecordNotFound.
func (r *ReferralRepository) FindCodeOwner(ctx context.Context, code string) (int64, error) {
	var userID int64
	err := r.conn.QueryRow(ctx, `SELECT user_id FROM referral_codes WHERE code = $1`, code).Scan(&userID)
	if err != nil {
		return 0, convertErr(err, "finding owner of referral code `%s`", code)
	}
	return userID, nil
}

// CreateEdge создает реферальную связь. Уникальный индекс по referee_id гарантирует не больше
// одной связи на приглашенного: при конфликте вставка не происходит и метод возвращает
// created=false. Так дубликат обрабатывается и при конкурентных вызовах.
func (r *ReferralRepository) CreateEdge(
	ctx context.Context,
	args repoargs.ReferralEdgeCreate,
) (*domain.ReferralEdge, bool, error) {
	row := r.conn.QueryRow(ctx, `
		INSERT INTO referral_edges (referrer_id, referee_id, code, referrer_reward, referee_reward, status, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (referee_id) DO NOTHING
		RETURNING `+edgeColumns,
		args.ReferrerID, args.RefereeID, args.Code, args.ReferrerReward, args.RefereeReward,
		domain.ReferralStatusCompleted,
	)

	edge, err := scanEdge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, convertErr(err, "creating referral edge for referee %d", args.RefereeID)
	}
	return edge, true, nil
}

func (r *ReferralRepository) FindEdgeByRefereeID(ctx context.Context, refereeID int64) (*domain.ReferralEdge, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+edgeColumns+` FROM referral_edges WHERE referee_id = $1`, refereeID)
	edge, err := scanEdge(row)
	if err != nil {
		return nil, convertErr(err, "finding referral edge of referee %d", refereeID)
	}
	return edge, nil
}

func scanCode(row pgx.Row) (*domain.ReferralCode, error) {
	var code domain.ReferralCode
	if err := row.Scan(&code.UserID, &code.CreatedAt, &code.Code); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &code, nil
}

func scanEdge(row pgx.Row) (*domain.ReferralEdge, error) {
	var edge domain.ReferralEdge
	err := row.Scan(
		&edge.ID,
		&edge.CreatedAt,
		&edge.ReferrerID,
		&edge.RefereeID,
		&edge.Code,
		&edge.ReferrerReward,
		&edge.RefereeReward,
		&edge.Status,
		&edge.CompletedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &edge, nil
}
