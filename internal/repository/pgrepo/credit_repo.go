package pgrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/repository/repoargs"
	"github.com/fsdevblog/groph-pay/pkg/uow"
)

const (
	accountColumns     = `user_id, created_at, updated_at, balance, total_earned, total_spent`
	transactionColumns = `id, created_at, user_id, amount, type, description, reference_id`
)

type CreditRepository struct {
	conn uow.DBTX
}

func NewCreditRepository(conn uow.DBTX) *CreditRepository {
	return &CreditRepository{conn: conn}
}

// CreateTransaction добавляет запись в журнал транзакций. Пара (type, reference_id) — ключ
// идемпотентности: если запись с таким ключом уже есть, вставка молча не происходит и метод
// возвращает created=false. Пустой reference_id под ключ не попадает.
func (c *CreditRepository) CreateTransaction(
	ctx context.Context,
	args repoargs.TransactionCreate,
) (*domain.CreditTransaction, bool, error) {
	row := c.conn.QueryRow(ctx, `
		INSERT INTO credit_transactions (user_id, amount, type, description, reference_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (type, reference_id) WHERE reference_id <> '' DO NOTHING
		RETURNING `+transactionColumns,
		args.UserID, args.Amount, args.Type, args.Description, args.ReferenceID,
	)

	transaction, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, convertErr(err, "creating credit transaction (%s, %s)", args.Type, args.ReferenceID)
	}
	return transaction, true, nil
}

// Credit увеличивает баланс счета на amount одним upsert'ом, создавая счет при необходимости.
func (c *CreditRepository) Credit(ctx context.Context, userID int64, amount int64) (*domain.CreditAccount, error) {
	row := c.conn.QueryRow(ctx, `
		INSERT INTO credit_accounts (user_id, balance, total_earned, total_spent)
		VALUES ($1, $2, $2, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET balance      = credit_accounts.balance + EXCLUDED.balance,
		    total_earned = credit_accounts.total_earned + EXCLUDED.total_earned,
		    updated_at   = now()
		RETURNING `+accountColumns,
		userID, amount,
	)
	account, err := scanAccount(row)
	if err != nil {
		return nil, convertErr(err, "crediting account of user %d", userID)
	}
	return account, nil
}

// Debit уменьшает баланс счета на amount одним условным UPDATE: проверка balance >= amount и
// само списание выполняются одним оператором, двум конкурентным списаниям не пройти по одному
// остатку. Если условие не выполнено (или счета нет) — domain.ErrNotEnoughCredits без
// каких-либо изменений.
func (c *CreditRepository) Debit(ctx context.Context, userID int64, amount int64) (*domain.CreditAccount, error) {
	row := c.conn.QueryRow(ctx, `
		UPDATE credit_accounts
		SET balance     = balance - $2,
		    total_spent = total_spent + $2,
		    updated_at  = now()
		WHERE user_id = $1 AND balance >= $2
		RETURNING `+accountColumns,
		userID, amount,
	)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotEnoughCredits
		}
		return nil, convertErr(err, "debiting account of user %d", userID)
	}
	return account, nil
}

func (c *CreditRepository) GetAccount(ctx context.Context, userID int64) (*domain.CreditAccount, error) {
	row := c.conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM credit_accounts WHERE user_id = $1`, userID)
	account, err := scanAccount(row)
	if err != nil {
		return nil, convertErr(err, "getting account of user %d", userID)
	}
	return account, nil
}

// GetTransactions возвращает журнал транзакций юзера по убыванию даты создания.
func (c *CreditRepository) GetTransactions(ctx context.Context, userID int64) ([]domain.CreditTransaction, error) {
	rows, err := c.conn.Query(ctx,
		`SELECT `+transactionColumns+` FROM credit_transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, convertErr(err, "getting transactions of user %d", userID)
	}
	defer rows.Close()

	var transactions []domain.CreditTransaction
	for rows.Next() {
		transaction, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "getting transactions of user %d", userID)
		}
		transactions = append(transactions, *transaction)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "getting transactions of user %d", userID)
	}
	return transactions, nil
}

func scanAccount(row pgx.Row) (*domain.CreditAccount, error) {
	var account domain.CreditAccount
	err := row.Scan(
		&account.UserID,
		&account.CreatedAt,
		&account.UpdatedAt,
		&account.Balance,
		&account.TotalEarned,
		&account.TotalSpent,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &account, nil
}

func scanTransaction(row pgx.Row) (*domain.CreditTransaction, error) {
	var transaction domain.CreditTransaction
	err := row.Scan(
		&transaction.ID,
		&transaction.CreatedAt,
		&transaction.UserID,
		&transaction.Amount,
		&transaction.Type,
		&transaction.Description,
		&transaction.ReferenceID,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &transaction, nil
}
