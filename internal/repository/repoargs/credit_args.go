package repoargs

import "github.com/fsdevblog/groph-pay/internal/domain"

// TransactionCreate аргументы вставки записи в журнал транзакций. Amount подписанный:
// положительный для начислений, отрицательный для списаний.
type TransactionCreate struct {
	UserID      int64
	Amount      int64
	Type        domain.TransactionType
	Description string
	ReferenceID string
}
