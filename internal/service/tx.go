// tx.go — транзакции сервисного слоя: репозитории, привязанные к pgx.Tx.
package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jorcase/exadocs/internal/repository"
)

// TxRepos — репозитории, привязанные к одной транзакции.
type TxRepos struct {
	Files   repository.FileRepository
	History repository.ReviewHistoryRepository
	Audit   repository.AuditRepository
	States  repository.FileStateRepository
}

// Transactor выполняет fn внутри транзакции. Ошибка fn — откат.
type Transactor interface {
	InTx(ctx context.Context, fn func(TxRepos) error) error
}

// pgTransactor — Transactor поверх TxRunner.
type pgTransactor struct {
	runner *repository.TxRunner
}

// NewTransactor создаёт Transactor для PostgreSQL.
func NewTransactor(runner *repository.TxRunner) Transactor {
	return &pgTransactor{runner: runner}
}

func (t *pgTransactor) InTx(ctx context.Context, fn func(TxRepos) error) error {
	return t.runner.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(TxRepos{
			Files:   repository.NewFileRepository(tx),
			History: repository.NewReviewHistoryRepository(tx),
			Audit:   repository.NewAuditRepository(tx),
			States:  repository.NewFileStateRepository(tx),
		})
	})
}
