package usecase

import (
	"context"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 監査ログの閲覧（adminのみ）
type AuditUsecase struct {
	tx repo.TransactionManager
}

func NewAuditUsecase(tx repo.TransactionManager) *AuditUsecase {
	return &AuditUsecase{tx: tx}
}

func (u *AuditUsecase) List(ctx context.Context, actor model.Principal, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	if err := requireActive(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	var logs []model.AuditLog
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(ctx, filter)
		if err != nil {
			return persistence(err)
		}
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}
