package repository

import (
	"context"
	"errors"
	"fmt"

	repo "marketplace/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

type txReposGorm struct {
	orders        repo.OrderRepository
	orderItems    repo.OrderItemRepository
	products      repo.ProductRepository
	inventory     repo.InventoryRepository
	notifications repo.StockNotificationRepository
	auditLogs     repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository                    { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository            { return r.orderItems }
func (r *txReposGorm) Products() repo.ProductRepository                { return r.products }
func (r *txReposGorm) Inventory() repo.InventoryRepository             { return r.inventory }
func (r *txReposGorm) Notifications() repo.StockNotificationRepository { return r.notifications }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository              { return r.auditLogs }

// repoはdbハンドルから作る（Tx内ならtx）
func newTxRepos(db *gorm.DB) *txReposGorm {
	return &txReposGorm{
		orders:        NewOrderGormRepository(db),
		orderItems:    NewOrderItemGormRepository(db),
		products:      NewProductGormRepository(db),
		inventory:     NewInventoryGormRepository(db),
		notifications: NewStockNotificationGormRepository(db),
		auditLogs:     NewAuditLogGormRepository(db),
	}
}

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// fnがerrorを返すかpanicしたらrollback。ctxのキャンセルでもrollbackされる
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		return fn(newTxRepos(tx))
	})
	return classifyTxError(err)
}

// やり直しで通る可能性がある失敗にErrTxConflictを付ける
func classifyTxError(err error) error {
	if err == nil || errors.Is(err, repo.ErrTxConflict) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %w", repo.ErrTxConflict, err)
		}
		return err
	}

	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		if sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %w", repo.ErrTxConflict, err)
		}
	}
	return err
}
