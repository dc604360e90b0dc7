package usecase

import (
	"context"
	"errors"
	"log/slog"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 在庫少通知を(product, vendor, 日付)ごとに1件に絞る
type NotificationUsecase struct {
	tx        repo.TransactionManager
	clock     Clock
	publisher LowStockPublisher
	log       *slog.Logger
}

func NewNotificationUsecase(tx repo.TransactionManager, clock Clock, publisher LowStockPublisher, log *slog.Logger) *NotificationUsecase {
	return &NotificationUsecase{tx: tx, clock: clock, publisher: publisher, log: log}
}

// RaiseLowStock は今日の通知が無ければ作る。既にあれば何もしない（createdはfalse）
func (u *NotificationUsecase) RaiseLowStock(ctx context.Context, productID, vendorID int64) (model.StockNotification, bool, error) {
	if productID <= 0 || vendorID <= 0 {
		return model.StockNotification{}, false, ErrProductNotFound
	}

	var (
		n       model.StockNotification
		created bool
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		n, created, err = u.raiseTx(ctx, r, productID, vendorID)
		return err
	})
	if err != nil {
		return model.StockNotification{}, false, txError(err)
	}

	if created {
		u.publish(ctx, n)
	}
	return n, created, nil
}

// vendorが自分の商品について明示的に通知を上げる
func (u *NotificationUsecase) RaiseLowStockForProduct(ctx context.Context, actor model.Principal, productID int64) (model.StockNotification, bool, error) {
	if err := requireStaff(actor); err != nil {
		return model.StockNotification{}, false, err
	}

	var p model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		p, err = r.Products().FindByID(ctx, productID, false)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return persistence(err)
		}
		if actor.IsVendor() && p.VendorID != actor.ID {
			return ErrProductNotFound
		}
		return nil
	})
	if err != nil {
		return model.StockNotification{}, false, txError(err)
	}

	return u.RaiseLowStock(ctx, p.ID, p.VendorID)
}

// Tx内で使う。publishはcommit後に呼び出し側が行う
func (u *NotificationUsecase) raiseTx(ctx context.Context, r repo.TxRepos, productID, vendorID int64) (model.StockNotification, bool, error) {
	now := u.clock.Now()
	n := model.StockNotification{
		ProductID:  productID,
		VendorID:   vendorID,
		NotifiedOn: model.NotificationDay(now),
		NotifiedAt: now,
	}

	created, err := r.Notifications().CreateIfAbsent(ctx, &n)
	if err != nil {
		return model.StockNotification{}, false, persistence(err)
	}
	return n, created, nil
}

// 通知行が正。publishの失敗はログだけ
func (u *NotificationUsecase) publish(ctx context.Context, n model.StockNotification) {
	if u.publisher == nil {
		return
	}
	if err := u.publisher.PublishLowStock(ctx, n); err != nil {
		u.log.WarnContext(ctx, "low stock publish failed",
			slog.Int64("notification_id", n.ID),
			slog.Int64("product_id", n.ProductID),
			slog.Int64("vendor_id", n.VendorID),
			slog.Any("error", err),
		)
	}
}

// ListForVendor はvendorなら自分の通知、adminなら全vendor（vendorIDを渡せばそのvendor）の通知を返す
func (u *NotificationUsecase) ListForVendor(ctx context.Context, actor model.Principal, vendorID int64, onlyUnacknowledged bool) ([]model.StockNotification, error) {
	scope, err := vendorScope(actor, vendorID)
	if err != nil {
		return nil, err
	}

	var list []model.StockNotification
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		list, err = r.Notifications().List(ctx, repo.StockNotificationFilter{
			VendorID:           scope,
			OnlyUnacknowledged: onlyUnacknowledged,
		})
		if err != nil {
			return persistence(err)
		}
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}
	if list == nil {
		list = []model.StockNotification{}
	}
	return list, nil
}

// Acknowledge はvendorなら自分の通知だけ、adminならどの通知でも既読にできる
func (u *NotificationUsecase) Acknowledge(ctx context.Context, actor model.Principal, notificationID int64) error {
	scope, err := vendorScope(actor, 0)
	if err != nil {
		return err
	}
	if notificationID <= 0 {
		return ErrNotFound
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		err := r.Notifications().Acknowledge(ctx, notificationID, scope)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return persistence(err)
		}
		return nil
	})
	return txError(err)
}

// vendor向けデータを見られる範囲。nilは全vendor（admin）
func vendorScope(actor model.Principal, vendorID int64) (*int64, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		if vendorID > 0 {
			return &vendorID, nil
		}
		return nil, nil
	}
	//vendorは他vendorを指定できない
	if vendorID > 0 && vendorID != actor.ID {
		return nil, ErrForbidden
	}
	id := actor.ID
	return &id, nil
}

// vendor / admin のみ
func requireStaff(actor model.Principal) error {
	if actor.ID <= 0 {
		return ErrUnauthorized
	}
	if !actor.IsActive() {
		return ErrForbidden
	}
	if !actor.IsVendor() && !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func requireActive(actor model.Principal) error {
	if actor.ID <= 0 {
		return ErrUnauthorized
	}
	if !actor.IsActive() {
		return ErrForbidden
	}
	return nil
}
