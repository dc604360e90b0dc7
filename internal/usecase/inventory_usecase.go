package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 在庫台帳。在庫の増減はすべてここを通し、InventoryAdjustmentを残す
type InventoryUsecase struct {
	tx   repo.TransactionManager
	gate *NotificationUsecase
}

func NewInventoryUsecase(tx repo.TransactionManager, gate *NotificationUsecase) *InventoryUsecase {
	return &InventoryUsecase{tx: tx, gate: gate}
}

type SetStockResult struct {
	Product       model.Product `json:"product"`
	PreviousStock int64         `json:"previous_stock"`
	// 閾値を跨いで下回った（Notification Gateを呼んだ）
	LowStockTriggered bool `json:"low_stock_triggered"`
	// 今日の通知行を新しく作った
	NotificationCreated bool `json:"notification_created"`
}

// 閾値以上 → 閾値未満 の遷移だけ（edge trigger）
func crossedBelowThreshold(prev, next, threshold int64) bool {
	return prev >= threshold && next < threshold
}

// DecrementStock は単独のTxで在庫を減らす
func (u *InventoryUsecase) DecrementStock(ctx context.Context, actorID, productID, qty int64) error {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return u.DecrementStockTx(ctx, r, actorID, productID, qty, "manual")
	})
	return txError(err)
}

// DecrementStockTx は呼び出し側のTx内で在庫を減らす。足りなければ何もせずInsufficientStock
func (u *InventoryUsecase) DecrementStockTx(ctx context.Context, r repo.TxRepos, actorID, productID, qty int64, reason string) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	ok, err := r.Inventory().DecreaseStockIfEnough(ctx, productID, qty)
	if err != nil {
		return persistence(err)
	}
	if !ok {
		p, err := r.Products().FindByID(ctx, productID, false)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return persistence(err)
		}
		return &InsufficientStockError{ProductID: productID, Requested: qty, Available: p.Stock}
	}

	if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:   productID,
		ActorUserID: actorID,
		Delta:       -qty,
		Reason:      reason,
	}); err != nil {
		return persistence(err)
	}
	return nil
}

// RestockTx はキャンセル時の在庫戻し。増加なので通知は出ない
func (u *InventoryUsecase) RestockTx(ctx context.Context, r repo.TxRepos, actorID, productID, qty int64, reason string) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if err := r.Inventory().IncreaseStock(ctx, productID, qty); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrProductNotFound
		}
		return persistence(err)
	}
	if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:   productID,
		ActorUserID: actorID,
		Delta:       qty,
		Reason:      reason,
	}); err != nil {
		return persistence(err)
	}
	return nil
}

// SetStock はvendor/adminによる在庫の上書き。
// 閾値を跨いで下回ったときだけ同じTx内で在庫少通知を上げる
func (u *InventoryUsecase) SetStock(ctx context.Context, actor model.Principal, productID int64, newStock int64) (SetStockResult, error) {
	if err := requireStaff(actor); err != nil {
		return SetStockResult{}, err
	}
	if productID <= 0 {
		return SetStockResult{}, ErrProductNotFound
	}
	if newStock < 0 {
		return SetStockResult{}, ErrInvalidQuantity
	}

	var (
		out     SetStockResult
		created *model.StockNotification
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（行ロック）
		p, err := r.Products().FindByID(ctx, productID, true)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return persistence(err)
		}
		//他vendorの商品は存在しない扱い
		if actor.IsVendor() && p.VendorID != actor.ID {
			return ErrProductNotFound
		}

		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrProductNotFound
			}
			return persistence(err)
		}

		//履歴（差分）
		if delta := newStock - p.Stock; delta != 0 {
			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID:   productID,
				ActorUserID: actor.ID,
				Delta:       delta,
				Reason:      model.AdjustmentReasonStockSet,
			}); err != nil {
				return persistence(err)
			}
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.ID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, p.Stock),
			AfterJSON:    fmt.Sprintf(`{"stock":%d}`, newStock),
			CreatedAt:    time.Now(),
		}); err != nil {
			return persistence(err)
		}

		prev := p.Stock
		p.Stock = newStock
		out = SetStockResult{Product: p, PreviousStock: prev}

		if !crossedBelowThreshold(prev, newStock, p.LowStockThreshold) {
			return nil
		}
		out.LowStockTriggered = true

		n, ok, err := u.gate.raiseTx(ctx, r, p.ID, p.VendorID)
		if err != nil {
			return err
		}
		if ok {
			out.NotificationCreated = true
			created = &n
		}
		return nil
	})
	if err != nil {
		return SetStockResult{}, txError(err)
	}

	//commit後に流す
	if created != nil {
		u.gate.publish(ctx, *created)
	}
	return out, nil
}

func (u *InventoryUsecase) ListAdjustments(ctx context.Context, actor model.Principal, productID int64) ([]model.InventoryAdjustment, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	var list []model.InventoryAdjustment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID, false)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return persistence(err)
		}
		if actor.IsVendor() && p.VendorID != actor.ID {
			return ErrProductNotFound
		}

		list, err = r.Inventory().ListAdjustments(ctx, productID)
		if err != nil {
			return persistence(err)
		}
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}
	if list == nil {
		list = []model.InventoryAdjustment{}
	}
	return list, nil
}
