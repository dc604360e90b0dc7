package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// ParseOrderStatus はリクエストの文字列を検証する
func ParseOrderStatus(s string) (model.OrderStatus, error) {
	st := model.OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// UpdateStatus はvendor/adminによる注文ステータス更新。
// cancelledにしたときは同じTx内で在庫を戻す
func (u *OrderUsecase) UpdateStatus(ctx context.Context, actor model.Principal, orderID int64, next model.OrderStatus) (OrderOutput, error) {
	if err := requireStaff(actor); err != nil {
		return OrderOutput{}, err
	}
	if orderID <= 0 {
		return OrderOutput{}, ErrOrderNotFound
	}
	if !next.Valid() {
		return OrderOutput{}, ErrInvalidStatus
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return persistence(err)
		}

		//vendorは自分の商品を含む注文だけ
		if actor.IsVendor() {
			ok, err := r.Orders().ContainsVendorProduct(ctx, orderID, actor.ID)
			if err != nil {
				return persistence(err)
			}
			if !ok {
				return ErrOrderNotFound
			}
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return persistence(err)
		}

		// すでに同じなら何もしない
		if o.Status == next {
			out = toOrderOutput(o, items)
			return nil
		}
		if o.Status.IsTerminal() {
			return fmt.Errorf("%w: order is already %s", ErrInvalidTransition, o.Status)
		}
		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
		}

		if next == model.OrderStatusCancelled {
			reason := fmt.Sprintf("order_cancel:%d", orderID)
			for _, it := range items {
				if err := u.inventory.RestockTx(ctx, r, actor.ID, it.ProductID, it.Quantity, reason); err != nil {
					return err
				}
			}
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, next); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrOrderNotFound
			}
			return persistence(err)
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.ID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   `{"status":"` + string(o.Status) + `"}`,
			AfterJSON:    `{"status":"` + string(next) + `"}`,
			CreatedAt:    time.Now(),
		}); err != nil {
			return persistence(err)
		}

		updated, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return persistence(err)
		}
		out = toOrderOutput(updated, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, txError(err)
	}
	return out, nil
}
