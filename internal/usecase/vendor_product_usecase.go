package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// vendorダッシュボード用の商品行
type VendorProduct struct {
	model.Product
	IsLowStock bool  `json:"is_low_stock"`
	OnOrderQty int64 `json:"on_order_qty"` // 未完了の注文に入っている数量
}

type OverviewSummary struct {
	TotalProducts int   `json:"total_products"`
	LowStockCount int   `json:"low_stock_count"`
	OnOrderTotal  int64 `json:"on_order_total"`
}

type VendorOverview struct {
	Products []VendorProduct `json:"products"`
	Summary  OverviewSummary `json:"summary"`
}

// 未指定(nil)の項目は変えない。在庫はSetStockで変える
type ProductPatch struct {
	Price             *int64 `json:"price"`
	LowStockThreshold *int64 `json:"low_stock_threshold"`
}

// Overview はvendorの商品一覧と集計を返す。adminはvendorIDで絞れる（0なら全商品）
func (u *InventoryUsecase) Overview(ctx context.Context, actor model.Principal, vendorID int64) (VendorOverview, error) {
	scope, err := vendorScope(actor, vendorID)
	if err != nil {
		return VendorOverview{}, err
	}
	var target int64
	if scope != nil {
		target = *scope
	}

	out := VendorOverview{Products: []VendorProduct{}}
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		products, err := r.Products().ListByVendorID(ctx, target)
		if err != nil {
			return persistence(err)
		}

		ids := make([]int64, 0, len(products))
		for _, p := range products {
			ids = append(ids, p.ID)
		}
		open, err := r.Orders().OpenQuantities(ctx, ids)
		if err != nil {
			return persistence(err)
		}

		for _, p := range products {
			vp := VendorProduct{Product: p, IsLowStock: p.IsLowStock(), OnOrderQty: open[p.ID]}
			out.Products = append(out.Products, vp)
			if vp.IsLowStock {
				out.Summary.LowStockCount++
			}
			out.Summary.OnOrderTotal += vp.OnOrderQty
		}
		out.Summary.TotalProducts = len(out.Products)
		return nil
	})
	if err != nil {
		return VendorOverview{}, txError(err)
	}
	return out, nil
}

type productAuditState struct {
	Price             int64 `json:"price"`
	LowStockThreshold int64 `json:"low_stock_threshold"`
}

// UpdateProduct は価格・在庫閾値を変える。
// 閾値を上げて在庫少の状態になっても通知は出さない（在庫の変化ではないため）
func (u *InventoryUsecase) UpdateProduct(ctx context.Context, actor model.Principal, productID int64, patch ProductPatch) (VendorProduct, error) {
	if err := requireStaff(actor); err != nil {
		return VendorProduct{}, err
	}
	if productID <= 0 {
		return VendorProduct{}, ErrProductNotFound
	}
	if patch.Price == nil && patch.LowStockThreshold == nil {
		return VendorProduct{}, ErrEmptyUpdate
	}
	if patch.Price != nil && *patch.Price < 0 {
		return VendorProduct{}, ErrInvalidPrice
	}
	if patch.LowStockThreshold != nil && *patch.LowStockThreshold < 0 {
		return VendorProduct{}, ErrInvalidQuantity
	}

	var out VendorProduct
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID, true)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return persistence(err)
		}
		if actor.IsVendor() && p.VendorID != actor.ID {
			return ErrProductNotFound
		}

		before := productAuditState{Price: p.Price, LowStockThreshold: p.LowStockThreshold}
		after := before

		if patch.Price != nil {
			if err := r.Products().UpdatePrice(ctx, productID, *patch.Price); err != nil {
				return persistence(err)
			}
			after.Price = *patch.Price
		}
		if patch.LowStockThreshold != nil {
			if err := r.Products().UpdateLowStockThreshold(ctx, productID, *patch.LowStockThreshold); err != nil {
				return persistence(err)
			}
			after.LowStockThreshold = *patch.LowStockThreshold
		}

		b, err := json.Marshal(before)
		if err != nil {
			return err
		}
		a, err := json.Marshal(after)
		if err != nil {
			return err
		}
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.ID,
			Action:       model.AuditActionUpdateProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   string(b),
			AfterJSON:    string(a),
			CreatedAt:    time.Now(),
		}); err != nil {
			return persistence(err)
		}

		updated, err := r.Products().FindByID(ctx, productID, false)
		if err != nil {
			return persistence(err)
		}
		open, err := r.Orders().OpenQuantities(ctx, []int64{productID})
		if err != nil {
			return persistence(err)
		}
		out = VendorProduct{Product: updated, IsLowStock: updated.IsLowStock(), OnOrderQty: open[productID]}
		return nil
	})
	if err != nil {
		return VendorProduct{}, txError(err)
	}
	return out, nil
}
