package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 新しい順
	ListByUserID(ctx context.Context, userID int64) ([]model.Order, error)
	Create(ctx context.Context, order model.Order) (model.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	// vendorの商品を含む注文か
	ContainsVendorProduct(ctx context.Context, orderID int64, vendorID int64) (bool, error)
	// 未完了（placed/processing/shipped）の注文に入っている数量を商品ごとに合計する
	OpenQuantities(ctx context.Context, productIDs []int64) (map[int64]int64, error)
}
