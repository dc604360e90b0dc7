package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// serialization failure / deadlockなど、Txをやり直せば通る可能性がある失敗
var ErrTxConflict = errors.New("transaction conflict")

// 商品カタログの読み取り（在庫の書き込みはInventoryRepository）
type ProductRepository interface {
	// idsに対応する商品をまとめて返す。lock=trueなら行ロック（FOR UPDATE）を取る
	FindByIDs(ctx context.Context, ids []int64, lock bool) (map[int64]model.Product, error)
	FindByID(ctx context.Context, id int64, lock bool) (model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)
	// vendorIDが0なら全商品。新しい順
	ListByVendorID(ctx context.Context, vendorID int64) ([]model.Product, error)
	UpdatePrice(ctx context.Context, id int64, price int64) error
	UpdateLowStockThreshold(ctx context.Context, id int64, threshold int64) error
}
