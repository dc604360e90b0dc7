package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// idsの商品をまとめて取得（論理削除済みは含まない）
// デッドロックを避けるためid昇順でロックを取る
func (r *ProductGormRepository) FindByIDs(ctx context.Context, ids []int64, lock bool) (map[int64]model.Product, error) {
	out := make(map[int64]model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	q := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id asc")
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var products []model.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// IDで商品を取得
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64, lock bool) (model.Product, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var p model.Product
	err := q.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 商品の作成
func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if p.LowStockThreshold == 0 {
		p.LowStockThreshold = model.DefaultLowStockThreshold
	}
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *ProductGormRepository) ListByVendorID(ctx context.Context, vendorID int64) ([]model.Product, error) {
	q := r.db.WithContext(ctx)
	if vendorID > 0 {
		q = q.Where("vendor_id = ?", vendorID)
	}

	var products []model.Product
	if err := q.Order("created_at desc").Order("id desc").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// 価格だけ更新（既存注文のスナップショットには影響しない）
func (r *ProductGormRepository) UpdatePrice(ctx context.Context, id int64, price int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Update("price", price)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 閾値の変更は在庫を動かさないので通知の対象外
func (r *ProductGormRepository) UpdateLowStockThreshold(ctx context.Context, id int64, threshold int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Update("low_stock_threshold", threshold)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
