package repository

import (
	"context"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockNotificationGormRepository struct {
	db *gorm.DB
}

func NewStockNotificationGormRepository(db *gorm.DB) *StockNotificationGormRepository {
	return &StockNotificationGormRepository{db: db}
}

// ux_stock_notifications_dailyにぶつかったら何もしない
func (r *StockNotificationGormRepository) CreateIfAbsent(ctx context.Context, n *model.StockNotification) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(n)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *StockNotificationGormRepository) List(ctx context.Context, filter repo.StockNotificationFilter) ([]model.StockNotification, error) {
	q := r.db.WithContext(ctx)
	if filter.VendorID != nil {
		q = q.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.OnlyUnacknowledged {
		q = q.Where("acknowledged = ?", false)
	}

	var list []model.StockNotification
	if err := q.Order("notified_at desc").Order("id desc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// 他のvendorの通知は存在しない扱い
func (r *StockNotificationGormRepository) Acknowledge(ctx context.Context, notificationID int64, vendorID *int64) error {
	q := r.db.WithContext(ctx).
		Model(&model.StockNotification{}).
		Where("id = ?", notificationID)
	if vendorID != nil {
		q = q.Where("vendor_id = ?", *vendorID)
	}

	res := q.Update("acknowledged", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
