package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 在庫少通知の絞り込み。VendorIDがnilなら全vendor（admin用）
type StockNotificationFilter struct {
	VendorID           *int64
	OnlyUnacknowledged bool
}

type StockNotificationRepository interface {
	// 同じ(product, vendor, 日付)が既にあれば何もしない。作成したらtrue
	CreateIfAbsent(ctx context.Context, n *model.StockNotification) (bool, error)
	List(ctx context.Context, filter StockNotificationFilter) ([]model.StockNotification, error)
	// vendorIDを渡すとそのvendorの通知に限る
	Acknowledge(ctx context.Context, notificationID int64, vendorID *int64) error
}
