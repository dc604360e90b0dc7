package model

import "time"

// NotifiedOnの書式（UTCの日付）
const NotificationDayLayout = "2006-01-02"

// 在庫少通知。(product_id, vendor_id, 日付)で一意
type StockNotification struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID    int64     `gorm:"not null;uniqueIndex:ux_stock_notifications_daily,priority:1" json:"product_id"`
	VendorID     int64     `gorm:"not null;index;uniqueIndex:ux_stock_notifications_daily,priority:2" json:"vendor_id"`
	NotifiedOn   string    `gorm:"type:varchar(10);not null;uniqueIndex:ux_stock_notifications_daily,priority:3" json:"notified_on"`
	NotifiedAt   time.Time `gorm:"not null" json:"notified_at"`
	Acknowledged bool      `gorm:"not null;default:false" json:"acknowledged"`
}

func NotificationDay(t time.Time) string {
	return t.UTC().Format(NotificationDayLayout)
}
