package model

import "time"

// 在庫調整の履歴（在庫台帳）
// Deltaは増減量、Reasonは "order:12" / "order_cancel:12" / "stock_set" など
type InventoryAdjustment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64     `gorm:"not null;index" json:"product_id"`
	ActorUserID int64     `gorm:"not null;index" json:"actor_user_id"`
	Delta       int64     `gorm:"not null" json:"delta"`
	Reason      string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

const (
	AdjustmentReasonStockSet = "stock_set"
)
