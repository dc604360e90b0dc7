package model

import (
	"time"

	"gorm.io/gorm"
)

// 在庫閾値の既定値
const DefaultLowStockThreshold int64 = 10

// 価格は最小通貨単位（cent）で持つ
type Product struct {
	ID                int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string         `gorm:"type:varchar(255);not null" json:"name"`
	Description       string         `gorm:"type:text" json:"description"`
	Price             int64          `gorm:"not null;check:chk_products_price,price >= 0" json:"price"`
	Stock             int64          `gorm:"not null;default:0;check:chk_products_stock,stock >= 0" json:"stock"`
	LowStockThreshold int64          `gorm:"not null;default:10" json:"low_stock_threshold"`
	VendorID          int64          `gorm:"not null;index" json:"vendor_id"`
	IsActive          bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// 閾値を下回っているか
func (p Product) IsLowStock() bool {
	return p.Stock < p.LowStockThreshold
}
