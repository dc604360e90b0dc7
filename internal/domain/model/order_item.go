package model

// 注文明細。価格と商品名は注文時点のスナップショット
type OrderItem struct {
	ID                  int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64  `gorm:"not null;index" json:"order_id"`
	ProductID           int64  `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	Quantity            int64  `gorm:"not null;check:chk_order_items_quantity,quantity > 0" json:"quantity"`
	PriceAtPurchase     int64  `gorm:"not null" json:"price_at_purchase"`
}

func (it OrderItem) LineTotal() int64 {
	return it.PriceAtPurchase * it.Quantity
}
