package model

// AutoMigrate対象
func All() []interface{} {
	return []interface{}{
		&Product{},
		&Order{},
		&OrderItem{},
		&StockNotification{},
		&InventoryAdjustment{},
		&AuditLog{},
	}
}
