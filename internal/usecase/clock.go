package usecase

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// 在庫少通知をvendorへ流す先（Redisなど）
type LowStockPublisher interface {
	PublishLowStock(ctx context.Context, n model.StockNotification) error
}
