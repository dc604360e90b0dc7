package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// vendorごとのチャンネルに在庫少通知を流す
type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisPublisher(client redis.UniversalClient, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func NewRedisClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, DB: db})
}

type lowStockMessage struct {
	NotificationID int64     `json:"notification_id"`
	ProductID      int64     `json:"product_id"`
	VendorID       int64     `json:"vendor_id"`
	NotifiedAt     time.Time `json:"notified_at"`
}

func (p *RedisPublisher) Channel(vendorID int64) string {
	return fmt.Sprintf("%s:vendor:%d:low_stock", p.prefix, vendorID)
}

func (p *RedisPublisher) PublishLowStock(ctx context.Context, n model.StockNotification) error {
	b, err := json.Marshal(lowStockMessage{
		NotificationID: n.ID,
		ProductID:      n.ProductID,
		VendorID:       n.VendorID,
		NotifiedAt:     n.NotifiedAt,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.Channel(n.VendorID), b).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Redis未設定時
type NopPublisher struct{}

func (NopPublisher) PublishLowStock(context.Context, model.StockNotification) error { return nil }
