package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/infra/db"
	infraRepo "marketplace/internal/infra/repository"
	"marketplace/internal/usecase"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []model.StockNotification
	err  error
}

func (p *recordingPublisher) PublishLowStock(_ context.Context, n model.StockNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return p.err
}

func (p *recordingPublisher) Sent() []model.StockNotification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.StockNotification(nil), p.sent...)
}

type testEnv struct {
	db            *gorm.DB
	products      *infraRepo.ProductGormRepository
	orders        *usecase.OrderUsecase
	inventory     *usecase.InventoryUsecase
	notifications *usecase.NotificationUsecase
	clock         *fakeClock
	publisher     *recordingPublisher
}

var (
	customer = model.Principal{ID: 100, Role: model.RoleCustomer, Status: model.UserStatusActive}
	vendor   = model.Principal{ID: 7, Role: model.RoleVendor, Status: model.UserStatusActive}
	admin    = model.Principal{ID: 1, Role: model.RoleAdmin, Status: model.UserStatusActive}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}

	tx := infraRepo.NewTxManagerGorm(gdb)
	gate := usecase.NewNotificationUsecase(tx, clock, pub, log)
	inv := usecase.NewInventoryUsecase(tx, gate)

	return &testEnv{
		db:            gdb,
		products:      infraRepo.NewProductGormRepository(gdb),
		orders:        usecase.NewOrderUsecase(tx, inv, 3, log),
		inventory:     inv,
		notifications: gate,
		clock:         clock,
		publisher:     pub,
	}
}

func (e *testEnv) seedProduct(t *testing.T, name string, price, stock int64) model.Product {
	t.Helper()
	p, err := e.products.Create(context.Background(), model.Product{
		Name:              name,
		Price:             price,
		Stock:             stock,
		LowStockThreshold: 10,
		VendorID:          vendor.ID,
		IsActive:          true,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) stockOf(t *testing.T, productID int64) int64 {
	t.Helper()
	p, err := e.products.FindByID(context.Background(), productID, false)
	require.NoError(t, err)
	return p.Stock
}

func (e *testEnv) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(m).Count(&n).Error)
	return n
}
