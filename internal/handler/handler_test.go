package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"marketplace/internal/domain/model"
	"marketplace/internal/handler"
	"marketplace/internal/infra/db"
	"marketplace/internal/infra/notify"
	infraRepo "marketplace/internal/infra/repository"
	"marketplace/internal/server"
	"marketplace/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "handler-test-secret"

type apiEnv struct {
	e        *echo.Echo
	products *infraRepo.ProductGormRepository
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()

	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tx := infraRepo.NewTxManagerGorm(gdb)
	notifications := usecase.NewNotificationUsecase(tx, usecase.SystemClock{}, notify.NopPublisher{}, log)
	inventory := usecase.NewInventoryUsecase(tx, notifications)
	orders := usecase.NewOrderUsecase(tx, inventory, 3, log)

	e := server.New(log, secret, gdb, server.Handlers{
		Orders:      handler.NewOrderHandler(orders),
		AdminOrders: handler.NewAdminOrderHandler(orders),
		Vendor:      handler.NewVendorHandler(inventory, notifications),
		AuditLogs:   handler.NewAdminAuditHandler(usecase.NewAuditUsecase(tx)),
	})
	return &apiEnv{e: e, products: infraRepo.NewProductGormRepository(gdb)}
}

func token(t *testing.T, sub int64, role model.Role, status model.UserStatus) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    sub,
		"role":   string(role),
		"status": string(status),
		"exp":    9999999999,
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func (a *apiEnv) do(t *testing.T, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *apiEnv) seed(t *testing.T, price, stock int64) model.Product {
	t.Helper()
	p, err := a.products.Create(context.Background(), model.Product{
		Name: "Widget", Price: price, Stock: stock, VendorID: 7, IsActive: true,
	})
	require.NoError(t, err)
	return p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrders_PlaceListAndGet(t *testing.T) {
	a := newAPI(t)
	p := a.seed(t, 2999, 50)
	customer := token(t, 100, model.RoleCustomer, model.UserStatusActive)

	rec := a.do(t, http.MethodPost, "/orders", customer, map[string]interface{}{
		"items": []map[string]int64{{"product_id": p.ID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[usecase.OrderOutput](t, rec)
	assert.Equal(t, int64(5998), created.TotalAmount)
	assert.Equal(t, model.OrderStatusPlaced, created.Status)
	require.Len(t, created.Items, 1)
	assert.Equal(t, int64(2999), created.Items[0].PriceAtPurchase)

	rec = a.do(t, http.MethodGet, "/orders", customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[handler.OrderListResponse](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.ID, list.Items[0].ID)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", created.ID), customer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	other := token(t, 101, model.RoleCustomer, model.UserStatusActive)
	rec = a.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", created.ID), other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/orders/abc", customer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrders_Errors(t *testing.T) {
	a := newAPI(t)
	p := a.seed(t, 100, 2)
	customer := token(t, 100, model.RoleCustomer, model.UserStatusActive)

	rec := a.do(t, http.MethodPost, "/orders", customer, map[string]interface{}{"items": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/orders", customer, map[string]interface{}{
		"items": []map[string]int64{{"product_id": p.ID, "quantity": 5}},
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[handler.InsufficientStockResponse](t, rec)
	assert.Equal(t, p.ID, body.ProductID)
	assert.Equal(t, int64(5), body.Requested)
	assert.Equal(t, int64(2), body.Available)

	rec = a.do(t, http.MethodPost, "/orders", customer, map[string]interface{}{
		"items": []map[string]int64{{"product_id": 999, "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	suspended := token(t, 100, model.RoleCustomer, model.UserStatusSuspended)
	rec = a.do(t, http.MethodPost, "/orders", suspended, map[string]interface{}{
		"items": []map[string]int64{{"product_id": p.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVendor_StockAndNotifications(t *testing.T) {
	a := newAPI(t)
	p := a.seed(t, 100, 15)
	vendor := token(t, 7, model.RoleVendor, model.UserStatusActive)

	rec := a.do(t, http.MethodPut, fmt.Sprintf("/vendor/products/%d/stock", p.ID), vendor, map[string]int64{"stock": 8})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[usecase.SetStockResult](t, rec)
	assert.Equal(t, int64(15), res.PreviousStock)
	assert.True(t, res.LowStockTriggered)
	assert.True(t, res.NotificationCreated)

	rec = a.do(t, http.MethodPut, fmt.Sprintf("/vendor/products/%d/stock", p.ID), vendor, map[string]int64{"stock": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, fmt.Sprintf("/vendor/products/%d/stock", p.ID), vendor, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 同じ日の明示的な通知は作られない
	rec = a.do(t, http.MethodPost, "/vendor/notifications", vendor, map[string]int64{"product_id": p.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[handler.RaiseNotificationResponse](t, rec).Created)

	rec = a.do(t, http.MethodGet, "/vendor/notifications?unacknowledged=true", vendor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[handler.NotificationListResponse](t, rec)
	require.Len(t, list.Items, 1)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/vendor/notifications/%d/ack", list.Items[0].ID), vendor, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/vendor/notifications?unacknowledged=true", vendor, nil)
	assert.Empty(t, decode[handler.NotificationListResponse](t, rec).Items)

	rec = a.do(t, http.MethodGet, "/vendor/notifications?unacknowledged=maybe", vendor, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/vendor/products/%d/adjustments", p.ID), vendor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[handler.AdjustmentListResponse](t, rec).Items, 1)

	customer := token(t, 100, model.RoleCustomer, model.UserStatusActive)
	rec = a.do(t, http.MethodGet, "/vendor/notifications", customer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_UpdateOrderStatus(t *testing.T) {
	a := newAPI(t)
	p := a.seed(t, 100, 10)
	customer := token(t, 100, model.RoleCustomer, model.UserStatusActive)
	admin := token(t, 1, model.RoleAdmin, model.UserStatusActive)

	rec := a.do(t, http.MethodPost, "/orders", customer, map[string]interface{}{
		"items": []map[string]int64{{"product_id": p.ID, "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	o := decode[usecase.OrderOutput](t, rec)
	path := fmt.Sprintf("/admin/orders/%d/status", o.ID)

	rec = a.do(t, http.MethodPut, path, admin, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPut, path, admin, map[string]string{"status": "unknown"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, path, customer, map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPut, path, admin, map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.OrderStatusCancelled, decode[usecase.OrderOutput](t, rec).Status)

	got, err := a.products.FindByID(context.Background(), p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Stock)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/admin/audit-logs?resource_type=order&resource_id=%d", o.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[handler.AuditLogListResponse](t, rec)
	require.Len(t, logs.Items, 1)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, logs.Items[0].Action)

	vendor := token(t, 7, model.RoleVendor, model.UserStatusActive)
	rec = a.do(t, http.MethodGet, "/admin/audit-logs", vendor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, "/admin/audit-logs?limit=x", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVendor_OverviewAndProductUpdate(t *testing.T) {
	a := newAPI(t)
	p := a.seed(t, 100, 12)
	vendor := token(t, 7, model.RoleVendor, model.UserStatusActive)
	customer := token(t, 100, model.RoleCustomer, model.UserStatusActive)

	rec := a.do(t, http.MethodPost, "/orders", customer, map[string]interface{}{
		"items": []map[string]int64{{"product_id": p.ID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodPut, fmt.Sprintf("/vendor/products/%d", p.ID), vendor, map[string]int64{"low_stock_threshold": 20})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[usecase.VendorProduct](t, rec)
	assert.Equal(t, int64(20), updated.LowStockThreshold)
	assert.True(t, updated.IsLowStock)
	assert.Equal(t, int64(2), updated.OnOrderQty)

	rec = a.do(t, http.MethodPut, fmt.Sprintf("/vendor/products/%d", p.ID), vendor, map[string]int64{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/vendor/overview", vendor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ov := decode[usecase.VendorOverview](t, rec)
	require.Len(t, ov.Products, 1)
	assert.Equal(t, usecase.OverviewSummary{TotalProducts: 1, LowStockCount: 1, OnOrderTotal: 2}, ov.Summary)

	rec = a.do(t, http.MethodGet, "/vendor/overview?vendor_id=8", vendor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, "/vendor/overview?vendor_id=x", vendor, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 閾値変更では通知は作られない
	rec = a.do(t, http.MethodGet, "/vendor/notifications", vendor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[handler.NotificationListResponse](t, rec).Items)
}

func TestAdmin_SeesVendorNotifications(t *testing.T) {
	a := newAPI(t)
	p := a.seed(t, 100, 15)
	admin := token(t, 1, model.RoleAdmin, model.UserStatusActive)

	rec := a.do(t, http.MethodPut, fmt.Sprintf("/vendor/products/%d/stock", p.ID), admin, map[string]int64{"stock": 5})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/vendor/notifications?vendor_id=7&unacknowledged=true", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[handler.NotificationListResponse](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, int64(7), list.Items[0].VendorID)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/vendor/notifications/%d/ack", list.Items[0].ID), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/vendor/notifications?unacknowledged=true", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[handler.NotificationListResponse](t, rec).Items)
}
