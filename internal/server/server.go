package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"marketplace/internal/handler"
	"marketplace/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

// Handlers はルート登録に必要なもの一式
type Handlers struct {
	Orders      *handler.OrderHandler
	AdminOrders *handler.AdminOrderHandler
	Vendor      *handler.VendorHandler
	AuditLogs   *handler.AdminAuditHandler
}

// New はミドルウェアとルートを登録したechoを返す
func New(log *slog.Logger, jwtSecret string, db *gorm.DB, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))

	e.GET("/healthz", healthz(db))

	auth := middleware.AuthJWT(jwtSecret)
	h.Orders.RegisterRoutes(e, auth)
	h.AdminOrders.RegisterRoutes(e, auth)
	h.Vendor.RegisterRoutes(e, auth)
	h.AuditLogs.RegisterRoutes(e, auth)

	return e
}

// DBにpingできれば200
func healthz(db *gorm.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request().Context())
		}
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, handler.ErrorResponse{Error: "db unavailable"})
		}
		return c.JSON(http.StatusOK, handler.SuccessResponse{Message: "ok"})
	}
}

// Start はctxが終わるまでHTTPを受ける。終了時は処理中のリクエストを待つ
func Start(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
