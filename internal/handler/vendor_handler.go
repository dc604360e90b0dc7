package handler

import (
	"net/http"
	"strconv"

	"marketplace/internal/domain/model"
	"marketplace/internal/middleware"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /vendor 配下（在庫と在庫少通知）
type VendorHandler struct {
	inventory     *usecase.InventoryUsecase
	notifications *usecase.NotificationUsecase
}

func NewVendorHandler(inventory *usecase.InventoryUsecase, notifications *usecase.NotificationUsecase) *VendorHandler {
	return &VendorHandler{inventory: inventory, notifications: notifications}
}

// Stockはポインタで受けて未指定を弾く
type StockUpdateRequest struct {
	Stock *int64 `json:"stock"`
}

type RaiseNotificationRequest struct {
	ProductID int64 `json:"product_id"`
}

type RaiseNotificationResponse struct {
	Notification model.StockNotification `json:"notification"`
	Created      bool                    `json:"created"`
}

type NotificationListResponse struct {
	Items []model.StockNotification `json:"items"`
}

type AdjustmentListResponse struct {
	Items []model.InventoryAdjustment `json:"items"`
}

func (h *VendorHandler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc) {
	g := e.Group("/vendor")
	g.Use(auth)
	g.Use(middleware.RoleGuard(model.RoleVendor, model.RoleAdmin))

	g.GET("/overview", h.overview)
	g.PUT("/products/:id", h.updateProduct)
	g.PUT("/products/:id/stock", h.setStock)
	g.GET("/products/:id/adjustments", h.adjustments)

	g.GET("/notifications", h.listNotifications)
	g.POST("/notifications", h.raiseNotification)
	g.POST("/notifications/:id/ack", h.acknowledge)
}

func (h *VendorHandler) overview(c echo.Context) error {
	p, ok := principalFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	vendorID, ok := vendorIDQuery(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid vendor_id"})
	}

	out, err := h.inventory.Overview(c.Request().Context(), p, vendorID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 価格・在庫閾値の更新（在庫は /stock）
func (h *VendorHandler) updateProduct(c echo.Context) error {
	p, ok := principalFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req usecase.ProductPatch
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.inventory.UpdateProduct(c.Request().Context(), p, productID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *VendorHandler) setStock(c echo.Context) error {
	p, ok := principalFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req StockUpdateRequest
	if err := c.Bind(&req); err != nil || req.Stock == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.inventory.SetStock(c.Request().Context(), p, productID, *req.Stock)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *VendorHandler) adjustments(c echo.Context) error {
	p, ok := principalFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.inventory.ListAdjustments(c.Request().Context(), p, productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, AdjustmentListResponse{Items: out})
}

func (h *VendorHandler) listNotifications(c echo.Context) error {
	p, ok := principalFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	onlyUnack := false
	if v := c.QueryParam("unacknowledged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid unacknowledged"})
		}
		onlyUnack = b
	}

	vendorID, ok := vendorIDQuery(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid vendor_id"})
	}

	out, err := h.notifications.ListForVendor(c.Request().Context(), p, vendorID, onlyUnack)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, NotificationListResponse{Items: out})
}

func (h *VendorHandler) raiseNotification(c echo.Context) error {
	p, ok := principalFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req RaiseNotificationRequest
	if err := c.Bind(&req); err != nil || req.ProductID <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	n, created, err := h.notifications.RaiseLowStockForProduct(c.Request().Context(), p, req.ProductID)
	if err != nil {
		return writeError(c, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, RaiseNotificationResponse{Notification: n, Created: created})
}

func (h *VendorHandler) acknowledge(c echo.Context) error {
	p, ok := principalFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	if err := h.notifications.Acknowledge(c.Request().Context(), p, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "acknowledged"})
}

// ?vendor_id= はadmin向け（vendorが他vendorを指定するとusecaseで403）
func vendorIDQuery(c echo.Context) (int64, bool) {
	v := c.QueryParam("vendor_id")
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
