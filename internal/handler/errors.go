package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"marketplace/internal/domain/model"
	"marketplace/internal/middleware"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// 在庫不足は何がいくつ足りないかを返す
type InsufficientStockResponse struct {
	Error     string `json:"error"`
	ProductID int64  `json:"product_id"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	var ise *usecase.InsufficientStockError
	if errors.As(err, &ise) && !errors.Is(err, usecase.ErrConcurrentStockConflict) {
		return c.JSON(http.StatusConflict, InsufficientStockResponse{
			Error:     "insufficient stock",
			ProductID: ise.ProductID,
			Requested: ise.Requested,
			Available: ise.Available,
		})
	}

	switch {
	case errors.Is(err, usecase.ErrEmptyOrder),
		errors.Is(err, usecase.ErrInvalidQuantity),
		errors.Is(err, usecase.ErrInvalidPrice),
		errors.Is(err, usecase.ErrEmptyUpdate),
		errors.Is(err, usecase.ErrInvalidStatus):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: rootMessage(err)})
	case errors.Is(err, usecase.ErrProductNotFound),
		errors.Is(err, usecase.ErrOrderNotFound),
		errors.Is(err, usecase.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: rootMessage(err)})
	case errors.Is(err, usecase.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrConcurrentStockConflict):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: usecase.ErrConcurrentStockConflict.Error()})
	case errors.Is(err, usecase.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, usecase.ErrForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	}

	//500（中身は返さずログだけ）
	slog.ErrorContext(c.Request().Context(), "request failed",
		slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		slog.String("path", c.Path()),
		slog.Any("error", err),
	)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// "product not found: 12" のような詳細はそのまま返さない
func rootMessage(err error) string {
	for _, s := range []error{
		usecase.ErrEmptyOrder,
		usecase.ErrInvalidQuantity,
		usecase.ErrInvalidPrice,
		usecase.ErrEmptyUpdate,
		usecase.ErrInvalidStatus,
		usecase.ErrProductNotFound,
		usecase.ErrOrderNotFound,
		usecase.ErrNotFound,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}

// middleware.AuthJWT が c.Set した Principal を取り出す
func principalFromContext(c echo.Context) (model.Principal, bool) {
	return middleware.PrincipalFrom(c)
}
