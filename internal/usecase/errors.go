package usecase

import (
	"errors"
	"fmt"

	repo "marketplace/internal/repository"
)

var (
	// 呼び出し側の入力ミス（副作用なし・再試行しない）
	ErrEmptyOrder        = errors.New("empty order")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrEmptyUpdate       = errors.New("no updatable fields")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOrderNotFound     = errors.New("order not found")
	ErrNotFound          = errors.New("not found")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// 楽観的更新が外れた。限られた回数だけ再試行する
	ErrConcurrentStockConflict = errors.New("concurrent stock conflict")

	// ストア側の失敗。中身は呼び出し元に見せない
	ErrPersistence = errors.New("persistence failure")
)

// どの商品が何個足りないか
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

var domainErrors = []error{
	ErrEmptyOrder,
	ErrProductNotFound,
	ErrInvalidQuantity,
	ErrInvalidPrice,
	ErrEmptyUpdate,
	ErrInsufficientStock,
	ErrInvalidStatus,
	ErrInvalidTransition,
	ErrOrderNotFound,
	ErrNotFound,
	ErrUnauthorized,
	ErrForbidden,
	ErrConcurrentStockConflict,
	ErrPersistence,
}

func persistence(err error) error {
	if err == nil || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// WithinTxから返ったerrorを分類する
func txError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrTxConflict) && !errors.Is(err, ErrConcurrentStockConflict) {
		return fmt.Errorf("%w: %w", ErrConcurrentStockConflict, err)
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	return persistence(err)
}
