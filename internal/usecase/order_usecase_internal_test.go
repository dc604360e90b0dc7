package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type txManagerMock struct {
	mock.Mock
}

func (m *txManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newOrderUsecaseWithMock(tx *txManagerMock, attempts int) *OrderUsecase {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrderUsecase(tx, NewInventoryUsecase(tx, nil), attempts, log)
}

var activeCustomer = model.Principal{ID: 100, Role: model.RoleCustomer, Status: model.UserStatusActive}

func TestPlaceOrder_RetriesConflictUpToMaxAttempts(t *testing.T) {
	tx := new(txManagerMock)
	conflict := fmt.Errorf("%w: serialization failure", repo.ErrTxConflict)
	tx.On("WithinTx", mock.Anything).Return(conflict)

	u := newOrderUsecaseWithMock(tx, 3)
	_, err := u.PlaceOrder(context.Background(), activeCustomer, []CartLine{{ProductID: 1, Quantity: 1}})

	assert.ErrorIs(t, err, ErrConcurrentStockConflict)
	tx.AssertNumberOfCalls(t, "WithinTx", 3)
}

func TestPlaceOrder_ConflictThenSuccess(t *testing.T) {
	tx := new(txManagerMock)
	tx.On("WithinTx", mock.Anything).Return(ErrConcurrentStockConflict).Once()
	tx.On("WithinTx", mock.Anything).Return(nil).Once()

	u := newOrderUsecaseWithMock(tx, 3)
	_, err := u.PlaceOrder(context.Background(), activeCustomer, []CartLine{{ProductID: 1, Quantity: 1}})

	assert.NoError(t, err)
	tx.AssertNumberOfCalls(t, "WithinTx", 2)
}

func TestPlaceOrder_DoesNotRetryOtherErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"insufficient stock", &InsufficientStockError{ProductID: 1, Requested: 5, Available: 2}, ErrInsufficientStock},
		{"product not found", ErrProductNotFound, ErrProductNotFound},
		{"store failure", errors.New("disk full"), ErrPersistence},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := new(txManagerMock)
			tx.On("WithinTx", mock.Anything).Return(tc.err)

			u := newOrderUsecaseWithMock(tx, 3)
			_, err := u.PlaceOrder(context.Background(), activeCustomer, []CartLine{{ProductID: 1, Quantity: 1}})

			assert.ErrorIs(t, err, tc.want)
			tx.AssertNumberOfCalls(t, "WithinTx", 1)
		})
	}
}

func TestPlaceOrder_EmptyOrderNeverOpensTx(t *testing.T) {
	tx := new(txManagerMock)
	u := newOrderUsecaseWithMock(tx, 3)

	_, err := u.PlaceOrder(context.Background(), activeCustomer, nil)

	assert.ErrorIs(t, err, ErrEmptyOrder)
	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestPlaceOrder_StopsRetryingWhenContextDone(t *testing.T) {
	tx := new(txManagerMock)
	tx.On("WithinTx", mock.Anything).Return(ErrConcurrentStockConflict)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := newOrderUsecaseWithMock(tx, 5)
	_, err := u.PlaceOrder(ctx, activeCustomer, []CartLine{{ProductID: 1, Quantity: 1}})

	assert.ErrorIs(t, err, ErrConcurrentStockConflict)
	tx.AssertNumberOfCalls(t, "WithinTx", 1)
}

func TestTxError(t *testing.T) {
	assert.NoError(t, txError(nil))

	err := txError(fmt.Errorf("%w: deadlock", repo.ErrTxConflict))
	assert.ErrorIs(t, err, ErrConcurrentStockConflict)
	assert.ErrorIs(t, err, repo.ErrTxConflict)

	assert.ErrorIs(t, txError(ErrInvalidTransition), ErrInvalidTransition)
	assert.NotErrorIs(t, txError(ErrInvalidTransition), ErrPersistence)

	raw := errors.New("connection reset")
	err = txError(raw)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, raw)

	// 二重に包まない
	assert.Equal(t, err, persistence(err))
}

func TestCrossedBelowThreshold(t *testing.T) {
	cases := []struct {
		prev, next, threshold int64
		want                  bool
	}{
		{15, 8, 10, true},
		{10, 9, 10, true},
		{8, 5, 10, false},
		{5, 12, 10, false},
		{12, 10, 10, false},
		{15, 0, 10, true},
		{0, 0, 0, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, crossedBelowThreshold(tc.prev, tc.next, tc.threshold),
			"prev=%d next=%d threshold=%d", tc.prev, tc.next, tc.threshold)
	}
}

func TestLineProductIDs(t *testing.T) {
	ids := lineProductIDs([]CartLine{{ProductID: 9}, {ProductID: 2}, {ProductID: 9}, {ProductID: 5}})
	assert.Equal(t, []int64{2, 5, 9}, ids)
}
