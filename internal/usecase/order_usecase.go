package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

const defaultOrderAttempts = 3

type OrderUsecase struct {
	tx          repo.TransactionManager
	inventory   *InventoryUsecase
	maxAttempts int
	log         *slog.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, inventory *InventoryUsecase, maxAttempts int, log *slog.Logger) *OrderUsecase {
	if maxAttempts < 1 {
		maxAttempts = defaultOrderAttempts
	}
	return &OrderUsecase{tx: tx, inventory: inventory, maxAttempts: maxAttempts, log: log}
}

// カートの1行
type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type OrderItemOutput struct {
	ID              int64  `json:"id"`
	ProductID       int64  `json:"product_id"`
	Name            string `json:"name"`
	Quantity        int64  `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
}

type OrderOutput struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Status      model.OrderStatus `json:"status"`
	TotalAmount int64             `json:"total_amount"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Items       []OrderItemOutput `json:"items"`
}

// PlaceOrder は検証・価格確定・注文作成・在庫減算を1つのTxで行う。
// 在庫競合のときだけmaxAttempts回まで最初からやり直す
func (u *OrderUsecase) PlaceOrder(ctx context.Context, actor model.Principal, lines []CartLine) (OrderOutput, error) {
	if err := requireActive(actor); err != nil {
		return OrderOutput{}, err
	}
	if len(lines) == 0 {
		return OrderOutput{}, ErrEmptyOrder
	}

	for attempt := 1; ; attempt++ {
		out, err := u.placeOrderOnce(ctx, actor.ID, lines)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrConcurrentStockConflict) || attempt >= u.maxAttempts || ctx.Err() != nil {
			return OrderOutput{}, err
		}
		u.log.WarnContext(ctx, "place order conflict, retrying",
			slog.Int64("user_id", actor.ID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}
}

func (u *OrderUsecase) placeOrderOnce(ctx context.Context, userID int64, lines []CartLine) (OrderOutput, error) {
	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//対象商品を行ロックして読む（このTxの間は他の注文が在庫を変えられない）
		products, err := r.Products().FindByIDs(ctx, lineProductIDs(lines), true)
		if err != nil {
			return persistence(err)
		}

		items := make([]model.OrderItem, 0, len(lines))
		requested := make(map[int64]int64, len(lines))
		var total int64

		for _, l := range lines {
			p, ok := products[l.ProductID]
			if !ok || !p.IsActive {
				return fmt.Errorf("%w: %d", ErrProductNotFound, l.ProductID)
			}
			if l.Quantity <= 0 {
				return fmt.Errorf("%w: product %d", ErrInvalidQuantity, l.ProductID)
			}

			//同じ商品が複数行あれば合計で見る
			requested[l.ProductID] += l.Quantity
			if requested[l.ProductID] > p.Stock {
				return &InsufficientStockError{
					ProductID: l.ProductID,
					Requested: requested[l.ProductID],
					Available: p.Stock,
				}
			}

			//スナップショット
			it := model.OrderItem{
				ProductID:           l.ProductID,
				ProductNameSnapshot: p.Name,
				Quantity:            l.Quantity,
				PriceAtPurchase:     p.Price,
			}
			items = append(items, it)
			total += it.LineTotal()
		}

		// 注文作成
		order, err := r.Orders().Create(ctx, model.Order{
			UserID:      userID,
			TotalAmount: total,
			Status:      model.OrderStatusPlaced,
		})
		if err != nil {
			return persistence(err)
		}

		created, err := r.OrderItems().CreateBulk(ctx, order.ID, items)
		if err != nil {
			return persistence(err)
		}

		reason := fmt.Sprintf("order:%d", order.ID)
		for _, it := range created {
			if err := u.inventory.DecrementStockTx(ctx, r, userID, it.ProductID, it.Quantity, reason); err != nil {
				//事前チェックは通ったのにCASが外れた = 他Txに先を越された
				if errors.Is(err, ErrInsufficientStock) {
					return fmt.Errorf("%w: %w", ErrConcurrentStockConflict, err)
				}
				return err
			}
		}

		out = toOrderOutput(order, created)
		return nil
	})
	if err != nil {
		return OrderOutput{}, txError(err)
	}
	return out, nil
}

// ListOrders は自分の注文を新しい順で返す
func (u *OrderUsecase) ListOrders(ctx context.Context, actor model.Principal) ([]OrderOutput, error) {
	if actor.ID <= 0 {
		return []OrderOutput{}, ErrUnauthorized
	}

	var outs []OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByUserID(ctx, actor.ID)
		if err != nil {
			return persistence(err)
		}

		ids := make([]int64, 0, len(orders))
		for _, o := range orders {
			ids = append(ids, o.ID)
		}
		itemsByOrder, err := r.OrderItems().ListByOrderIDs(ctx, ids)
		if err != nil {
			return persistence(err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			outs = append(outs, toOrderOutput(o, itemsByOrder[o.ID]))
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, txError(err)
	}
	return outs, nil
}

func (u *OrderUsecase) GetOrder(ctx context.Context, actor model.Principal, orderID int64) (OrderOutput, error) {
	if actor.ID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, ErrOrderNotFound
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return persistence(err)
		}
		//他人の注文は「存在しない扱い」にする
		if o.UserID != actor.ID {
			return ErrOrderNotFound
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return persistence(err)
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, txError(err)
	}
	return out, nil
}

func lineProductIDs(lines []CartLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:              it.ID,
			ProductID:       it.ProductID,
			Name:            it.ProductNameSnapshot,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		})
	}

	return OrderOutput{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Items:       outItems,
	}
}
