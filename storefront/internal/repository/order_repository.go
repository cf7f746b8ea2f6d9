package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/fjod/rx_cart/storefront/internal/storage"
	"go.uber.org/zap"
)

const (
	orderKeyPrefix = "order_"
	// orderIndexKey lists tracking ids in insertion order.
	orderIndexKey = "orderIndex"
)

func OrderKey(trackingID string) string {
	return orderKeyPrefix + trackingID
}

type orderRepository struct {
	mu     sync.Mutex
	store  storage.Store
	logger *zap.Logger
}

func NewOrderRepository(store storage.Store, logger *zap.Logger) OrderStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderRepository{store: store, logger: logger}
}

func (r *orderRepository) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := OrderKey(order.TrackingID)
	if _, err := r.store.Get(ctx, key); err == nil {
		// an earlier save may have stopped before the index write
		if err := r.index(ctx, order.TrackingID); err != nil {
			return err
		}
		return ErrDuplicateOrder
	} else if !errors.Is(err, storage.ErrKeyNotFound) {
		return fmt.Errorf("check existing order: %w", err)
	}

	if err := r.put(ctx, order); err != nil {
		return err
	}
	return r.index(ctx, order.TrackingID)
}

// index appends trackingID to the order index unless it is already listed.
func (r *orderRepository) index(ctx context.Context, trackingID string) error {
	index := r.readIndex(ctx)
	for _, id := range index {
		if id == trackingID {
			return nil
		}
	}

	data, err := json.Marshal(append(index, trackingID))
	if err != nil {
		return fmt.Errorf("marshal order index: %w", err)
	}
	if err := r.store.Set(ctx, orderIndexKey, string(data)); err != nil {
		return fmt.Errorf("save order index: %w", err)
	}
	return nil
}

func (r *orderRepository) LoadAll(ctx context.Context) ([]*domain.Order, error) {
	keys, err := r.store.Keys(ctx, orderKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(keys))
	for _, key := range keys {
		order, err := r.read(ctx, key)
		if err != nil {
			r.logger.Warn("skipping unreadable order", zap.String("key", key), zap.Error(err))
			continue
		}
		orders = append(orders, order)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].OrderDate.After(orders[j].OrderDate)
	})
	return orders, nil
}

func (r *orderRepository) LoadLatest(ctx context.Context) (*domain.Order, error) {
	index := r.readIndex(ctx)
	for i := len(index) - 1; i >= 0; i-- {
		order, err := r.read(ctx, OrderKey(index[i]))
		if err == nil {
			return order, nil
		}
		r.logger.Warn("indexed order unreadable", zap.String("tracking_id", index[i]), zap.Error(err))
	}

	// no usable index: fall back to the newest order date
	orders, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return orders[0], nil
}

func (r *orderRepository) Get(ctx context.Context, trackingID string) (*domain.Order, error) {
	return r.read(ctx, OrderKey(trackingID))
}

func (r *orderRepository) AdvanceStatus(ctx context.Context, trackingID string, status domain.OrderStatus) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.read(ctx, OrderKey(trackingID))
	if err != nil {
		return nil, err
	}
	if !order.Status.CanAdvanceTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}

	order.Status = status
	if err := r.put(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) put(ctx context.Context, order *domain.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	if err := r.store.Set(ctx, OrderKey(order.TrackingID), string(data)); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

func (r *orderRepository) read(ctx context.Context, key string) (*domain.Order, error) {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	var order domain.Order
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	if order.TrackingID == "" {
		return nil, fmt.Errorf("order under %s has no tracking id", key)
	}
	return &order, nil
}

func (r *orderRepository) readIndex(ctx context.Context) []string {
	raw, err := r.store.Get(ctx, orderIndexKey)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			r.logger.Warn("order index unavailable", zap.Error(err))
		}
		return nil
	}
	var index []string
	if err := json.Unmarshal([]byte(raw), &index); err != nil {
		r.logger.Warn("order index is malformed", zap.Error(err))
		return nil
	}
	return index
}
