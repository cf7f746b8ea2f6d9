package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/fjod/rx_cart/storefront/internal/storage"
	"go.uber.org/zap"
)

// CartKey is the reserved storage key for the cart snapshot.
const CartKey = "cartItems"

type cartRepository struct {
	store  storage.Store
	logger *zap.Logger
}

func NewCartRepository(store storage.Store, logger *zap.Logger) CartStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cartRepository{store: store, logger: logger}
}

func (r *cartRepository) Load(ctx context.Context) ([]domain.CartLine, error) {
	raw, err := r.store.Get(ctx, CartKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return []domain.CartLine{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		r.logger.Warn("stored cart is malformed, starting empty", zap.Error(err))
		return []domain.CartLine{}, nil
	}

	return sanitizeLines(lines), nil
}

func (r *cartRepository) Save(ctx context.Context, lines []domain.CartLine) error {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.store.Set(ctx, CartKey, string(data)); err != nil {
		return fmt.Errorf("save cart failed: %w", err)
	}
	return nil
}

func (r *cartRepository) Delete(ctx context.Context) error {
	if err := r.store.Delete(ctx, CartKey); err != nil {
		return fmt.Errorf("delete cart failed: %w", err)
	}
	return nil
}

// sanitizeLines drops entries that could not have been written by the cart:
// empty ids, duplicates, negative prices. Quantities below one are raised to one.
func sanitizeLines(lines []domain.CartLine) []domain.CartLine {
	seen := make(map[string]struct{}, len(lines))
	out := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.ID == "" || l.Price.IsNegative() {
			continue
		}
		if _, dup := seen[l.ID]; dup {
			continue
		}
		seen[l.ID] = struct{}{}
		if l.Quantity < 1 {
			l.Quantity = 1
		}
		out = append(out, l)
	}
	return out
}
