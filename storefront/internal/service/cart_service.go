package service

import (
	"context"
	"sync"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/fjod/rx_cart/storefront/internal/repository"
	"go.uber.org/zap"
)

// CartManager owns the cart of one session. Every mutation is written through
// to the CartStore before the call returns.
type CartManager struct {
	mu     sync.Mutex
	lines  []domain.CartLine
	store  repository.CartStore
	logger *zap.Logger
	closed bool
}

// NewCartManager seeds the cart from store. It fails when the store cannot be
// read, so an unreachable backend never looks like an empty cart.
func NewCartManager(ctx context.Context, store repository.CartStore, logger *zap.Logger) (*CartManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lines, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &CartManager{
		lines:  lines,
		store:  store,
		logger: logger,
	}, nil
}

// AddItem inserts item with quantity 1, or bumps the existing line by one.
func (m *CartManager) AddItem(ctx context.Context, item domain.Item) domain.CartSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexOf(item.ID); i >= 0 {
		m.lines[i].Quantity++
	} else {
		m.lines = append(m.lines, domain.NewCartLine(item))
	}
	m.persist(ctx)
	return domain.NewCartSnapshot(m.lines)
}

// RemoveItem deletes the line for itemID. Unknown ids are ignored.
func (m *CartManager) RemoveItem(ctx context.Context, itemID string) domain.CartSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexOf(itemID); i >= 0 {
		m.lines = append(m.lines[:i], m.lines[i+1:]...)
		m.persist(ctx)
	}
	return domain.NewCartSnapshot(m.lines)
}

// UpdateQuantity sets the quantity of itemID, clamped to at least 1.
// Unknown ids are ignored.
func (m *CartManager) UpdateQuantity(ctx context.Context, itemID string, quantity int) domain.CartSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if quantity < 1 {
		quantity = 1
	}
	if i := m.indexOf(itemID); i >= 0 && m.lines[i].Quantity != quantity {
		m.lines[i].Quantity = quantity
		m.persist(ctx)
	}
	return domain.NewCartSnapshot(m.lines)
}

// Clear empties the cart and removes the persisted snapshot.
func (m *CartManager) Clear(ctx context.Context) domain.CartSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lines = nil
	if m.closed {
		return domain.NewCartSnapshot(nil)
	}
	if err := m.store.Delete(ctx); err != nil {
		m.logger.Error("cart delete failed", zap.Error(err))
	}
	return domain.NewCartSnapshot(nil)
}

func (m *CartManager) Snapshot() domain.CartSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.NewCartSnapshot(m.lines)
}

// Close detaches the manager from its store. Later mutations stay in memory only.
func (m *CartManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *CartManager) indexOf(itemID string) int {
	for i := range m.lines {
		if m.lines[i].ID == itemID {
			return i
		}
	}
	return -1
}

// persist must be called with mu held.
func (m *CartManager) persist(ctx context.Context) {
	if m.closed {
		return
	}
	if err := m.store.Save(ctx, m.lines); err != nil {
		m.logger.Error("cart write-through failed", zap.Error(err), zap.Int("lines", len(m.lines)))
	}
}
