package repository

import (
	"context"
	"errors"

	"github.com/fjod/rx_cart/storefront/internal/domain"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrDuplicateOrder    = errors.New("order with this tracking id already exists")
	ErrCartUnavailable   = errors.New("cart storage is unavailable")
)

// CartStore persists the cart snapshot of one session.
type CartStore interface {
	// Load treats a missing or malformed snapshot as an empty cart. It fails
	// with ErrCartUnavailable only when the backend could not be read.
	Load(ctx context.Context) ([]domain.CartLine, error)
	Save(ctx context.Context, lines []domain.CartLine) error
	Delete(ctx context.Context) error
}

// OrderStore holds the orders placed by one session.
type OrderStore interface {
	Save(ctx context.Context, order *domain.Order) error
	// LoadAll returns every order, most recent orderDate first.
	LoadAll(ctx context.Context) ([]*domain.Order, error)
	// LoadLatest returns the most recently inserted order.
	LoadLatest(ctx context.Context) (*domain.Order, error)
	Get(ctx context.Context, trackingID string) (*domain.Order, error)
	// AdvanceStatus moves an order forward in domain.OrderStatusSequence.
	AdvanceStatus(ctx context.Context, trackingID string, status domain.OrderStatus) (*domain.Order, error)
}
