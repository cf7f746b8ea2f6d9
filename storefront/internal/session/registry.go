package session

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/fjod/rx_cart/storefront/internal/repository"
	"github.com/fjod/rx_cart/storefront/internal/service"
	"github.com/fjod/rx_cart/storefront/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidID = errors.New("invalid session id")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Session is everything one browser origin owns.
type Session struct {
	ID     string
	Cart   *service.CartManager
	Orders repository.OrderStore
}

// OrderStoreFactory builds the order store of a session. scoped is the
// session's key-value namespace.
type OrderStoreFactory func(sessionID string, scoped storage.Store) repository.OrderStore

// KVOrders keeps orders next to the cart in the session namespace.
func KVOrders(logger *zap.Logger) OrderStoreFactory {
	return func(_ string, scoped storage.Store) repository.OrderStore {
		return repository.NewOrderRepository(scoped, logger)
	}
}

// PostgresOrders keeps orders in a shared table partitioned by session id.
func PostgresOrders(pg *repository.PostgresOrders) OrderStoreFactory {
	return func(sessionID string, _ storage.Store) repository.OrderStore {
		return pg.ForSession(sessionID)
	}
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	sfg      singleflight.Group // one seed per session
	store    storage.Store
	orders   OrderStoreFactory
	logger   *zap.Logger
}

func NewRegistry(store storage.Store, orders OrderStoreFactory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if orders == nil {
		orders = KVOrders(logger)
	}
	return &Registry{
		sessions: make(map[string]*Session),
		store:    store,
		orders:   orders,
		logger:   logger,
	}
}

func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Get returns the live session for id, seeding its cart from storage on first use.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}

	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := r.sfg.Do(id, func() (interface{}, error) {
		r.mu.RLock()
		existing, ok := r.sessions[id]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		// the seed is shared by every caller waiting on id
		scoped := storage.NewScoped(r.store, id)
		cart, err := service.NewCartManager(context.WithoutCancel(ctx), repository.NewCartRepository(scoped, r.logger), r.logger)
		if err != nil {
			r.logger.Warn("session seed failed", zap.String("session_id", id), zap.Error(err))
			return nil, err
		}
		created := &Session{
			ID:     id,
			Cart:   cart,
			Orders: r.orders(id, scoped),
		}

		r.mu.Lock()
		r.sessions[id] = created
		r.mu.Unlock()

		r.logger.Debug("session started", zap.String("session_id", id))
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Orders returns the order store of session id without starting a session.
func (r *Registry) Orders(_ context.Context, id string) (repository.OrderStore, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}

	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s.Orders, nil
	}
	return r.orders(id, storage.NewScoped(r.store, id)), nil
}

// End tears down the in-memory session. Persisted cart and orders remain,
// so a later Get reseeds from storage.
func (r *Registry) End(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Cart.Close()
		r.logger.Debug("session ended", zap.String("session_id", id))
	}
	return ok
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
