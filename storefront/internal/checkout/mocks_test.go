package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/fjod/rx_cart/storefront/internal/payment"
	"github.com/fjod/rx_cart/storefront/internal/repository"
	"github.com/fjod/rx_cart/storefront/internal/session"
	"github.com/fjod/rx_cart/storefront/internal/statuslog"
	"github.com/fjod/rx_cart/storefront/internal/storage"
	"github.com/fjod/rx_cart/storefront/internal/storage/storagetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type mockStatusLog struct {
	m       sync.Mutex
	records []statuslog.Record
	err     error
}

func (l *mockStatusLog) Append(_ context.Context, rec statuslog.Record) error {
	l.m.Lock()
	defer l.m.Unlock()
	if l.err != nil {
		return l.err
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *mockStatusLog) setErr(err error) {
	l.m.Lock()
	defer l.m.Unlock()
	l.err = err
}

func (l *mockStatusLog) count() int {
	l.m.Lock()
	defer l.m.Unlock()
	return len(l.records)
}

// failingOrders wraps an OrderStore and fails Save while err is set.
type failingOrders struct {
	repository.OrderStore
	m   sync.Mutex
	err error
}

func (f *failingOrders) Save(ctx context.Context, order *domain.Order) error {
	f.m.Lock()
	err := f.err
	f.m.Unlock()
	if err != nil {
		return err
	}
	return f.OrderStore.Save(ctx, order)
}

func (f *failingOrders) setErr(err error) {
	f.m.Lock()
	defer f.m.Unlock()
	f.err = err
}

type mockPublisher struct {
	m      sync.Mutex
	orders []*domain.Order
	err    error
}

func (p *mockPublisher) PublishOrderPlaced(_ context.Context, _ string, order *domain.Order) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.orders = append(p.orders, order)
	return p.err
}

type fixture struct {
	orch      *Orchestrator
	sess      *session.Session
	orders    *failingOrders
	statusLog *mockStatusLog
	events    *mockPublisher
	gateway   payment.Sandbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, _ := storagetest.NewRedisStore(t)

	var orders *failingOrders
	registry := session.NewRegistry(store, func(id string, scoped storage.Store) repository.OrderStore {
		orders = &failingOrders{OrderStore: repository.NewOrderRepository(scoped, nil)}
		return orders
	}, nil)

	sess, err := registry.Get(context.Background(), "test-session")
	require.NoError(t, err)

	f := &fixture{
		sess:      sess,
		orders:    orders,
		statusLog: &mockStatusLog{},
		events:    &mockPublisher{},
		gateway:   payment.Sandbox{Secret: testSecret},
	}
	cfg := DefaultConfig()
	cfg.Contact = domain.Contact{
		Name:            "Asha",
		Email:           "asha@example.com",
		PhoneNumber:     "9999999999",
		DeliveryAddress: "12 MG Road",
	}
	f.orch = NewOrchestrator(f.gateway, f.statusLog, f.events, cfg, nil)
	return f
}

func (f *fixture) addItem(id string, price string, times int) {
	for i := 0; i < times; i++ {
		f.sess.Cart.AddItem(context.Background(), domain.Item{
			ID:    id,
			Name:  "Item " + id,
			Price: decimal.RequireFromString(price),
		})
	}
}

var errBoom = errors.New("boom")
