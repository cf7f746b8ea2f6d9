package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/fjod/rx_cart/storefront/internal/payment"
	"github.com/fjod/rx_cart/storefront/internal/session"
	"github.com/shopspring/decimal"
)

type AttemptStatus string

const (
	AttemptPending         AttemptStatus = "PENDING"
	AttemptPaymentVerified AttemptStatus = "PAYMENT_VERIFIED"
	AttemptStatusLogged    AttemptStatus = "STATUS_LOGGED"
	AttemptOrderStored     AttemptStatus = "ORDER_STORED"
	AttemptCompleted       AttemptStatus = "COMPLETED"
	AttemptCanceled        AttemptStatus = "CANCELED"
)

func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptCompleted || s == AttemptCanceled
}

// IsPaid reports a taken payment whose order is not completed yet.
func (s AttemptStatus) IsPaid() bool {
	return s == AttemptPaymentVerified || s == AttemptStatusLogged || s == AttemptOrderStored
}

// String representation (for logging)
func (s AttemptStatus) String() string {
	return string(s)
}

// Attempt is one checkout, from opening the payment widget to either a stored
// order or abandonment. It resolves at most once.
type Attempt struct {
	ID          string
	SessionID   string
	Amount      decimal.Decimal
	AmountMinor int64
	Currency    string
	DisplayName string
	Description string
	Prefill     domain.Contact
	Gateway     payment.Handle
	CreatedAt   time.Time

	// Items is the basket that was priced when the attempt was opened.
	Items []domain.CartLine

	session *session.Session
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	status AttemptStatus
	order  *domain.Order

	once     sync.Once
	done     chan struct{}
	resolved *domain.Order
	err      error
	endedAt  time.Time
}

func newAttempt(id string, sess *session.Session, now time.Time) *Attempt {
	ctx, cancel := context.WithCancel(context.Background())
	return &Attempt{
		ID:        id,
		SessionID: sess.ID,
		CreatedAt: now,
		session:   sess,
		ctx:       ctx,
		cancel:    cancel,
		status:    AttemptPending,
		done:      make(chan struct{}),
	}
}

func (a *Attempt) Status() AttemptStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Done is closed once the attempt completes or is canceled.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Result returns the placed order, or ErrAttemptCanceled. It is only
// meaningful after Done is closed.
func (a *Attempt) Result() (*domain.Order, error) {
	select {
	case <-a.done:
		return a.resolved.Clone(), a.err
	default:
		return nil, nil
	}
}

// Wait blocks until the attempt resolves or ctx ends.
func (a *Attempt) Wait(ctx context.Context) (*domain.Order, error) {
	select {
	case <-a.done:
		return a.resolved.Clone(), a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve must be called with mu held.
func (a *Attempt) resolve(status AttemptStatus, order *domain.Order, err error, now time.Time) {
	a.once.Do(func() {
		a.status = status
		a.resolved = order
		a.err = err
		a.endedAt = now
		a.cancel()
		close(a.done)
	})
}
