package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/fjod/rx_cart/storefront/internal/payment"
	"github.com/fjod/rx_cart/storefront/internal/repository"
	"github.com/fjod/rx_cart/storefront/internal/session"
	"github.com/fjod/rx_cart/storefront/internal/statuslog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventPublisher announces placed orders to downstream consumers.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, sessionID string, order *domain.Order) error
}

type Config struct {
	Currency    string
	DisplayName string
	Description string
	Contact     domain.Contact
	// Retention is how long resolved attempts are remembered, so late
	// callbacks get a precise error.
	Retention time.Duration
	// PendingTTL cancels attempts whose callback never arrived.
	PendingTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Currency:    "INR",
		DisplayName: "Online Pharmacy",
		Description: "Medicine order",
		Retention:   time.Hour,
		PendingTTL:  30 * time.Minute,
	}
}

type Orchestrator struct {
	mu       sync.Mutex
	attempts map[string]*Attempt
	pending  map[string]string // session id -> attempt id

	gateway   payment.Gateway
	statusLog statuslog.Appender
	events    EventPublisher
	cfg       Config
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewOrchestrator(gateway payment.Gateway, statusLog statuslog.Appender, events EventPublisher, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gateway == nil {
		gateway = payment.Disabled{}
	}
	return &Orchestrator{
		attempts:  make(map[string]*Attempt),
		pending:   make(map[string]string),
		gateway:   gateway,
		statusLog: statusLog,
		events:    events,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// ParseAmount accepts a plain decimal string with at most two fractional digits.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// Initiate opens a payment for the session's cart. An empty total means the
// current cart total. Any earlier pending attempt of the session is canceled.
func (o *Orchestrator) Initiate(ctx context.Context, sess *session.Session, total string) (*Attempt, error) {
	snap := sess.Cart.Snapshot()
	cartTotal := snap.Total.Round(2)

	amount := cartTotal
	if strings.TrimSpace(total) != "" {
		parsed, err := ParseAmount(total)
		if err != nil {
			return nil, err
		}
		amount = parsed
	}
	if snap.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !amount.Equal(cartTotal) {
		return nil, fmt.Errorf("%w: got %s, cart total is %s", ErrTotalMismatch, amount.StringFixed(2), cartTotal.StringFixed(2))
	}

	if prev := o.pendingAttempt(sess.ID); prev != nil && prev.Status().IsPaid() {
		return nil, ErrPaymentInProgress
	}

	a := newAttempt(o.newID(), sess, o.now())
	a.Amount = amount
	a.AmountMinor = payment.MinorUnits(amount)
	a.Currency = o.cfg.Currency
	a.DisplayName = o.cfg.DisplayName
	a.Description = o.cfg.Description
	a.Prefill = o.cfg.Contact
	a.Items = snap.Lines

	handle, err := o.gateway.Open(ctx, payment.Request{
		Amount:      a.Amount,
		AmountMinor: a.AmountMinor,
		Currency:    a.Currency,
		DisplayName: a.DisplayName,
		Description: a.Description,
		Receipt:     a.ID,
		Prefill:     a.Prefill,
	})
	if err != nil {
		o.logger.Warn("payment gateway open failed", zap.Error(err), zap.String("session_id", sess.ID))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	a.Gateway = handle

	o.mu.Lock()
	previous := o.attempts[o.pending[sess.ID]]
	o.attempts[a.ID] = a
	o.pending[sess.ID] = a.ID
	o.mu.Unlock()

	if previous != nil {
		if err := o.cancelAttempt(previous, "superseded"); errors.Is(err, ErrPaymentInProgress) {
			// the previous attempt got paid meanwhile; it stays the session's attempt
			a.cancel()
			o.mu.Lock()
			delete(o.attempts, a.ID)
			if o.pending[sess.ID] == a.ID {
				o.pending[sess.ID] = previous.ID
			}
			o.mu.Unlock()
			return nil, err
		}
	}

	o.logger.Info("checkout initiated",
		zap.String("attempt_id", a.ID),
		zap.String("session_id", sess.ID),
		zap.String("amount", a.Amount.StringFixed(2)),
		zap.Int64("amount_minor", a.AmountMinor))
	return a, nil
}

// Complete handles the payment widget's completion callback. Failures of the
// status log or the order store leave the attempt pending, so the same
// callback may be retried without paying twice.
func (o *Orchestrator) Complete(ctx context.Context, attemptID string, resp payment.Response) (*domain.Order, error) {
	a, err := o.Attempt(attemptID)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.status {
	case AttemptCompleted:
		return nil, ErrAttemptResolved
	case AttemptCanceled:
		return nil, ErrAttemptCanceled
	}

	log := o.logger.With(zap.String("attempt_id", a.ID), zap.String("session_id", a.SessionID))

	if a.status == AttemptPending {
		if a.ctx.Err() != nil {
			return nil, ErrAttemptCanceled
		}
		if strings.TrimSpace(resp.PaymentID) == "" {
			log.Info("payment callback without payment id")
			return nil, ErrPaymentNotCompleted
		}
		if err := o.gateway.Verify(a.Gateway, resp); err != nil {
			log.Warn("payment verification failed", zap.Error(err))
			if errors.Is(err, payment.ErrUnavailable) {
				return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrPaymentNotVerified, err)
		}

		now := o.now().UTC()
		a.order = &domain.Order{
			TrackingID:      uuid.NewString(),
			UserID:          uuid.NewString(),
			TransactionID:   resp.PaymentID,
			Amount:          a.Amount,
			Status:          domain.OrderStatusProcessing,
			Timestamp:       now,
			OrderDate:       now,
			Items:           domain.CopyLines(a.Items),
			DeliveryAddress: a.Prefill.DeliveryAddress,
			PhoneNumber:     a.Prefill.PhoneNumber,
			Email:           a.Prefill.Email,
		}
		a.status = AttemptPaymentVerified
	}

	log = log.With(zap.String("tracking_id", a.order.TrackingID))

	if a.status == AttemptPaymentVerified {
		if err := o.appendStatus(ctx, a.order); err != nil {
			log.Error("status log append failed, cart kept", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrStatusLogFailed, err)
		}
		a.status = AttemptStatusLogged
	}

	if a.status == AttemptStatusLogged {
		err := a.session.Orders.Save(ctx, a.order.Clone())
		if err != nil && !errors.Is(err, repository.ErrDuplicateOrder) {
			log.Error("order save failed, cart kept", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrOrderNotStored, err)
		}
		a.status = AttemptOrderStored
	}

	a.session.Cart.Clear(ctx)
	a.resolve(AttemptCompleted, a.order.Clone(), nil, o.now())
	o.release(a)

	log.Info("order placed",
		zap.String("transaction_id", a.order.TransactionID),
		zap.String("amount", a.order.Amount.StringFixed(2)))

	if o.events != nil {
		if err := o.events.PublishOrderPlaced(ctx, a.SessionID, a.order.Clone()); err != nil {
			log.Warn("order placed event not published", zap.Error(err))
		}
	}
	return a.order.Clone(), nil
}

// Cancel abandons a pending attempt. Attempts past the payment step cannot be
// canceled, the payment has already been taken.
func (o *Orchestrator) Cancel(attemptID string) error {
	a, err := o.Attempt(attemptID)
	if err != nil {
		return err
	}
	return o.cancelAttempt(a, "canceled")
}

func (o *Orchestrator) pendingAttempt(sessionID string) *Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts[o.pending[sessionID]]
}

// CancelSession abandons the pending attempt of a session, if any. It fails
// with ErrPaymentInProgress while a paid attempt still has to be completed.
func (o *Orchestrator) CancelSession(sessionID string) error {
	a := o.pendingAttempt(sessionID)
	if a == nil {
		return nil
	}
	if err := o.cancelAttempt(a, "session ended"); err != nil && !errors.Is(err, ErrAttemptResolved) {
		return err
	}
	return nil
}

func (o *Orchestrator) Attempt(attemptID string) (*Attempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.attempts[attemptID]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// Prune cancels stale pending attempts and forgets long-resolved ones.
func (o *Orchestrator) Prune() {
	now := o.now()

	o.mu.Lock()
	var stale []*Attempt
	for id, a := range o.attempts {
		select {
		case <-a.done:
			if o.cfg.Retention > 0 && now.Sub(a.endedAt) > o.cfg.Retention {
				delete(o.attempts, id)
			}
		default:
			if o.cfg.PendingTTL > 0 && now.Sub(a.CreatedAt) > o.cfg.PendingTTL {
				stale = append(stale, a)
			}
		}
	}
	o.mu.Unlock()

	for _, a := range stale {
		o.cancelAttempt(a, "expired")
	}
}

// Run prunes attempts every tick until ctx ends.
func (o *Orchestrator) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.Prune()
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) cancelAttempt(a *Attempt, reason string) error {
	// stop a callback that has not taken the lock yet
	a.cancel()

	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.status {
	case AttemptCompleted:
		return ErrAttemptResolved
	case AttemptCanceled:
		return nil
	case AttemptPending:
	default:
		// paid but not yet stored: keep it so the callback can be retried
		o.logger.Warn("not canceling paid checkout attempt",
			zap.String("attempt_id", a.ID),
			zap.String("status", a.status.String()))
		return ErrPaymentInProgress
	}

	a.resolve(AttemptCanceled, nil, ErrAttemptCanceled, o.now())
	o.release(a)
	o.logger.Info("checkout attempt canceled", zap.String("attempt_id", a.ID), zap.String("reason", reason))
	return nil
}

// release drops a from the pending index if it is still the session's pending attempt.
func (o *Orchestrator) release(a *Attempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending[a.SessionID] == a.ID {
		delete(o.pending, a.SessionID)
	}
}

func (o *Orchestrator) appendStatus(ctx context.Context, order *domain.Order) error {
	if o.statusLog == nil {
		return errors.New("no status log configured")
	}
	return o.statusLog.Append(ctx, statuslog.FromOrder(order, order.Timestamp))
}
