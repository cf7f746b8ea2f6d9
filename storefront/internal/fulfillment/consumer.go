package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/fjod/rx_cart/storefront/internal/repository"
	"github.com/fjod/rx_cart/storefront/internal/statuslog"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	maxApplyAttempts = 3
	retryBackoff     = 200 * time.Millisecond
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderLocator resolves the order store of a session.
type OrderLocator interface {
	Orders(ctx context.Context, sessionID string) (repository.OrderStore, error)
}

// Consumer applies fulfillment status changes to stored orders.
type Consumer struct {
	reader    messageReader
	orders    OrderLocator
	statusLog statuslog.Appender
	logger    *zap.Logger
	now       func() time.Time
}

func NewConsumer(orders OrderLocator, statusLog statuslog.Appender, logger *zap.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    OrderStatusTopic,
		GroupID:  "storefront",
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, orders, statusLog, logger)
}

func newConsumer(r messageReader, orders OrderLocator, statusLog statuslog.Appender, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{reader: r, orders: orders, statusLog: statusLog, logger: logger, now: time.Now}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.logger.Warn("error reading message", zap.Error(err))
		return
	}

	for attempt := 1; ; attempt++ {
		err := c.apply(ctx, m)
		if err == nil {
			break
		}
		if attempt == maxApplyAttempts || ctx.Err() != nil {
			c.logger.Error("dropping status change after retries", zap.Error(err), zap.Int64("offset", m.Offset))
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * retryBackoff):
		case <-ctx.Done():
		}
	}
	if ctx.Err() != nil {
		return
	}
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.Warn("commit failed", zap.Error(err), zap.Int64("offset", m.Offset))
	}
}

// apply returns an error only for failures worth retrying.
func (c *Consumer) apply(ctx context.Context, m kafka.Message) error {
	var event StatusChangedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.logger.Warn("error parsing message", zap.Error(err), zap.Int64("offset", m.Offset))
		return nil
	}
	log := c.logger.With(zap.String("session_id", event.SessionID), zap.String("tracking_id", event.TrackingID))

	status, err := domain.ParseOrderStatus(event.Status)
	if err != nil {
		log.Warn("unknown order status", zap.String("status", event.Status))
		return nil
	}

	orders, err := c.orders.Orders(ctx, event.SessionID)
	if err != nil {
		log.Warn("no order store for session", zap.Error(err))
		return nil
	}

	updated, err := orders.AdvanceStatus(ctx, event.TrackingID, status)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		log.Warn("status change for unknown order")
		return nil
	case errors.Is(err, repository.ErrInvalidTransition):
		log.Info("stale status change skipped", zap.String("status", status.String()))
		return nil
	case err != nil:
		log.Error("failed to advance order status", zap.Error(err))
		return err
	}

	if c.statusLog != nil {
		if err := c.statusLog.Append(ctx, statuslog.FromOrder(updated, c.now())); err != nil {
			log.Warn("status log append failed", zap.Error(err))
		}
	}
	log.Info("order status advanced", zap.String("status", updated.Status.String()))
	return nil
}
