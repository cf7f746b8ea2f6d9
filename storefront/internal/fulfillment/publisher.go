package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
}

func NewPublisher(logger *zap.Logger, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  OrderPlacedTopic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, logger)
}

func newPublisher(w messageWriter, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: w, timeout: 5 * time.Second, logger: logger}
}

// PublishOrderPlaced writes one message keyed by tracking id.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, sessionID string, order *domain.Order) error {
	payload, err := json.Marshal(newOrderPlacedEvent(sessionID, order))
	if err != nil {
		return fmt.Errorf("marshal order placed event: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(order.TrackingID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publish order placed: %w", err)
	}

	p.logger.Debug("order placed event published", zap.String("tracking_id", order.TrackingID))
	return nil
}

func (p *Publisher) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("error closing kafka writer", zap.Error(err))
	}
}
