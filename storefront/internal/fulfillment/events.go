package fulfillment

import (
	"time"

	"github.com/fjod/rx_cart/storefront/internal/domain"
)

const (
	OrderPlacedTopic = "order-placed"
	OrderStatusTopic = "order-status"
)

// OrderPlacedEvent is published once per stored order.
type OrderPlacedEvent struct {
	SessionID       string            `json:"sessionId"`
	TrackingID      string            `json:"trackingId"`
	UserID          string            `json:"userId"`
	TransactionID   string            `json:"transactionId"`
	Amount          string            `json:"amount"`
	Items           []domain.CartLine `json:"items"`
	DeliveryAddress string            `json:"deliveryAddress"`
	PhoneNumber     string            `json:"phoneNumber"`
	Email           string            `json:"email"`
	OrderDate       time.Time         `json:"orderDate"`
}

// StatusChangedEvent is what the fulfillment side reports back.
type StatusChangedEvent struct {
	SessionID  string `json:"sessionId"`
	TrackingID string `json:"trackingId"`
	Status     string `json:"status"`
}

func newOrderPlacedEvent(sessionID string, order *domain.Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		SessionID:       sessionID,
		TrackingID:      order.TrackingID,
		UserID:          order.UserID,
		TransactionID:   order.TransactionID,
		Amount:          order.Amount.StringFixed(2),
		Items:           domain.CopyLines(order.Items),
		DeliveryAddress: order.DeliveryAddress,
		PhoneNumber:     order.PhoneNumber,
		Email:           order.Email,
		OrderDate:       order.OrderDate,
	}
}
