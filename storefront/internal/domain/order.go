package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is created once per successful payment. Items is a value copy of the
// cart at checkout time; only Status changes after creation.
type Order struct {
	TrackingID      string          `json:"trackingId"`
	UserID          string          `json:"userId"`
	TransactionID   string          `json:"transactionId"`
	Amount          decimal.Decimal `json:"amount"`
	Status          OrderStatus     `json:"status"`
	Timestamp       time.Time       `json:"timestamp"`
	OrderDate       time.Time       `json:"orderDate"`
	Items           []CartLine      `json:"items"`
	DeliveryAddress string          `json:"deliveryAddress"`
	PhoneNumber     string          `json:"phoneNumber"`
	Email           string          `json:"email"`
}

// Contact holds the delivery and prefill details attached to an order.
type Contact struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"contact"`
	DeliveryAddress string `json:"address"`
}

// Clone returns a deep copy so callers cannot mutate stored items.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = CopyLines(o.Items)
	return &c
}

// EstimatedDelivery is three days after the order date.
func (o *Order) EstimatedDelivery() time.Time {
	return o.OrderDate.AddDate(0, 0, 3)
}
