package domain

import "fmt"

type OrderStatus string

const (
	OrderStatusProcessing     OrderStatus = "Processing"
	OrderStatusShipped        OrderStatus = "Shipped"
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	OrderStatusDelivered      OrderStatus = "Delivered"
)

// OrderStatusSequence is the fixed delivery progression. Index positions are stable.
var OrderStatusSequence = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
}

// Index returns the position of s in OrderStatusSequence, or -1 if s is unknown.
func (s OrderStatus) Index() int {
	for i, st := range OrderStatusSequence {
		if st == s {
			return i
		}
	}
	return -1
}

func (s OrderStatus) IsValid() bool {
	return s.Index() >= 0
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// CanAdvanceTo reports whether a stored order in status s may move to next.
// Status only moves forward; staying in place is not a transition.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	from, to := s.Index(), next.Index()
	return from >= 0 && to > from
}

// ParseOrderStatus accepts the display names and the compact enum spellings.
func ParseOrderStatus(v string) (OrderStatus, error) {
	switch v {
	case "Processing", "PROCESSING":
		return OrderStatusProcessing, nil
	case "Shipped", "SHIPPED":
		return OrderStatusShipped, nil
	case "Out for Delivery", "OutForDelivery", "OUT_FOR_DELIVERY":
		return OrderStatusOutForDelivery, nil
	case "Delivered", "DELIVERED":
		return OrderStatusDelivered, nil
	}
	return "", fmt.Errorf("unknown order status %q", v)
}
