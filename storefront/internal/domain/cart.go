package domain

import "github.com/shopspring/decimal"

// TaxRate is the flat estimated tax applied to the cart subtotal.
var TaxRate = decimal.NewFromFloat(0.05)

// Item is a catalogue entry as it is offered to the cart.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl,omitempty"`
	Brand    string          `json:"brand,omitempty"`
}

// CartLine is one item-and-quantity entry. Quantity is always >= 1.
type CartLine struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	ImageURL string          `json:"imageUrl,omitempty"`
	Brand    string          `json:"brand,omitempty"`
}

func NewCartLine(item Item) CartLine {
	return CartLine{
		ID:       item.ID,
		Name:     item.Name,
		Price:    item.Price,
		Quantity: 1,
		ImageURL: item.ImageURL,
		Brand:    item.Brand,
	}
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSnapshot is a point-in-time copy of the cart with derived totals.
type CartSnapshot struct {
	Lines    []CartLine      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// NewCartSnapshot copies lines and recomputes the totals from scratch.
func NewCartSnapshot(lines []CartLine) CartSnapshot {
	copied := CopyLines(lines)
	subtotal := decimal.Zero
	for _, l := range copied {
		subtotal = subtotal.Add(l.LineTotal())
	}
	tax := subtotal.Mul(TaxRate)
	return CartSnapshot{
		Lines:    copied,
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// CopyLines returns a slice that shares no memory with lines.
func CopyLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}
