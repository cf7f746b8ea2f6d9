package statuslog

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("no status record for tracking id")

// Record is the flat document appended to the remote status log. Field names
// are shared with other writers of the same log and must not change.
type Record struct {
	UserID        string    `json:"userId"`
	TrackingID    string    `json:"trackingId"`
	TransactionID string    `json:"transactionId"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// FromOrder builds the record announcing order's current status at ts.
func FromOrder(order *domain.Order, ts time.Time) Record {
	return Record{
		UserID:        order.UserID,
		TrackingID:    order.TrackingID,
		TransactionID: order.TransactionID,
		Amount:        FormatAmount(order.Amount),
		Status:        order.Status.String(),
		Timestamp:     ts.UTC(),
	}
}

func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

type Appender interface {
	Append(ctx context.Context, rec Record) error
}

type Reader interface {
	// All returns every record, oldest timestamp first.
	All(ctx context.Context) ([]Record, error)
}

type Log interface {
	Appender
	Reader
}

// Latest returns the newest record for trackingID by timestamp. Records with
// equal timestamps keep their read order.
func Latest(ctx context.Context, r Reader, trackingID string) (Record, error) {
	records, err := r.All(ctx)
	if err != nil {
		return Record{}, err
	}
	var (
		found  bool
		latest Record
	)
	for _, rec := range records {
		if rec.TrackingID != trackingID {
			continue
		}
		if !found || !rec.Timestamp.Before(latest.Timestamp) {
			latest, found = rec, true
		}
	}
	if !found {
		return Record{}, ErrNotFound
	}
	return latest, nil
}

func sortByTimestamp(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}
