package statuslog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromOrder(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := FromOrder(&domain.Order{
		UserID:        "u1",
		TrackingID:    "t1",
		TransactionID: "pay_123",
		Amount:        decimal.NewFromInt(210),
		Status:        domain.OrderStatusProcessing,
	}, ts)

	assert.Equal(t, "210.00", rec.Amount)
	assert.Equal(t, "Processing", rec.Status)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.ElementsMatch(t,
		[]string{"userId", "trackingId", "transactionId", "amount", "status", "timestamp"},
		keys(fields))
	assert.Equal(t, "2026-01-02T03:04:05Z", fields["timestamp"])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestLatest_SortsByTimestampNotReadOrder(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := NewMemory()
	require.NoError(t, mem.Append(ctx, Record{TrackingID: "t1", Status: "Shipped", Timestamp: base.Add(2 * time.Hour)}))
	require.NoError(t, mem.Append(ctx, Record{TrackingID: "t1", Status: "Processing", Timestamp: base}))
	require.NoError(t, mem.Append(ctx, Record{TrackingID: "t2", Status: "Delivered", Timestamp: base.Add(5 * time.Hour)}))

	rec, err := Latest(ctx, mem, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Shipped", rec.Status)

	_, err = Latest(ctx, mem, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeFirebase struct {
	records map[string]Record
	fail    bool
	posted  []Record
}

func (f *fakeFirebase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/status.json" {
		http.NotFound(w, r)
		return
	}
	if f.fail {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var rec Record
		if err := json.Unmarshal(body, &rec); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.posted = append(f.posted, rec)
		w.Write([]byte(`{"name":"-Nnew"}`))
	case http.MethodGet:
		if len(f.records) == 0 {
			w.Write([]byte("null"))
			return
		}
		json.NewEncoder(w).Encode(f.records)
	}
}

func TestClient_Append(t *testing.T) {
	fb := &fakeFirebase{}
	srv := httptest.NewServer(fb)
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, nil)
	rec := Record{UserID: "u", TrackingID: "t", TransactionID: "pay", Amount: "1.00", Status: "Processing", Timestamp: time.Now().UTC()}
	require.NoError(t, c.Append(context.Background(), rec))

	require.Len(t, fb.posted, 1)
	assert.Equal(t, "pay", fb.posted[0].TransactionID)
}

func TestClient_AppendFailure(t *testing.T) {
	srv := httptest.NewServer(&fakeFirebase{fail: true})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	err := c.Append(context.Background(), Record{TrackingID: "t"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_AllEmpty(t *testing.T) {
	srv := httptest.NewServer(&fakeFirebase{})
	defer srv.Close()

	records, err := NewClient(srv.URL, time.Second, nil).All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClient_AllSortedAndLatest(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fb := &fakeFirebase{records: map[string]Record{
		"-Na": {TrackingID: "t1", Status: "Out for Delivery", Timestamp: base.Add(3 * time.Hour)},
		"-Nb": {TrackingID: "t1", Status: "Processing", Timestamp: base},
		"-Nc": {TrackingID: "t1", Status: "Shipped", Timestamp: base.Add(time.Hour)},
	}}
	srv := httptest.NewServer(fb)
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	records, err := c.All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Processing", records[0].Status)
	assert.Equal(t, "Out for Delivery", records[2].Status)

	latest, err := Latest(context.Background(), c, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Out for Delivery", latest.Status)
}
