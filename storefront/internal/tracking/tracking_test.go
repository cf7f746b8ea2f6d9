package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/fjod/rx_cart/storefront/internal/statuslog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(status domain.OrderStatus) *domain.Order {
	date := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	return &domain.Order{
		TrackingID: "TRK-1",
		Amount:     decimal.NewFromInt(210),
		Status:     status,
		Timestamp:  date,
		OrderDate:  date,
	}
}

func TestProject_FromOrderStatus(t *testing.T) {
	cases := []struct {
		status   domain.OrderStatus
		index    int
		progress int
	}{
		{domain.OrderStatusProcessing, 0, 25},
		{domain.OrderStatusShipped, 1, 50},
		{domain.OrderStatusOutForDelivery, 2, 75},
		{domain.OrderStatusDelivered, 3, 100},
	}
	for _, tc := range cases {
		v := Project(newOrder(tc.status), nil)
		assert.Equal(t, tc.index, v.StageIndex, tc.status)
		assert.Equal(t, tc.progress, v.Progress, tc.status)
		assert.Equal(t, tc.status, v.Status)
		assert.Equal(t, SourceOrder, v.Source)
		assert.True(t, v.Stages[tc.index].Current)
	}
}

func TestProject_EstimatedDelivery(t *testing.T) {
	v := Project(newOrder(domain.OrderStatusProcessing), nil)
	assert.Equal(t, time.Date(2026, 4, 13, 9, 0, 0, 0, time.UTC), v.EstimatedDelivery)
}

func TestProject_RemoteOnlyMovesForward(t *testing.T) {
	ahead := &statuslog.Record{TrackingID: "TRK-1", Status: "Out for Delivery", Timestamp: time.Now()}
	v := Project(newOrder(domain.OrderStatusShipped), ahead)
	assert.Equal(t, 2, v.StageIndex)
	assert.Equal(t, SourceStatusLog, v.Source)

	behind := &statuslog.Record{TrackingID: "TRK-1", Status: "Processing"}
	v = Project(newOrder(domain.OrderStatusShipped), behind)
	assert.Equal(t, 1, v.StageIndex)
	assert.Equal(t, SourceOrder, v.Source)

	other := &statuslog.Record{TrackingID: "TRK-2", Status: "Delivered"}
	v = Project(newOrder(domain.OrderStatusProcessing), other)
	assert.Equal(t, 0, v.StageIndex)

	garbage := &statuslog.Record{TrackingID: "TRK-1", Status: "Lost"}
	v = Project(newOrder(domain.OrderStatusProcessing), garbage)
	assert.Equal(t, 0, v.StageIndex)
}

type failingReader struct{}

func (failingReader) All(context.Context) ([]statuslog.Record, error) {
	return nil, errors.New("offline")
}

func TestProjector_StatusMode(t *testing.T) {
	ctx := context.Background()
	mem := statuslog.NewMemory()
	order := newOrder(domain.OrderStatusProcessing)
	require.NoError(t, mem.Append(ctx, statuslog.Record{TrackingID: "TRK-1", Status: "Shipped", Timestamp: order.OrderDate.Add(time.Hour)}))
	require.NoError(t, mem.Append(ctx, statuslog.Record{TrackingID: "TRK-1", Status: "Processing", Timestamp: order.OrderDate}))

	v := NewProjector(mem, ModeStatus, 0, nil).View(ctx, order)
	assert.Equal(t, domain.OrderStatusShipped, v.Status)

	v = NewProjector(failingReader{}, ModeStatus, 0, nil).View(ctx, order)
	assert.Equal(t, domain.OrderStatusProcessing, v.Status)

	v = NewProjector(nil, "", 0, nil).View(ctx, order)
	assert.Equal(t, domain.OrderStatusProcessing, v.Status)
}

func TestProjector_SimulatedMode(t *testing.T) {
	order := newOrder(domain.OrderStatusProcessing)
	p := NewProjector(nil, ModeSimulated, 5*time.Second, nil)
	p.now = func() time.Time { return order.OrderDate.Add(11 * time.Second) }

	v := p.View(context.Background(), order)
	assert.Equal(t, 2, v.StageIndex)
	assert.Equal(t, SourceSimulated, v.Source)
}

func TestSimulator_IndexAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sim := NewSimulator(start, 5*time.Second)

	assert.Equal(t, 0, sim.IndexAt(start.Add(-time.Minute)))
	assert.Equal(t, 0, sim.IndexAt(start))
	assert.Equal(t, 0, sim.IndexAt(start.Add(4999*time.Millisecond)))
	assert.Equal(t, 1, sim.IndexAt(start.Add(5*time.Second)))
	assert.Equal(t, 3, sim.IndexAt(start.Add(15*time.Second)))
	assert.Equal(t, 3, sim.IndexAt(start.Add(24*time.Hour)))
}

func TestSimulator_Run(t *testing.T) {
	sim := NewSimulator(time.Now(), time.Millisecond)
	var got []int
	sim.Run(context.Background(), func(i int) { got = append(got, i) })
	assert.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestSimulator_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim := NewSimulator(time.Now(), time.Hour)

	var got []int
	sim.Run(ctx, func(i int) { got = append(got, i) })
	assert.Equal(t, []int{0}, got)
}
