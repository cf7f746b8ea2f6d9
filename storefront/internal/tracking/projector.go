package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/fjod/rx_cart/storefront/internal/statuslog"
	"go.uber.org/zap"
)

type Mode string

const (
	// ModeStatus derives the stage from stored and logged order status.
	ModeStatus Mode = "status"
	// ModeSimulated steps through the stages on a timer, for demos.
	ModeSimulated Mode = "simulated"
)

type Source string

const (
	SourceOrder     Source = "order"
	SourceStatusLog Source = "status-log"
	SourceSimulated Source = "simulated"
)

type Stage struct {
	Status      domain.OrderStatus `json:"name"`
	Description string             `json:"description"`
}

var Stages = []Stage{
	{domain.OrderStatusProcessing, "Order is being processed"},
	{domain.OrderStatusShipped, "Order has been shipped"},
	{domain.OrderStatusOutForDelivery, "Order is out for delivery"},
	{domain.OrderStatusDelivered, "Order has been delivered"},
}

type StageView struct {
	Stage
	Completed bool `json:"completed"`
	Current   bool `json:"current"`
}

type View struct {
	TrackingID        string             `json:"trackingId"`
	Status            domain.OrderStatus `json:"status"`
	StageIndex        int                `json:"stageIndex"`
	Progress          int                `json:"progress"`
	Stages            []StageView        `json:"stages"`
	EstimatedDelivery time.Time          `json:"estimatedDelivery"`
	UpdatedAt         time.Time          `json:"updatedAt"`
	Source            Source             `json:"source"`
	Order             *domain.Order      `json:"order"`
}

// Project builds the view of order. remote is the newest status log record
// for the order, or nil; it only wins when it is further along.
func Project(order *domain.Order, remote *statuslog.Record) View {
	index := order.Status.Index()
	if index < 0 {
		index = 0
	}
	source := SourceOrder
	updated := order.Timestamp

	if remote != nil && remote.TrackingID == order.TrackingID {
		if st, err := domain.ParseOrderStatus(remote.Status); err == nil && st.Index() > index {
			index = st.Index()
			source = SourceStatusLog
			updated = remote.Timestamp
		}
	}
	return buildView(order, index, source, updated)
}

func buildView(order *domain.Order, index int, source Source, updated time.Time) View {
	stages := make([]StageView, len(Stages))
	for i, s := range Stages {
		stages[i] = StageView{Stage: s, Completed: i <= index, Current: i == index}
	}
	return View{
		TrackingID:        order.TrackingID,
		Status:            Stages[index].Status,
		StageIndex:        index,
		Progress:          (index + 1) * 100 / len(Stages),
		Stages:            stages,
		EstimatedDelivery: order.EstimatedDelivery(),
		UpdatedAt:         updated,
		Source:            source,
		Order:             order.Clone(),
	}
}

type Projector struct {
	reader   statuslog.Reader
	mode     Mode
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewProjector(reader statuslog.Reader, mode Mode, interval time.Duration, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultStepInterval
	}
	if mode == "" {
		mode = ModeStatus
	}
	return &Projector{reader: reader, mode: mode, interval: interval, now: time.Now, logger: logger}
}

// View never fails: an unreachable status log falls back to the stored status.
func (p *Projector) View(ctx context.Context, order *domain.Order) View {
	if p.mode == ModeSimulated {
		sim := NewSimulator(order.OrderDate, p.interval)
		now := p.now()
		return buildView(order, sim.IndexAt(now), SourceSimulated, now)
	}

	if p.reader == nil {
		return Project(order, nil)
	}
	rec, err := statuslog.Latest(ctx, p.reader, order.TrackingID)
	if err != nil {
		if !errors.Is(err, statuslog.ErrNotFound) {
			p.logger.Warn("status log read failed, using stored status",
				zap.String("tracking_id", order.TrackingID), zap.Error(err))
		}
		return Project(order, nil)
	}
	return Project(order, &rec)
}
