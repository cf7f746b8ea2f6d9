package tracking

import (
	"context"
	"time"
)

const DefaultStepInterval = 5 * time.Second

// Simulator advances one stage per interval from start until Delivered.
// It ignores the real order status.
type Simulator struct {
	start    time.Time
	interval time.Duration
}

func NewSimulator(start time.Time, interval time.Duration) Simulator {
	if interval <= 0 {
		interval = DefaultStepInterval
	}
	return Simulator{start: start, interval: interval}
}

func (s Simulator) IndexAt(now time.Time) int {
	elapsed := now.Sub(s.start)
	if elapsed < 0 {
		return 0
	}
	last := len(Stages) - 1
	steps := int64(elapsed / s.interval)
	if steps > int64(last) {
		return last
	}
	return int(steps)
}

// Run emits index 0 immediately and each later index as it is reached,
// then returns once the terminal stage was emitted or ctx ends.
func (s Simulator) Run(ctx context.Context, emit func(index int)) {
	last := len(Stages) - 1
	current := 0
	emit(current)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for current < last {
		select {
		case <-ticker.C:
			current++
			emit(current)
		case <-ctx.Done():
			return
		}
	}
}
