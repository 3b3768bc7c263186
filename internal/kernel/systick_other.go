//go:build !linux

package kernel

import (
	"context"
	"time"
)

// tickerTick backs the 1ms system tick with time.Ticker on hosts without a
// timerfd (darwin, windows, etc).
type tickerTick struct{}

func newTickSource() tickSource { return tickerTick{} }

func (tickerTick) run(ctx context.Context, fn func()) {
	t := time.NewTicker(tickInterval * time.Nanosecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
