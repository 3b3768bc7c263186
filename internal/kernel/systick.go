package kernel

import "context"

// tickInterval is the fixed 1ms period spec.md §4.6 specifies.
const tickInterval = 1_000_000 // nanoseconds

// tickSource is the platform-specific 1ms pulse. systick_linux.go backs it
// with a timerfd (the same low-level syscall layer internal/asm/amd64 uses
// throughout); systick_other.go falls back to a time.Ticker.
type tickSource interface {
	// run blocks, calling fn once per tick, until ctx is canceled.
	run(ctx context.Context, fn func())
}

// startSysTick launches the platform tick source in its own goroutine and
// returns a function that stops it. Every tick decrements delayed tasks'
// counters unconditionally (spec.md §4.6); a tick additionally requests a
// preemption of whichever task is currently running only if the preempt
// flag is set ("If preemption is enabled, pend PendSV"). On real hardware
// the ISR always fires at its own exception priority regardless of
// preempt; only the forced reschedule is conditional.
func startSysTick(ctx context.Context, k *Kernel) func() {
	tickCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		newTickSource().run(tickCtx, func() {
			k.onTick()
			if k.Preempt() {
				k.Core.RequestTick()
			}
		})
	}()
	return func() {
		cancel()
		<-done
	}
}
