//go:build linux

package kernel

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// timerfdTick backs the 1ms system tick with a Linux timerfd
// (golang.org/x/sys/unix), the same low-level syscall layer internal/asm/
// amd64 reaches for rather than a bare time.Ticker, so the tick source is
// pollable with the same fd-based idiom used elsewhere for OS timers.
type timerfdTick struct{}

func newTickSource() tickSource { return timerfdTick{} }

func (timerfdTick) run(ctx context.Context, fn func()) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, 0)
	if err != nil {
		// Fall back rather than leaving the kernel with no tick source at
		// all; a host without timerfd support still gets correct (if less
		// precise) scheduling.
		fallbackTick{}.run(ctx, fn)
		return
	}
	defer unix.Close(fd)

	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(tickInterval),
		Value:    unix.NsecToTimespec(tickInterval),
	}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		fallbackTick{}.run(ctx, fn)
		return
	}

	buf := make([]byte, 8)
	for {
		if ctx.Err() != nil {
			return
		}
		// The read blocks the calling goroutine only, never the scheduler
		// goroutine driving task dispatch.
		n, err := unix.Read(fd, buf)
		if err != nil || n != len(buf) {
			if ctx.Err() != nil {
				return
			}
			time.Sleep(time.Millisecond)
			continue
		}
		fn()
	}
}

type fallbackTick struct{}

func (fallbackTick) run(ctx context.Context, fn func()) {
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
