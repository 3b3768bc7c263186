// tasks.go is a Go port of original_source/tasks.c's task bodies. Each
// function below has the same shape and name as its C counterpart, adapted
// to call through a *kernel.TaskContext instead of issuing raw SVC
// instructions, and to poll a simulated Board instead of GPIO registers.
package main

import (
	"time"

	"github.com/tinyrange/rtkernel/internal/console"
	"github.com/tinyrange/rtkernel/internal/ipc"
	"github.com/tinyrange/rtkernel/internal/kernel"
)

// mutex/semaphore indices, matching original_source/rtos.c's initMutex and
// initSemaphore call order (see internal/config/testdata/boot.yaml).
const (
	mutexResource = 0

	semKeyPressed  = 0
	semKeyReleased = 1
	semFlashReq    = 2
)

// demo is the set of dependencies every task body in this file closes over:
// the board (simulated GPIO) and the console (simulated UART0).
type demo struct {
	board *Board
}

// mustLock retries ctx.Lock until the caller actually holds mutexID,
// sleeping a tick between attempts when the wait queue was full. Any other
// error (e.g. the kernel shutting down) is returned immediately.
func mustLock(ctx *kernel.TaskContext, mutexID uint8) error {
	for {
		held, err := ctx.Lock(mutexID)
		if held {
			return nil
		}
		if err != ipc.ErrQueueFull {
			return err
		}
		if err := ctx.Sleep(1); err != nil {
			return err
		}
	}
}

// mustWait is mustLock's counterpart for ctx.Wait.
func mustWait(ctx *kernel.TaskContext, semID uint8) error {
	for {
		held, err := ctx.Wait(semID)
		if held {
			return nil
		}
		if err != ipc.ErrQueueFull {
			return err
		}
		if err := ctx.Sleep(1); err != nil {
			return err
		}
	}
}

// idle is the mandatory lowest-priority task: some ready task must always
// exist for the scheduler to pick (spec.md §4.1).
func (d *demo) idle(ctx *kernel.TaskContext) {
	for {
		d.board.SetLED(LEDOrange, true)
		time.Sleep(time.Millisecond)
		d.board.SetLED(LEDOrange, false)
		ctx.Yield()
	}
}

// flash4Hz blinks the green LED every 125 ticks (4Hz at a 1ms tick).
func (d *demo) flash4Hz(ctx *kernel.TaskContext) {
	for {
		d.board.SetLED(LEDGreen, !d.board.LED(LEDGreen))
		ctx.Sleep(125)
	}
}

// oneShot waits for a flash request (posted by readKeys on PB1) and lights
// the yellow LED for one second.
func (d *demo) oneShot(ctx *kernel.TaskContext) {
	for {
		if err := mustWait(ctx, semFlashReq); err != nil {
			return
		}
		d.board.SetLED(LEDYellow, true)
		ctx.Sleep(1000)
		d.board.SetLED(LEDYellow, false)
	}
}

// partOfLengthyFn represents the chunked body of a long-running operation
// that cooperatively yields between chunks (original_source/tasks.c).
func partOfLengthyFn(ctx *kernel.TaskContext) {
	time.Sleep(990 * time.Microsecond)
	ctx.Yield()
}

// lengthyFn allocates a scratch buffer from the heap, fills it while
// holding the shared resource mutex, then frees it, the Go port of
// lengthyFn/SVCmallocFromHeap/SVCfreeToHeap.
func (d *demo) lengthyFn(ctx *kernel.TaskContext) {
	for {
		if err := mustLock(ctx, mutexResource); err != nil {
			return
		}
		ptr, err := ctx.Malloc(5000)
		if err != nil || ptr == 0 {
			console.Writeln("lengthyFn: heap exhausted")
			ctx.Unlock(mutexResource)
			ctx.Sleep(1000)
			continue
		}
		for i := 0; i < 5000; i++ {
			partOfLengthyFn(ctx)
		}
		d.board.SetLED(LEDRed, !d.board.LED(LEDRed))
		ctx.Free(ptr)
		ctx.Unlock(mutexResource)
	}
}

// readKeys polls the board's pushbuttons once released is signaled and
// dispatches the same five actions original_source/tasks.c's readKeys does.
func (d *demo) readKeys(ctx *kernel.TaskContext) {
	for {
		if err := mustWait(ctx, semKeyReleased); err != nil {
			return
		}
		var buttons uint8
		for buttons == 0 {
			buttons = d.board.ReadPbs()
			ctx.Yield()
		}
		ctx.Post(semKeyPressed)
		if buttons&1 != 0 {
			d.board.SetLED(LEDYellow, !d.board.LED(LEDYellow))
			d.board.SetLED(LEDRed, true)
		}
		if buttons&2 != 0 {
			ctx.Post(semFlashReq)
			d.board.SetLED(LEDRed, false)
		}
		if buttons&4 != 0 {
			ctx.Proc("Flash4Hz")
		}
		if buttons&8 != 0 {
			ctx.PKill("Flash4Hz")
		}
		if buttons&16 != 0 {
			ctx.SetPriority(pidOf(ctx, "LengthyFn"), 4)
		}
		ctx.Yield()
	}
}

// debounce waits for a keypress notification, then samples the buttons
// every 10 ticks until they have been released for 10 consecutive samples.
func (d *demo) debounce(ctx *kernel.TaskContext) {
	for {
		if err := mustWait(ctx, semKeyPressed); err != nil {
			return
		}
		count := 10
		for count != 0 {
			ctx.Sleep(10)
			if d.board.ReadPbs() == 0 {
				count--
			} else {
				count = 10
			}
		}
		ctx.Post(semKeyReleased)
	}
}

// uncooperative spins without ever calling yield/sleep while PB3 is held,
// the scheduler-starvation demonstration from original_source/tasks.c: with
// preemption off this starves every lower-priority task; with preemption on
// SysTick forces it off the CPU at Checkpoint, the harness's stand-in for a
// PendSV interrupting it mid-loop.
func (d *demo) uncooperative(ctx *kernel.TaskContext) {
	for {
		for d.board.ReadPbs() == 8 {
			ctx.Checkpoint()
		}
		ctx.Yield()
	}
}

// errant writes through a wild pointer while PB5 is held, the original's
// out-of-bounds MPU-fault demonstration (original_source/tasks.c writes
// through *(uint32_t*)0x20000000, outside every task's granted srd window).
// The host harness has no MPU to trap the store, so it reports the fault
// directly through the same path the real MPU handler would have used once
// it had decoded the frame.
func (d *demo) errant(ctx *kernel.TaskContext) {
	const wildAddress = 0x20000000
	for {
		for d.board.ReadPbs() == 32 {
			ctx.ReportFault(kernel.FaultMPU, kernel.Frame{PC: wildAddress}, 0x02) // MMFSR DACCVIOL
			ctx.Checkpoint()
		}
		ctx.Yield()
	}
}

// important alternates holding the shared resource mutex and flashing the
// blue LED at its priority-0 (highest) rate.
func (d *demo) important(ctx *kernel.TaskContext) {
	for {
		if err := mustLock(ctx, mutexResource); err != nil {
			return
		}
		d.board.SetLED(LEDBlue, true)
		ctx.Sleep(1000)
		d.board.SetLED(LEDBlue, false)
		ctx.Sleep(1000)
		ctx.Unlock(mutexResource)
	}
}

// pidOf resolves a task name to its pid via the ps snapshot, returning 0 if
// not found. Used by readKeys' setThreadPriority demo action.
func pidOf(ctx *kernel.TaskContext, name string) uintptr {
	snap, err := ctx.PS()
	if err != nil {
		return 0
	}
	for _, t := range snap.Tasks {
		if t.Name == name {
			return t.PID
		}
	}
	return 0
}
