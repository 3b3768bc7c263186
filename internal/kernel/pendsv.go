package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/tinyrange/rtkernel/internal/arch"
	"github.com/tinyrange/rtkernel/internal/mpu"
	"github.com/tinyrange/rtkernel/internal/task"
)

// contextSwitch implements the PendSV contract of spec.md §4.2: pick the
// next task, program its MPU window, hand it the baton, and add the time it
// held the baton (in nanoseconds) to its runtime once it traps back. The state mutations an SVC call makes happen
// synchronously inside the TaskContext method that requested the switch
// (context.go). By the time contextSwitch runs, the scheduler sees
// up-to-date TCB state, the same way the real PendSV handler only ever
// observes state an already-completed SVC body left behind.
func (k *Kernel) contextSwitch(ctx context.Context) error {
	k.mu.Lock()
	idx := k.Sched.Next(k.Tasks)
	t := k.Tasks.Get(idx)
	pid := t.PID
	sp := t.SP
	srd := t.SRD
	k.current = idx
	k.mu.Unlock()

	// Step 5: program the MPU before the exception return can fetch any
	// user-mode instruction (spec.md §4.2's determinism requirement).
	k.MPU.ApplyMask(mpu.Mask(srd))

	start := time.Now()
	ev, err := k.Core.SwitchTo(ctx, pid, sp, arch.Unprivileged)
	if err != nil {
		return fmt.Errorf("kernel: context switch pid %d: %w", pid, err)
	}
	elapsed := time.Since(start)

	k.mu.Lock()
	t.Runtime += uint64(elapsed)
	t.SP = ev.CallerSP
	k.mu.Unlock()

	return nil
}

// onTick applies one system-tick worth of effects (spec.md §4.6): every
// delayed task's remaining ticks is decremented, and any that reach zero
// become ready. Called directly from the system tick source (systick.go),
// independent of whichever task is currently dispatched. On real hardware
// the tick ISR runs at its own exception priority regardless of what was
// interrupted.
func (k *Kernel) onTick() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Tasks.Each(func(_ int, t *task.TCB) {
		if t.State != task.StateDelayed {
			return
		}
		if t.Ticks > 0 {
			t.Ticks--
		}
		if t.Ticks == 0 {
			t.State = task.StateReady
		}
	})
}
