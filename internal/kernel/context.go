// context.go is the task-side half of the SVC ABI from spec.md §4.3. On
// real hardware a task executes an SVC instruction and the dispatcher
// decodes the immediate from the trapping instruction word; here the Go
// call itself is the trap, so TaskContext's methods are both the ABI
// surface a task body calls and the dispatcher bodies a port would write
// behind the decode switch (see svc.go's service numbering).
package kernel

import (
	"context"

	"github.com/tinyrange/rtkernel/internal/arch"
	"github.com/tinyrange/rtkernel/internal/console"
	"github.com/tinyrange/rtkernel/internal/ipc"
	"github.com/tinyrange/rtkernel/internal/mpu"
	"github.com/tinyrange/rtkernel/internal/task"
)

// TaskContext is the handle a task body uses to invoke kernel services. It
// is created once per task by Kernel.Run (and afresh when a restart respawns
// the task) and must not be shared across tasks or retained past the task's
// lifetime.
type TaskContext struct {
	k    *Kernel
	idx  int
	lane *arch.Lane
	ctx  context.Context
}

func (k *Kernel) newTaskContext(idx int) *TaskContext {
	t := k.Tasks.Get(idx)
	return &TaskContext{
		k:    k,
		idx:  idx,
		lane: k.Core.LaneFor(t.PID),
		ctx:  context.Background(),
	}
}

// trap reports a trap to the dispatcher and blocks until the scheduler
// dispatches this task again, mirroring how every SVC service in spec.md
// §4.3 ends by pending a context switch.
func (c *TaskContext) trap(imm uint8) error {
	c.lane.Trap(arch.TrapEvent{SVC: true, SVCImm: imm})
	_, _, err := c.lane.WaitToRun(c.ctx)
	return err
}

// Checkpoint is the cooperative preemption point (spec.md §9's discussion
// of how a host harness must approximate PendSV): a task body should call
// this periodically in any loop that does not otherwise trap, so a pending
// SysTick-driven preemption is honored promptly.
func (c *TaskContext) Checkpoint() error {
	_, _, err := c.lane.Checkpoint(c.ctx)
	return err
}

// Yield implements service 0.
func (c *TaskContext) Yield() error {
	return c.trap(SVCYield)
}

// Sleep implements service 1. Sleep(0) behaves as Yield (spec.md §8).
func (c *TaskContext) Sleep(ticks uint32) error {
	if ticks == 0 {
		return c.Yield()
	}
	c.k.mu.Lock()
	t := c.k.Tasks.Get(c.idx)
	t.State = task.StateDelayed
	t.Ticks = ticks
	c.k.mu.Unlock()
	return c.trap(SVCSleep)
}

// Lock implements service 2. The returned bool reports whether the caller
// holds the mutex by the time this call returns, true whether it acquired
// the mutex immediately or only after blocking and later being promoted off
// the wait queue. It is false only when the queue was already full and the
// lock attempt was dropped outright, in which case the error is
// ipc.ErrQueueFull (spec.md §9's explicit-failure resolution of the
// full-queue open question).
func (c *TaskContext) Lock(mutexID uint8) (bool, error) {
	if err := ipc.ValidateMutex(mutexID); err != nil {
		return false, err
	}
	c.k.mu.Lock()
	acquired, enqueued := c.k.Mutexes[mutexID].Lock(uint8(c.idx))
	if !acquired && enqueued {
		t := c.k.Tasks.Get(c.idx)
		t.State = task.StateBlockedMutex
		t.Mutex = mutexID
	}
	c.k.mu.Unlock()

	if err := c.trap(SVCLock); err != nil {
		return false, err
	}
	if !acquired && !enqueued {
		return false, ipc.ErrQueueFull
	}
	return true, nil
}

// Unlock implements service 3.
func (c *TaskContext) Unlock(mutexID uint8) error {
	if err := ipc.ValidateMutex(mutexID); err != nil {
		return err
	}
	c.k.mu.Lock()
	next, woke := c.k.Mutexes[mutexID].Unlock(uint8(c.idx))
	if woke {
		nt := c.k.Tasks.Get(int(next))
		nt.State = task.StateReady
		nt.Mutex = task.NoResource
	}
	c.k.mu.Unlock()
	return c.trap(SVCUnlock)
}

// Wait implements service 4. See Lock's note on the returned bool and
// ipc.ErrQueueFull; the same full-queue policy applies here.
func (c *TaskContext) Wait(semID uint8) (bool, error) {
	if err := ipc.ValidateSemaphore(semID); err != nil {
		return false, err
	}
	c.k.mu.Lock()
	acquired, enqueued := c.k.Semaphores[semID].Wait(uint8(c.idx))
	if !acquired && enqueued {
		t := c.k.Tasks.Get(c.idx)
		t.State = task.StateBlockedSemaphore
		t.Semaphore = semID
	}
	c.k.mu.Unlock()

	if err := c.trap(SVCWait); err != nil {
		return false, err
	}
	if !acquired && !enqueued {
		return false, ipc.ErrQueueFull
	}
	return true, nil
}

// Post implements service 5.
func (c *TaskContext) Post(semID uint8) error {
	if err := ipc.ValidateSemaphore(semID); err != nil {
		return err
	}
	c.k.mu.Lock()
	woken, wokeSomeone := c.k.Semaphores[semID].Post()
	if wokeSomeone {
		nt := c.k.Tasks.Get(int(woken))
		nt.State = task.StateReady
		nt.Semaphore = task.NoResource
	}
	c.k.mu.Unlock()
	return c.trap(SVCPost)
}

// SetPreempt implements service 6.
func (c *TaskContext) SetPreempt(enabled bool) error {
	c.k.SetPreempt(enabled)
	return c.trap(SVCPreempt)
}

// SetScheduler implements service 7.
func (c *TaskContext) SetScheduler(priorityMode bool) error {
	c.k.SetScheduler(priorityMode)
	return c.trap(SVCSched)
}

// PKill implements service 8: locate a task by name and stop it.
func (c *TaskContext) PKill(name string) error {
	c.k.mu.Lock()
	idx, ok := c.k.Tasks.FindByName(name)
	if ok {
		c.k.stopTask(idx)
	}
	c.k.mu.Unlock()
	return c.trap(SVCPKill)
}

// Kill implements service 9: locate a task by pid and stop it.
func (c *TaskContext) Kill(pid uintptr) error {
	c.k.mu.Lock()
	idx, ok := c.k.Tasks.FindByPID(pid)
	if ok {
		c.k.stopTask(idx)
	}
	c.k.mu.Unlock()
	return c.trap(SVCKill)
}

// Pidof implements service 10: print the task's pid to the console.
func (c *TaskContext) Pidof(name string) error {
	c.k.mu.Lock()
	idx, ok := c.k.Tasks.FindByName(name)
	if ok {
		console.Writeln("%s: pid=%d", name, c.k.Tasks.Get(idx).PID)
	} else {
		console.Writeln("%s: no such task", name)
	}
	c.k.mu.Unlock()
	return c.trap(SVCPidof)
}

// restartInPlace resets idx's TCB bookkeeping to its initial frame and
// replaces its goroutine with a fresh one so execution genuinely resumes at
// the task's entry point, not wherever the old goroutine last trapped
// (spec.md §9: a correct restart must reseed the initial exception frame).
// Go offers no way to rewind an arbitrary parked goroutine's call stack, so
// the old one is abandoned: its lane is halted, which makes its next
// WaitToRun return an error and exit. The one exception is a task
// restarting itself, whose goroutine is mid-call here rather than parked in
// WaitToRun; it keeps running until its next trap, which then blocks
// forever trying to report to a lane nothing is listening on anymore. That
// leaked goroutine is permanently parked and costs no further CPU time, a
// bounded tradeoff of the goroutine-per-task host harness.
// Caller must hold k.mu.
func (k *Kernel) restartInPlace(idx int) {
	t := k.Tasks.Get(idx)
	t.SP = t.SPInit
	t.State = task.StateReady
	t.Mutex = task.NoResource
	t.Semaphore = task.NoResource
	t.Ticks = 0

	fn, ok := k.fns[idx]
	if !ok {
		return
	}
	k.Core.Halt(t.PID)
	k.Core.NewLane(t.PID)
	k.spawnTask(k.newTaskContext(idx), fn)
}

// Restart implements service 11.
func (c *TaskContext) Restart(pid uintptr) error {
	c.k.mu.Lock()
	if idx, ok := c.k.Tasks.FindByPID(pid); ok {
		c.k.restartInPlace(idx)
	}
	c.k.mu.Unlock()
	return c.trap(SVCRestart)
}

// Proc implements service 15: restart by name.
func (c *TaskContext) Proc(name string) error {
	c.k.mu.Lock()
	if idx, ok := c.k.Tasks.FindByName(name); ok {
		c.k.restartInPlace(idx)
	}
	c.k.mu.Unlock()
	return c.trap(SVCProc)
}

// SetPriority implements service 12.
func (c *TaskContext) SetPriority(pid uintptr, priority uint8) error {
	c.k.mu.Lock()
	if idx, ok := c.k.Tasks.FindByPID(pid); ok {
		c.k.Tasks.Get(idx).CurrentPriority = priority
	}
	c.k.mu.Unlock()
	return c.trap(SVCSetPriority)
}

// Reboot implements service 13.
func (c *TaskContext) Reboot() error {
	c.k.Reboot()
	return c.trap(SVCReboot)
}

// IPCS implements service 14: copy the mutex and semaphore tables into a
// snapshot the caller owns.
func (c *TaskContext) IPCS() (IPCSInfo, error) {
	c.k.mu.Lock()
	snap := c.k.buildIPCSSnapshot()
	c.k.mu.Unlock()
	return snap, c.trap(SVCIPCS)
}

// Malloc implements service 16: allocate from the heap and fold the
// resulting window into the caller's srd mask (spec.md §9's "malloc
// returns both the pointer and a mask delta" port guidance). Failure
// returns a zero pointer, matching spec.md §4.5's "no exception is raised".
func (c *TaskContext) Malloc(size uint32) (uint32, error) {
	c.k.mu.Lock()
	ptr := c.k.Heap.MallocFromHeap(size)
	if ptr != 0 {
		span, _ := c.k.Heap.AllocationSpan(ptr)
		t := c.k.Tasks.Get(c.idx)
		t.SRD = uint64(mpu.Mask(t.SRD).Union(span))
	}
	c.k.mu.Unlock()
	if err := c.trap(SVCMalloc); err != nil {
		return 0, err
	}
	return ptr, nil
}

// Free implements service 17: release an allocation and shrink the
// caller's srd mask by the freed window.
func (c *TaskContext) Free(ptr uint32) error {
	c.k.mu.Lock()
	span, _ := c.k.Heap.AllocationSpan(ptr)
	c.k.Heap.FreeToHeap(ptr)
	t := c.k.Tasks.Get(c.idx)
	t.SRD = uint64(mpu.Mask(t.SRD).Without(span))
	c.k.mu.Unlock()
	return c.trap(SVCFree)
}

// ReportFault is the task-accessible path into the kernel's fault handler:
// on real hardware a wild access traps into the MPU/hard/bus/usage fault
// vector with the CPU's own saved frame; the host harness has no MPU to
// intercept the store, so a task that would have faulted calls this
// directly with a frame it constructs itself (spec.md §4.7).
func (c *TaskContext) ReportFault(kind FaultKind, frame Frame, status uint32) {
	c.k.mu.Lock()
	pid := c.k.Tasks.Get(c.idx).PID
	c.k.mu.Unlock()
	c.k.ReportFault(kind, pid, frame, status)
	if kind == FaultMPU {
		// Pend a context switch, as the MPU fault handler does.
		c.lane.Trap(arch.TrapEvent{})
		c.lane.WaitToRun(c.ctx)
	}
}

// PS implements service 18: copy a consistent task snapshot.
func (c *TaskContext) PS() (PSInfo, error) {
	c.k.mu.Lock()
	snap := c.k.buildPSSnapshot()
	c.k.mu.Unlock()
	return snap, c.trap(SVCPS)
}
