// Package kernel wires the task table, scheduler, IPC tables, heap and MPU
// configurator into the single privileged state machine spec.md §9 calls
// for: "a port should encapsulate them behind an interior-mutable kernel
// struct owned by a single handle that is statically reachable from the
// handlers."
//
// Grounded on internal/chipset.Chipset: one struct owning every subsystem,
// built incrementally by a small set of registration/setup calls, with all
// mutation serialized through a single lock rather than per-subsystem ones
// (internal/chipset serializes through its device bus; here exception
// priority serializes on real hardware, so a single mutex stands in for
// that on the host harness).
package kernel

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/tinyrange/rtkernel/internal/arch"
	"github.com/tinyrange/rtkernel/internal/config"
	"github.com/tinyrange/rtkernel/internal/console"
	"github.com/tinyrange/rtkernel/internal/heap"
	"github.com/tinyrange/rtkernel/internal/ipc"
	"github.com/tinyrange/rtkernel/internal/mpu"
	"github.com/tinyrange/rtkernel/internal/sched"
	"github.com/tinyrange/rtkernel/internal/task"
)

// TaskFunc is a task's entry point. It must not return under normal
// operation (spec.md §6); the host harness treats a return as the task
// falling off the end and simply stops rescheduling it.
type TaskFunc func(ctx *TaskContext)

// Kernel is the single privileged state machine: the task table, IPC
// tables, heap, MPU configurator, scheduler and architecture shim, plus the
// bookkeeping flags every SVC service reads or writes.
type Kernel struct {
	mu sync.Mutex

	Tasks      *task.Table
	Mutexes    *ipc.MutexTable
	Semaphores *ipc.SemaphoreTable
	Heap       *heap.Heap
	MPU        *mpu.Configurator
	Sched      *sched.Scheduler
	Core       *arch.Baton

	preempt         bool
	rebootRequested bool
	current         int // index of the task the dispatcher most recently granted, -1 before Run starts

	fns map[int]TaskFunc
}

// New builds an idle kernel: empty task table, freshly initialized IPC
// tables and heap, static MPU program applied, priority scheduling enabled
// and preemption off (matching the reference firmware's boot defaults).
func New() *Kernel {
	registers := arch.NewRegisterFile()
	configurator := mpu.NewConfigurator(registers)
	if err := configurator.ProgramStatic(registers, mpu.DefaultStaticRegions()); err != nil {
		// The fixed static program is a compile-time constant; a failure
		// here means the program itself is contradictory, not a runtime
		// condition a caller can recover from.
		panic(fmt.Sprintf("kernel: static MPU program is invalid: %v", err))
	}

	k := &Kernel{
		Tasks:      task.NewTable(),
		Mutexes:    ipc.NewMutexTable(),
		Semaphores: ipc.NewSemaphoreTable(),
		Heap:       heap.New(),
		Sched:      sched.New(),
		Core:       arch.NewBaton(),
		MPU:        configurator,
		fns:        make(map[int]TaskFunc),
		current:    -1,
	}
	if err := validateMutexAndSemaphoreCounts(k.Mutexes, k.Semaphores); err != nil {
		panic(err)
	}
	return k
}

// Boot loads a boot descriptor and creates every task it names, in order,
// exactly as original_source/rtos.c's sequential createThread calls did.
// The caller supplies fn for each task by name; a name with no matching fn
// is an error.
func (k *Kernel) Boot(cfg config.Boot, fns map[string]TaskFunc) error {
	for i, init := range cfg.SemaphoreInit {
		if i >= ipc.MaxSemaphores {
			return fmt.Errorf("kernel: boot descriptor has more semaphore inits than slots")
		}
		k.Semaphores[i].Init(init)
	}

	for _, t := range cfg.Tasks {
		fn, ok := fns[t.Name]
		if !ok {
			return fmt.Errorf("kernel: no task function supplied for %q", t.Name)
		}
		if _, err := k.CreateTask(t.Name, t.Priority, t.StackSize, fn); err != nil {
			return fmt.Errorf("kernel: boot: %w", err)
		}
	}
	return nil
}

// CreateTask installs a new task, seeds its initial exception frame,
// reserves and grants it an MPU window over a freshly allocated stack, and
// registers its body to be run once Run is called. pid is taken from fn's
// entry address (spec.md §3: "the task's entry-point address, used as a
// stable identity"), the same way a real port would use the function's
// flash address, two tasks sharing one underlying entry point are rejected
// as a duplicate pid by the task table.
func (k *Kernel) CreateTask(name string, priority uint8, stackSize uint32, fn TaskFunc) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	stackBase := k.Heap.MallocFromHeap(stackSize)
	if stackBase == 0 {
		return 0, fmt.Errorf("kernel: create task %q: heap exhausted requesting %d bytes", name, stackSize)
	}
	span, _ := k.Heap.AllocationSpan(stackBase)
	spInit := k.Core.Seed(stackBase+stackSize, arch.Frame{PC: 0, XPSR: arch.DefaultXPSR})

	pid := reflect.ValueOf(fn).Pointer()
	idx, err := k.Tasks.Create(pid, name, priority, spInit, uint64(span))
	if err != nil {
		k.Heap.FreeToHeap(stackBase)
		return 0, fmt.Errorf("kernel: create task %q: %w", name, err)
	}

	k.Core.NewLane(pid)
	k.fns[idx] = fn
	return idx, nil
}

// SetPreempt implements SVC service 6.
func (k *Kernel) SetPreempt(enabled bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.preempt = enabled
	console.Writeln("kernel: preempt=%v", enabled)
}

// Preempt reports whether preemption is currently enabled.
func (k *Kernel) Preempt() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.preempt
}

// SetScheduler implements SVC service 7.
func (k *Kernel) SetScheduler(priorityMode bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if priorityMode {
		k.Sched.Mode = sched.ModePriority
	} else {
		k.Sched.Mode = sched.ModeRoundRobin
	}
	console.Writeln("kernel: sched=%v", priorityMode)
}

// Reboot implements SVC service 13: it latches a request observable by the
// host harness's run loop, standing in for writing the reset-request
// register on real hardware.
func (k *Kernel) Reboot() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rebootRequested = true
}

// RebootRequested reports whether Reboot has been called.
func (k *Kernel) RebootRequested() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rebootRequested
}

// spawnTask starts tc's task goroutine. It must not execute any body code
// until the dispatcher has actually selected it, matching the reset vector
// handing control to the scheduler before any task instruction runs. Used
// by Run's initial spawn and by restartInPlace's respawn.
func (k *Kernel) spawnTask(tc *TaskContext, fn TaskFunc) {
	go func(tc *TaskContext, fn TaskFunc) {
		if _, _, err := tc.lane.WaitToRun(tc.ctx); err != nil {
			return
		}
		fn(tc)

		// The body fell off the end: stop the task and hand the CPU back,
		// unless its lane was halted or replaced (restart) while it ran.
		k.mu.Lock()
		t := k.Tasks.Get(tc.idx)
		live := k.Core.LaneFor(t.PID) == tc.lane
		if live {
			t.State = task.StateStopped
		}
		k.mu.Unlock()
		if live {
			tc.lane.Trap(arch.TrapEvent{})
		}
	}(tc, fn)
}

// Run starts every created task's goroutine, starts the system tick source,
// and drives the context-switch loop until ctx is canceled or a reboot is
// requested. It blocks.
func (k *Kernel) Run(ctx context.Context) error {
	k.mu.Lock()
	if k.Tasks.Len() == 0 {
		k.mu.Unlock()
		return fmt.Errorf("kernel: Run called with no tasks created")
	}
	fns := make(map[int]TaskFunc, len(k.fns))
	for i, fn := range k.fns {
		fns[i] = fn
	}
	k.mu.Unlock()

	for idx, fn := range fns {
		k.spawnTask(k.newTaskContext(idx), fn)
	}

	stopTick := startSysTick(ctx, k)
	defer stopTick()

	for {
		if k.RebootRequested() {
			return nil
		}
		if err := k.contextSwitch(ctx); err != nil {
			return err
		}
	}
}
