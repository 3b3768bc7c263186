package task

import "fmt"

// MaxTasks is the fixed task table capacity. original_source/shell.h pins
// this at 12 for the reference board; spec.md §3 requires at least 12.
const MaxTasks = 12

// Table is the fixed-capacity array of TCBs the scheduler, SVC dispatcher
// and PendSV handler all operate over. It owns no concurrency control of
// its own, spec.md §5 requires all mutation to happen from a single
// privileged section (internal/kernel's trap mutex); Table assumes that
// discipline is honored by its caller.
type Table struct {
	tcb   [MaxTasks]TCB
	count int
}

// NewTable returns an empty task table with every slot marked invalid.
func NewTable() *Table {
	tb := &Table{}
	for i := range tb.tcb {
		tb.tcb[i].reset()
	}
	return tb
}

// Len returns the number of non-invalid task slots.
func (tb *Table) Len() int {
	return tb.count
}

// Get returns a pointer to the TCB at index i. The caller must hold the
// kernel's privileged section before mutating it.
func (tb *Table) Get(i int) *TCB {
	return &tb.tcb[i]
}

// Cap returns the table's fixed capacity.
func (tb *Table) Cap() int {
	return len(tb.tcb)
}

// Create installs a new task in the first invalid slot. It fails if the
// table is full or pid is already present, spec.md §7: "a task may not be
// created if taskCount ≥ MAX_TASKS or its entry is already present."
func (tb *Table) Create(pid uintptr, name string, priority uint8, spInit uint32, srd uint64) (index int, err error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	if tb.count >= MaxTasks {
		return 0, fmt.Errorf("task: table full (%d/%d)", tb.count, MaxTasks)
	}
	for i := 0; i < MaxTasks; i++ {
		if tb.tcb[i].State != StateInvalid && tb.tcb[i].PID == pid {
			return 0, fmt.Errorf("task: pid already registered")
		}
	}
	for i := 0; i < MaxTasks; i++ {
		if tb.tcb[i].State == StateInvalid {
			tb.tcb[i] = TCB{
				State:           StateReady,
				PID:             pid,
				SPInit:          spInit,
				SP:              spInit,
				Priority:        priority,
				CurrentPriority: priority,
				SRD:             srd,
				Name:            truncateName(name),
				Mutex:           NoResource,
				Semaphore:       NoResource,
			}
			tb.count++
			return i, nil
		}
	}
	return 0, fmt.Errorf("task: no invalid slot found despite count < MaxTasks")
}

// FindByPID returns the index of the task whose PID matches, or false if
// none is found. Linear search is intentional, spec.md §9: "MAX_TASKS is
// tiny."
func (tb *Table) FindByPID(pid uintptr) (int, bool) {
	for i := 0; i < MaxTasks; i++ {
		if tb.tcb[i].State != StateInvalid && tb.tcb[i].PID == pid {
			return i, true
		}
	}
	return 0, false
}

// FindByName returns the index of the task whose name matches, or false.
func (tb *Table) FindByName(name string) (int, bool) {
	for i := 0; i < MaxTasks; i++ {
		if tb.tcb[i].State != StateInvalid && tb.tcb[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// ReadyCount returns how many tasks are currently ready, used by invariant
// checks (spec.md §8: "at least one is ready").
func (tb *Table) ReadyCount() int {
	n := 0
	for i := 0; i < MaxTasks; i++ {
		if tb.tcb[i].State == StateReady {
			n++
		}
	}
	return n
}

// Each calls fn for every non-invalid task's index.
func (tb *Table) Each(fn func(index int, t *TCB)) {
	for i := 0; i < MaxTasks; i++ {
		if tb.tcb[i].State != StateInvalid {
			fn(i, &tb.tcb[i])
		}
	}
}

// TotalRuntime sums Runtime across every non-invalid task, used for
// cpu-percent computation (spec.md §4.3 service 18).
func (tb *Table) TotalRuntime() uint64 {
	var total uint64
	tb.Each(func(_ int, t *TCB) {
		total += t.Runtime
	})
	return total
}
