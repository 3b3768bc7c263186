// Package task defines the task control block and the fixed-capacity task
// table the scheduler and SVC dispatcher operate over.
//
// Grounded on the `struct _tcb` / `tcb[MAX_TASKS]` definitions in
// original_source/kernel.c; field names and the state enumeration follow
// the source (STATE_INVALID .. STATE_BLOCKED_SEMAPHORE) one-for-one.
package task

import "fmt"

// State is one of the task lifecycle states from spec.md §3.
type State uint8

const (
	StateInvalid State = iota
	StateStopped
	StateReady
	StateDelayed
	StateBlockedMutex
	StateBlockedSemaphore
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateStopped:
		return "stopped"
	case StateReady:
		return "ready"
	case StateDelayed:
		return "delayed"
	case StateBlockedMutex:
		return "blocked-mutex"
	case StateBlockedSemaphore:
		return "blocked-semaphore"
	default:
		return "unknown"
	}
}

// NumPriorities is the number of distinct priority levels; 0 is highest
// (spec.md §3).
const NumPriorities = 16

// NoResource marks the mutex/semaphore TCB fields as "not blocked on
// anything".
const NoResource = 0xFF

// MaxNameLength is the task name capacity (15 characters plus terminator,
// spec.md §3); names longer than this are truncated at creation.
const MaxNameLength = 15

// TCB is one task control block. Field-for-field, this mirrors spec.md §3.
type TCB struct {
	State State

	// PID is the task's entry-point address, used as a stable identity
	// across kill/pidof/restart/proc (spec.md §3, §9).
	PID uintptr

	// SPInit and SP are the initial and current stack pointers, assumed
	// 8-byte aligned.
	SPInit uint32
	SP     uint32

	Priority        uint8
	CurrentPriority uint8

	// Ticks is the remaining 1ms sleep count; valid only while Delayed.
	Ticks uint32

	// SRD is the permission bitmap: bit set means the task may access
	// that sub-region (spec.md §3, §4.4).
	SRD uint64

	Name string

	// Mutex and Semaphore index the IPC object this task is blocked on;
	// meaningful only in the corresponding blocked state. Ownership of a
	// mutex is recorded on the ipc.Mutex (LockedBy), not here. NoResource
	// means "none".
	Mutex     uint8
	Semaphore uint8

	// Runtime is the cumulative CPU time consumed by this task, in
	// nanoseconds, updated once per context switch (spec.md §5).
	Runtime uint64
}

// reset clears a TCB back to its just-allocated, not-yet-started shape.
func (t *TCB) reset() {
	*t = TCB{
		State:     StateInvalid,
		Mutex:     NoResource,
		Semaphore: NoResource,
	}
}

func truncateName(name string) string {
	if len(name) > MaxNameLength {
		return name[:MaxNameLength]
	}
	return name
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("task: name must not be empty")
	}
	return nil
}
